package modes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gfracaro/wager-settlement-poc/internal/betrepo"
	"github.com/gfracaro/wager-settlement-poc/pkg/contracts/gamedoc"
)

// Faixas de diferença de placar (inclusivas). Exaustivas: toda diferença
// cai em exatamente uma faixa, então este modo nunca anula por push.
var scoreBuckets = []string{"0-3", "4-10", "11-25", "26+"}

// BucketForDiff mapeia a diferença absoluta de placar para a faixa.
func BucketForDiff(diff int64) string {
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff <= 3:
		return scoreBuckets[0]
	case diff <= 10:
		return scoreBuckets[1]
	case diff <= 25:
		return scoreBuckets[2]
	default:
		return scoreBuckets[3]
	}
}

// ScoreBucketMode: em qual faixa cai a diferença final de placar.
type ScoreBucketMode struct{}

func (ScoreBucketMode) Key() string   { return "score_bucket" }
func (ScoreBucketMode) Label() string { return "Margem de Vitória" }

func (ScoreBucketMode) ConfigSteps() []string { return nil } // sem parâmetros

func (ScoreBucketMode) ValidateConfig(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var cfg map[string]any
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return []string{"config não é JSON válido"}
	}
	return nil
}

func (ScoreBucketMode) ComputeOptions(_ json.RawMessage, _ ProposalContext) []string {
	out := make([]string, len(scoreBuckets))
	copy(out, scoreBuckets)
	return out
}

func (ScoreBucketMode) ComputeWinningCondition(_ json.RawMessage, pctx ProposalContext) string {
	return fmt.Sprintf("Vence quem escolher a faixa em que cair a diferença final de placar entre %s e %s (0-3, 4-10, 11-25 ou 26+).",
		pctx.HomeTeam, pctx.AwayTeam)
}

func (m ScoreBucketMode) NewValidator(deps ValidatorDeps) Validator {
	return &scoreBucketValidator{core: newCore(m.Key(), m.Label(), deps)}
}

type scoreBucketValidator struct {
	core
}

func (v *scoreBucketValidator) OnBetBecamePending(ctx context.Context, bet *betrepo.Bet) {
	if errs := (ScoreBucketMode{}).ValidateConfig(bet.ModeConfig); len(errs) > 0 {
		v.washInvalidConfig(ctx, bet, errs)
		return
	}
	if doc, found := v.latest(bet.GameID); found && doc.IsFinal() {
		v.evaluate(ctx, bet, doc)
	}
}

func (v *scoreBucketValidator) OnGameUpdate(ctx context.Context, gameID string, doc *gamedoc.Document) {
	if !doc.IsFinal() {
		return
	}
	for _, bet := range v.pendings(ctx, gameID) {
		v.evaluate(ctx, &bet, doc)
	}
}

func (v *scoreBucketValidator) OnKernelReady(ctx context.Context) {
	for _, bet := range v.pendings(ctx, "") {
		if doc, found := v.latest(bet.GameID); found && doc.IsFinal() {
			v.evaluate(ctx, &bet, doc)
		}
	}
}

type scoreBucketOutcome struct {
	HomeScore int64  `json:"home_score"`
	AwayScore int64  `json:"away_score"`
	Diff      int64  `json:"diff"`
	Bucket    string `json:"bucket"`
}

func (v *scoreBucketValidator) evaluate(ctx context.Context, bet *betrepo.Bet, doc *gamedoc.Document) {
	home, away := doc.Home(), doc.Away()
	if home == nil || away == nil {
		v.washInvalidConfig(ctx, bet, []string{"documento final sem marcação de mandante/visitante"})
		return
	}
	diff := home.Score - away.Score
	if diff < 0 {
		diff = -diff
	}
	v.win(ctx, bet, BucketForDiff(diff), scoreBucketOutcome{
		HomeScore: home.Score,
		AwayScore: away.Score,
		Diff:      diff,
		Bucket:    BucketForDiff(diff),
	})
}
