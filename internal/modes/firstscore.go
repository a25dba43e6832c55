package modes

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/gfracaro/wager-settlement-poc/internal/baseline"
	"github.com/gfracaro/wager-settlement-poc/internal/betrepo"
	"github.com/gfracaro/wager-settlement-poc/pkg/contracts/gamedoc"
)

// FirstToScoreMode: qual time marca o próximo ponto depois que a aposta
// entra na janela. Decide por diff contra o baseline de placar capturado no
// PENDING; se os dois lados pontuam dentro de um mesmo update observado, o
// feed é grosso demais pra ordenar os eventos e a aposta é anulada.
type FirstToScoreMode struct{}

func (FirstToScoreMode) Key() string   { return "first_to_score" }
func (FirstToScoreMode) Label() string { return "Próximo a Pontuar" }

func (FirstToScoreMode) ConfigSteps() []string { return nil }

func (FirstToScoreMode) ValidateConfig(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var cfg map[string]any
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return []string{"config não é JSON válido"}
	}
	return nil
}

func (FirstToScoreMode) ComputeOptions(_ json.RawMessage, pctx ProposalContext) []string {
	return []string{pctx.HomeTeam, pctx.AwayTeam}
}

func (FirstToScoreMode) ComputeWinningCondition(_ json.RawMessage, pctx ProposalContext) string {
	return fmt.Sprintf("Vence quem escolher o primeiro time (%s ou %s) a pontuar depois da abertura da janela da aposta.",
		pctx.HomeTeam, pctx.AwayTeam)
}

func (m FirstToScoreMode) NewValidator(deps ValidatorDeps) Validator {
	return &firstToScoreValidator{core: newCore(m.Key(), m.Label(), deps)}
}

type firstToScoreValidator struct {
	core
}

func (v *firstToScoreValidator) OnBetBecamePending(ctx context.Context, bet *betrepo.Bet) {
	if errs := (FirstToScoreMode{}).ValidateConfig(bet.ModeConfig); len(errs) > 0 {
		v.washInvalidConfig(ctx, bet, errs)
		return
	}
	doc, found := v.latest(bet.GameID)
	if !found {
		return // baseline é capturado no primeiro update observado
	}
	if doc.IsFinal() {
		// janela abriu com o jogo encerrado: não existe "próximo ponto"
		v.wash(ctx, bet,
			"Aposta anulada: o jogo já estava encerrado quando a janela de resolução abriu.",
			washDetail{Reason: ReasonGameOver})
		return
	}
	v.ensureBaseline(ctx, bet, doc)
}

func (v *firstToScoreValidator) OnGameUpdate(ctx context.Context, gameID string, doc *gamedoc.Document) {
	for _, bet := range v.pendings(ctx, gameID) {
		v.evaluate(ctx, &bet, doc)
	}
}

func (v *firstToScoreValidator) OnKernelReady(ctx context.Context) {
	for _, bet := range v.pendings(ctx, "") {
		if doc, found := v.latest(bet.GameID); found {
			v.evaluate(ctx, &bet, doc)
		}
	}
}

type firstToScoreOutcome struct {
	HomeDelta int64 `json:"home_delta"`
	AwayDelta int64 `json:"away_delta"`
	HomeScore int64 `json:"home_score"`
	AwayScore int64 `json:"away_score"`
}

func (v *firstToScoreValidator) evaluate(ctx context.Context, bet *betrepo.Bet, doc *gamedoc.Document) {
	home, away := doc.Home(), doc.Away()
	if home == nil || away == nil {
		if doc.IsFinal() {
			v.washInvalidConfig(ctx, bet, []string{"documento sem marcação de mandante/visitante"})
		}
		return
	}

	rec := v.ensureBaseline(ctx, bet, doc)
	if rec == nil {
		return
	}

	homeDelta := home.Score - int64(rec.Values[home.ID])
	awayDelta := away.Score - int64(rec.Values[away.ID])
	outcome := firstToScoreOutcome{
		HomeDelta: homeDelta,
		AwayDelta: awayDelta,
		HomeScore: home.Score,
		AwayScore: away.Score,
	}

	switch {
	case homeDelta > 0 && awayDelta > 0:
		// os dois pontuaram entre um update e outro; impossível ordenar
		v.wash(ctx, bet,
			"Aposta anulada: os dois times pontuaram no mesmo intervalo observado e não dá pra determinar quem pontuou primeiro.",
			washDetail{Reason: ReasonSimultaneousScores})
	case homeDelta > 0:
		v.win(ctx, bet, home.Abbreviation, outcome)
	case awayDelta > 0:
		v.win(ctx, bet, away.Abbreviation, outcome)
	default:
		if doc.IsFinal() {
			v.wash(ctx, bet,
				"Aposta anulada: o jogo terminou sem nenhum ponto depois da abertura da janela.",
				washDetail{Reason: ReasonGameOver})
		}
	}
}

// ensureBaseline captura o placar de referência dos dois times uma única
// vez; replays devolvem o registro original.
func (v *firstToScoreValidator) ensureBaseline(ctx context.Context, bet *betrepo.Bet, doc *gamedoc.Document) *baseline.Record {
	home, away := doc.Home(), doc.Away()
	if home == nil || away == nil {
		return nil
	}
	rec, err := v.baselines.Capture(ctx, bet.ID, baseline.Record{
		StatKey: "score",
		GameID:  bet.GameID,
		Values: map[string]float64{
			home.ID: float64(home.Score),
			away.ID: float64(away.Score),
		},
	})
	if err != nil {
		v.log.Warn("baseline capture failed", zap.String("bet_id", bet.ID), zap.Error(err))
		return nil
	}
	return rec
}
