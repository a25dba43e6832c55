package modes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gfracaro/wager-settlement-poc/internal/betrepo"
	"github.com/gfracaro/wager-settlement-poc/pkg/contracts/gamedoc"
)

const (
	minSpread       = -99.5
	maxSpread       = 99.5
	spreadIncrement = 0.5
)

// SpreadConfig: handicap aplicado ao placar do mandante.
type SpreadConfig struct {
	Spread float64 `json:"spread"`
}

// SpreadMode: vitória com handicap. O placar do mandante recebe o spread e é
// comparado ao do visitante no documento final; empate exato é push.
type SpreadMode struct{}

func (SpreadMode) Key() string   { return "spread" }
func (SpreadMode) Label() string { return "Spread" }

func (SpreadMode) ConfigSteps() []string { return []string{"spread"} }

func (SpreadMode) ValidateConfig(raw json.RawMessage) []string {
	var cfg SpreadConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return []string{"config não é JSON válido"}
	}
	if _, ok := NormalizeLine(cfg.Spread, minSpread, maxSpread, spreadIncrement); !ok {
		return []string{fmt.Sprintf("spread deve estar entre %.1f e %.1f em passos de %.1f", minSpread, maxSpread, spreadIncrement)}
	}
	return nil
}

func (SpreadMode) ComputeOptions(_ json.RawMessage, pctx ProposalContext) []string {
	return []string{pctx.HomeTeam, pctx.AwayTeam}
}

func (SpreadMode) ComputeWinningCondition(raw json.RawMessage, pctx ProposalContext) string {
	var cfg SpreadConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return ""
	}
	return fmt.Sprintf("%s vence se o placar final mais o spread de %+.1f superar o de %s; empate exato com o spread anula a aposta.",
		pctx.HomeTeam, cfg.Spread, pctx.AwayTeam)
}

func (m SpreadMode) NewValidator(deps ValidatorDeps) Validator {
	return &spreadValidator{core: newCore(m.Key(), m.Label(), deps)}
}

type spreadValidator struct {
	core
}

func (v *spreadValidator) OnBetBecamePending(ctx context.Context, bet *betrepo.Bet) {
	spread, ok := v.parse(ctx, bet)
	if !ok {
		return
	}
	// Spread só decide no final; se o jogo já terminou quando a aposta
	// entrou na janela, resolve de imediato.
	if doc, found := v.latest(bet.GameID); found && doc.IsFinal() {
		v.evaluate(ctx, bet, spread, doc)
	}
}

func (v *spreadValidator) OnGameUpdate(ctx context.Context, gameID string, doc *gamedoc.Document) {
	if !doc.IsFinal() {
		return // o handicap pode virar até o fim; nada a decidir antes
	}
	for _, bet := range v.pendings(ctx, gameID) {
		if spread, ok := v.parse(ctx, &bet); ok {
			v.evaluate(ctx, &bet, spread, doc)
		}
	}
}

func (v *spreadValidator) OnKernelReady(ctx context.Context) {
	for _, bet := range v.pendings(ctx, "") {
		doc, found := v.latest(bet.GameID)
		if !found || !doc.IsFinal() {
			continue
		}
		if spread, ok := v.parse(ctx, &bet); ok {
			v.evaluate(ctx, &bet, spread, doc)
		}
	}
}

// parse valida config e spread, anulando a aposta quando inválidos.
func (v *spreadValidator) parse(ctx context.Context, bet *betrepo.Bet) (float64, bool) {
	var cfg SpreadConfig
	if err := json.Unmarshal(bet.ModeConfig, &cfg); err != nil {
		v.washInvalidConfig(ctx, bet, []string{"config não é JSON válido"})
		return 0, false
	}
	spread, ok := NormalizeLine(cfg.Spread, minSpread, maxSpread, spreadIncrement)
	if !ok {
		v.wash(ctx, bet,
			fmt.Sprintf("Aposta anulada: spread %.3f inválido (fora dos limites ou fora do passo de meio ponto).", cfg.Spread),
			washDetail{Reason: ReasonInvalidSpread, Line: cfg.Spread})
		return 0, false
	}
	return spread, true
}

type spreadOutcome struct {
	HomeScore int64   `json:"home_score"`
	AwayScore int64   `json:"away_score"`
	Spread    float64 `json:"spread"`
	Adjusted  float64 `json:"adjusted"` // home + spread
}

func (v *spreadValidator) evaluate(ctx context.Context, bet *betrepo.Bet, spread float64, doc *gamedoc.Document) {
	home, away := doc.Home(), doc.Away()
	if home == nil || away == nil {
		v.washInvalidConfig(ctx, bet, []string{"documento final sem marcação de mandante/visitante"})
		return
	}

	adjusted := float64(home.Score) + spread
	outcome := spreadOutcome{HomeScore: home.Score, AwayScore: away.Score, Spread: spread, Adjusted: adjusted}

	switch {
	case almostEqual(adjusted, float64(away.Score)):
		v.wash(ctx, bet,
			fmt.Sprintf("Aposta anulada (push): %d%+.1f empata exatamente com %d.", home.Score, spread, away.Score),
			washDetail{Reason: ReasonPush, Metric: adjusted, Line: float64(away.Score)})
	case adjusted > float64(away.Score):
		v.win(ctx, bet, home.Abbreviation, outcome)
	default:
		v.win(ctx, bet, away.Abbreviation, outcome)
	}
}
