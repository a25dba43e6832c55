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

// StatDuelConfig: dois jogadores disputando quem acumula mais de um stat a
// partir da abertura da janela da aposta.
type StatDuelConfig struct {
	PlayerAID   string `json:"playerAId"`
	PlayerAName string `json:"playerAName"`
	PlayerBID   string `json:"playerBId"`
	PlayerBName string `json:"playerBName"`
	Category    string `json:"category"`
	Field       string `json:"field"`
}

func parseStatDuelConfig(raw json.RawMessage) (*StatDuelConfig, []string) {
	var cfg StatDuelConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, []string{"config não é JSON válido"}
	}
	var errs []string
	if cfg.PlayerAID == "" || cfg.PlayerBID == "" {
		errs = append(errs, "playerAId e playerBId obrigatórios")
	}
	if cfg.PlayerAID != "" && cfg.PlayerAID == cfg.PlayerBID {
		errs = append(errs, "jogadores do duelo devem ser distintos")
	}
	if cfg.PlayerAName == "" || cfg.PlayerBName == "" {
		errs = append(errs, "playerAName e playerBName obrigatórios")
	}
	if cfg.Category == "" || cfg.Field == "" {
		errs = append(errs, "category e field obrigatórios")
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return &cfg, nil
}

func (c *StatDuelConfig) statKey() string { return c.Category + "." + c.Field }

// StatDuelMode: duelo de stat entre dois jogadores, medido por progresso
// desde o PENDING e decidido no documento final. Empate exato é push.
type StatDuelMode struct{}

func (StatDuelMode) Key() string   { return "stat_duel" }
func (StatDuelMode) Label() string { return "Duelo de Stats" }

func (StatDuelMode) ConfigSteps() []string { return []string{"playerA", "playerB", "stat"} }

func (StatDuelMode) ValidateConfig(raw json.RawMessage) []string {
	_, errs := parseStatDuelConfig(raw)
	return errs
}

func (StatDuelMode) ComputeOptions(raw json.RawMessage, _ ProposalContext) []string {
	cfg, errs := parseStatDuelConfig(raw)
	if len(errs) > 0 {
		return nil
	}
	return []string{cfg.PlayerAName, cfg.PlayerBName}
}

func (StatDuelMode) ComputeWinningCondition(raw json.RawMessage, _ ProposalContext) string {
	cfg, errs := parseStatDuelConfig(raw)
	if len(errs) > 0 {
		return ""
	}
	return fmt.Sprintf("Vence quem escolher o jogador (%s ou %s) que acumular mais %s até o fim do jogo, contando a partir da abertura da janela. Empate exato anula a aposta.",
		cfg.PlayerAName, cfg.PlayerBName, cfg.statKey())
}

func (m StatDuelMode) NewValidator(deps ValidatorDeps) Validator {
	return &statDuelValidator{core: newCore(m.Key(), m.Label(), deps)}
}

type statDuelValidator struct {
	core
}

func (v *statDuelValidator) OnBetBecamePending(ctx context.Context, bet *betrepo.Bet) {
	cfg, errs := parseStatDuelConfig(bet.ModeConfig)
	if len(errs) > 0 {
		v.washInvalidConfig(ctx, bet, errs)
		return
	}
	doc, found := v.latest(bet.GameID)
	if !found {
		return
	}
	if v.ensureBaseline(ctx, bet, cfg, doc) != nil && doc.IsFinal() {
		v.evaluate(ctx, bet, cfg, doc)
	}
}

func (v *statDuelValidator) OnGameUpdate(ctx context.Context, gameID string, doc *gamedoc.Document) {
	for _, bet := range v.pendings(ctx, gameID) {
		cfg, errs := parseStatDuelConfig(bet.ModeConfig)
		if len(errs) > 0 {
			v.washInvalidConfig(ctx, &bet, errs)
			continue
		}
		// garante o snapshot de referência mesmo quando o PENDING chegou
		// antes do primeiro documento do jogo
		if v.ensureBaseline(ctx, &bet, cfg, doc) == nil {
			continue
		}
		if doc.IsFinal() {
			v.evaluate(ctx, &bet, cfg, doc)
		}
	}
}

func (v *statDuelValidator) OnKernelReady(ctx context.Context) {
	for _, bet := range v.pendings(ctx, "") {
		doc, found := v.latest(bet.GameID)
		if !found {
			continue
		}
		cfg, errs := parseStatDuelConfig(bet.ModeConfig)
		if len(errs) > 0 {
			v.washInvalidConfig(ctx, &bet, errs)
			continue
		}
		if v.ensureBaseline(ctx, &bet, cfg, doc) != nil && doc.IsFinal() {
			v.evaluate(ctx, &bet, cfg, doc)
		}
	}
}

type statDuelOutcome struct {
	StatKey string  `json:"stat_key"`
	DeltaA  float64 `json:"delta_a"`
	DeltaB  float64 `json:"delta_b"`
	StatA   float64 `json:"stat_a"`
	StatB   float64 `json:"stat_b"`
}

func (v *statDuelValidator) evaluate(ctx context.Context, bet *betrepo.Bet, cfg *StatDuelConfig, doc *gamedoc.Document) {
	rec, err := v.baselines.Get(ctx, bet.ID)
	if err != nil || rec == nil {
		if err != nil {
			v.log.Warn("baseline read failed", zap.String("bet_id", bet.ID), zap.Error(err))
		}
		return
	}

	statA := duelStat(doc, cfg.PlayerAID, cfg)
	statB := duelStat(doc, cfg.PlayerBID, cfg)
	outcome := statDuelOutcome{
		StatKey: cfg.statKey(),
		DeltaA:  statA - rec.Values[cfg.PlayerAID],
		DeltaB:  statB - rec.Values[cfg.PlayerBID],
		StatA:   statA,
		StatB:   statB,
	}

	switch {
	case almostEqual(outcome.DeltaA, outcome.DeltaB):
		v.wash(ctx, bet,
			fmt.Sprintf("Aposta anulada (push): %s e %s terminaram empatados em %s no período da aposta.",
				cfg.PlayerAName, cfg.PlayerBName, cfg.statKey()),
			washDetail{Reason: ReasonPush, Metric: outcome.DeltaA, Line: outcome.DeltaB})
	case outcome.DeltaA > outcome.DeltaB:
		v.win(ctx, bet, cfg.PlayerAName, outcome)
	default:
		v.win(ctx, bet, cfg.PlayerBName, outcome)
	}
}

func (v *statDuelValidator) ensureBaseline(ctx context.Context, bet *betrepo.Bet, cfg *StatDuelConfig, doc *gamedoc.Document) *baseline.Record {
	rec, err := v.baselines.Capture(ctx, bet.ID, baseline.Record{
		StatKey: cfg.statKey(),
		GameID:  bet.GameID,
		Values: map[string]float64{
			cfg.PlayerAID: duelStat(doc, cfg.PlayerAID, cfg),
			cfg.PlayerBID: duelStat(doc, cfg.PlayerBID, cfg),
		},
	})
	if err != nil {
		v.log.Warn("baseline capture failed", zap.String("bet_id", bet.ID), zap.Error(err))
		return nil
	}
	return rec
}

func duelStat(doc *gamedoc.Document, playerID string, cfg *StatDuelConfig) float64 {
	if p := doc.Player(playerID); p != nil {
		return p.Stats.Value(cfg.Category, cfg.Field)
	}
	return 0
}
