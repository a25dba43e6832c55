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

// Opções do modo prop_line.
const (
	OptionOver  = "Over"
	OptionUnder = "Under"
)

// Modos de acompanhamento e de timing do prop_line.
const (
	TrackingCumulative = "cumulative" // stat total do jogo vs linha
	TrackingProgress   = "progress"   // stat acumulado desde o PENDING vs linha

	ResolveAtGameEnd = "game_end" // só decide com documento final
	ResolveOnCross   = "on_cross" // Over pode fechar assim que cruzar a linha
)

const (
	minPropLine       = 0.5
	maxPropLine       = 499.5
	propLineIncrement = 0.5
)

// PropLineConfig é a configuração tipada do prop over/under de jogador.
type PropLineConfig struct {
	PlayerID   string  `json:"playerId"`
	PlayerName string  `json:"playerName"`
	Category   string  `json:"category"` // ex: "receiving"
	Field      string  `json:"field"`    // ex: "receivingYards"
	Line       float64 `json:"line"`
	Tracking   string  `json:"tracking,omitempty"`  // cumulative (default) | progress
	ResolveAt  string  `json:"resolveAt,omitempty"` // game_end (default) | on_cross
}

func parsePropLineConfig(raw json.RawMessage) (*PropLineConfig, []string) {
	var cfg PropLineConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, []string{"config não é JSON válido"}
	}
	if cfg.Tracking == "" {
		cfg.Tracking = TrackingCumulative
	}
	if cfg.ResolveAt == "" {
		cfg.ResolveAt = ResolveAtGameEnd
	}

	var errs []string
	if cfg.PlayerID == "" {
		errs = append(errs, "playerId obrigatório")
	}
	if cfg.Category == "" || cfg.Field == "" {
		errs = append(errs, "category e field obrigatórios")
	}
	if cfg.Tracking != TrackingCumulative && cfg.Tracking != TrackingProgress {
		errs = append(errs, "tracking deve ser cumulative ou progress")
	}
	if cfg.ResolveAt != ResolveAtGameEnd && cfg.ResolveAt != ResolveOnCross {
		errs = append(errs, "resolveAt deve ser game_end ou on_cross")
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return &cfg, nil
}

func (c *PropLineConfig) statKey() string { return c.Category + "." + c.Field }

// PropLineMode: over/under de stat de jogador contra uma linha de meio ponto.
type PropLineMode struct{}

func (PropLineMode) Key() string   { return "prop_line" }
func (PropLineMode) Label() string { return "Prop Over/Under" }

func (PropLineMode) ConfigSteps() []string { return []string{"player", "stat", "line", "timing"} }

func (PropLineMode) ValidateConfig(raw json.RawMessage) []string {
	cfg, errs := parsePropLineConfig(raw)
	if len(errs) > 0 {
		return errs
	}
	if _, ok := NormalizeLine(cfg.Line, minPropLine, maxPropLine, propLineIncrement); !ok {
		errs = append(errs, fmt.Sprintf("line deve estar entre %.1f e %.1f em passos de %.1f", minPropLine, maxPropLine, propLineIncrement))
	}
	return errs
}

func (PropLineMode) ComputeOptions(_ json.RawMessage, _ ProposalContext) []string {
	return []string{OptionOver, OptionUnder}
}

func (PropLineMode) ComputeWinningCondition(raw json.RawMessage, _ ProposalContext) string {
	cfg, errs := parsePropLineConfig(raw)
	if len(errs) > 0 {
		return ""
	}
	scope := "no jogo"
	if cfg.Tracking == TrackingProgress {
		scope = "a partir da abertura da janela"
	}
	return fmt.Sprintf("\"Over\" vence se %s passar de %.1f em %s %s; \"Under\" vence se ficar abaixo no fim do jogo. Empate exato anula a aposta.",
		cfg.PlayerName, cfg.Line, cfg.statKey(), scope)
}

func (m PropLineMode) NewValidator(deps ValidatorDeps) Validator {
	return &propLineValidator{core: newCore(m.Key(), m.Label(), deps)}
}

// propLineValidator resolve props de jogador contra a linha configurada.
type propLineValidator struct {
	core
}

func (v *propLineValidator) OnBetBecamePending(ctx context.Context, bet *betrepo.Bet) {
	cfg, errs := parsePropLineConfig(bet.ModeConfig)
	if len(errs) > 0 {
		v.washInvalidConfig(ctx, bet, errs)
		return
	}
	line, ok := NormalizeLine(cfg.Line, minPropLine, maxPropLine, propLineIncrement)
	if !ok {
		v.washBadLine(ctx, bet, cfg.Line)
		return
	}

	doc, found := v.latest(bet.GameID)
	if !found {
		// sem documento ainda; baseline e avaliação ficam pro próximo update
		return
	}

	if cfg.Tracking == TrackingProgress {
		if v.ensureBaseline(ctx, bet, cfg, doc) == nil {
			return
		}
	} else {
		// A janela da aposta precisa começar antes da condição apostada:
		// stat já acima da linha no PENDING anula, nunca premia.
		stat := playerStat(doc, cfg)
		if stat > line+epsilon {
			v.wash(ctx, bet,
				fmt.Sprintf("Aposta anulada: a linha de %.1f já estava ultrapassada (%.0f) quando a janela de resolução abriu.", line, stat),
				washDetail{Reason: ReasonLineAlreadyCrossed, Metric: stat, Line: line})
			return
		}
	}

	v.evaluate(ctx, bet, cfg, line, doc)
}

func (v *propLineValidator) OnGameUpdate(ctx context.Context, gameID string, doc *gamedoc.Document) {
	for _, bet := range v.pendings(ctx, gameID) {
		v.check(ctx, &bet, doc)
	}
}

func (v *propLineValidator) OnKernelReady(ctx context.Context) {
	// Catch-up: apostas que viraram PENDING enquanto o kernel esteve fora
	// ganham baseline (se faltando) e uma avaliação imediata.
	for _, bet := range v.pendings(ctx, "") {
		doc, found := v.latest(bet.GameID)
		if !found {
			continue
		}
		v.check(ctx, &bet, doc)
	}
}

// check faz o caminho completo de uma avaliação: config, linha, métrica.
func (v *propLineValidator) check(ctx context.Context, bet *betrepo.Bet, doc *gamedoc.Document) {
	cfg, errs := parsePropLineConfig(bet.ModeConfig)
	if len(errs) > 0 {
		v.washInvalidConfig(ctx, bet, errs)
		return
	}
	line, ok := NormalizeLine(cfg.Line, minPropLine, maxPropLine, propLineIncrement)
	if !ok {
		v.washBadLine(ctx, bet, cfg.Line)
		return
	}
	v.evaluate(ctx, bet, cfg, line, doc)
}

type propLineOutcome struct {
	Stat     float64 `json:"stat"`
	Baseline float64 `json:"baseline,omitempty"`
	Metric   float64 `json:"metric"`
	Line     float64 `json:"line"`
	StatKey  string  `json:"stat_key"`
}

// evaluate compara a métrica do modo com a linha e decide, ou deixa a
// aposta PENDING quando o jogo ainda pode mudar o resultado.
func (v *propLineValidator) evaluate(ctx context.Context, bet *betrepo.Bet, cfg *PropLineConfig, line float64, doc *gamedoc.Document) {
	player := doc.Player(cfg.PlayerID)
	if player == nil {
		// Jogador pode aparecer no boxscore mais tarde; só anula se o jogo
		// acabou sem ele.
		if doc.IsFinal() {
			v.washInvalidConfig(ctx, bet, []string{"jogador " + cfg.PlayerID + " não consta no documento final"})
		}
		return
	}

	stat := player.Stats.Value(cfg.Category, cfg.Field)
	outcome := propLineOutcome{Stat: stat, Metric: stat, Line: line, StatKey: cfg.statKey()}

	if cfg.Tracking == TrackingProgress {
		rec := v.ensureBaseline(ctx, bet, cfg, doc)
		if rec == nil {
			return // store indisponível; o próximo update tenta de novo
		}
		outcome.Baseline = rec.Values[cfg.PlayerID]
		outcome.Metric = stat - outcome.Baseline
	}

	switch {
	case almostEqual(outcome.Metric, line):
		if doc.IsFinal() {
			v.wash(ctx, bet,
				fmt.Sprintf("Aposta anulada (push): %s fechou exatamente na linha de %.1f.", cfg.PlayerName, line),
				washDetail{Reason: ReasonPush, Metric: outcome.Metric, Line: line})
		}
	case outcome.Metric > line:
		// Stat acumulado não diminui, então o Over pode fechar cedo quando
		// o modo permite.
		if cfg.ResolveAt == ResolveOnCross || doc.IsFinal() {
			v.win(ctx, bet, OptionOver, outcome)
		}
	default:
		if doc.IsFinal() {
			v.win(ctx, bet, OptionUnder, outcome)
		}
	}
}

// ensureBaseline captura (uma única vez) o snapshot de referência do modo
// progress. Idempotente: replay devolve o registro original.
func (v *propLineValidator) ensureBaseline(ctx context.Context, bet *betrepo.Bet, cfg *PropLineConfig, doc *gamedoc.Document) *baseline.Record {
	rec, err := v.baselines.Capture(ctx, bet.ID, baseline.Record{
		StatKey: cfg.statKey(),
		GameID:  bet.GameID,
		Values:  map[string]float64{cfg.PlayerID: playerStat(doc, cfg)},
	})
	if err != nil {
		v.log.Warn("baseline capture failed", zap.String("bet_id", bet.ID), zap.Error(err))
		return nil
	}
	return rec
}

func (v *propLineValidator) washBadLine(ctx context.Context, bet *betrepo.Bet, raw float64) {
	v.wash(ctx, bet,
		fmt.Sprintf("Aposta anulada: linha %.3f inválida (fora dos limites ou fora do passo de meio ponto).", raw),
		washDetail{Reason: ReasonInvalidLine, Line: raw})
}

func playerStat(doc *gamedoc.Document, cfg *PropLineConfig) float64 {
	if p := doc.Player(cfg.PlayerID); p != nil {
		return p.Stats.Value(cfg.Category, cfg.Field)
	}
	return 0
}
