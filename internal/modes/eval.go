package modes

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/gfracaro/wager-settlement-poc/internal/betrepo"
	"github.com/gfracaro/wager-settlement-poc/pkg/contracts/gamedoc"
)

// Tolerância de comparação de métricas: diferenças menores que isso são
// empate (push).
const epsilon = 1e-9

func almostEqual(a, b float64) bool { return math.Abs(a-b) <= epsilon }

// NormalizeLine valida e normaliza uma linha/spread: numérica, dentro de
// [min,max] e quantizada no incremento exigido pelo modo (ex: meio ponto).
// Retorna false quando a normalização falha.
func NormalizeLine(value, min, max, increment float64) (float64, bool) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	if value < min-epsilon || value > max+epsilon {
		return 0, false
	}
	steps := value / increment
	if !almostEqual(steps, math.Round(steps)) {
		return 0, false
	}
	return math.Round(steps) * increment, true
}

// core reúne as dependências e os atalhos comuns a todos os validators.
// Composição em vez de herança: cada modo embute o core e implementa só os
// hooks que lhe interessam.
type core struct {
	log       *zap.Logger
	modeKey   string
	modeLabel string
	repo      PendingLister
	baselines BaselineStore
	queue     Resolver
	latest    func(gameID string) (*gamedoc.Document, bool)
}

func newCore(modeKey, modeLabel string, deps ValidatorDeps) core {
	return core{
		log:       deps.Log.With(zap.String("mode", modeKey)),
		modeKey:   modeKey,
		modeLabel: modeLabel,
		repo:      deps.Repo,
		baselines: deps.Baselines,
		queue:     deps.Queue,
		latest:    deps.Latest,
	}
}

func (c *core) Start(ctx context.Context) error { return nil }
func (c *core) Stop()                           {}

// pendings lista as apostas PENDING do modo; gameID vazio = todos os jogos.
func (c *core) pendings(ctx context.Context, gameID string) []betrepo.Bet {
	bets, err := c.repo.ListPendingBets(ctx, c.modeKey, gameID)
	if err != nil {
		c.log.Warn("list pending bets failed", zap.String("game_id", gameID), zap.Error(err))
		return nil
	}
	return bets
}

// washDetail é o payload padrão das anulações gravado no histórico.
type washDetail struct {
	Reason string   `json:"reason"`
	Errors []string `json:"errors,omitempty"`
	Metric float64  `json:"metric,omitempty"`
	Line   float64  `json:"line,omitempty"`
}

// wash enfileira a anulação da aposta com razão e explicação humana.
func (c *core) wash(ctx context.Context, bet *betrepo.Bet, explanation string, detail washDetail) {
	if err := c.queue.Wash(ctx, bet, c.modeLabel, "bet_washed", explanation, detail); err != nil {
		c.log.Error("enqueue wash failed", zap.String("bet_id", bet.ID), zap.Error(err))
	}
}

// washInvalidConfig é o caminho comum de configuração inválida detectada na
// resolução: melhor anular com razão explícita do que deixar a aposta presa
// em PENDING pra sempre.
func (c *core) washInvalidConfig(ctx context.Context, bet *betrepo.Bet, errs []string) {
	c.log.Warn("invalid mode config at resolution time",
		zap.String("bet_id", bet.ID),
		zap.Strings("errors", errs),
	)
	c.wash(ctx, bet, "Aposta anulada: configuração inválida ("+strings.Join(errs, "; ")+").",
		washDetail{Reason: ReasonInvalidConfig, Errors: errs})
}

// win enfileira a gravação do vencedor.
func (c *core) win(ctx context.Context, bet *betrepo.Bet, choice string, payload any) {
	if err := c.queue.ResolveWithWinner(ctx, bet, c.modeLabel, choice, payload); err != nil {
		c.log.Error("enqueue winner failed", zap.String("bet_id", bet.ID), zap.Error(err))
	}
}
