package modes

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/gfracaro/wager-settlement-poc/internal/baseline"
	"github.com/gfracaro/wager-settlement-poc/internal/betrepo"
	"github.com/gfracaro/wager-settlement-poc/pkg/contracts/gamedoc"
)

// Razões de anulação. Toda aposta anulada carrega uma razão e uma
// explicação em texto postada na mesa.
const (
	ReasonInvalidConfig      = "invalid_config"
	ReasonInvalidLine        = "invalid_line"
	ReasonInvalidSpread      = "invalid_spread"
	ReasonLineAlreadyCrossed = "line_already_crossed"
	ReasonPush               = "push"
	ReasonSimultaneousScores = "simultaneous_scores"
	ReasonGameOver           = "game_over"
	ReasonNotEnoughPlayers   = "not_enough_players"
)

// ProposalContext é o contexto mínimo que a UI de proposta fornece para
// calcular opções e condição de vitória (fora do núcleo de resolução).
type ProposalContext struct {
	HomeTeam string // abreviação do mandante
	AwayTeam string // abreviação do visitante
}

// Mode é o contrato externo de um modo de aposta: chave, rótulo, validação
// de configuração na proposta e textos exibidos ao usuário. Funções puras.
type Mode interface {
	Key() string
	Label() string
	ConfigSteps() []string

	// ValidateConfig roda na proposta e devolve a lista de problemas;
	// vazia significa configuração aceitável.
	ValidateConfig(raw json.RawMessage) []string
	ComputeOptions(raw json.RawMessage, pctx ProposalContext) []string
	ComputeWinningCondition(raw json.RawMessage, pctx ProposalContext) string

	// NewValidator constrói a estratégia de resolução do modo.
	NewValidator(deps ValidatorDeps) Validator
}

// Validator é o contrato interno consumido pelo kernel. Todos os hooks
// precisam ser seguros para reinvocação com o mesmo par (aposta, estado de
// jogo): as escritas terminais são condicionais, então reavaliar é barato e
// inofensivo.
type Validator interface {
	Start(ctx context.Context) error
	Stop()
	OnBetBecamePending(ctx context.Context, bet *betrepo.Bet)
	OnGameUpdate(ctx context.Context, gameID string, doc *gamedoc.Document)
	OnKernelReady(ctx context.Context)
}

// PendingLister é o recorte do betrepo usado pelos validators.
type PendingLister interface {
	ListPendingBets(ctx context.Context, modeKey, gameID string) ([]betrepo.Bet, error)
}

// BaselineStore é o recorte do baseline.Store usado pelos validators.
type BaselineStore interface {
	Get(ctx context.Context, betID string) (*baseline.Record, error)
	Capture(ctx context.Context, betID string, rec baseline.Record) (*baseline.Record, error)
	Delete(ctx context.Context, betID string) error
}

// Resolver é o recorte da fila de resolução: o validator nunca escreve
// direto no repositório, toda decisão terminal passa pela fila.
type Resolver interface {
	ResolveWithWinner(ctx context.Context, bet *betrepo.Bet, modeLabel, choice string, payload any) error
	Wash(ctx context.Context, bet *betrepo.Bet, modeLabel, eventType, explanation string, payload any) error
}

// ValidatorDeps são as dependências injetadas em cada validator.
type ValidatorDeps struct {
	Log       *zap.Logger
	Repo      PendingLister
	Baselines BaselineStore
	Queue     Resolver
	// Latest devolve o último documento conhecido de um jogo (cache do
	// feed), usado no catch-up do OnKernelReady e na checagem imediata do
	// OnBetBecamePending.
	Latest func(gameID string) (*gamedoc.Document, bool)
}
