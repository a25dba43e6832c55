package betrepo

import (
	"encoding/json"
	"time"
)

// Status possíveis de uma aposta. Estado terminal (RESOLVED com vencedor,
// WASHED sem) é atingido no máximo uma vez.
const (
	StatusActive   = "ACTIVE"
	StatusPending  = "PENDING"
	StatusResolved = "RESOLVED"
	StatusWashed   = "WASHED"
)

// Bet é o modelo persistido no Postgres.
type Bet struct {
	ID          string
	TableID     string
	GameID      string
	League      string
	ModeKey     string
	Status      string
	Description string
	StakeCents  int64
	// Janela da aposta: proposta em ProposedAt, fecha para palpites em
	// CloseTime (TimeLimit é a duração configurada na proposta).
	TimeLimit  time.Duration
	CloseTime  time.Time
	ProposedAt time.Time

	// ModeConfig é o payload de configuração do modo, imutável depois que a
	// aposta sai de ACTIVE. Tipado e validado em internal/modes.
	ModeConfig json.RawMessage

	WinningChoice *string // nil enquanto não resolvida (e sempre nil em WASHED)
	ResolvedAt    *time.Time
}

// WashedBet é o retorno da anulação: o suficiente pra notificar a mesa.
type WashedBet struct {
	BetID   string
	TableID string
}
