package baseline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL único para qualquer baseline. Baselines órfãos (aposta abandonada,
// processo morto antes da limpeza) expiram sozinhos.
const TTL = 12 * time.Hour

// Record é o snapshot de stats capturado quando a aposta entra em PENDING.
// Values mapeia a referência (playerId ou teamId) para o valor no momento
// da captura; modos de linha usam uma entrada, duelos e first-to-score duas.
type Record struct {
	StatKey    string             `json:"stat_key"` // ex: "receiving.receivingYards" ou "score"
	GameID     string             `json:"game_id"`
	Values     map[string]float64 `json:"values"`
	CapturedAt time.Time          `json:"captured_at"`
}

// Store guarda baselines por aposta no Redis com TTL fixo.
type Store struct {
	Client *redis.Client
}

func NewStore(c *redis.Client) *Store { return &Store{Client: c} }

// key gera a chave Redis do baseline de uma aposta
func key(betID string) string { return "baseline:bet:" + betID }

// Get retorna o baseline da aposta, ou nil se não existir.
func (s *Store) Get(ctx context.Context, betID string) (*Record, error) {
	b, err := s.Client.Get(ctx, key(betID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Capture grava o baseline apenas se ainda não houver um para a aposta.
// Idempotente: se já existe, o registro existente é retornado em vez de
// recapturar (o snapshot de referência é o da transição para PENDING).
func (s *Store) Capture(ctx context.Context, betID string, rec Record) (*Record, error) {
	if rec.CapturedAt.IsZero() {
		rec.CapturedAt = time.Now()
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	ok, err := s.Client.SetNX(ctx, key(betID), b, TTL).Result()
	if err != nil {
		return nil, err
	}
	if ok {
		return &rec, nil
	}
	// já havia baseline; devolve o vigente
	return s.Get(ctx, betID)
}

// Delete remove o baseline da aposta. Chamado ao enfileirar a resolução,
// ao sair de PENDING ou na deleção da aposta.
func (s *Store) Delete(ctx context.Context, betID string) error {
	return s.Client.Del(ctx, key(betID)).Err()
}
