package resolution

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/gfracaro/wager-settlement-poc/internal/betrepo"
	ev "github.com/gfracaro/wager-settlement-poc/pkg/contracts/events"
)

// messageWriter é o que precisamos de um *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// baselineDeleter é o que precisamos do baseline.Store.
type baselineDeleter interface {
	Delete(ctx context.Context, betID string) error
}

// Queue enfileira decisões terminais no tópico resolution_jobs. Do ponto de
// vista do validator, enfileirar É resolver: o baseline da aposta é limpo
// aqui mesmo, antes da escrita durável, para que um próximo update do jogo
// nunca reutilize baseline velho de aposta que já está sendo finalizada.
type Queue struct {
	Log       *zap.Logger
	Writer    messageWriter
	Baselines baselineDeleter

	OnEnqueued func(kind string) // métricas
}

// ResolveWithWinner enfileira a gravação do vencedor de uma aposta.
func (q *Queue) ResolveWithWinner(ctx context.Context, bet *betrepo.Bet, modeLabel, choice string, payload any) error {
	job := ev.ResolutionJob{
		Kind:          ev.JobSetWinningChoice,
		BetID:         bet.ID,
		TableID:       bet.TableID,
		GameID:        bet.GameID,
		ModeKey:       bet.ModeKey,
		ModeLabel:     modeLabel,
		WinningChoice: choice,
		EventType:     "bet_resolved",
	}
	return q.enqueue(ctx, job, payload)
}

// Wash enfileira a anulação de uma aposta, com razão e explicação humana.
func (q *Queue) Wash(ctx context.Context, bet *betrepo.Bet, modeLabel, eventType, explanation string, payload any) error {
	job := ev.ResolutionJob{
		Kind:        ev.JobWashBet,
		BetID:       bet.ID,
		TableID:     bet.TableID,
		GameID:      bet.GameID,
		ModeKey:     bet.ModeKey,
		ModeLabel:   modeLabel,
		EventType:   eventType,
		Explanation: explanation,
	}
	return q.enqueue(ctx, job, payload)
}

func (q *Queue) enqueue(ctx context.Context, job ev.ResolutionJob, payload any) error {
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal job payload: %w", err)
		}
		job.Payload = b
	}
	job.EnqueuedAtUnix = time.Now().UnixMilli()

	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal resolution job: %w", err)
	}
	if err := q.Writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(job.BetID),
		Value: b,
		Time:  time.Now(),
	}); err != nil {
		return fmt.Errorf("enqueue resolution job: %w", err)
	}

	// Limpeza otimista: se falhar, o TTL expira o baseline sozinho.
	if err := q.Baselines.Delete(ctx, job.BetID); err != nil {
		q.Log.Warn("baseline delete after enqueue failed", zap.String("bet_id", job.BetID), zap.Error(err))
	}

	if q.OnEnqueued != nil {
		q.OnEnqueued(job.Kind)
	}
	q.Log.Info("resolution job enqueued",
		zap.String("bet_id", job.BetID),
		zap.String("kind", job.Kind),
		zap.String("event_type", job.EventType),
	)
	return nil
}
