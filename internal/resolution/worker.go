package resolution

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/gfracaro/wager-settlement-poc/internal/betrepo"
	ev "github.com/gfracaro/wager-settlement-poc/pkg/contracts/events"
)

// winnerRepo é o recorte do betrepo usado no caminho de vitória.
type winnerRepo interface {
	SetWinningChoice(ctx context.Context, betID, choice string) (bool, error)
	RecordHistory(ctx context.Context, betID, eventType string, payload json.RawMessage) error
}

// messageReader é o que precisamos de um *kafka.Reader.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
}

const (
	defaultMaxAttempts = 4
	baseBackoff        = 250 * time.Millisecond
)

// Worker consome resolution_jobs e executa a escrita terminal contra o
// repositório. Toda escrita é condicional ("só se ainda PENDING"), então
// redelivery do mesmo job é no-op seguro. Tentativas são limitadas; ao
// esgotar, o job vai pra DLQ e vira falha visível ao operador — a aposta
// segue PENDING e o catch-up do kernel a reavalia depois.
type Worker struct {
	Log    *zap.Logger
	Reader messageReader
	DLQ    messageWriter // opcional
	Repo   winnerRepo
	Washer *Washer
	Chat   tableNotifier

	MaxAttempts int

	OnProcessed func(kind string) // métricas
	OnConflict  func()            // métricas: escrita condicional não aplicou
	OnExhausted func()            // métricas: job esgotou tentativas
	OnError     func(string)      // métricas por estágio
}

// Run inicia o loop principal de consumo. Retorna quando o contexto encerra;
// o job em andamento roda até o fim (idempotente de qualquer forma).
func (w *Worker) Run(ctx context.Context) error {
	for {
		m, err := w.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log.Warn("kafka read failed", zap.Error(err))
			if w.OnError != nil {
				w.OnError("read")
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		var job ev.ResolutionJob
		if err := json.Unmarshal(m.Value, &job); err != nil {
			w.Log.Error("invalid resolution job", zap.Error(err))
			if w.OnError != nil {
				w.OnError("decode")
			}
			continue
		}

		w.processWithRetry(ctx, &job, m.Value)
	}
}

// processWithRetry tenta executar o job com backoff exponencial até
// MaxAttempts; esgotando, publica na DLQ.
func (w *Worker) processWithRetry(ctx context.Context, job *ev.ResolutionJob, raw []byte) {
	max := w.MaxAttempts
	if max <= 0 {
		max = defaultMaxAttempts
	}

	var err error
	for attempt := 1; attempt <= max; attempt++ {
		if err = w.processOne(ctx, job); err == nil {
			if w.OnProcessed != nil {
				w.OnProcessed(job.Kind)
			}
			return
		}
		if attempt < max {
			time.Sleep(baseBackoff << (attempt - 1))
		}
	}

	w.Log.Error("resolution job exhausted retries",
		zap.String("bet_id", job.BetID),
		zap.String("kind", job.Kind),
		zap.Error(err),
	)
	if w.OnExhausted != nil {
		w.OnExhausted()
	}
	if w.DLQ != nil {
		if derr := w.DLQ.WriteMessages(ctx, kafkago.Message{
			Key:   []byte(job.BetID),
			Value: raw,
			Time:  time.Now(),
		}); derr != nil {
			w.Log.Error("dlq write failed", zap.String("bet_id", job.BetID), zap.Error(derr))
		}
	}
}

// processOne aplica um job. Conflito de status (aposta já fora de PENDING)
// é no-op com log warn, nunca retentado.
func (w *Worker) processOne(ctx context.Context, job *ev.ResolutionJob) error {
	switch job.Kind {
	case ev.JobSetWinningChoice:
		applied, err := w.Repo.SetWinningChoice(ctx, job.BetID, job.WinningChoice)
		if err != nil {
			return err
		}
		if !applied {
			w.Log.Warn("winner write skipped, bet no longer pending", zap.String("bet_id", job.BetID))
			if w.OnConflict != nil {
				w.OnConflict()
			}
			return nil
		}
		if err := w.Repo.RecordHistory(ctx, job.BetID, job.EventType, job.Payload); err != nil {
			w.Log.Warn("resolve history insert failed", zap.String("bet_id", job.BetID), zap.Error(err))
		}
		// Anuncia o vencedor na mesa; falha aqui não desfaz nada.
		if w.Chat != nil && job.TableID != "" {
			text := "Aposta resolvida: \"" + job.WinningChoice + "\" venceu."
			if job.ModeLabel != "" {
				text = "[" + job.ModeLabel + "] " + text
			}
			if err := w.Chat.Post(ctx, job.TableID, text); err != nil {
				w.Log.Warn("winner announcement failed", zap.String("bet_id", job.BetID), zap.Error(err))
			}
		}
		w.Log.Info("bet resolved",
			zap.String("bet_id", job.BetID),
			zap.String("winning_choice", job.WinningChoice),
		)
		return nil

	case ev.JobWashBet:
		applied, err := w.Washer.Wash(ctx, job.BetID, betrepo.StatusPending, job.EventType, job.ModeLabel, job.Explanation, job.Payload)
		if err != nil {
			return err
		}
		if !applied && w.OnConflict != nil {
			w.OnConflict()
		}
		return nil

	default:
		w.Log.Error("unknown job kind", zap.String("kind", job.Kind), zap.String("bet_id", job.BetID))
		return nil
	}
}
