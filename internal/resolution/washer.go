package resolution

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/gfracaro/wager-settlement-poc/internal/betrepo"
)

// washRepo é o recorte do betrepo usado pelo Washer.
type washRepo interface {
	WashBet(ctx context.Context, betID, fromStatus string) (*betrepo.WashedBet, error)
	RecordHistory(ctx context.Context, betID, eventType string, payload json.RawMessage) error
}

// tableNotifier posta mensagens na conversa da mesa da aposta.
type tableNotifier interface {
	Post(ctx context.Context, tableID, text string) error
}

// Washer concentra o caminho de anulação: escrita condicional, histórico e
// explicação em linguagem humana na mesa de origem. Usado pelo
// resolution-worker (jobs wash_bet, de PENDING) e pelo lifecycle-scheduler
// (void na transição, de ACTIVE).
type Washer struct {
	Log  *zap.Logger
	Repo washRepo
	Chat tableNotifier
}

// Wash executa a anulação. Retorna false quando a aposta já não estava no
// status esperado (conflito benigno, não é erro). Falha nas etapas de
// histórico/notificação é apenas logada e nunca desfaz o wash.
func (w *Washer) Wash(ctx context.Context, betID, fromStatus, eventType, modeLabel, explanation string, payload json.RawMessage) (bool, error) {
	washed, err := w.Repo.WashBet(ctx, betID, fromStatus)
	if err != nil {
		return false, err
	}
	if washed == nil {
		w.Log.Warn("wash skipped, bet no longer in expected status",
			zap.String("bet_id", betID),
			zap.String("expected_status", fromStatus),
		)
		return false, nil
	}

	if err := w.Repo.RecordHistory(ctx, betID, eventType, payload); err != nil {
		w.Log.Warn("wash history insert failed", zap.String("bet_id", betID), zap.Error(err))
	}

	text := explanation
	if modeLabel != "" {
		text = "[" + modeLabel + "] " + explanation
	}
	if err := w.Chat.Post(ctx, washed.TableID, text); err != nil {
		w.Log.Warn("wash explanation post failed",
			zap.String("bet_id", betID),
			zap.String("table_id", washed.TableID),
			zap.Error(err),
		)
	}

	w.Log.Info("bet washed",
		zap.String("bet_id", betID),
		zap.String("event_type", eventType),
	)
	return true, nil
}
