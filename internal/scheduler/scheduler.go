package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gfracaro/wager-settlement-poc/internal/betrepo"
	"github.com/gfracaro/wager-settlement-poc/internal/modes"
	ev "github.com/gfracaro/wager-settlement-poc/pkg/contracts/events"
)

// schedRepo é o recorte do betrepo usado pelo scheduler.
type schedRepo interface {
	ListActive(ctx context.Context) ([]betrepo.Bet, error)
	ListActiveDue(ctx context.Context, now time.Time) ([]betrepo.Bet, error)
	GetBet(ctx context.Context, betID string) (*betrepo.Bet, error)
	MarkPending(ctx context.Context, betID string) (bool, error)
	CountDistinctChoices(ctx context.Context, betID string) (int, error)
	RecordHistory(ctx context.Context, betID, eventType string, payload json.RawMessage) error
}

// washService é o caminho compartilhado de anulação (mesmo histórico e
// notificação da resolução).
type washService interface {
	Wash(ctx context.Context, betID, fromStatus, eventType, modeLabel, explanation string, payload json.RawMessage) (bool, error)
}

const (
	defaultGrace      = 30 * time.Second
	defaultSweepEvery = time.Minute
)

// Scheduler transiciona apostas de ACTIVE para PENDING no fechamento.
// Um job atrasado por aposta (re-agendamento deduplica) mais um sweep
// periódico que cobre jobs perdidos e relógios tortos.
type Scheduler struct {
	Log     *zap.Logger
	Repo    schedRepo
	Washer  washService
	Publish func(ctx context.Context, lev ev.BetLifecycleEvent) error

	Grace      time.Duration
	SweepEvery time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer

	OnTransition func() // métricas
	OnVoided     func() // métricas: anulada na transição
	OnError      func(string)
}

// Run rearma os timers das apostas ACTIVE existentes e mantém o sweep até o
// contexto encerrar.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.timers == nil {
		s.timers = make(map[string]*time.Timer)
	}

	bets, err := s.Repo.ListActive(ctx)
	if err != nil {
		s.Log.Warn("active bets listing failed on startup", zap.Error(err))
	}
	for _, b := range bets {
		s.Schedule(ctx, b.ID, b.CloseTime)
	}
	s.Log.Info("lifecycle scheduler started", zap.Int("rearmed", len(bets)))

	sweepEvery := s.SweepEvery
	if sweepEvery <= 0 {
		sweepEvery = defaultSweepEvery
	}
	ticker := time.NewTicker(sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Schedule agenda (ou re-agenda) o job de fechamento de uma aposta.
// Chave = bet id: agendar duas vezes substitui, nunca duplica.
func (s *Scheduler) Schedule(ctx context.Context, betID string, closeTime time.Time) {
	grace := s.Grace
	if grace <= 0 {
		grace = defaultGrace
	}
	delay := time.Until(closeTime.Add(grace))
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	if s.timers == nil {
		s.timers = make(map[string]*time.Timer)
	}
	if t, ok := s.timers[betID]; ok {
		t.Stop()
	}
	s.timers[betID] = time.AfterFunc(delay, func() { s.fire(ctx, betID) })
	s.mu.Unlock()
}

func (s *Scheduler) fire(ctx context.Context, betID string) {
	s.mu.Lock()
	delete(s.timers, betID)
	s.mu.Unlock()

	bet, err := s.Repo.GetBet(ctx, betID)
	if err != nil {
		s.Log.Warn("bet fetch on close failed", zap.String("bet_id", betID), zap.Error(err))
		if s.OnError != nil {
			s.OnError("fetch")
		}
		return // o sweep pega na próxima rodada
	}
	if bet == nil || bet.Status != betrepo.StatusActive {
		return
	}
	s.transition(ctx, bet)
}

// sweep re-escaneia apostas ACTIVE vencidas — cobertura pra job perdido,
// processo reiniciado ou clock skew.
func (s *Scheduler) sweep(ctx context.Context) {
	bets, err := s.Repo.ListActiveDue(ctx, time.Now())
	if err != nil {
		s.Log.Warn("sweep listing failed", zap.Error(err))
		if s.OnError != nil {
			s.OnError("sweep")
		}
		return
	}
	for _, b := range bets {
		s.transition(ctx, &b)
	}
}

// transition aplica o fechamento: anula quando não há duas escolhas
// distintas, senão move pra PENDING e notifica os kernels.
func (s *Scheduler) transition(ctx context.Context, bet *betrepo.Bet) {
	modeLabel := bet.ModeKey
	if m := modes.ByKey(bet.ModeKey); m != nil {
		modeLabel = m.Label()
	}

	n, err := s.Repo.CountDistinctChoices(ctx, bet.ID)
	if err != nil {
		s.Log.Warn("choice count failed", zap.String("bet_id", bet.ID), zap.Error(err))
		if s.OnError != nil {
			s.OnError("choices")
		}
		return
	}

	if n < 2 {
		// aposta sem dois lados não tem o que resolver; anula já na
		// transição, pelo mesmo caminho de histórico/notificação do wash
		applied, err := s.Washer.Wash(ctx, bet.ID, betrepo.StatusActive, "bet_washed", modeLabel,
			"Aposta anulada: não houve escolhas distintas suficientes até o fechamento.",
			json.RawMessage(`{"reason":"`+modes.ReasonNotEnoughPlayers+`"}`))
		if err != nil {
			s.Log.Error("void on close failed", zap.String("bet_id", bet.ID), zap.Error(err))
			if s.OnError != nil {
				s.OnError("void")
			}
			return
		}
		if applied {
			s.publish(ctx, bet, betrepo.StatusActive, betrepo.StatusWashed)
			if s.OnVoided != nil {
				s.OnVoided()
			}
		}
		return
	}

	applied, err := s.Repo.MarkPending(ctx, bet.ID)
	if err != nil {
		s.Log.Warn("pending transition failed", zap.String("bet_id", bet.ID), zap.Error(err))
		if s.OnError != nil {
			s.OnError("transition")
		}
		return
	}
	if !applied {
		// job duplicado ou sweep concorrente chegou primeiro
		s.Log.Warn("pending transition skipped, bet no longer active", zap.String("bet_id", bet.ID))
		return
	}

	if err := s.Repo.RecordHistory(ctx, bet.ID, "bet_pending", nil); err != nil {
		s.Log.Warn("pending history insert failed", zap.String("bet_id", bet.ID), zap.Error(err))
	}
	s.publish(ctx, bet, betrepo.StatusActive, betrepo.StatusPending)
	if s.OnTransition != nil {
		s.OnTransition()
	}
	s.Log.Info("bet moved to pending", zap.String("bet_id", bet.ID), zap.String("mode", bet.ModeKey))
}

func (s *Scheduler) publish(ctx context.Context, bet *betrepo.Bet, prev, next string) {
	lev := ev.BetLifecycleEvent{
		BetID:      bet.ID,
		GameID:     bet.GameID,
		ModeKey:    bet.ModeKey,
		PrevStatus: prev,
		NewStatus:  next,
		Ts:         time.Now(),
	}
	if err := s.Publish(ctx, lev); err != nil {
		// kernel perde a notificação, mas o OnKernelReady reconcilia
		s.Log.Error("lifecycle publish failed", zap.String("bet_id", bet.ID), zap.Error(err))
		if s.OnError != nil {
			s.OnError("publish")
		}
	}
}

func (s *Scheduler) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
