package modes

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gfracaro/wager-settlement-poc/internal/betrepo"
	"github.com/gfracaro/wager-settlement-poc/internal/gamefeed"
	ev "github.com/gfracaro/wager-settlement-poc/pkg/contracts/events"
)

// betGetter é o recorte do betrepo usado pelo kernel.
type betGetter interface {
	GetBet(ctx context.Context, betID string) (*betrepo.Bet, error)
}

// FeedSubscriber é o recorte do gamefeed.Service usado pelo kernel.
type FeedSubscriber interface {
	Subscribe(buffer int, replay bool) <-chan gamefeed.Event
}

// LifecycleSource entrega as notificações de transição de status das
// apostas. Subscribe só retorna depois que a assinatura está confirmada
// viva — é esse o gatilho do OnKernelReady.
type LifecycleSource interface {
	Subscribe(ctx context.Context) (<-chan ev.BetLifecycleEvent, error)
}

// Kernel orquestra um modo: liga as notificações de ciclo de vida e os
// eventos de feed ao validator do modo. Um kernel por modo.
type Kernel struct {
	Log       *zap.Logger
	ModeKey   string
	Validator Validator
	Feed      FeedSubscriber
	Lifecycle LifecycleSource
	Repo      betGetter
	Baselines BaselineStore

	OnPendingBet func() // métricas
	OnGameEvent  func() // métricas
	OnDeduped    func() // métricas: assinatura já vista por este kernel
}

// Run roda o kernel até o contexto encerrar. Parar o kernel só derruba as
// assinaturas; jobs de resolução já enfileirados seguem até o fim.
func (k *Kernel) Run(ctx context.Context) error {
	lifeCh, err := k.Lifecycle.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe lifecycle channel: %w", err)
	}
	feedCh := k.Feed.Subscribe(64, false)

	if err := k.Validator.Start(ctx); err != nil {
		return fmt.Errorf("start validator %s: %w", k.ModeKey, err)
	}
	defer k.Validator.Stop()

	// Canal confirmado vivo: reconcilia o que transicionou enquanto o
	// kernel esteve offline. Exatamente uma vez por execução.
	k.Validator.OnKernelReady(ctx)
	k.Log.Info("mode kernel ready", zap.String("mode", k.ModeKey))

	// Dedup próprio por assinatura: estado independente do cache do feed,
	// pra não reprocessar replay/catch-up como mudança nova.
	lastSig := make(map[string]string)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case lev, ok := <-lifeCh:
			if !ok {
				return fmt.Errorf("lifecycle channel closed for mode %s", k.ModeKey)
			}
			k.handleLifecycle(ctx, lev)

		case fev, ok := <-feedCh:
			if !ok {
				return fmt.Errorf("feed channel closed for mode %s", k.ModeKey)
			}
			if lastSig[fev.GameID] == fev.Signature {
				if k.OnDeduped != nil {
					k.OnDeduped()
				}
				continue
			}
			lastSig[fev.GameID] = fev.Signature
			if k.OnGameEvent != nil {
				k.OnGameEvent()
			}
			k.Validator.OnGameUpdate(ctx, fev.GameID, fev.Doc)
		}
	}
}

// handleLifecycle filtra por modo e despacha a transição.
func (k *Kernel) handleLifecycle(ctx context.Context, lev ev.BetLifecycleEvent) {
	if lev.ModeKey != k.ModeKey {
		return
	}

	switch {
	case lev.NewStatus == betrepo.StatusPending:
		bet, err := k.Repo.GetBet(ctx, lev.BetID)
		if err != nil {
			k.Log.Warn("bet fetch on pending transition failed", zap.String("bet_id", lev.BetID), zap.Error(err))
			return
		}
		if bet == nil || bet.Status != betrepo.StatusPending {
			// notificação atrasada/replay: a aposta já seguiu adiante
			return
		}
		if k.OnPendingBet != nil {
			k.OnPendingBet()
		}
		k.Validator.OnBetBecamePending(ctx, bet)

	case lev.NewStatus == "DELETED",
		lev.PrevStatus == betrepo.StatusPending && lev.NewStatus != betrepo.StatusPending:
		// saiu de PENDING por fora da resolução (deleção, cancelamento):
		// baseline não pode sobreviver pra contaminar uma reavaliação
		if err := k.Baselines.Delete(ctx, lev.BetID); err != nil {
			k.Log.Warn("baseline cleanup failed", zap.String("bet_id", lev.BetID), zap.Error(err))
		}
	}
}
