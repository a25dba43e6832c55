package modes

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	ev "github.com/gfracaro/wager-settlement-poc/pkg/contracts/events"
)

// RedisLifecycle é a fonte de transições de ciclo de vida via Redis Pub/Sub.
// O lifecycle-scheduler publica; cada kernel assina e filtra pelo seu modo.
type RedisLifecycle struct {
	Client  *redis.Client
	Channel string
	Log     *zap.Logger
}

// Subscribe assina o canal e só retorna depois da confirmação da inscrição
// (é isso que torna seguro disparar o OnKernelReady do chamador).
func (r *RedisLifecycle) Subscribe(ctx context.Context) (<-chan ev.BetLifecycleEvent, error) {
	sub := r.Client.Subscribe(ctx, r.Channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan ev.BetLifecycleEvent, 64)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var lev ev.BetLifecycleEvent
				if err := json.Unmarshal([]byte(msg.Payload), &lev); err != nil {
					r.Log.Warn("invalid lifecycle event", zap.Error(err))
					continue
				}
				out <- lev
			}
		}
	}()
	return out, nil
}

// PublishLifecycle publica uma transição no canal de ciclo de vida.
func PublishLifecycle(ctx context.Context, c *redis.Client, channel string, lev ev.BetLifecycleEvent) error {
	b, err := json.Marshal(lev)
	if err != nil {
		return err
	}
	return c.Publish(ctx, channel, b).Err()
}
