package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/gfracaro/wager-settlement-poc/internal/betrepo"
	"github.com/gfracaro/wager-settlement-poc/internal/chat"
	"github.com/gfracaro/wager-settlement-poc/internal/modes"
	"github.com/gfracaro/wager-settlement-poc/internal/resolution"
	"github.com/gfracaro/wager-settlement-poc/internal/scheduler"
	sharedcache "github.com/gfracaro/wager-settlement-poc/internal/shared/cache"
	"github.com/gfracaro/wager-settlement-poc/internal/shared/config"
	"github.com/gfracaro/wager-settlement-poc/internal/shared/db"
	"github.com/gfracaro/wager-settlement-poc/internal/shared/logger"
	"github.com/gfracaro/wager-settlement-poc/internal/shared/metrics"
	ev "github.com/gfracaro/wager-settlement-poc/pkg/contracts/events"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	transitions := prometheus.NewCounter(prometheus.CounterOpts{Name: "scheduler_pending_transitions_total", Help: "apostas movidas pra PENDING"})
	voided := prometheus.NewCounter(prometheus.CounterOpts{Name: "scheduler_voided_total", Help: "apostas anuladas no fechamento"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "scheduler_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(transitions, voided, errorsBy)

	repo := betrepo.NewPostgres(pg)
	washer := &resolution.Washer{Log: log, Repo: repo, Chat: chat.NewNotifier(pg)}

	sched := &scheduler.Scheduler{
		Log:    log,
		Repo:   repo,
		Washer: washer,
		Publish: func(ctx context.Context, lev ev.BetLifecycleEvent) error {
			return modes.PublishLifecycle(ctx, redisClient, cfg.LifecycleChannel, lev)
		},
		OnTransition: func() { transitions.Inc() },
		OnVoided:     func() { voided.Inc() },
		OnError:      func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// Servidor de métricas e health check
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("lifecycle-scheduler started", zap.String("channel", cfg.LifecycleChannel))
	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("scheduler stopped with error", zap.Error(err))
	}
	log.Info("lifecycle-scheduler stopped")
}
