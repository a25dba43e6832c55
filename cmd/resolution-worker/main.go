package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/gfracaro/wager-settlement-poc/internal/betrepo"
	"github.com/gfracaro/wager-settlement-poc/internal/chat"
	"github.com/gfracaro/wager-settlement-poc/internal/resolution"
	"github.com/gfracaro/wager-settlement-poc/internal/shared/config"
	"github.com/gfracaro/wager-settlement-poc/internal/shared/db"
	sharedkafka "github.com/gfracaro/wager-settlement-poc/internal/shared/kafka"
	"github.com/gfracaro/wager-settlement-poc/internal/shared/logger"
	"github.com/gfracaro/wager-settlement-poc/internal/shared/metrics"
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

	reader := sharedkafka.NewReader(cfg.KafkaBrokers, cfg.TopicResolutionJobs, "resolution-worker")
	defer reader.Close()

	dlqWriter := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicResolutionJobsDLQ)
	defer dlqWriter.Close()

	// Métricas Prometheus do consumidor
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "worker_jobs_processed_total", Help: "jobs aplicados com sucesso"}, []string{"kind"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{Name: "worker_job_conflicts_total", Help: "escritas condicionais que não aplicaram"})
	exhausted := prometheus.NewCounter(prometheus.CounterOpts{Name: "worker_jobs_exhausted_total", Help: "jobs que esgotaram tentativas e foram pra DLQ"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "worker_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(processed, conflicts, exhausted, errorsBy)

	repo := betrepo.NewPostgres(pg)
	notifier := chat.NewNotifier(pg)
	washer := &resolution.Washer{Log: log, Repo: repo, Chat: notifier}

	worker := &resolution.Worker{
		Log:         log,
		Reader:      reader,
		DLQ:         dlqWriter,
		Repo:        repo,
		Washer:      washer,
		Chat:        notifier,
		OnProcessed: func(kind string) { processed.WithLabelValues(kind).Inc() },
		OnConflict:  func() { conflicts.Inc() },
		OnExhausted: func() { exhausted.Inc() },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// Servidor de métricas e health check
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("resolution-worker started", zap.String("topic", cfg.TopicResolutionJobs))
	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("worker stopped with error", zap.Error(err))
	}
	log.Info("resolution-worker stopped")
}
