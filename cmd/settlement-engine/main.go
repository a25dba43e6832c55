package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gfracaro/wager-settlement-poc/internal/baseline"
	"github.com/gfracaro/wager-settlement-poc/internal/betrepo"
	"github.com/gfracaro/wager-settlement-poc/internal/gamefeed"
	"github.com/gfracaro/wager-settlement-poc/internal/modes"
	"github.com/gfracaro/wager-settlement-poc/internal/resolution"
	sharedcache "github.com/gfracaro/wager-settlement-poc/internal/shared/cache"
	"github.com/gfracaro/wager-settlement-poc/internal/shared/config"
	"github.com/gfracaro/wager-settlement-poc/internal/shared/db"
	sharedkafka "github.com/gfracaro/wager-settlement-poc/internal/shared/kafka"
	"github.com/gfracaro/wager-settlement-poc/internal/shared/logger"
	"github.com/gfracaro/wager-settlement-poc/internal/shared/metrics"
	"github.com/gfracaro/wager-settlement-poc/pkg/contracts/gamedoc"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Inicializa dependências: Postgres, Redis e Kafka
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

	jobsWriter := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicResolutionJobs)
	defer jobsWriter.Close()

	// Métricas Prometheus do caminho de detecção
	observed := prometheus.NewCounter(prometheus.CounterOpts{Name: "engine_feed_docs_observed_total", Help: "documentos observados"})
	emitted := prometheus.NewCounter(prometheus.CounterOpts{Name: "engine_feed_events_emitted_total", Help: "eventos de mudança emitidos"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "engine_feed_skips_total", Help: "documentos com assinatura repetida"})
	enqueued := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "engine_jobs_enqueued_total", Help: "jobs de resolução enfileirados"}, []string{"kind"})
	pendings := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "engine_pending_bets_total", Help: "apostas recebidas em pending"}, []string{"mode"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "engine_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(observed, emitted, skipped, enqueued, pendings, errorsBy)

	// Serviço de feed + transporte escolhido por configuração
	feed := gamefeed.NewService(log)
	feed.OnObserved = func() { observed.Inc() }
	feed.OnEmitted = func() { emitted.Inc() }
	feed.OnSkipped = func() { skipped.Inc() }
	feed.OnError = func(stage string) { errorsBy.WithLabelValues("feed_" + stage).Inc() }

	var source gamefeed.Source
	switch cfg.FeedMode {
	case "ws":
		source = &gamefeed.WSSource{URL: cfg.FeedWSURL, Log: log}
	default:
		source = &gamefeed.DirSource{Dir: cfg.FeedDir, Interval: 5 * time.Second, Log: log}
	}

	repo := betrepo.NewPostgres(pg)
	baselines := baseline.NewStore(redisClient)
	queue := &resolution.Queue{
		Log:        log,
		Writer:     jobsWriter,
		Baselines:  baselines,
		OnEnqueued: func(kind string) { enqueued.WithLabelValues(kind).Inc() },
	}

	// Servidor de métricas e health check
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	})

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	rootCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(rootCtx)

	// Fonte do feed alimentando o serviço de dedup/fan-out
	g.Go(func() error { return feed.Run(ctx, source) })

	// Um kernel por modo registrado, cada um com seu validator injetado
	for _, m := range modes.All() {
		mode := m
		deps := modes.ValidatorDeps{
			Log:       log,
			Repo:      repo,
			Baselines: baselines,
			Queue:     queue,
			Latest: func(gameID string) (*gamedoc.Document, bool) {
				d, _, found := feed.Latest(gameID)
				return d, found
			},
		}
		kernel := &modes.Kernel{
			Log:       log,
			ModeKey:   mode.Key(),
			Validator: mode.NewValidator(deps),
			Feed:      feed,
			Lifecycle: &modes.RedisLifecycle{Client: redisClient, Channel: cfg.LifecycleChannel, Log: log},
			Repo:      repo,
			Baselines: baselines,
			OnPendingBet: func() { pendings.WithLabelValues(mode.Key()).Inc() },
		}
		g.Go(func() error { return kernel.Run(ctx) })
	}

	log.Info("settlement-engine started",
		zap.String("feed_mode", cfg.FeedMode),
		zap.Int("modes", len(modes.All())),
	)

	if err := g.Wait(); err != nil && rootCtx.Err() == nil {
		log.Fatal("engine stopped with error", zap.Error(err))
	}
	log.Info("settlement-engine stopped")
}
