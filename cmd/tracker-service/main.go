package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	sharedcache "github.com/radieske/live-bet-tracker/internal/shared/cache"
	"github.com/radieske/live-bet-tracker/internal/shared/config"
	"github.com/radieske/live-bet-tracker/internal/shared/db"
	"github.com/radieske/live-bet-tracker/internal/shared/kafka"
	"github.com/radieske/live-bet-tracker/internal/shared/logger"
	"github.com/radieske/live-bet-tracker/internal/shared/metrics"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/cache"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/evaluator"
	httpapi "github.com/radieske/live-bet-tracker/internal/tracker-service/http"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/ledger"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/producer"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/refresher"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/repo"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/scoreboard"
)

func main() {
	// carrega config
	cfg := config.Load()

	// inicia logger
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	log.Info("starting service",
		zap.String("service", cfg.ServiceName),
		zap.String("env", cfg.Env),
		zap.String("ledger_backend", cfg.LedgerBackend),
		zap.Duration("refresh_interval", cfg.RefreshInterval),
		zap.Bool("strict_pick_resolution", cfg.StrictPickResolution),
	)

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Store do ledger: arquivo CSV (padrão) ou Postgres
	var (
		store ledger.Store
		pg    *sql.DB
	)
	switch cfg.LedgerBackend {
	case "postgres":
		pg, err = db.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			log.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()
		if err := db.EnsureSchema(ctx, pg, repo.Schema); err != nil {
			log.Fatal("failed to ensure schema", zap.Error(err))
		}
		store = repo.NewPostgres(pg)
		log.Info("postgres ledger ready")
	case "csv", "":
		store = ledger.NewCSVStore(cfg.LedgerFile)
		log.Info("csv ledger ready", zap.String("file", cfg.LedgerFile))
	default:
		log.Fatal("unknown ledger backend", zap.String("backend", cfg.LedgerBackend))
	}

	book, err := ledger.Open(ctx, store)
	if err != nil {
		log.Fatal("failed to load ledger", zap.Error(err))
	}
	log.Info("ledger loaded", zap.Int("wagers", book.Len()))

	// Redis é opcional: sem ele não há cache de avaliações nem do scoreboard
	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Warn("redis unavailable, running without cache", zap.Error(err))
		redisClient = nil
	}
	var rcache *cache.RedisCache
	if redisClient != nil {
		defer redisClient.Close()
		rcache = cache.NewRedisCache(redisClient, cfg.StatusCacheTTL)
		log.Info("redis connected")
	}

	// Client do scoreboard ESPN
	sbOpts := []scoreboard.Option{
		scoreboard.WithBaseURL(cfg.ScoreboardBaseURL),
		scoreboard.WithTimeout(cfg.ScoreboardTimeout),
	}
	if rcache != nil {
		sbOpts = append(sbOpts, scoreboard.WithCache(rcache, cfg.ScoreboardCacheTTL))
	}
	sb := scoreboard.New(log, sbOpts...)

	// Métricas Prometheus
	passes := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_refresh_pass_seconds",
		Help:    "duração de um passe de avaliação",
		Buckets: prometheus.DefBuckets,
	})
	evaluated := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "tracker_evaluations_total", Help: "avaliações por status"}, []string{"status"})
	fetchWarnings := prometheus.NewCounter(prometheus.CounterOpts{Name: "tracker_fetch_warnings_total", Help: "falhas ao buscar o scoreboard"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "tracker_errors_total", Help: "erros por estágio"}, []string{"stage"})
	wagersGauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: "tracker_wagers", Help: "apostas no ledger"}, func() float64 {
		return float64(book.Len())
	})
	prometheus.MustRegister(passes, evaluated, fetchWarnings, errorsBy, wagersGauge)
	onError := func(stage string) { errorsBy.WithLabelValues(stage).Inc() }

	eval := evaluator.New(cfg.StrictPickResolution)
	ref := &refresher.Refresher{
		Log:            log.Named("refresher"),
		Ledger:         book,
		Fetch:          refresher.FetchFrom(sb),
		Evaluate:       eval.Evaluate,
		Interval:       cfg.RefreshInterval,
		OnPass:         func(d time.Duration) { passes.Observe(d.Seconds()) },
		OnFetchWarning: func() { fetchWarnings.Inc() },
		OnEvaluated:    func(status string) { evaluated.WithLabelValues(status).Inc() },
		OnError:        onError,
	}
	if rcache != nil {
		ref.Cache = rcache
	}

	// Kafka é opcional: sem brokers as mudanças de status só vão para o log
	if cfg.KafkaBrokers != "" {
		writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerStatusChanged)
		defer writer.Close()
		ref.Publisher = producer.NewKafkaPublisher(writer, cfg.TopicWagerStatusChanged)
		log.Info("kafka writer ready", zap.String("topic", cfg.TopicWagerStatusChanged))
	}

	// Servidor de métricas e health
	metrics.StartMetricsServer(ctx, log, cfg.MetricsPort, healthCheck(pg, redisClient))

	// Auto-refresh
	go func() {
		if err := ref.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("refresher stopped", zap.Error(err))
		}
	}()

	api := &httpapi.API{
		Log:         log.Named("http"),
		Ledger:      book,
		Refresher:   ref,
		CORSOrigins: cfg.CORSOrigins,
		OnError:     onError,
	}
	if rcache != nil {
		api.Cache = rcache
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("http listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("http server failed", zap.Error(err))
	}
	log.Info("tracker-service stopped")
}

// healthCheck valida só as dependências que estão em uso
func healthCheck(pg *sql.DB, rdb *redis.Client) metrics.HealthFunc {
	return func(ctx context.Context) error {
		if pg != nil {
			if err := pg.PingContext(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
}
