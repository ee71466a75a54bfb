package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/live-bet-tracker/internal/shared/config"
	"github.com/radieske/live-bet-tracker/internal/shared/db"
	"github.com/radieske/live-bet-tracker/internal/shared/kafka"
	"github.com/radieske/live-bet-tracker/internal/shared/logger"
	"github.com/radieske/live-bet-tracker/internal/shared/metrics"
	"github.com/radieske/live-bet-tracker/internal/status-history/consumer"
	"github.com/radieske/live-bet-tracker/internal/status-history/repository"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	if cfg.KafkaBrokers == "" {
		log.Fatal("KAFKA_BROKERS is required")
	}

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	if err := db.EnsureSchema(ctx, pg, repository.Schema, repository.SchemaIndex); err != nil {
		log.Fatal("ensure schema", zap.Error(err))
	}
	repo := repository.NewPostgresRepo(pg)

	// consumer group status-history
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicWagerStatusChanged, "status-history")
	defer reader.Close()

	dlqWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerStatusChangedDLQ)
	defer dlqWriter.Close()

	// Métricas Prometheus
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "status_history_messages_consumed_total", Help: "mensagens consumidas"})
	persist := prometheus.NewCounter(prometheus.CounterOpts{Name: "status_history_db_writes_total", Help: "mudanças gravadas no histórico"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "status_history_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, persist, errorsBy)

	proc := &consumer.Processor{
		Log:    log,
		Reader: reader,
		Repo:   repo,
		DeadLetter: func(ctx context.Context, key string, payload []byte) error {
			return kafka.WriteJSON(ctx, dlqWriter, key, payload)
		},
		OnConsumed: func() { consumed.Inc() },
		OnPersist:  func() { persist.Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metrics.StartMetricsServer(ctx, log, cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		return nil
	})

	log.Info("status-history worker started",
		zap.String("topic", cfg.TopicWagerStatusChanged),
		zap.String("dlq", cfg.TopicWagerStatusChangedDLQ),
	)
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("status-history worker stopped")
}
