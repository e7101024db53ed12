// Package scheduler содержит приложение планировщика продлений расчётных циклов.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/voice-agent-billing/internal/config"
	"github.com/magabrotheeeer/voice-agent-billing/internal/metrics"
	"github.com/magabrotheeeer/voice-agent-billing/internal/rabbitmq"
	renewalservice "github.com/magabrotheeeer/voice-agent-billing/internal/services/renewal"
	"github.com/magabrotheeeer/voice-agent-billing/internal/storage"
)

// App представляет приложение планировщика продлений.
type App struct {
	renewalService *renewalservice.RenewalService
	sweepInterval  time.Duration
	conn           *amqp.Connection
	ch             *amqp.Channel
	db             *storage.Storage
	logger         *slog.Logger
}

func waitForDB(db *storage.Storage) error {
	for range 10 {
		err := storage.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения планировщика.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	queues := rabbitmq.GetBillingQueues()
	ch, err := rabbitmq.SetupChannel(conn, queues)
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	publisher := rabbitmq.NewPublisher(ch)
	renewalService := renewalservice.NewRenewalService(db, publisher, m, logger)

	return &App{
		renewalService: renewalService,
		sweepInterval:  cfg.SweepInterval,
		conn:           conn,
		ch:             ch,
		db:             db,
		logger:         logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", "error", err)
		}
	}
}

// Run запускает периодический обход продлений до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	go a.renewalService.Run(ctx, a.sweepInterval)

	<-ctx.Done()

	a.logger.Info("shutting down renewal scheduler")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	a.db.DB.Close()

	return nil
}
