package billing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/voice-agent-billing/internal/cache"
	"github.com/magabrotheeeer/voice-agent-billing/internal/config"
	"github.com/magabrotheeeer/voice-agent-billing/internal/lib/jwt"
	"github.com/magabrotheeeer/voice-agent-billing/internal/metrics"
	"github.com/magabrotheeeer/voice-agent-billing/internal/migrations"
	"github.com/magabrotheeeer/voice-agent-billing/internal/paymentprovider"
	"github.com/magabrotheeeer/voice-agent-billing/internal/rabbitmq"
	catalogservice "github.com/magabrotheeeer/voice-agent-billing/internal/services/catalog"
	eligibilityservice "github.com/magabrotheeeer/voice-agent-billing/internal/services/eligibility"
	renewalservice "github.com/magabrotheeeer/voice-agent-billing/internal/services/renewal"
	subscriptionservice "github.com/magabrotheeeer/voice-agent-billing/internal/services/subscription"
	usageservice "github.com/magabrotheeeer/voice-agent-billing/internal/services/usage"
	"github.com/magabrotheeeer/voice-agent-billing/internal/storage"
	"github.com/magabrotheeeer/voice-agent-billing/internal/voiceagent"
)

// App — HTTP-приложение биллинга голосового сервиса.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *storage.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New собирает приложение: хранилище, кэш, внешние клиенты, сервисы и роутер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetBillingQueues())
	if err != nil {
		return nil, err
	}
	publisher := rabbitmq.NewPublisher(ch)

	m := metrics.New(prometheus.DefaultRegisterer)
	tokenMaker := jwt.NewMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	providerClient := paymentprovider.NewClient(cfg.PaymentProvider)
	voiceClient := voiceagent.NewClient(cfg.VoiceAgent)

	catalogService := catalogservice.NewCatalogService(db, cacheRedis, logger)
	subscriptionService := subscriptionservice.NewSubscriptionService(
		db, providerClient, cacheRedis, publisher, logger, cfg.ReturnURL, cfg.CancelURL)
	usageService := usageservice.NewUsageService(db, m, logger)
	renewalService := renewalservice.NewRenewalService(db, publisher, m, logger)
	agentService := eligibilityservice.NewAgentService(db, voiceClient, m, logger)

	router := chi.NewRouter()

	RegisterRoutes(router, logger, tokenMaker, cfg.WebhookSecret,
		catalogService, subscriptionService, usageService, renewalService, agentService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if cerr := a.ch.Close(); cerr != nil {
			a.logger.Error("failed to close channel", slog.Any("err", cerr))
		}
		if cerr := a.conn.Close(); cerr != nil {
			a.logger.Error("failed to close connection", slog.Any("err", cerr))
		}
		a.db.DB.Close()
		return err
	}
}
