// Package billing предоставляет маршруты биллингового сервиса.
package billing

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/voice-agent-billing/internal/http/handlers/agent/reactivation"
	"github.com/magabrotheeeer/voice-agent-billing/internal/http/handlers/agent/toggle"
	"github.com/magabrotheeeer/voice-agent-billing/internal/http/handlers/billing/webhook"
	planlist "github.com/magabrotheeeer/voice-agent-billing/internal/http/handlers/plan/list"
	"github.com/magabrotheeeer/voice-agent-billing/internal/http/handlers/renewal/sweep"
	"github.com/magabrotheeeer/voice-agent-billing/internal/http/handlers/subscription/create"
	"github.com/magabrotheeeer/voice-agent-billing/internal/http/handlers/subscription/get"
	"github.com/magabrotheeeer/voice-agent-billing/internal/http/handlers/subscription/renew"
	"github.com/magabrotheeeer/voice-agent-billing/internal/http/handlers/usage/consume"
	"github.com/magabrotheeeer/voice-agent-billing/internal/http/middlewarectx"
	catalogservice "github.com/magabrotheeeer/voice-agent-billing/internal/services/catalog"
	eligibilityservice "github.com/magabrotheeeer/voice-agent-billing/internal/services/eligibility"
	renewalservice "github.com/magabrotheeeer/voice-agent-billing/internal/services/renewal"
	subscriptionservice "github.com/magabrotheeeer/voice-agent-billing/internal/services/subscription"
	usageservice "github.com/magabrotheeeer/voice-agent-billing/internal/services/usage"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger,
	tokenParser middlewarectx.TokenParser, webhookSecret string,
	catalogService *catalogservice.CatalogService,
	subscriptionService *subscriptionservice.SubscriptionService,
	usageService *usageservice.UsageService,
	renewalService *renewalservice.RenewalService,
	agentService *eligibilityservice.AgentService) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(tokenParser, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Get("/plans", planlist.New(logger, catalogService).ServeHTTP)
			r.Get("/subscription", get.New(logger, subscriptionService).ServeHTTP)
			r.Post("/subscription", create.New(logger, subscriptionService).ServeHTTP)
			r.Post("/subscription/renew", renew.New(logger, renewalService).ServeHTTP)
			r.Post("/usage", consume.New(logger, usageService).ServeHTTP)
			r.Get("/agent/reactivation", reactivation.New(logger, agentService).ServeHTTP)
			r.Post("/agent/toggle", toggle.New(logger, agentService).ServeHTTP)
			r.Post("/renewals/sweep", sweep.New(logger, renewalService).ServeHTTP)
		})

		// Webhook endpoint (без аутентификации, подпись HMAC)
		r.Post("/billing/webhook", webhook.New(logger, subscriptionService, webhookSecret).ServeHTTP)
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
