// Package reactivation обрабатывает проверку допуска к реактивации агента.
package reactivation

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/voice-agent-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/voice-agent-billing/internal/http/response"
	"github.com/magabrotheeeer/voice-agent-billing/internal/lib/sl"
	services "github.com/magabrotheeeer/voice-agent-billing/internal/services/eligibility"
)

// Service определяет интерфейс проверки допуска.
type Service interface {
	Evaluate(ctx context.Context, accountUID, requestedPlanID string) (services.Decision, error)
}

// Handler обрабатывает запросы проверки допуска к реактивации.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Проверить допуск к реактивации
// @Description Отвечает, может ли аккаунт реактивировать агента: положительный остаток минут разрешает сразу, иначе требуется выбор другого тарифа.
// @Tags Agent
// @Produce  json
// @Param plan_id query string false "Запрошенный тариф"
// @Success 200 {object} response.Response "Решение и причина"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Аккаунт не найден"
// @Router /agent/reactivation [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.agent.reactivation"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	accountUID, ok := r.Context().Value(middlewarectx.AccountUID).(string)
	if !ok || accountUID == "" {
		log.Error("account UID not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	requestedPlanID := r.URL.Query().Get("plan_id")

	decision, err := h.service.Evaluate(r.Context(), accountUID, requestedPlanID)
	if err != nil {
		log.Error("failed to evaluate reactivation", sl.Err(err))
		w.WriteHeader(response.HTTPStatus(err))
		render.JSON(w, r, response.FromError(err))
		return
	}

	log.Info("success to evaluate reactivation",
		slog.Bool("can_reactivate", decision.CanReactivate), slog.String("reason", decision.Reason))
	render.JSON(w, r, response.StatusOKWithData(decision))
}
