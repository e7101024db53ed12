// Package get обрабатывает чтение подписки текущего аккаунта.
package get

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/voice-agent-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/voice-agent-billing/internal/http/response"
	"github.com/magabrotheeeer/voice-agent-billing/internal/lib/sl"
	"github.com/magabrotheeeer/voice-agent-billing/internal/models"
)

// Service определяет интерфейс чтения подписки.
type Service interface {
	Get(ctx context.Context, accountUID string) (*models.Subscription, error)
}

// Handler обрабатывает запросы чтения подписки.
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
// @Summary Текущая подписка
// @Description Возвращает подписку аккаунта. Если подписки нет, возвращает проекцию бесплатного тарифа.
// @Tags Subscriptions
// @Produce  json
// @Success 200 {object} response.Response "Подписка аккаунта"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /subscription [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.get"

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

	sub, err := h.service.Get(r.Context(), accountUID)
	if err != nil {
		log.Error("failed to get subscription", sl.Err(err))
		w.WriteHeader(response.HTTPStatus(err))
		render.JSON(w, r, response.FromError(err))
		return
	}

	log.Info("success to get subscription", slog.String("plan_id", sub.PlanID))
	render.JSON(w, r, response.StatusOKWithData(sub))
}
