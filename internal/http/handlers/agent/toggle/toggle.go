// Package toggle обрабатывает переключение голосового агента.
package toggle

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

// Service определяет интерфейс переключения агента.
type Service interface {
	Toggle(ctx context.Context, accountUID string) (*models.Account, error)
}

// Handler обрабатывает запросы переключения агента.
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
// @Summary Переключить голосового агента
// @Description Включает или выключает голосового агента аккаунта. Включение при нулевом остатке минут отклоняется. При включении настраивается переадресация на номер аккаунта, при выключении она снимается.
// @Tags Agent
// @Produce  json
// @Success 200 {object} response.Response "Новое состояние агента"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Аккаунт не найден"
// @Failure 409 {object} response.ErrorResponse "Недостаточно минут для включения"
// @Failure 502 {object} response.ErrorResponse "Отказ сервиса голосового агента"
// @Router /agent/toggle [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.agent.toggle"

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

	account, err := h.service.Toggle(r.Context(), accountUID)
	if err != nil {
		log.Error("failed to toggle agent", sl.Err(err))
		w.WriteHeader(response.HTTPStatus(err))
		render.JSON(w, r, response.FromError(err))
		return
	}

	log.Info("success to toggle agent", slog.Bool("is_agent_active", account.IsAgentActive))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"is_agent_active": account.IsAgentActive,
	}))
}
