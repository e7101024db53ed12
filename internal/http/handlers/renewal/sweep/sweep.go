// Package sweep обрабатывает административный запуск обхода продлений.
package sweep

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/voice-agent-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/voice-agent-billing/internal/http/response"
	"github.com/magabrotheeeer/voice-agent-billing/internal/lib/sl"
)

// Service определяет интерфейс обхода продлений.
type Service interface {
	RunSweep(ctx context.Context) (int, error)
}

// Handler обрабатывает административные запросы обхода продлений.
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
// @Summary Запустить обход продлений
// @Description Продлевает все подписки с наступившей датой продления: сбрасывает счётчики минут и сдвигает даты на месяц вперёд. Доступно только роли admin.
// @Tags Renewals
// @Produce  json
// @Success 200 {object} response.Response "Количество продлённых аккаунтов"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /renewals/sweep [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.renewal.sweep"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	role, ok := r.Context().Value(middlewarectx.Role).(string)
	if !ok || role != "admin" {
		log.Error("sweep requested without admin role", slog.String("role", role))
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error("admin role required"))
		return
	}

	count, err := h.service.RunSweep(r.Context())
	if err != nil {
		log.Error("failed to run renewal sweep", sl.Err(err))
		w.WriteHeader(response.HTTPStatus(err))
		render.JSON(w, r, response.FromError(err))
		return
	}

	log.Info("success to run renewal sweep", slog.Int("renewed", count))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"renewed_count": count,
	}))
}
