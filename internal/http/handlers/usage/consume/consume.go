// Package consume обрабатывает отчёты о потреблённых минутах звонков.
package consume

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/voice-agent-billing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/voice-agent-billing/internal/http/response"
	"github.com/magabrotheeeer/voice-agent-billing/internal/lib/sl"
	"github.com/magabrotheeeer/voice-agent-billing/internal/models"
)

// Service определяет интерфейс списания минут.
type Service interface {
	Consume(ctx context.Context, accountUID string, minutes int) (*models.UsageMeter, error)
}

// Handler обрабатывает отчёты о потреблённых минутах.
type Handler struct {
	log      *slog.Logger // Логгер для записи информации и ошибок
	service  Service
	validate *validator.Validate // Валидатор структуры входящих данных
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Списать минуты
// @Description Списывает минуты завершённого звонка с баланса аккаунта. Списание обрезается по остатку, баланс не уходит в минус.
// @Tags Usage
// @Accept  json
// @Produce  json
// @Param request body models.DummyConsume true "Длительность звонка в минутах"
// @Success 200 {object} response.Response "Счётчик минут после списания"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или неположительные минуты"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Аккаунт не найден"
// @Router /usage [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.usage.consume"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyConsume
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode request"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	accountUID, ok := r.Context().Value(middlewarectx.AccountUID).(string)
	if !ok || accountUID == "" {
		log.Error("account UID not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	meter, err := h.service.Consume(r.Context(), accountUID, req.Minutes)
	if err != nil {
		log.Error("failed to consume minutes", sl.Err(err))
		w.WriteHeader(response.HTTPStatus(err))
		render.JSON(w, r, response.FromError(err))
		return
	}

	log.Info("success to consume minutes",
		slog.Int("requested", req.Minutes), slog.Int("remaining", meter.MinutesRemaining))
	render.JSON(w, r, response.StatusOKWithData(meter))
}
