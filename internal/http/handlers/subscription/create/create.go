// Package create обрабатывает открытие платной подписки.
package create

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

// Service определяет интерфейс открытия подписки.
type Service interface {
	CreateOrReplace(ctx context.Context, accountUID string, req models.DummyCreateSubscription) (*models.CreateSubscriptionResult, error)
}

// Handler обрабатывает запросы на открытие подписки.
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
// @Summary Открыть подписку
// @Description Открывает подписку на выбранный тариф через платёжного провайдера. Запись создаётся в статусе pending до подтверждения оплаты. Бесплатный и кастомный тарифы через оплату не проходят.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param request body models.DummyCreateSubscription true "Тариф и способ оплаты"
// @Success 200 {object} response.Response "Ссылка на подтверждение оплаты"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Тариф не найден"
// @Failure 422 {object} response.ErrorResponse "Тариф не продаётся через оплату"
// @Failure 502 {object} response.ErrorResponse "Отказ платёжного провайдера"
// @Router /subscription [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.create"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyCreateSubscription
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode request"))
		return
	}
	log.Info("request body decoded", slog.Any("request", req))

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

	result, err := h.service.CreateOrReplace(r.Context(), accountUID, req)
	if err != nil {
		log.Error("failed to create subscription", sl.Err(err))
		w.WriteHeader(response.HTTPStatus(err))
		render.JSON(w, r, response.FromError(err))
		return
	}

	log.Info("success to create subscription", slog.Int("subscription_id", result.SubscriptionID))
	render.JSON(w, r, response.StatusOKWithData(result))
}
