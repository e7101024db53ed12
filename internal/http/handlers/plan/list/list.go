// Package list обрабатывает выдачу каталога тарифов.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/voice-agent-billing/internal/http/response"
	"github.com/magabrotheeeer/voice-agent-billing/internal/lib/sl"
	"github.com/magabrotheeeer/voice-agent-billing/internal/models"
)

// Service определяет интерфейс каталога тарифов.
type Service interface {
	List(ctx context.Context, filter models.PlanFilter) ([]*models.Plan, error)
}

// Handler обрабатывает запросы каталога тарифов.
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
// @Summary Каталог тарифов
// @Description Возвращает все тарифы по возрастанию цены; безлимитный тариф всегда последний. При upgrade_only=true исключает текущий тариф и все тарифы не дороже него.
// @Tags Plans
// @Produce  json
// @Param upgrade_only query bool false "Вернуть только тарифы дороже текущего"
// @Param current_plan_id query string false "Идентификатор текущего тарифа"
// @Success 200 {object} response.Response "Список тарифов"
// @Failure 404 {object} response.ErrorResponse "Текущий тариф не найден"
// @Failure 503 {object} response.ErrorResponse "Каталог недоступен"
// @Router /plans [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plan.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	filter := models.PlanFilter{
		CurrentPlanID: r.URL.Query().Get("current_plan_id"),
		UpgradeOnly:   r.URL.Query().Get("upgrade_only") == "true",
	}

	plans, err := h.service.List(r.Context(), filter)
	if err != nil {
		log.Error("failed to list plans", sl.Err(err))
		w.WriteHeader(response.HTTPStatus(err))
		render.JSON(w, r, response.FromError(err))
		return
	}

	log.Info("success to list plans", slog.Int("count", len(plans)))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"plans": plans,
	}))
}
