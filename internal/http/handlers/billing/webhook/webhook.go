// Package webhook принимает асинхронные уведомления платёжного провайдера
// о смене статуса подписки и сверяет их с локальным леджером.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/magabrotheeeer/voice-agent-billing/internal/lib/sl"
	"github.com/magabrotheeeer/voice-agent-billing/internal/models"
)

// Service определяет интерфейс смены статуса подписки по внешнему идентификатору.
type Service interface {
	MarkStatus(ctx context.Context, externalID, status string) error
}

// Handler обрабатывает webhook-уведомления платёжного провайдера.
type Handler struct {
	log           *slog.Logger // Логгер для записи информации и ошибок
	service       Service
	webhookSecret string // Секрет для проверки подписи
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

// Payload — тело уведомления провайдера о событии подписки.
type Payload struct {
	Event  string `json:"event"`
	Object struct {
		ID       string            `json:"id"`       // внешний идентификатор подписки
		Status   string            `json:"status"`   // статус у провайдера
		Metadata map[string]string `json:"metadata"` // account_uid и др.
	} `json:"object"`
}

// События провайдера и соответствующие локальные статусы.
const (
	SubscriptionActivated = "subscription.activated"
	SubscriptionCancelled = "subscription.cancelled"
	SubscriptionSuspended = "subscription.suspended"
)

// Проверка подписи webhook (X-Api-Signature)
func (h *Handler) verifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expectedSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expectedSig), []byte(signature))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.webhook"
	log := h.log.With(slog.String("op", op))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Проверка подписи (в заголовке X-Api-Signature)
	signature := r.Header.Get("X-Api-Signature")
	if signature == "" || !h.verifySignature(h.webhookSecret, body, signature) {
		log.Error("invalid or missing webhook signature")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var status string
	switch strings.ToLower(payload.Event) {
	case SubscriptionActivated:
		status = models.SubscriptionStatusActive
	case SubscriptionCancelled, SubscriptionSuspended:
		status = models.SubscriptionStatusCancelled
	default:
		log.Info("ignored webhook event", slog.String("event", payload.Event))
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.service.MarkStatus(r.Context(), payload.Object.ID, status); err != nil {
		log.Error("failed to process webhook event", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	log.Info("webhook processed successfully",
		slog.String("event", payload.Event), slog.String("external_subscription_id", payload.Object.ID))
	w.WriteHeader(http.StatusOK)
}
