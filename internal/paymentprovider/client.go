// Package paymentprovider реализует клиент платёжного провайдера подписок.
// Адаптер только открывает подписку; сверка асинхронных смен статуса
// приходит отдельным webhook-ом.
package paymentprovider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/magabrotheeeer/voice-agent-billing/internal/config"
	"github.com/magabrotheeeer/voice-agent-billing/internal/errs"
)

// Client — HTTP-клиент платёжного провайдера с ограниченным таймаутом.
type Client struct {
	clientID   string
	secretKey  string
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт клиент по настройкам из конфига.
func NewClient(cfg config.PaymentProvider) *Client {
	timeout := cfg.PaymentTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		clientID:   cfg.ClientID,
		secretKey:  cfg.SecretKey,
		apiURL:     cfg.PaymentAPIURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	url := c.apiURL + path
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.secretKey))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// CreateSubscription открывает подписку у провайдера и возвращает её
// идентификатор вместе с URL подтверждения. Сбой или таймаут вызова
// классифицируется как GatewayFailure.
func (c *Client) CreateSubscription(ctx context.Context, planID, accountUID, returnURL, cancelURL string) (*Subscription, error) {
	reqParams := CreateSubscriptionRequest{
		PlanID:   planID,
		CustomID: accountUID,
		ApplicationContext: ApplicationContext{
			ReturnURL: returnURL,
			CancelURL: cancelURL,
		},
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/subscriptions", reqParams)
	if err != nil {
		return nil, errs.Wrap(errs.GatewayFailure, "payment provider request build failed", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.GatewayFailure, "payment provider unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, errs.E(errs.GatewayFailure, "payment provider returned "+resp.Status)
	}

	var sub Subscription
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return nil, errs.Wrap(errs.GatewayFailure, "payment provider response malformed", err)
	}
	return &sub, nil
}
