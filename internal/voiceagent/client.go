// Package voiceagent реализует клиент провайдера голосового агента.
// Единственная операция — настройка номера переадресации звонков
// при включении и выключении агента.
package voiceagent

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/magabrotheeeer/voice-agent-billing/internal/config"
	"github.com/magabrotheeeer/voice-agent-billing/internal/errs"
)

// Client — HTTP-клиент провайдера голосового агента с ограниченным таймаутом.
type Client struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт клиент по настройкам из конфига.
func NewClient(cfg config.VoiceAgent) *Client {
	timeout := cfg.VoiceTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		apiURL:     cfg.VoiceAPIURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type agentConfigPatch struct {
	ForwardingPhoneNumber *string `json:"forwarding_phone_number"`
}

// ConfigureForwarding выставляет номер переадресации агента; nil очищает
// переадресацию. Сбой или таймаут классифицируется как GatewayFailure —
// фатальность решает вызывающая сторона.
func (c *Client) ConfigureForwarding(ctx context.Context, agentID string, phoneNumber *string) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(agentConfigPatch{ForwardingPhoneNumber: phoneNumber}); err != nil {
		return errs.Wrap(errs.GatewayFailure, "voice agent request build failed", err)
	}

	url := c.apiURL + "/agents/" + agentID + "/config"
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, &buf)
	if err != nil {
		return errs.Wrap(errs.GatewayFailure, "voice agent request build failed", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.Wrap(errs.GatewayFailure, "voice agent provider unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return errs.E(errs.GatewayFailure, "voice agent provider returned "+resp.Status)
	}
	return nil
}
