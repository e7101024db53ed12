package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/magabrotheeeer/voice-agent-billing/internal/errs"
	"github.com/magabrotheeeer/voice-agent-billing/internal/lib/sl"
	"github.com/magabrotheeeer/voice-agent-billing/internal/metrics"
	"github.com/magabrotheeeer/voice-agent-billing/internal/models"
)

// AgentRepository определяет методы хранилища для переключения агента.
type AgentRepository interface {
	GetAccount(ctx context.Context, uid string) (*models.Account, error)
	SetAgentActive(ctx context.Context, uid string, active bool) (int, error)
}

// VoiceAgentGateway настраивает переадресацию звонков на внешнем
// голосовом агенте. phoneNumber == nil снимает переадресацию.
type VoiceAgentGateway interface {
	ConfigureForwarding(ctx context.Context, agentID string, phoneNumber *string) error
}

// AgentService реализует проверку допуска и переключение голосового агента.
type AgentService struct {
	repo    AgentRepository
	gateway VoiceAgentGateway
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewAgentService создает новый экземпляр AgentService.
func NewAgentService(repo AgentRepository, gateway VoiceAgentGateway,
	m *metrics.Metrics, log *slog.Logger) *AgentService {
	return &AgentService{
		repo:    repo,
		gateway: gateway,
		metrics: m,
		log:     log,
	}
}

// Evaluate проверяет допуск аккаунта к реактивации агента с учётом
// запрошенного тарифа. requestedPlanID может быть пустым.
func (s *AgentService) Evaluate(ctx context.Context, accountUID, requestedPlanID string) (Decision, error) {
	account, err := s.repo.GetAccount(ctx, accountUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Decision{}, errs.E(errs.NotFound, "account not found")
		}
		return Decision{}, errs.Wrap(errs.Unknown, "failed to read account", err)
	}
	return CanReactivate(account, requestedPlanID), nil
}

// Toggle переключает голосового агента аккаунта. Включение при нулевом
// остатке минут отклоняется. При включении агенту назначается
// переадресация на номер аккаунта; отказ внешнего сервиса фатален для
// всей операции. При выключении переадресация снимается best-effort:
// отказ логируется, локальное состояние всё равно выключается.
func (s *AgentService) Toggle(ctx context.Context, accountUID string) (*models.Account, error) {
	account, err := s.repo.GetAccount(ctx, accountUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.E(errs.NotFound, "account not found")
		}
		return nil, errs.Wrap(errs.Unknown, "failed to read account", err)
	}

	activating := !account.IsAgentActive
	if activating {
		if account.MinutesRemaining <= 0 {
			return nil, errs.E(errs.InsufficientMinutes, "no minutes remaining, upgrade required")
		}
		if err := s.gateway.ConfigureForwarding(ctx, account.AgentID, &account.PhoneNumber); err != nil {
			s.metrics.GatewayFailuresTotal.WithLabelValues("voice-agent").Inc()
			return nil, err
		}
	} else {
		if err := s.gateway.ConfigureForwarding(ctx, account.AgentID, nil); err != nil {
			s.metrics.GatewayFailuresTotal.WithLabelValues("voice-agent").Inc()
			s.log.Warn("failed to clear call forwarding",
				slog.String("account_uid", accountUID), sl.Err(err))
		}
	}

	rows, err := s.repo.SetAgentActive(ctx, accountUID, activating)
	if err != nil {
		return nil, errs.Wrap(errs.Unknown, "failed to update agent state", err)
	}
	if rows == 0 {
		return nil, errs.E(errs.NotFound, "account not found")
	}
	account.IsAgentActive = activating

	s.log.Info("voice agent toggled",
		slog.String("account_uid", accountUID), slog.Bool("is_active", activating))
	return account, nil
}
