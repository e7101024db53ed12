package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/voice-agent-billing/internal/errs"
	"github.com/magabrotheeeer/voice-agent-billing/internal/metrics"
	"github.com/magabrotheeeer/voice-agent-billing/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetAccount(ctx context.Context, uid string) (*models.Account, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}
func (m *RepoMock) SetAgentActive(ctx context.Context, uid string, active bool) (int, error) {
	args := m.Called(ctx, uid, active)
	return args.Int(0), args.Error(1)
}

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) ConfigureForwarding(ctx context.Context, agentID string, phoneNumber *string) error {
	args := m.Called(ctx, agentID, phoneNumber)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newService(repo *RepoMock, gateway *GatewayMock) *AgentService {
	return NewAgentService(repo, gateway, metrics.New(prometheus.NewRegistry()), newNoopLogger())
}

const accountUID = "7c0d9f3b-88a2-4f60-b1de-0e9f8a7b6c5d"

func planID(s string) *string { return &s }

func TestAgentService_Toggle(t *testing.T) {
	t.Run("activation configures forwarding to account number", func(t *testing.T) {
		repo := new(RepoMock)
		gateway := new(GatewayMock)
		repo.On("GetAccount", mock.Anything, accountUID).Return(&models.Account{
			UID:              accountUID,
			AgentID:          "agent-17",
			PhoneNumber:      "+33612345678",
			PlanID:           planID("pro"),
			IsAgentActive:    false,
			MinutesRemaining: 120,
		}, nil).Once()
		gateway.On("ConfigureForwarding", mock.Anything, "agent-17",
			mock.MatchedBy(func(p *string) bool { return p != nil && *p == "+33612345678" })).
			Return(nil).Once()
		repo.On("SetAgentActive", mock.Anything, accountUID, true).Return(1, nil).Once()

		svc := newService(repo, gateway)
		account, err := svc.Toggle(context.Background(), accountUID)

		require.NoError(t, err)
		assert.True(t, account.IsAgentActive)
		repo.AssertExpectations(t)
		gateway.AssertExpectations(t)
	})

	t.Run("activation with empty balance is rejected without side effects", func(t *testing.T) {
		repo := new(RepoMock)
		gateway := new(GatewayMock)
		repo.On("GetAccount", mock.Anything, accountUID).Return(&models.Account{
			UID:              accountUID,
			AgentID:          "agent-17",
			IsAgentActive:    false,
			MinutesRemaining: 0,
		}, nil).Once()

		svc := newService(repo, gateway)
		_, err := svc.Toggle(context.Background(), accountUID)

		require.Error(t, err)
		assert.Equal(t, errs.InsufficientMinutes, errs.KindOf(err))
		gateway.AssertNotCalled(t, "ConfigureForwarding", mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "SetAgentActive", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("gateway failure on activation is fatal", func(t *testing.T) {
		repo := new(RepoMock)
		gateway := new(GatewayMock)
		repo.On("GetAccount", mock.Anything, accountUID).Return(&models.Account{
			UID:              accountUID,
			AgentID:          "agent-17",
			PhoneNumber:      "+33612345678",
			IsAgentActive:    false,
			MinutesRemaining: 50,
		}, nil).Once()
		gateway.On("ConfigureForwarding", mock.Anything, "agent-17", mock.Anything).
			Return(errs.E(errs.GatewayFailure, "voice agent api unavailable")).Once()

		svc := newService(repo, gateway)
		_, err := svc.Toggle(context.Background(), accountUID)

		require.Error(t, err)
		assert.Equal(t, errs.GatewayFailure, errs.KindOf(err))
		repo.AssertNotCalled(t, "SetAgentActive", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("deactivation clears forwarding", func(t *testing.T) {
		repo := new(RepoMock)
		gateway := new(GatewayMock)
		repo.On("GetAccount", mock.Anything, accountUID).Return(&models.Account{
			UID:              accountUID,
			AgentID:          "agent-17",
			IsAgentActive:    true,
			MinutesRemaining: 0,
		}, nil).Once()
		gateway.On("ConfigureForwarding", mock.Anything, "agent-17", (*string)(nil)).
			Return(nil).Once()
		repo.On("SetAgentActive", mock.Anything, accountUID, false).Return(1, nil).Once()

		svc := newService(repo, gateway)
		account, err := svc.Toggle(context.Background(), accountUID)

		require.NoError(t, err)
		assert.False(t, account.IsAgentActive)
		gateway.AssertExpectations(t)
	})

	t.Run("gateway failure on deactivation does not block the flip", func(t *testing.T) {
		repo := new(RepoMock)
		gateway := new(GatewayMock)
		repo.On("GetAccount", mock.Anything, accountUID).Return(&models.Account{
			UID:           accountUID,
			AgentID:       "agent-17",
			IsAgentActive: true,
		}, nil).Once()
		gateway.On("ConfigureForwarding", mock.Anything, "agent-17", (*string)(nil)).
			Return(errs.E(errs.GatewayFailure, "voice agent api unavailable")).Once()
		repo.On("SetAgentActive", mock.Anything, accountUID, false).Return(1, nil).Once()

		svc := newService(repo, gateway)
		account, err := svc.Toggle(context.Background(), accountUID)

		require.NoError(t, err)
		assert.False(t, account.IsAgentActive)
		repo.AssertExpectations(t)
	})

	t.Run("unknown account", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("GetAccount", mock.Anything, accountUID).
			Return(nil, fmt.Errorf("storage.GetAccount: %w", sql.ErrNoRows)).Once()

		svc := newService(repo, new(GatewayMock))
		_, err := svc.Toggle(context.Background(), accountUID)

		require.Error(t, err)
		assert.Equal(t, errs.NotFound, errs.KindOf(err))
	})

	t.Run("storage failure on state update", func(t *testing.T) {
		repo := new(RepoMock)
		gateway := new(GatewayMock)
		repo.On("GetAccount", mock.Anything, accountUID).Return(&models.Account{
			UID:              accountUID,
			AgentID:          "agent-17",
			PhoneNumber:      "+33612345678",
			IsAgentActive:    false,
			MinutesRemaining: 10,
		}, nil).Once()
		gateway.On("ConfigureForwarding", mock.Anything, "agent-17", mock.Anything).Return(nil).Once()
		repo.On("SetAgentActive", mock.Anything, accountUID, true).
			Return(0, errors.New("connection reset")).Once()

		svc := newService(repo, gateway)
		_, err := svc.Toggle(context.Background(), accountUID)

		require.Error(t, err)
		assert.Equal(t, errs.Unknown, errs.KindOf(err))
	})
}

func TestAgentService_Evaluate(t *testing.T) {
	t.Run("returns decision for existing account", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("GetAccount", mock.Anything, accountUID).Return(&models.Account{
			UID:              accountUID,
			PlanID:           planID("gratuit"),
			MinutesRemaining: 0,
		}, nil).Once()

		svc := newService(repo, new(GatewayMock))
		decision, err := svc.Evaluate(context.Background(), accountUID, "decouverte")

		require.NoError(t, err)
		assert.Equal(t, Decision{CanReactivate: true, Reason: ReasonUpgradeAvailable}, decision)
	})

	t.Run("unknown account", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("GetAccount", mock.Anything, accountUID).
			Return(nil, fmt.Errorf("storage.GetAccount: %w", sql.ErrNoRows)).Once()

		svc := newService(repo, new(GatewayMock))
		_, err := svc.Evaluate(context.Background(), accountUID, "")

		require.Error(t, err)
		assert.Equal(t, errs.NotFound, errs.KindOf(err))
	})
}
