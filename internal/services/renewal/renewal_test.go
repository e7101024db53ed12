package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/voice-agent-billing/internal/errs"
	"github.com/magabrotheeeer/voice-agent-billing/internal/metrics"
	"github.com/magabrotheeeer/voice-agent-billing/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) FindSubscriptionsDueForRenewal(ctx context.Context, now time.Time) ([]*models.RenewalCandidate, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RenewalCandidate), args.Error(1)
}
func (m *RepoMock) ResetUsage(ctx context.Context, uid string) (*models.UsageMeter, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UsageMeter), args.Error(1)
}
func (m *RepoMock) AdvanceRenewalDate(ctx context.Context, accountUID string, next time.Time) (int, error) {
	args := m.Called(ctx, accountUID, next)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) GetSubscriptionByAccount(ctx context.Context, accountUID string) (*models.Subscription, error) {
	args := m.Called(ctx, accountUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(routingKey string, message any) error {
	args := m.Called(routingKey, message)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newService(repo *RepoMock, pub EventPublisher) *RenewalService {
	return NewRenewalService(repo, pub, metrics.New(prometheus.NewRegistry()), newNoopLogger())
}

const accountUID = "7c0d9f3b-88a2-4f60-b1de-0e9f8a7b6c5d"

func TestRenewalService_RunSweep(t *testing.T) {
	t.Run("renews every due subscription and publishes events", func(t *testing.T) {
		repo := new(RepoMock)
		pub := new(PublisherMock)
		candidates := []*models.RenewalCandidate{
			{AccountUID: "uid-1", PlanID: "essentiel"},
			{AccountUID: "uid-2", PlanID: "pro"},
		}
		repo.On("FindSubscriptionsDueForRenewal", mock.Anything, mock.Anything).
			Return(candidates, nil).Once()
		repo.On("ResetUsage", mock.Anything, "uid-1").
			Return(&models.UsageMeter{MinutesIncluded: 200, MinutesRemaining: 200}, nil).Once()
		repo.On("ResetUsage", mock.Anything, "uid-2").
			Return(&models.UsageMeter{MinutesIncluded: 600, MinutesRemaining: 600}, nil).Once()
		repo.On("AdvanceRenewalDate", mock.Anything, "uid-1", mock.Anything).Return(1, nil).Once()
		repo.On("AdvanceRenewalDate", mock.Anything, "uid-2", mock.Anything).Return(1, nil).Once()
		pub.On("Publish", "cycle.renewed", mock.Anything).Return(nil).Twice()

		svc := newService(repo, pub)
		count, err := svc.RunSweep(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 2, count)
		repo.AssertExpectations(t)
		pub.AssertExpectations(t)
	})

	t.Run("no due subscriptions", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("FindSubscriptionsDueForRenewal", mock.Anything, mock.Anything).
			Return([]*models.RenewalCandidate{}, nil).Once()

		svc := newService(repo, nil)
		count, err := svc.RunSweep(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("failure on one account does not stop the sweep", func(t *testing.T) {
		repo := new(RepoMock)
		candidates := []*models.RenewalCandidate{
			{AccountUID: "uid-1", PlanID: "essentiel"},
			{AccountUID: "uid-2", PlanID: "pro"},
		}
		repo.On("FindSubscriptionsDueForRenewal", mock.Anything, mock.Anything).
			Return(candidates, nil).Once()
		repo.On("ResetUsage", mock.Anything, "uid-1").
			Return(nil, errors.New("connection reset")).Once()
		repo.On("ResetUsage", mock.Anything, "uid-2").
			Return(&models.UsageMeter{MinutesIncluded: 600, MinutesRemaining: 600}, nil).Once()
		repo.On("AdvanceRenewalDate", mock.Anything, "uid-2", mock.Anything).Return(1, nil).Once()

		svc := newService(repo, nil)
		count, err := svc.RunSweep(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, count)
		repo.AssertExpectations(t)
	})

	t.Run("publish failure does not fail the renewal", func(t *testing.T) {
		repo := new(RepoMock)
		pub := new(PublisherMock)
		repo.On("FindSubscriptionsDueForRenewal", mock.Anything, mock.Anything).
			Return([]*models.RenewalCandidate{{AccountUID: accountUID, PlanID: "pro"}}, nil).Once()
		repo.On("ResetUsage", mock.Anything, accountUID).
			Return(&models.UsageMeter{MinutesIncluded: 600, MinutesRemaining: 600}, nil).Once()
		repo.On("AdvanceRenewalDate", mock.Anything, accountUID, mock.Anything).Return(1, nil).Once()
		pub.On("Publish", "cycle.renewed", mock.Anything).
			Return(errors.New("channel closed")).Once()

		svc := newService(repo, pub)
		count, err := svc.RunSweep(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("storage failure", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("FindSubscriptionsDueForRenewal", mock.Anything, mock.Anything).
			Return(nil, errors.New("connection reset")).Once()

		svc := newService(repo, nil)
		_, err := svc.RunSweep(context.Background())

		require.Error(t, err)
		assert.Equal(t, errs.Unknown, errs.KindOf(err))
	})
}

func TestRenewalService_RenewEarly(t *testing.T) {
	t.Run("advances renewal date one month from its current value", func(t *testing.T) {
		current := time.Date(2025, time.January, 31, 10, 0, 0, 0, time.UTC)
		wantNext := time.Date(2025, time.February, 28, 10, 0, 0, 0, time.UTC)
		repo := new(RepoMock)
		repo.On("GetSubscriptionByAccount", mock.Anything, accountUID).Return(&models.Subscription{
			AccountUID:  accountUID,
			PlanID:      "pro",
			Status:      models.SubscriptionStatusActive,
			RenewalDate: &current,
		}, nil).Once()
		repo.On("ResetUsage", mock.Anything, accountUID).
			Return(&models.UsageMeter{MinutesIncluded: 600, MinutesRemaining: 600}, nil).Once()
		repo.On("AdvanceRenewalDate", mock.Anything, accountUID, wantNext).Return(1, nil).Once()

		svc := newService(repo, nil)
		sub, err := svc.RenewEarly(context.Background(), accountUID)

		require.NoError(t, err)
		require.NotNil(t, sub.RenewalDate)
		assert.Equal(t, wantNext, *sub.RenewalDate)
		repo.AssertExpectations(t)
	})

	t.Run("unknown subscription", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("GetSubscriptionByAccount", mock.Anything, accountUID).
			Return(nil, fmt.Errorf("storage.GetSubscriptionByAccount: %w", sql.ErrNoRows)).Once()

		svc := newService(repo, nil)
		_, err := svc.RenewEarly(context.Background(), accountUID)

		require.Error(t, err)
		assert.Equal(t, errs.NotFound, errs.KindOf(err))
	})

	t.Run("subscription without renewal date", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("GetSubscriptionByAccount", mock.Anything, accountUID).Return(&models.Subscription{
			AccountUID: accountUID,
			PlanID:     "gratuit",
			Status:     models.SubscriptionStatusActive,
		}, nil).Once()

		svc := newService(repo, nil)
		_, err := svc.RenewEarly(context.Background(), accountUID)

		require.Error(t, err)
		assert.Equal(t, errs.NotFound, errs.KindOf(err))
	})

	t.Run("reset failure", func(t *testing.T) {
		current := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
		repo := new(RepoMock)
		repo.On("GetSubscriptionByAccount", mock.Anything, accountUID).Return(&models.Subscription{
			AccountUID:  accountUID,
			PlanID:      "pro",
			Status:      models.SubscriptionStatusActive,
			RenewalDate: &current,
		}, nil).Once()
		repo.On("ResetUsage", mock.Anything, accountUID).
			Return(nil, errors.New("connection reset")).Once()

		svc := newService(repo, nil)
		_, err := svc.RenewEarly(context.Background(), accountUID)

		require.Error(t, err)
		assert.Equal(t, errs.Unknown, errs.KindOf(err))
	})
}
