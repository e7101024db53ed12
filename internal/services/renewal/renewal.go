// Package services содержит планировщик продлений расчётных циклов:
// периодический обход подписок с наступившей датой продления и
// ручное досрочное продление по запросу пользователя.
package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/voice-agent-billing/internal/errs"
	"github.com/magabrotheeeer/voice-agent-billing/internal/lib/month"
	"github.com/magabrotheeeer/voice-agent-billing/internal/lib/sl"
	"github.com/magabrotheeeer/voice-agent-billing/internal/metrics"
	"github.com/magabrotheeeer/voice-agent-billing/internal/models"
)

// RenewalRepository определяет методы хранилища для продления циклов.
type RenewalRepository interface {
	// FindSubscriptionsDueForRenewal возвращает аккаунты с наступившей датой продления.
	FindSubscriptionsDueForRenewal(ctx context.Context, now time.Time) ([]*models.RenewalCandidate, error)
	// ResetUsage сбрасывает счётчик минут на полный объём текущего тарифа.
	ResetUsage(ctx context.Context, uid string) (*models.UsageMeter, error)
	// AdvanceRenewalDate сдвигает дату продления подписки аккаунта.
	AdvanceRenewalDate(ctx context.Context, accountUID string, next time.Time) (int, error)
	// GetSubscriptionByAccount возвращает подписку аккаунта.
	GetSubscriptionByAccount(ctx context.Context, accountUID string) (*models.Subscription, error)
}

// EventPublisher публикует события биллинга. Может быть nil: тогда
// события не публикуются, продление работает без брокера.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// CycleRenewedEvent — событие продления расчётного цикла аккаунта.
type CycleRenewedEvent struct {
	AccountUID      string    `json:"account_uid"`
	PlanID          string    `json:"plan_id"`
	RenewedAt       time.Time `json:"renewed_at"`
	NextRenewalDate time.Time `json:"next_renewal_date"`
}

// RenewalService реализует обход и досрочное продление подписок.
type RenewalService struct {
	repo      RenewalRepository
	publisher EventPublisher
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// NewRenewalService создает новый экземпляр RenewalService.
func NewRenewalService(repo RenewalRepository, publisher EventPublisher,
	m *metrics.Metrics, log *slog.Logger) *RenewalService {
	return &RenewalService{
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		log:       log,
	}
}

// RunSweep обходит все подписки с датой продления не позже текущего
// момента: сбрасывает счётчик минут и сдвигает дату продления на месяц
// вперёд от текущего момента (день месяца clamp-ится на последний день
// целевого месяца). Возвращает количество продлённых аккаунтов.
// Повторный запуск в тот же момент продлевает только всё ещё
// просроченные подписки: сдвинутая дата уже в будущем.
func (s *RenewalService) RunSweep(ctx context.Context) (int, error) {
	now := time.Now()
	candidates, err := s.repo.FindSubscriptionsDueForRenewal(ctx, now)
	if err != nil {
		return 0, errs.Wrap(errs.Unknown, "failed to find subscriptions due for renewal", err)
	}
	if len(candidates) == 0 {
		s.log.Info("no subscriptions due for renewal")
		return 0, nil
	}

	var renewed int
	for _, candidate := range candidates {
		next := month.AddClamped(now, 1)
		if err := s.renewOne(ctx, candidate.AccountUID, candidate.PlanID, next, now); err != nil {
			s.log.Error("failed to renew account", slog.String("account_uid", candidate.AccountUID), sl.Err(err))
			continue
		}
		renewed++
	}

	s.log.Info("renewal sweep finished",
		slog.Int("due", len(candidates)), slog.Int("renewed", renewed))
	return renewed, nil
}

func (s *RenewalService) renewOne(ctx context.Context, accountUID, planID string, next, now time.Time) error {
	if _, err := s.repo.ResetUsage(ctx, accountUID); err != nil {
		return err
	}
	if _, err := s.repo.AdvanceRenewalDate(ctx, accountUID, next); err != nil {
		return err
	}
	s.metrics.RenewalsTotal.Inc()

	if s.publisher != nil {
		event := CycleRenewedEvent{
			AccountUID:      accountUID,
			PlanID:          planID,
			RenewedAt:       now,
			NextRenewalDate: next,
		}
		if err := s.publisher.Publish("cycle.renewed", event); err != nil {
			s.log.Warn("failed to publish renewal event",
				slog.String("account_uid", accountUID), sl.Err(err))
		}
	}
	return nil
}

// RenewEarly досрочно продлевает цикл одного аккаунта: счётчик минут
// восстанавливается до полного объёма тарифа, дата продления сдвигается
// ровно на месяц вперёд от её текущего значения.
func (s *RenewalService) RenewEarly(ctx context.Context, accountUID string) (*models.Subscription, error) {
	sub, err := s.repo.GetSubscriptionByAccount(ctx, accountUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.E(errs.NotFound, "subscription not found")
		}
		return nil, errs.Wrap(errs.Unknown, "failed to read subscription", err)
	}
	if sub.RenewalDate == nil {
		return nil, errs.E(errs.NotFound, "subscription has no renewal date")
	}

	if _, err := s.repo.ResetUsage(ctx, accountUID); err != nil {
		return nil, errs.Wrap(errs.Unknown, "failed to reset usage meter", err)
	}

	next := month.AddClamped(*sub.RenewalDate, 1)
	if _, err := s.repo.AdvanceRenewalDate(ctx, accountUID, next); err != nil {
		return nil, errs.Wrap(errs.Unknown, "failed to advance renewal date", err)
	}
	s.metrics.RenewalsTotal.Inc()
	s.log.Info("subscription renewed early",
		slog.String("account_uid", accountUID), slog.Time("next_renewal_date", next))

	sub.RenewalDate = &next
	return sub, nil
}

// Run запускает периодический обход продлений с интервалом interval
// до отмены контекста.
func (s *RenewalService) Run(ctx context.Context, interval time.Duration) {
	s.runSweepOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runSweepOnce(ctx)
		}
	}
}

func (s *RenewalService) runSweepOnce(ctx context.Context) {
	s.log.Info("starting renewal sweep")
	count, err := s.RunSweep(ctx)
	if err != nil {
		s.log.Error("renewal sweep failed", sl.Err(err))
		return
	}
	s.log.Info("renewal sweep done", slog.Int("renewed", count))
}
