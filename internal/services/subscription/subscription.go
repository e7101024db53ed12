// Package services содержит бизнес-логику леджера подписок: покупку
// и смену тарифа через платёжный шлюз, чтение текущей подписки и
// сверку статусов, приходящих от провайдера.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/voice-agent-billing/internal/errs"
	"github.com/magabrotheeeer/voice-agent-billing/internal/lib/month"
	"github.com/magabrotheeeer/voice-agent-billing/internal/lib/sl"
	"github.com/magabrotheeeer/voice-agent-billing/internal/models"
	"github.com/magabrotheeeer/voice-agent-billing/internal/paymentprovider"
)

// SubscriptionRepository определяет методы для работы с леджером подписок.
type SubscriptionRepository interface {
	// GetPlan возвращает тариф по идентификатору.
	GetPlan(ctx context.Context, id string) (*models.Plan, error)
	// UpsertSubscription перезаписывает единственную запись аккаунта, статус pending.
	UpsertSubscription(ctx context.Context, sub models.Subscription) (int, error)
	// GetSubscriptionByAccount возвращает подписку аккаунта.
	GetSubscriptionByAccount(ctx context.Context, accountUID string) (*models.Subscription, error)
	// GetSubscriptionByExternalID возвращает подписку по внешнему идентификатору.
	GetSubscriptionByExternalID(ctx context.Context, externalID string) (*models.Subscription, error)
	// UpdateSubscriptionStatusByExternalID переводит подписку в новый статус.
	UpdateSubscriptionStatusByExternalID(ctx context.Context, externalID, status string) (int, error)
	// SetAccountPlan назначает аккаунту тариф.
	SetAccountPlan(ctx context.Context, uid, planID string) (int, error)
	// ResetUsage сбрасывает счётчик минут на полный объём текущего тарифа.
	ResetUsage(ctx context.Context, uid string) (*models.UsageMeter, error)
}

// PaymentGateway описывает адаптер платёжного провайдера.
type PaymentGateway interface {
	CreateSubscription(ctx context.Context, planID, accountUID, returnURL, cancelURL string) (*paymentprovider.Subscription, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// EventPublisher публикует события биллинга. Может быть nil: тогда
// события не публикуются, сверка статусов работает без брокера.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// SubscriptionStatusEvent — событие смены статуса подписки аккаунта.
type SubscriptionStatusEvent struct {
	AccountUID             string `json:"account_uid"`
	PlanID                 string `json:"plan_id"`
	ExternalSubscriptionID string `json:"external_subscription_id"`
	Status                 string `json:"status"`
}

// SubscriptionService реализует бизнес-логику леджера подписок.
type SubscriptionService struct {
	repo      SubscriptionRepository
	gateway   PaymentGateway
	cache     Cache
	publisher EventPublisher
	log       *slog.Logger
	returnURL string
	cancelURL string
}

// NewSubscriptionService создает новый экземпляр SubscriptionService.
func NewSubscriptionService(repo SubscriptionRepository, gateway PaymentGateway, cache Cache,
	publisher EventPublisher, log *slog.Logger, returnURL, cancelURL string) *SubscriptionService {
	return &SubscriptionService{
		repo:      repo,
		gateway:   gateway,
		cache:     cache,
		publisher: publisher,
		log:       log,
		returnURL: returnURL,
		cancelURL: cancelURL,
	}
}

func subscriptionCacheKey(accountUID string) string {
	return fmt.Sprintf("subscription:%s", accountUID)
}

// CreateOrReplace открывает подписку у платёжного провайдера и перезаписывает
// запись аккаунта в леджере со статусом pending. Бесплатный и кастомный
// тарифы через платёжный шлюз не проходят — PlanNotPurchasable.
func (s *SubscriptionService) CreateOrReplace(ctx context.Context, accountUID string, req models.DummyCreateSubscription) (*models.CreateSubscriptionResult, error) {
	plan, err := s.repo.GetPlan(ctx, req.PlanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.E(errs.NotFound, "plan not found")
		}
		return nil, errs.Wrap(errs.Unknown, "failed to read plan", err)
	}
	if plan.IsFree() || plan.IsCustom {
		return nil, errs.E(errs.PlanNotPurchasable, "plan cannot be purchased through the payment gateway")
	}

	remote, err := s.gateway.CreateSubscription(ctx, plan.ID, accountUID, s.returnURL, s.cancelURL)
	if err != nil {
		return nil, err
	}

	renewalDate := month.AddClamped(time.Now(), 1)
	entry := models.Subscription{
		AccountUID:             accountUID,
		PlanID:                 plan.ID,
		ExternalSubscriptionID: &remote.ID,
		Status:                 models.SubscriptionStatusPending,
		PaymentMethod:          req.PaymentMethod,
		RenewalDate:            &renewalDate,
	}
	id, err := s.repo.UpsertSubscription(ctx, entry)
	if err != nil {
		return nil, errs.Wrap(errs.Unknown, "failed to save subscription", err)
	}
	s.log.Info("subscription created", slog.Int("id", id),
		slog.String("plan_id", plan.ID), slog.String("external_id", remote.ID))

	if err := s.cache.Invalidate(ctx, subscriptionCacheKey(accountUID)); err != nil {
		s.log.Warn("failed to invalidate subscription cache", sl.Err(err))
	}

	return &models.CreateSubscriptionResult{
		SubscriptionID: id,
		ApprovalURL:    remote.ApprovalURL,
	}, nil
}

// Get возвращает подписку аккаунта, используя кеш. Для аккаунта без записи
// в леджере возвращается проекция бесплатного тарифа.
func (s *SubscriptionService) Get(ctx context.Context, accountUID string) (*models.Subscription, error) {
	var result *models.Subscription
	cacheKey := subscriptionCacheKey(accountUID)
	found, err := s.cache.Get(ctx, cacheKey, &result)
	if err != nil {
		s.log.Warn("failed to read subscription cache", sl.Err(err))
	}
	if found {
		return result, nil
	}

	result, err = s.repo.GetSubscriptionByAccount(ctx, accountUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.FreeSubscription(accountUID), nil
		}
		return nil, errs.Wrap(errs.Unknown, "failed to read subscription", err)
	}

	if err := s.cache.Set(ctx, cacheKey, result, time.Hour); err != nil {
		s.log.Warn("failed to cache subscription", slog.String("key", cacheKey), sl.Err(err))
	}
	return result, nil
}

// MarkStatus переводит подписку с внешним идентификатором externalID
// в статус status. Только переход: бизнес-логики здесь нет, кроме
// инициализации счётчика минут при активации. Частичный сбой между
// сменой статуса и инициализацией счётчика допустим и чинится
// повторным вызовом (единственные атомарные операторы, без транзакции).
func (s *SubscriptionService) MarkStatus(ctx context.Context, externalID, status string) error {
	switch status {
	case models.SubscriptionStatusActive, models.SubscriptionStatusCancelled, models.SubscriptionStatusPending:
	default:
		return errs.E(errs.Unknown, "unsupported subscription status")
	}

	count, err := s.repo.UpdateSubscriptionStatusByExternalID(ctx, externalID, status)
	if err != nil {
		return errs.Wrap(errs.Unknown, "failed to update subscription status", err)
	}
	if count == 0 {
		return errs.E(errs.NotFound, "subscription not found")
	}

	sub, err := s.repo.GetSubscriptionByExternalID(ctx, externalID)
	if err != nil {
		return errs.Wrap(errs.Unknown, "failed to read subscription", err)
	}

	if status == models.SubscriptionStatusActive {
		if _, err := s.repo.SetAccountPlan(ctx, sub.AccountUID, sub.PlanID); err != nil {
			return errs.Wrap(errs.Unknown, "failed to assign plan to account", err)
		}
		if _, err := s.repo.ResetUsage(ctx, sub.AccountUID); err != nil {
			return errs.Wrap(errs.Unknown, "failed to initialize usage meter", err)
		}
	}

	if err := s.cache.Invalidate(ctx, subscriptionCacheKey(sub.AccountUID)); err != nil {
		s.log.Warn("failed to invalidate subscription cache", sl.Err(err))
	}

	if s.publisher != nil {
		event := SubscriptionStatusEvent{
			AccountUID:             sub.AccountUID,
			PlanID:                 sub.PlanID,
			ExternalSubscriptionID: externalID,
			Status:                 status,
		}
		if err := s.publisher.Publish("subscription.status", event); err != nil {
			s.log.Warn("failed to publish subscription status event", sl.Err(err))
		}
	}

	s.log.Info("subscription status updated",
		slog.String("external_id", externalID), slog.String("status", status))
	return nil
}
