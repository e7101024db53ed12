// Package services содержит бизнес-логику счётчика минут.
package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/magabrotheeeer/voice-agent-billing/internal/errs"
	"github.com/magabrotheeeer/voice-agent-billing/internal/metrics"
	"github.com/magabrotheeeer/voice-agent-billing/internal/models"
)

// UsageRepository определяет методы для работы со счётчиком минут аккаунта.
type UsageRepository interface {
	// ApplyUsage списывает минуты одним атомарным оператором, floor на нуле.
	ApplyUsage(ctx context.Context, uid string, minutes int) (*models.UsageMeter, error)
	// ResetUsage сбрасывает счётчик на полный объём текущего тарифа.
	ResetUsage(ctx context.Context, uid string) (*models.UsageMeter, error)
}

// UsageService реализует списание и сброс минут.
type UsageService struct {
	repo    UsageRepository
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewUsageService создает новый экземпляр UsageService.
func NewUsageService(repo UsageRepository, m *metrics.Metrics, log *slog.Logger) *UsageService {
	return &UsageService{
		repo:    repo,
		metrics: m,
		log:     log,
	}
}

// Consume списывает minutes со счётчика аккаунта. Остаток не уходит
// в минус: при перерасходе применяется только доступная часть, и именно
// она добавляется к потраченным минутам. Операция не идемпотентна —
// защита от повторной отправки отчёта лежит на вызывающей стороне.
func (s *UsageService) Consume(ctx context.Context, accountUID string, minutes int) (*models.UsageMeter, error) {
	if minutes <= 0 {
		return nil, errs.E(errs.Unknown, "minutes must be a positive integer")
	}

	meter, err := s.repo.ApplyUsage(ctx, accountUID, minutes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.E(errs.NotFound, "account not found")
		}
		return nil, errs.Wrap(errs.Unknown, "failed to apply usage", err)
	}

	s.metrics.MinutesConsumedTotal.Add(float64(minutes))
	s.log.Info("minutes consumed",
		slog.String("account_uid", accountUID),
		slog.Int("requested", minutes),
		slog.Int("remaining", meter.MinutesRemaining))
	return meter, nil
}

// ResetForNewCycle сбрасывает счётчик аккаунта: потраченное обнуляется,
// остаток выставляется в объём текущего тарифа, прочитанный из каталога
// на момент сброса. Повторный вызов подряд даёт тот же результат.
func (s *UsageService) ResetForNewCycle(ctx context.Context, accountUID string) (*models.UsageMeter, error) {
	meter, err := s.repo.ResetUsage(ctx, accountUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.E(errs.NotFound, "account or plan not found")
		}
		return nil, errs.Wrap(errs.Unknown, "failed to reset usage", err)
	}

	s.log.Info("usage meter reset",
		slog.String("account_uid", accountUID),
		slog.Int("minutes_included", meter.MinutesIncluded))
	return meter, nil
}
