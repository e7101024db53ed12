// Package services содержит бизнес-логику каталога тарифов.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/voice-agent-billing/internal/errs"
	"github.com/magabrotheeeer/voice-agent-billing/internal/lib/sl"
	"github.com/magabrotheeeer/voice-agent-billing/internal/models"
)

// PlanRepository определяет методы для чтения каталога тарифов.
type PlanRepository interface {
	// ListPlans возвращает тарифы по возрастанию цены, кастомный тариф последним.
	ListPlans(ctx context.Context) ([]*models.Plan, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

const catalogCacheKey = "plans:catalog"

// CatalogService реализует выборку каталога тарифов с кешированием.
type CatalogService struct {
	repo  PlanRepository
	cache Cache
	log   *slog.Logger
}

// NewCatalogService создает новый экземпляр CatalogService.
func NewCatalogService(repo PlanRepository, cache Cache, log *slog.Logger) *CatalogService {
	return &CatalogService{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// List возвращает каталог тарифов с учётом фильтра. При UpgradeOnly
// из выборки исключаются текущий тариф и тарифы с ценой не выше текущей;
// кастомный (безлимитный) тариф остаётся всегда.
func (s *CatalogService) List(ctx context.Context, filter models.PlanFilter) ([]*models.Plan, error) {
	plans, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}

	if !filter.UpgradeOnly || filter.CurrentPlanID == "" {
		return plans, nil
	}

	var current *models.Plan
	for _, p := range plans {
		if p.ID == filter.CurrentPlanID {
			current = p
			break
		}
	}
	if current == nil {
		return nil, errs.E(errs.NotFound, "current plan not found")
	}

	var result []*models.Plan
	for _, p := range plans {
		if p.IsCustom {
			result = append(result, p)
			continue
		}
		if p.ID == current.ID || !p.Price.GreaterThan(current.Price) {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}

// loadCatalog читает каталог из кеша или хранилища. Недоступность
// хранилища классифицируется как NotConfigured.
func (s *CatalogService) loadCatalog(ctx context.Context) ([]*models.Plan, error) {
	var plans []*models.Plan
	found, err := s.cache.Get(ctx, catalogCacheKey, &plans)
	if err != nil {
		s.log.Warn("failed to read catalog cache", sl.Err(err))
	}
	if found {
		return plans, nil
	}

	plans, err = s.repo.ListPlans(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.NotConfigured, "plan catalog unavailable", err)
	}

	if err := s.cache.Set(ctx, catalogCacheKey, plans, time.Hour); err != nil {
		s.log.Warn("failed to cache catalog", slog.String("key", catalogCacheKey), sl.Err(err))
	}
	return plans, nil
}
