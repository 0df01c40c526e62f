package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/menoease/internal/lib/sl"
	"github.com/magabrotheeeer/menoease/internal/models"
)

const tiersKey = "tiers:catalog"

// TierSource источник каталога тарифов, обычно репозиторий.
type TierSource interface {
	ListTiers(ctx context.Context) ([]models.Tier, error)
}

// TierCatalog кэширует каталог тарифов в Redis.
// Ошибки Redis не мешают работе: каталог читается из источника напрямую.
type TierCatalog struct {
	log    *slog.Logger
	cache  *Cache
	source TierSource
	ttl    time.Duration
}

// NewTierCatalog создает кэширующий каталог. cache может быть nil.
func NewTierCatalog(log *slog.Logger, cache *Cache, source TierSource, ttl time.Duration) *TierCatalog {
	return &TierCatalog{log: log, cache: cache, source: source, ttl: ttl}
}

// ListTiers возвращает каталог тарифов.
func (t *TierCatalog) ListTiers(ctx context.Context) ([]models.Tier, error) {
	const op = "cache.TierCatalog.ListTiers"
	if t.cache != nil {
		var tiers []models.Tier
		found, err := t.cache.Get(ctx, tiersKey, &tiers)
		if err != nil {
			t.log.Warn("tier cache read failed", sl.Err(err))
		}
		if found {
			return tiers, nil
		}
	}

	tiers, err := t.source.ListTiers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if t.cache != nil {
		if err := t.cache.Set(ctx, tiersKey, tiers, t.ttl); err != nil {
			t.log.Warn("tier cache write failed", sl.Err(err))
		}
	}
	return tiers, nil
}

// Invalidate сбрасывает закэшированный каталог, следующий ListTiers читает источник.
func (t *TierCatalog) Invalidate(ctx context.Context) error {
	const op = "cache.TierCatalog.Invalidate"
	if t.cache == nil {
		return nil
	}
	if err := t.cache.Invalidate(ctx, tiersKey); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
