package reconciler

import (
	"context"
	"log/slog"

	"github.com/magabrotheeeer/menoease/internal/lib/sl"
	"github.com/magabrotheeeer/menoease/internal/models"
)

// resolveTier определяет тариф по цене: метаданные цены, затем каталог, иначе free.
// Никогда не возвращает ошибку.
func (s *Service) resolveTier(ctx context.Context, priceID, knownTierCode string) string {
	log := s.log.With(slog.String("price_id", priceID))

	code := knownTierCode
	if code == "" && priceID != "" {
		price, err := s.billing.GetPrice(ctx, priceID)
		if err != nil {
			log.Warn("failed to fetch price, trying tier catalog", sl.Err(err))
		} else {
			code = price.TierCode
		}
	}
	if code != "" {
		if models.IsKnownTier(code) {
			return code
		}
		log.Warn("unknown tier code in price metadata", slog.String("tier_code", code))
	}

	if priceID != "" {
		code, ok, err := s.catalogTier(ctx, priceID)
		if err == nil && !ok {
			// Цена могла появиться после того, как каталог попал в кэш.
			if err := s.tiers.Invalidate(ctx); err != nil {
				log.Warn("failed to invalidate tier catalog", sl.Err(err))
			} else {
				code, ok, err = s.catalogTier(ctx, priceID)
			}
		}
		if err != nil {
			log.Warn("failed to load tier catalog", sl.Err(err))
		}
		if ok {
			return code
		}
	}

	log.Warn("could not determine tier, defaulting to free")
	return models.TierFree
}

func (s *Service) catalogTier(ctx context.Context, priceID string) (string, bool, error) {
	tiers, err := s.tiers.ListTiers(ctx)
	if err != nil {
		return "", false, err
	}
	for _, t := range tiers {
		if matches(t.MonthlyPriceID, priceID) || matches(t.YearlyPriceID, priceID) {
			return t.Code, true, nil
		}
	}
	return "", false, nil
}

func matches(id *string, priceID string) bool {
	return id != nil && *id == priceID
}
