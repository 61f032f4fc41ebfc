package server

import (
	"context"
	"time"

	"sjsage522/keebsteals/internal/deals"
	"sjsage522/keebsteals/logger"
	"sjsage522/keebsteals/services/cache"
)

// dealLoader reads active deals through the cache
type dealLoader struct {
	store        DealStore
	cache        cache.CacheService
	ttl          time.Duration
	affiliateRef string
}

func (l *dealLoader) activeDeals(ctx context.Context) ([]deals.Deal, error) {
	log := logger.ForCache().WithContext(ctx)

	// The version is read before the store so a sync finishing mid-load bumps
	// past the key this load writes to.
	key := ""
	if l.cache != nil {
		version, err := cache.ActiveDealsVersion(l.cache)
		if err != nil {
			log.Warn().Err(err).Msg("deals cache version read failed")
		} else {
			key = cache.ActiveDealsKey(version)
		}
	}

	if key != "" {
		var cached []deals.Deal
		hit, err := cache.GetJSON(l.cache, key, &cached)
		if err != nil {
			log.Warn().Err(err).Msg("deals cache read failed")
		}
		if hit {
			return cached, nil
		}
	}

	products, err := l.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	result := deals.FromProducts(products, l.affiliateRef)

	if key != "" {
		if err := cache.SetJSON(l.cache, key, result, l.ttl); err != nil {
			log.Warn().Err(err).Msg("deals cache write failed")
		}
	}
	return result, nil
}
