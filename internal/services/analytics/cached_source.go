package analytics

import (
	"context"
	"sort"
	"strings"
	"time"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
	"Corexia/pkg/cache"
)

// CachedIndicatorSource memoizes bundles per symbol, timeframe set and
// calendar day, so every agent in a run reads the same bundle.
type CachedIndicatorSource struct {
	next  domrepo.IndicatorSource
	cache cache.Service
	ttl   time.Duration
	now   func() time.Time
}

var _ domrepo.IndicatorSource = (*CachedIndicatorSource)(nil)

func NewCachedIndicatorSource(next domrepo.IndicatorSource, c cache.Service, ttl time.Duration) *CachedIndicatorSource {
	return &CachedIndicatorSource{next: next, cache: c, ttl: ttl, now: time.Now}
}

func (s *CachedIndicatorSource) FetchBundle(ctx context.Context, symbol string, timeframes []models.Timeframe) (*models.IndicatorBundle, error) {
	key := bundleKey(symbol, timeframes, s.now())
	b, err := cache.GetOrLoad(ctx, s.cache, key, s.ttl, func(ctx context.Context) (models.IndicatorBundle, error) {
		b, err := s.next.FetchBundle(ctx, symbol, timeframes)
		if err != nil {
			return models.IndicatorBundle{}, err
		}
		return *b, nil
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func bundleKey(symbol string, timeframes []models.Timeframe, at time.Time) string {
	tfs := make([]string, len(timeframes))
	for i, tf := range timeframes {
		tfs[i] = string(tf)
	}
	sort.Strings(tfs)
	return cache.Key("bundle", symbol, at.UTC().Format("2006-01-02"), strings.Join(tfs, ","))
}
