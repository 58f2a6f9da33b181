package marketdata

import (
	"context"
	"errors"
	"time"

	"ShadowTrade/internal/domain/models"
	"ShadowTrade/internal/domain/repository"
	"ShadowTrade/pkg/cache"
	"ShadowTrade/pkg/logger"
)

// Cached serves repeated historical fetches from a cache.Service. Series are
// immutable once produced, so a hit is returned as is.
type Cached struct {
	next   repository.MarketData
	cache  cache.Service
	ttl    time.Duration
	logger *logger.Logger
}

func NewCached(next repository.MarketData, c cache.Service, ttl time.Duration, l *logger.Logger) *Cached {
	return &Cached{next: next, cache: c, ttl: ttl, logger: l}
}

var _ repository.MarketData = (*Cached)(nil)

func (c *Cached) FetchCandles(ctx context.Context, symbol, interval string, count int) ([]models.PricePoint, error) {
	key := cache.GenerateKey("candles", symbol, interval, count)

	var series []models.PricePoint
	err := c.cache.Get(ctx, key, &series)
	if err == nil {
		return series, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("candle cache read failed", logger.String("key", key), logger.Error(err))
	}

	series, err = c.next.FetchCandles(ctx, symbol, interval, count)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, series, c.ttl); err != nil {
		c.logger.Warn("candle cache write failed", logger.String("key", key), logger.Error(err))
	}
	return series, nil
}
