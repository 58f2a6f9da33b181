package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ShadowTrade/internal/domain/models"
	"ShadowTrade/internal/domain/repository"
	"ShadowTrade/internal/service/ratelimit"
	xhttp "ShadowTrade/pkg/http"
	"ShadowTrade/pkg/logger"
)

const maxKlinesPerRequest = 1000

// Binance fetches historical klines from the public REST API.
type Binance struct {
	baseURL string
	client  *xhttp.Client
	limiter *ratelimit.Limiter
	metrics repository.Metrics
	logger  *logger.Logger
}

func NewBinance(baseURL string, timeout time.Duration, limiter *ratelimit.Limiter, m repository.Metrics, l *logger.Logger, opts ...xhttp.ClientOption) *Binance {
	if m == nil {
		m = repository.NopMetrics{}
	}
	opts = append([]xhttp.ClientOption{xhttp.WithTimeout(timeout)}, opts...)
	return &Binance{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  xhttp.NewClient(opts...),
		limiter: limiter,
		metrics: m,
		logger:  l,
	}
}

var _ repository.MarketData = (*Binance)(nil)

// FetchCandles returns the latest count closed-or-open klines, oldest first.
func (b *Binance) FetchCandles(ctx context.Context, symbol, interval string, count int) ([]models.PricePoint, error) {
	if count <= 0 || count > maxKlinesPerRequest {
		return nil, fmt.Errorf("count must be in [1,%d], got %d", maxKlinesPerRequest, count)
	}
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx, "binance"); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	start := time.Now()
	var rows [][]json.RawMessage
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    b.baseURL + "/api/v3/klines",
		QueryParams: map[string][]string{
			"symbol":   {strings.ToUpper(symbol)},
			"interval": {interval},
			"limit":    {strconv.Itoa(count)},
		},
	}, &rows)
	b.metrics.RecordFetch("binance", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s %s: %w", symbol, interval, err)
	}

	out := make([]models.PricePoint, 0, len(rows))
	for i, row := range rows {
		p, err := parseKline(row)
		if err != nil {
			return nil, &models.DataError{Index: i, Reason: err.Error()}
		}
		out = append(out, p)
	}
	b.logger.Debug("fetched klines",
		logger.String("symbol", symbol),
		logger.String("interval", interval),
		logger.Int("count", len(out)),
		logger.Duration("took", time.Since(start)),
	)
	return out, nil
}

// parseKline decodes [openTime, open, high, low, close, volume, closeTime, ...].
// Prices arrive as decimal strings.
func parseKline(row []json.RawMessage) (models.PricePoint, error) {
	if len(row) < 6 {
		return models.PricePoint{}, fmt.Errorf("kline has %d fields", len(row))
	}
	var openTime int64
	if err := json.Unmarshal(row[0], &openTime); err != nil {
		return models.PricePoint{}, fmt.Errorf("open time: %w", err)
	}
	vals := make([]float64, 5)
	for i := range vals {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return models.PricePoint{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return models.PricePoint{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = d.InexactFloat64()
	}
	return models.PricePoint{
		Timestamp: time.UnixMilli(openTime).UTC(),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}
