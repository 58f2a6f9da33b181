package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ShadowTrade/internal/domain/models"
	"ShadowTrade/internal/service/ratelimit"
	"ShadowTrade/pkg/cache"
	"ShadowTrade/pkg/logger"
)

const klinesBody = `[
 [1700000000000,"100.10","101.00","99.50","100.50","12.5",1700003599999,"0",1,"0","0","0"],
 [1700003600000,"100.50","102.00","100.00","101.75","8.25",1700007199999,"0",1,"0","0","0"]
]`

func TestBinanceFetchCandles(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(klinesBody))
	}))
	defer srv.Close()

	b := NewBinance(srv.URL, time.Second, ratelimit.New(100, 10), nil, logger.Nop())
	series, err := b.FetchCandles(context.Background(), "solusdt", "1h", 2)
	require.NoError(t, err)
	require.Len(t, series, 2)

	assert.Contains(t, gotQuery, "symbol=SOLUSDT")
	assert.Contains(t, gotQuery, "limit=2")
	assert.Equal(t, 100.5, series[0].Close)
	assert.Equal(t, 101.75, series[1].Close)
	assert.Equal(t, 8.25, series[1].Volume)
	assert.Equal(t, time.UnixMilli(1700003600000).UTC(), series[1].Timestamp)
	require.NoError(t, models.ValidateSeries(series, 2))
}

func TestBinanceRejectsMalformedRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[1700000000000,"1","1","1","oops","1"]]`))
	}))
	defer srv.Close()

	b := NewBinance(srv.URL, time.Second, nil, nil, logger.Nop())
	_, err := b.FetchCandles(context.Background(), "SOLUSDT", "1h", 1)
	var de *models.DataError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 0, de.Index)

	_, err = b.FetchCandles(context.Background(), "SOLUSDT", "1h", 5000)
	assert.Error(t, err)
}

type countingSource struct {
	calls atomic.Int32
}

func (c *countingSource) FetchCandles(_ context.Context, _, _ string, count int) ([]models.PricePoint, error) {
	c.calls.Add(1)
	out := make([]models.PricePoint, count)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = models.PricePoint{Timestamp: base.Add(time.Duration(i) * time.Hour), Close: 100 + float64(i)}
	}
	return out, nil
}

func TestCachedServesRepeatFetches(t *testing.T) {
	src := &countingSource{}
	mem := cache.NewMemoryCache()
	defer mem.Close()
	c := NewCached(src, mem, time.Minute, logger.Nop())

	first, err := c.FetchCandles(context.Background(), "SOLUSDT", "1h", 5)
	require.NoError(t, err)
	second, err := c.FetchCandles(context.Background(), "SOLUSDT", "1h", 5)
	require.NoError(t, err)

	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, first, second)

	_, err = c.FetchCandles(context.Background(), "SOLUSDT", "4h", 5)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestStreamDeliversClosedKlines(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/solusdt@kline_1m"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		frames := []string{
			`{"e":"kline","k":{"t":1700000000000,"o":"1","h":"2","l":"0.5","c":"1.5","v":"10","x":false}}`,
			`{"e":"kline","k":{"t":1700000000000,"o":"1","h":"2","l":"0.5","c":"1.75","v":"12","x":true}}`,
			`{"result":null,"id":1}`,
			`{"e":"kline","k":{"t":1700000060000,"o":"1.75","h":"2","l":"1.5","c":"1.8","v":"3","x":true}}`,
		}
		for _, f := range frames {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(f))
		}
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	s := NewStream(wsURL, "SOLUSDT", "1m", 0, logger.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx))
	defer s.Close()
	assert.True(t, s.IsConnected())

	points, _ := s.Read(ctx)
	var got []float64
	for p := range points {
		got = append(got, p.Close)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []float64{1.75, 1.8}, got)
}
