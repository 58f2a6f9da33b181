package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"ShadowTrade/internal/domain/models"
	drepo "ShadowTrade/internal/domain/repository"
	"ShadowTrade/pkg/logger"
)

// Stream implements KlineStream over the Binance kline WebSocket. Only
// closed klines are delivered.
type Stream struct {
	url          string
	pingInterval time.Duration
	logger       *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// NewStream creates a stream for one symbol and interval.
func NewStream(baseURL, symbol, interval string, pingInterval time.Duration, l *logger.Logger) *Stream {
	return &Stream{
		url:          fmt.Sprintf("%s/%s@kline_%s", strings.TrimRight(baseURL, "/"), strings.ToLower(symbol), interval),
		pingInterval: pingInterval,
		logger:       l,
	}
}

var _ drepo.KlineStream = (*Stream)(nil)

// Connect establishes the WebSocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("kline stream connect: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	s.logger.Info("kline stream connected", logger.String("url", s.url))
	return nil
}

type wsKline struct {
	StartTime int64  `json:"t"`
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Close     string `json:"c"`
	Volume    string `json:"v"`
	Closed    bool   `json:"x"`
}

type wsMessage struct {
	Event string  `json:"e"`
	Kline wsKline `json:"k"`
}

// Read streams closed candles and errors. Both channels close when the
// connection fails or ctx is done.
func (s *Stream) Read(ctx context.Context) (<-chan models.PricePoint, <-chan error) {
	points := make(chan models.PricePoint, 64)
	errs := make(chan error, 1)

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		errs <- fmt.Errorf("kline stream not connected")
		close(points)
		close(errs)
		return points, errs
	}

	// ping loop
	go func() {
		if s.pingInterval <= 0 {
			return
		}
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				s.mu.Unlock()
			}
		}
	}()

	// unblock ReadMessage on cancellation
	go func() {
		<-ctx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()

	// read loop
	go func() {
		defer close(points)
		defer close(errs)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("kline stream read: %w", err)
				}
				return
			}
			var m wsMessage
			if err := json.Unmarshal(b, &m); err != nil || m.Event != "kline" || !m.Kline.Closed {
				continue
			}
			p, err := m.Kline.point()
			if err != nil {
				s.logger.Warn("skipping malformed kline", logger.Error(err))
				continue
			}
			select {
			case points <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	return points, errs
}

func (k wsKline) point() (models.PricePoint, error) {
	raw := []string{k.Open, k.High, k.Low, k.Close, k.Volume}
	vals := make([]float64, len(raw))
	for i, s := range raw {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return models.PricePoint{}, err
		}
		vals[i] = d.InexactFloat64()
	}
	return models.PricePoint{
		Timestamp: time.UnixMilli(k.StartTime).UTC(),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}

// Close closes the WS connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}
