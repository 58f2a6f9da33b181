package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ShadowTrade/internal/domain/models"
	domrepo "ShadowTrade/internal/domain/repository"
	pkgch "ShadowTrade/pkg/clickhouse"
	applogger "ShadowTrade/pkg/logger"
)

const recordsTable = "public_records"

// RecordSchema is the DDL for the public performance ledger. Basis-point
// columns mirror the on-chain account layout.
var RecordSchema = []string{
	`CREATE TABLE IF NOT EXISTS ` + recordsTable + ` (
        session_id        String,
        symbol            LowCardinality(String),
        total_return      Float64,
        win_rate          Float64,
        max_drawdown      Float64,
        total_trades      UInt32,
        total_return_bps  Int64,
        win_rate_bps      Int64,
        max_drawdown_bps  Int64,
        ts                DateTime64(3, 'UTC')
    ) ENGINE = ReplacingMergeTree(ts)
    ORDER BY session_id`,
}

// CHRecordStore implements RecordStore backed by ClickHouse.
type CHRecordStore struct {
	ch *pkgch.Client
	db *sql.DB
	l  *applogger.Logger
}

func NewCHRecordStore(ch *pkgch.Client, l *applogger.Logger) *CHRecordStore {
	return &CHRecordStore{ch: ch, db: ch.DB(), l: l}
}

var _ domrepo.RecordStore = (*CHRecordStore)(nil)

func (s *CHRecordStore) Init(ctx context.Context) error {
	if err := s.ch.Health(ctx); err != nil {
		return fmt.Errorf("clickhouse unreachable: %w", err)
	}
	return s.ch.InitSchema(ctx, RecordSchema)
}

func (s *CHRecordStore) Save(ctx context.Context, r models.PublicRecord) error {
	b := r.Basis()
	const q = `INSERT INTO ` + recordsTable + ` (session_id, symbol, total_return, win_rate, max_drawdown, total_trades, total_return_bps, win_rate_bps, max_drawdown_bps, ts) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		r.SessionID,
		r.Symbol,
		r.TotalReturn,
		r.WinRate,
		r.MaxDrawdown,
		uint32(r.TotalTrades),
		b.TotalReturnBps,
		b.WinRateBps,
		b.MaxDrawdownBps,
		r.Timestamp.UTC(),
	)
	if err != nil {
		s.l.Error("clickhouse save record error",
			applogger.String("session_id", r.SessionID),
			applogger.Error(err),
		)
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

const selectRecord = `SELECT session_id, symbol, total_return, win_rate, max_drawdown, total_trades, ts FROM ` + recordsTable + ` FINAL`

func (s *CHRecordStore) Get(ctx context.Context, sessionID string) (models.PublicRecord, error) {
	row := s.db.QueryRowContext(ctx, selectRecord+` WHERE session_id = ? LIMIT 1`, sessionID)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PublicRecord{}, fmt.Errorf("record %s: %w", sessionID, models.ErrNotFound)
	}
	if err != nil {
		return models.PublicRecord{}, fmt.Errorf("get record: %w", err)
	}
	return r, nil
}

// Top returns the best records by total return, optionally for one symbol.
func (s *CHRecordStore) Top(ctx context.Context, symbol string, limit int) ([]models.PublicRecord, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx,
		selectRecord+` WHERE (? = '' OR symbol = ?) ORDER BY total_return DESC, ts ASC LIMIT ?`,
		symbol, symbol, limit,
	)
	if err != nil {
		s.l.Error("clickhouse leaderboard query error", applogger.String("symbol", symbol), applogger.Error(err))
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	out := make([]models.PublicRecord, 0, limit)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse leaderboard ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("took", time.Since(start)),
	)
	return out, nil
}

func (s *CHRecordStore) Close() error {
	return nil // Managed by pkg
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(sc scanner) (models.PublicRecord, error) {
	var r models.PublicRecord
	var trades uint32
	if err := sc.Scan(&r.SessionID, &r.Symbol, &r.TotalReturn, &r.WinRate, &r.MaxDrawdown, &trades, &r.Timestamp); err != nil {
		return models.PublicRecord{}, err
	}
	r.TotalTrades = int(trades)
	return r, nil
}
