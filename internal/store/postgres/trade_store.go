package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/krxlab/stockcore/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, symbol, buy_order_id, sell_order_id, quantity, price, executed_at`

func scanTradeRows(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(
			&t.ID, &t.Symbol, &t.BuyOrderID, &t.SellOrderID,
			&t.Quantity, &t.Price, &t.ExecutedAt,
		); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Insert persists one executed trade. Re-inserting an already persisted
// trade id is silently skipped via ON CONFLICT DO NOTHING, so journal
// replays are safe.
func (s *TradeStore) Insert(ctx context.Context, t domain.Trade) error {
	const query = `
		INSERT INTO trades (
			id, symbol, buy_order_id, sell_order_id, quantity, price, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.Symbol, t.BuyOrderID, t.SellOrderID, t.Quantity, t.Price, t.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", t.ID, err)
	}
	return nil
}

// FindAll returns every persisted trade ordered by execution time.
func (s *TradeStore) FindAll(ctx context.Context) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+tradeSelectCols+" FROM trades ORDER BY executed_at, id")
	if err != nil {
		return nil, fmt.Errorf("postgres: find all trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, nil
}

// ListBefore returns all trades executed strictly before the cutoff,
// ordered by execution time. Used by the cold-storage archiver.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+tradeSelectCols+" FROM trades WHERE executed_at < $1 ORDER BY executed_at, id",
		before,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before %v: %w", before, err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, nil
}

// GetLastTimestamp returns the most recent trade timestamp, or the zero
// time if no trades exist.
func (s *TradeStore) GetLastTimestamp(ctx context.Context) (time.Time, error) {
	var ts *time.Time
	err := s.pool.QueryRow(ctx,
		"SELECT MAX(executed_at) FROM trades").Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("postgres: get last trade timestamp: %w", err)
	}
	if ts == nil {
		return time.Time{}, nil
	}
	return *ts, nil
}
