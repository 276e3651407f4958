package db

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xtrntr/matching-engine/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB initializes a new database connection pool
func NewDB(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate applies a schema script
func (db *DB) Migrate(ctx context.Context, schema string) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const insertTrade = `INSERT INTO trades
	(id, symbol, price, quantity, taker_side, maker_order_id, taker_order_id, sequence, executed_at)
	VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING`

// CreateTrades inserts a batch of trades in one round trip
func (db *DB) CreateTrades(ctx context.Context, trades []models.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i := range trades {
		batch.Queue(insertTrade, tradeArgs(&trades[i])...)
	}
	if err := db.Pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to create %d trades: %w", len(trades), err)
	}
	return nil
}

func tradeArgs(t *models.Trade) []any {
	return []any{
		t.ID, t.Symbol, t.Price.String(), t.Quantity.String(), string(t.TakerSide),
		t.MakerOrderID, t.TakerOrderID, int64(t.Sequence), t.ExecutedAt,
	}
}

// recentTrades returns the latest archived trades for a symbol, newest first
func (db *DB) recentTrades(ctx context.Context, symbol string, limit int) ([]models.Trade, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, symbol, price::text, quantity::text, taker_side, maker_order_id, taker_order_id, sequence, executed_at
		FROM trades WHERE symbol = $1 ORDER BY sequence DESC LIMIT $2`,
		symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get trades: %w", err)
	}
	defer rows.Close()

	trades := []models.Trade{}
	for rows.Next() {
		var (
			t          models.Trade
			price, qty string
			side       string
			sequence   int64
		)
		if err := rows.Scan(&t.ID, &t.Symbol, &price, &qty, &side, &t.MakerOrderID, &t.TakerOrderID, &sequence, &t.ExecutedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("bad price for trade %s: %w", t.ID, err)
		}
		if t.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("bad quantity for trade %s: %w", t.ID, err)
		}
		t.TakerSide = models.Side(side)
		t.Sequence = uint64(sequence)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trades: %w", err)
	}
	return trades, nil
}
