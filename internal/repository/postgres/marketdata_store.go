package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bitmercado/ms-orders/internal/domain/models"
	"github.com/bitmercado/ms-orders/internal/repository/postgres/dto"
)

// MarketDataStore serves the read-only projections over executed orders
// and the trade tape.
type MarketDataStore struct {
	pool *pgxpool.Pool
}

func NewMarketDataStore(pool *pgxpool.Pool) *MarketDataStore {
	return &MarketDataStore{pool: pool}
}

// SumExecutedTotals adds up the totals of every execution of one order;
// input of the buy-side reconciliation check.
func (s *MarketDataStore) SumExecutedTotals(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	const op = "postgres.MarketDataStore.SumExecutedTotals"

	var raw *string
	err := s.pool.QueryRow(ctx,
		`SELECT SUM(total)::text FROM executed_orders WHERE order_id = $1`,
		orderID,
	).Scan(&raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: query: %w", op, err)
	}
	if raw == nil {
		return decimal.Zero, nil
	}

	total, err := decimal.NewFromString(*raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: parse: %w", op, err)
	}
	return total, nil
}

// RecentTrades returns the newest tape entries for one pair.
func (s *MarketDataStore) RecentTrades(ctx context.Context, pair models.Pair, limit int) ([]models.Trade, error) {
	const op = "postgres.MarketDataStore.RecentTrades"

	rows, err := s.pool.Query(ctx,
		`SELECT id, identificator, execution_id, order_id, order_compatible_id,
			user_id_active, user_id_passive, side, pair, amount_executed,
			price_unity, time_executed
		 FROM trades
		 WHERE pair = $1
		 ORDER BY time_executed DESC
		 LIMIT $2`,
		string(pair), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}

	tradeDTOs, err := pgx.CollectRows(rows, pgx.RowToStructByName[dto.Trade])
	if err != nil {
		return nil, fmt.Errorf("%s: collect: %w", op, err)
	}

	trades := make([]models.Trade, 0, len(tradeDTOs))
	for _, tradeDTO := range tradeDTOs {
		trade, err := tradeDTO.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		trades = append(trades, trade)
	}

	return trades, nil
}

// Stats24h aggregates the last day of executions for one pair. The global
// executed volume spans all pairs, matching what ticker consumers expect.
func (s *MarketDataStore) Stats24h(ctx context.Context, pair models.Pair) (models.ExecutedStats, error) {
	const op = "postgres.MarketDataStore.Stats24h"

	var stats models.ExecutedStats

	var totalExecuted *string
	err := s.pool.QueryRow(ctx,
		`SELECT SUM(amount_executed)::text
		 FROM executed_orders
		 WHERE time_executed >= now() - INTERVAL '1 DAY'`,
	).Scan(&totalExecuted)
	if err != nil {
		return models.ExecutedStats{}, fmt.Errorf("%s: total executed: %w", op, err)
	}
	if stats.TotalExecuted, err = optionalDecimal(totalExecuted); err != nil {
		return models.ExecutedStats{}, fmt.Errorf("%s: total executed: %w", op, err)
	}

	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM executed_orders
		 WHERE time_executed >= now() - INTERVAL '1 DAY' AND pair = $1`,
		string(pair),
	).Scan(&stats.TotalTrades)
	if err != nil {
		return models.ExecutedStats{}, fmt.Errorf("%s: total trades: %w", op, err)
	}

	queries := []struct {
		dest  *decimal.Decimal
		query string
	}{
		{&stats.Last, `SELECT price_unity::text FROM executed_orders
			WHERE pair = $1 ORDER BY time_executed DESC LIMIT 1`},
		{&stats.First, `SELECT price_unity::text FROM executed_orders
			WHERE time_executed >= now() - INTERVAL '1 DAY' AND pair = $1
			ORDER BY time_executed ASC LIMIT 1`},
		{&stats.High, `SELECT price_unity::text FROM executed_orders
			WHERE time_executed >= now() - INTERVAL '1 DAY' AND pair = $1
			ORDER BY price_unity DESC LIMIT 1`},
		{&stats.Low, `SELECT price_unity::text FROM executed_orders
			WHERE time_executed >= now() - INTERVAL '1 DAY' AND pair = $1
			ORDER BY price_unity ASC LIMIT 1`},
	}
	for _, q := range queries {
		var raw string
		err := s.pool.QueryRow(ctx, q.query, string(pair)).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return models.ExecutedStats{}, fmt.Errorf("%s: query: %w", op, err)
		}
		if *q.dest, err = decimal.NewFromString(raw); err != nil {
			return models.ExecutedStats{}, fmt.Errorf("%s: parse: %w", op, err)
		}
	}

	var volume *string
	err = s.pool.QueryRow(ctx,
		`SELECT SUM(amount_executed)::text
		 FROM executed_orders
		 WHERE time_executed >= now() - INTERVAL '1 DAY' AND pair = $1`,
		string(pair),
	).Scan(&volume)
	if err != nil {
		return models.ExecutedStats{}, fmt.Errorf("%s: volume: %w", op, err)
	}
	if stats.Volume, err = optionalDecimal(volume); err != nil {
		return models.ExecutedStats{}, fmt.Errorf("%s: volume: %w", op, err)
	}

	return stats, nil
}

func optionalDecimal(raw *string) (decimal.Decimal, error) {
	if raw == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*raw)
}
