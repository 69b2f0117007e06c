package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bitmercado/ms-orders/internal/domain/models"
)

type BridgeOrderStore struct {
	pool *pgxpool.Pool
}

func NewBridgeOrderStore(pool *pgxpool.Pool) *BridgeOrderStore {
	return &BridgeOrderStore{pool: pool}
}

// Insert queues a fill of the internal liquidity account for settlement
// against the upstream venue.
func (s *BridgeOrderStore) Insert(ctx context.Context, executedID int64, pair models.Pair, at time.Time) error {
	const op = "postgres.BridgeOrderStore.Insert"

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO bridge_orders (executed_id, pair, done, time)
		 VALUES ($1, $2, FALSE, $3)`,
		executedID, string(pair), at,
	); err != nil {
		return fmt.Errorf("%s: exec: %w", op, err)
	}

	return nil
}
