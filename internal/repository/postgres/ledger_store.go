package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bitmercado/ms-orders/internal/domain/models"
)

type LedgerStore struct {
	pool *pgxpool.Pool
}

func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Insert appends a single ledger entry outside any settlement batch;
// used for the order_diff reconciliation correction.
func (s *LedgerStore) Insert(ctx context.Context, entry models.LedgerEntry) error {
	const op = "postgres.LedgerStore.Insert"

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback(ctx)

	if err := insertLedgerEntry(ctx, tx, entry); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}

	return nil
}

func insertLedgerEntry(ctx context.Context, tx pgx.Tx, entry models.LedgerEntry) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO transactions (user_id, item_id, coin, amount, is_retention, type, time)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.UserID,
		entry.ItemID,
		entry.Coin,
		entry.Amount.String(),
		entry.IsRetention,
		string(entry.Type),
		entry.Time,
	)
	return err
}
