package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bitmercado/ms-orders/internal/domain/models"
)

type SettlementStore struct {
	pool *pgxpool.Pool
}

func NewSettlementStore(pool *pgxpool.Pool) *SettlementStore {
	return &SettlementStore{pool: pool}
}

// Commit persists one settlement step atomically: both execution records
// (reciprocally linked through done_with), the trade tape entry, all ledger
// entries and both order state updates. A failure anywhere rolls back the
// whole step. Returns the created execution record ids, incoming leg first.
func (s *SettlementStore) Commit(ctx context.Context, batch models.SettlementBatch) (int64, int64, error) {
	const op = "postgres.SettlementStore.Commit"

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback(ctx)

	incomingExecID, err := insertExecutedOrder(ctx, tx, batch.ExecIncoming, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: insert incoming execution: %w", op, err)
	}

	compatibleExecID, err := insertExecutedOrder(ctx, tx, batch.ExecCompatible, incomingExecID)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: insert compatible execution: %w", op, err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE executed_orders SET done_with = $2 WHERE id = $1`,
		incomingExecID, compatibleExecID,
	); err != nil {
		return 0, 0, fmt.Errorf("%s: backfill done_with: %w", op, err)
	}

	if err := insertTrade(ctx, tx, batch.Trade); err != nil {
		return 0, 0, fmt.Errorf("%s: insert trade: %w", op, err)
	}

	for _, entry := range batch.Entries {
		if err := insertLedgerEntry(ctx, tx, entry); err != nil {
			return 0, 0, fmt.Errorf("%s: insert ledger entry: %w", op, err)
		}
	}

	for _, update := range []models.OrderUpdate{batch.UpdateIncoming, batch.UpdateCompatible} {
		if err := applyOrderUpdate(ctx, tx, update); err != nil {
			return 0, 0, fmt.Errorf("%s: update order %d: %w", op, update.OrderID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("%s: commit: %w", op, err)
	}

	return incomingExecID, compatibleExecID, nil
}

func insertExecutedOrder(ctx context.Context, tx pgx.Tx, exec models.ExecutedOrder, doneWith int64) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx,
		`INSERT INTO executed_orders (identificator, execution_id, order_id, user_id,
			done_with, int_done, side, pair, price_unity, order_amount,
			amount_executed, amount_left, fee, total, time_executed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 RETURNING id`,
		exec.Identificator,
		exec.ExecutionID,
		exec.OrderID,
		exec.UserID,
		doneWith,
		exec.IntDone,
		string(exec.Side),
		string(exec.Pair),
		exec.PriceUnity.String(),
		exec.OrderAmount.String(),
		exec.AmountExecuted.String(),
		exec.AmountLeft.String(),
		exec.Fee.String(),
		exec.Total.String(),
		exec.TimeExecuted,
	).Scan(&id)
	return id, err
}

func insertTrade(ctx context.Context, tx pgx.Tx, trade models.Trade) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO trades (identificator, execution_id, order_id, order_compatible_id,
			user_id_active, user_id_passive, side, pair, amount_executed,
			price_unity, time_executed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		trade.Identificator,
		trade.ExecutionID,
		trade.OrderID,
		trade.OrderCompatibleID,
		trade.UserIDActive,
		trade.UserIDPassive,
		string(trade.Side),
		string(trade.Pair),
		trade.AmountExecuted.String(),
		trade.PriceUnity.String(),
		trade.TimeExecuted,
	)
	return err
}

func applyOrderUpdate(ctx context.Context, tx pgx.Tx, update models.OrderUpdate) error {
	_, err := tx.Exec(ctx,
		`UPDATE orders
		 SET amount = $2, done = $3, price_done = $4, time_done = COALESCE($5, time_done)
		 WHERE id = $1`,
		update.OrderID,
		update.Amount.String(),
		update.Done,
		update.PriceDone.String(),
		update.TimeDone,
	)
	return err
}
