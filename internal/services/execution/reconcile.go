package execution

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bitmercado/ms-orders/internal/domain/models"
	"github.com/bitmercado/ms-orders/internal/logger"
)

type ExecutedTotalsGetter interface {
	SumExecutedTotals(ctx context.Context, orderID int64) (decimal.Decimal, error)
}

type LedgerInserter interface {
	Insert(ctx context.Context, entry models.LedgerEntry) error
}

// Reconciler closes the rounding gap of fully filled buy orders. The quote
// retention was taken upfront at the limit price; fills settle at per-step
// rounded prices, so the sum of executed totals can drift from the
// reservation by a few cents. The difference is posted back as a corrective
// ledger entry against the retention. Sell orders retain the target asset
// exactly and never drift.
type Reconciler struct {
	totals        ExecutedTotalsGetter
	ledger        LedgerInserter
	quoteDecimals int32
	now           func() time.Time
}

func NewReconciler(totals ExecutedTotalsGetter, ledger LedgerInserter, quoteDecimals int32) *Reconciler {
	return &Reconciler{
		totals:        totals,
		ledger:        ledger,
		quoteDecimals: quoteDecimals,
		now:           time.Now,
	}
}

// ReconcileBuy compares the executed value of a completed buy order with
// the quote amount reserved at placement and posts the signed difference.
func (r *Reconciler) ReconcileBuy(ctx context.Context, order models.Order) error {
	const op = "execution.Reconciler.ReconcileBuy"

	executed, err := r.totals.SumExecutedTotals(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	reserved := order.AmountSource.Mul(order.PriceUnity).Round(r.quoteDecimals)
	diff := reserved.Sub(executed).Round(r.quoteDecimals)
	if diff.IsZero() {
		return nil
	}

	entry := models.LedgerEntry{
		UserID:      order.UserID,
		ItemID:      order.ID,
		Coin:        strings.ToLower(order.Pair.Base()),
		Amount:      diff,
		IsRetention: true,
		Type:        models.EntryOrderDiff,
		Time:        r.now(),
	}
	if err := r.ledger.Insert(ctx, entry); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	logger.Info(ctx, "posted order reconciliation entry",
		zap.Int64("order_id", order.ID),
		zap.String("amount", diff.String()),
	)

	return nil
}
