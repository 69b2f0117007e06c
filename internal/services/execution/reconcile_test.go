package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bitmercado/ms-orders/internal/domain/models"
)

func TestReconcileBuyPostsDrift(t *testing.T) {
	totals := &mockTotalsGetter{}
	ledger := &mockLedgerInserter{}

	order := testOrder(7, 10, models.SideBuy, "1.5", "100")

	// Reserved 150.00, settled 148.73.
	totals.On("SumExecutedTotals", mock.Anything, int64(7)).Return(dec("148.73"), nil)
	ledger.On("Insert", mock.Anything, mock.MatchedBy(func(e models.LedgerEntry) bool {
		return e.Amount.Equal(dec("1.27")) &&
			e.Coin == "brl" &&
			e.IsRetention &&
			e.Type == models.EntryOrderDiff &&
			e.ItemID == 7
	})).Return(nil)

	err := NewReconciler(totals, ledger, 2).ReconcileBuy(context.Background(), order)
	require.NoError(t, err)
	ledger.AssertExpectations(t)
}

func TestReconcileBuyNoDriftPostsNothing(t *testing.T) {
	totals := &mockTotalsGetter{}
	ledger := &mockLedgerInserter{}

	order := testOrder(7, 10, models.SideBuy, "1", "100")
	totals.On("SumExecutedTotals", mock.Anything, int64(7)).Return(dec("100"), nil)

	err := NewReconciler(totals, ledger, 2).ReconcileBuy(context.Background(), order)
	require.NoError(t, err)
	ledger.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}
