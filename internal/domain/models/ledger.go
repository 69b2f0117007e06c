package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type EntryType string

const (
	EntryOrderCreatedBuy  EntryType = "order_created_buy"
	EntryOrderCreatedSell EntryType = "order_created_sell"
	EntryOrderDeleted     EntryType = "order_deleted"
	EntryOrderDiff        EntryType = "order_diff"

	entryExecutionPrefix = "order_execution_"
	entryFeeSuffix       = "_fee"
)

// EntryExecution tags a settled movement of one fill leg.
func EntryExecution(side Side) EntryType {
	return EntryType(entryExecutionPrefix + string(side))
}

// EntryExecutionFee tags the fee movement of one fill leg.
func EntryExecutionFee(side Side) EntryType {
	return EntryType(entryExecutionPrefix + string(side) + entryFeeSuffix)
}

// LedgerEntry is one signed, append-only balance movement. Balances are
// derived by summation over entries and never mutated in place.
// IsRetention distinguishes escrow movements from settled movements.
type LedgerEntry struct {
	ID          int64
	UserID      int64
	ItemID      int64
	Coin        string
	Amount      decimal.Decimal
	IsRetention bool
	Type        EntryType
	Time        time.Time
}
