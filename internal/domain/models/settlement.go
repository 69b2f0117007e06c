package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderUpdate is the state written back to one order by a settlement step.
type OrderUpdate struct {
	OrderID   int64
	Amount    decimal.Decimal
	Done      bool
	PriceDone decimal.Decimal
	TimeDone  *time.Time
}

// SettlementBatch is everything one settlement step persists atomically:
// two execution records, one tape entry, eight ledger entries and both
// orders' state updates. Either all of it commits or none of it does.
type SettlementBatch struct {
	ExecIncoming     ExecutedOrder
	ExecCompatible   ExecutedOrder
	Trade            Trade
	Entries          []LedgerEntry
	UpdateIncoming   OrderUpdate
	UpdateCompatible OrderUpdate
}

// ExecutedStats aggregates the last 24 hours of fills for ticker queries.
type ExecutedStats struct {
	TotalExecuted decimal.Decimal
	TotalTrades   int64
	Last          decimal.Decimal
	First         decimal.Decimal
	High          decimal.Decimal
	Low           decimal.Decimal
	Volume        decimal.Decimal
}
