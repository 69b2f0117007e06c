package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutedOrder records one side of a single fill. The two sides of a fill
// share ExecutionID and reference each other through DoneWith.
type ExecutedOrder struct {
	ID             int64
	Identificator  string
	ExecutionID    string
	OrderID        int64
	UserID         int64
	DoneWith       int64
	IntDone        bool
	Side           Side
	Pair           Pair
	PriceUnity     decimal.Decimal
	OrderAmount    decimal.Decimal
	AmountExecuted decimal.Decimal
	AmountLeft     decimal.Decimal
	Fee            decimal.Decimal
	Total          decimal.Decimal
	TimeExecuted   time.Time
}

// Trade is the public tape entry for a fill, one per execution.
// UserIDActive/Passive carry the participants' public uids, never row ids.
type Trade struct {
	ID                int64
	Identificator     string
	ExecutionID       string
	OrderID           int64
	OrderCompatibleID int64
	UserIDActive      string
	UserIDPassive     string
	Side              Side
	Pair              Pair
	AmountExecuted    decimal.Decimal
	PriceUnity        decimal.Decimal
	TimeExecuted      time.Time
}

// BridgeOrder queues a fill owned by the internal liquidity account for
// settlement against the upstream venue.
type BridgeOrder struct {
	ID         int64
	ExecutedID int64
	Pair       Pair
	Done       bool
	Time       time.Time
}
