package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustomFee is a per-user fee override for one pair. Maker/Taker are
// percentages; a nil field means "no override, use the default schedule".
type CustomFee struct {
	ID          int64
	UserID      int64
	Pair        Pair
	Maker       *decimal.Decimal
	Taker       *decimal.Decimal
	TimeUpdated time.Time
}

// DefaultFee is the global fee schedule for one pair; the most recent row
// by id wins.
type DefaultFee struct {
	ID          int64
	Pair        Pair
	Maker       decimal.Decimal
	Taker       decimal.Decimal
	TimeUpdated time.Time
}
