package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the side a compatible resting order must have.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Order is a resting or (partially) executed limit instruction.
// Amount is the remaining quantity; AmountSource the quantity at placement.
// Locked guards the order against concurrent settlement steps and is only
// ever flipped through OrderStore.Lock / Unlock.
type Order struct {
	ID            int64
	Identificator string
	UserID        int64
	Side          Side
	Pair          Pair
	PriceUnity    decimal.Decimal
	Amount        decimal.Decimal
	AmountSource  decimal.Decimal
	Total         decimal.Decimal
	PriceDone     decimal.Decimal
	Done          bool
	Deleted       bool
	Locked        bool
	Time          time.Time
	TimeDone      *time.Time
	TimeDel       *time.Time

	// Bridging metadata for orders mirrored from an upstream venue.
	BridgeFrom    *string
	BridgePrice   *decimal.Decimal
	BridgeOrderID *string
	OurOrder      bool
}

// State derives the lifecycle state shown to order owners.
func (o Order) State() string {
	switch {
	case o.Deleted:
		return "deleted"
	case o.Done:
		return "executed_int"
	case o.Amount.LessThan(o.AmountSource):
		return "executed_partially"
	default:
		return "pending"
	}
}

// BookEntry is one resting order as shown on the public book, carrying the
// owner's public uid instead of the internal user id.
type BookEntry struct {
	Identificator string
	UserUID       string
	Pair          Pair
	Side          Side
	Amount        decimal.Decimal
	PriceUnity    decimal.Decimal
	Time          time.Time
}

// Pair is a tradable instrument, target asset over base asset ("BTC/BRL").
type Pair string

// PairFromCatalogKey builds a Pair from the catalog key form ("btc_brl").
func PairFromCatalogKey(key string) Pair {
	return Pair(strings.ToUpper(strings.ReplaceAll(key, "_", "/")))
}

func (p Pair) Target() string {
	target, _, _ := strings.Cut(string(p), "/")
	return target
}

func (p Pair) Base() string {
	_, base, _ := strings.Cut(string(p), "/")
	return base
}

// CatalogKey is the form the catalog store keys pairs by ("btc_brl").
func (p Pair) CatalogKey() string {
	return strings.ToLower(strings.ReplaceAll(string(p), "/", "_"))
}

// FeeKey is the form fee schedule columns key pairs by ("btcbrl").
func (p Pair) FeeKey() string {
	return strings.ToLower(strings.ReplaceAll(string(p), "/", ""))
}
