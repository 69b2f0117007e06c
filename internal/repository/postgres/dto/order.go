package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bitmercado/ms-orders/internal/domain/models"
)

// Order mirrors the orders table. NUMERIC columns travel as strings so
// decimals never pass through binary floating point.
type Order struct {
	ID            int64      `db:"id"`
	Identificator string     `db:"identificator"`
	UserID        int64      `db:"user_id"`
	Side          string     `db:"side"`
	Pair          string     `db:"pair"`
	PriceUnity    string     `db:"price_unity"`
	Amount        string     `db:"amount"`
	AmountSource  string     `db:"amount_source"`
	Total         string     `db:"total"`
	PriceDone     *string    `db:"price_done"`
	Done          bool       `db:"done"`
	Deleted       bool       `db:"deleted"`
	Locked        bool       `db:"locked"`
	Time          time.Time  `db:"time"`
	TimeDone      *time.Time `db:"time_done"`
	TimeDel       *time.Time `db:"time_del"`
	BridgeFrom    *string    `db:"bridge_from"`
	BridgePrice   *string    `db:"bridge_price"`
	BridgeOrderID *string    `db:"bridge_orderid"`
	OurOrder      bool       `db:"our_order"`
}

func (o Order) ToDomain() (models.Order, error) {
	priceUnity, err := parseDecimal("price_unity", o.PriceUnity)
	if err != nil {
		return models.Order{}, err
	}
	amount, err := parseDecimal("amount", o.Amount)
	if err != nil {
		return models.Order{}, err
	}
	amountSource, err := parseDecimal("amount_source", o.AmountSource)
	if err != nil {
		return models.Order{}, err
	}
	total, err := parseDecimal("total", o.Total)
	if err != nil {
		return models.Order{}, err
	}

	order := models.Order{
		ID:            o.ID,
		Identificator: o.Identificator,
		UserID:        o.UserID,
		Side:          models.Side(o.Side),
		Pair:          models.Pair(o.Pair),
		PriceUnity:    priceUnity,
		Amount:        amount,
		AmountSource:  amountSource,
		Total:         total,
		Done:          o.Done,
		Deleted:       o.Deleted,
		Locked:        o.Locked,
		Time:          o.Time,
		TimeDone:      o.TimeDone,
		TimeDel:       o.TimeDel,
		BridgeFrom:    o.BridgeFrom,
		BridgeOrderID: o.BridgeOrderID,
		OurOrder:      o.OurOrder,
	}

	if o.PriceDone != nil {
		priceDone, err := parseDecimal("price_done", *o.PriceDone)
		if err != nil {
			return models.Order{}, err
		}
		order.PriceDone = priceDone
	}
	if o.BridgePrice != nil {
		bridgePrice, err := parseDecimal("bridge_price", *o.BridgePrice)
		if err != nil {
			return models.Order{}, err
		}
		order.BridgePrice = &bridgePrice
	}

	return order, nil
}

func FromDomain(order models.Order) Order {
	out := Order{
		ID:            order.ID,
		Identificator: order.Identificator,
		UserID:        order.UserID,
		Side:          string(order.Side),
		Pair:          string(order.Pair),
		PriceUnity:    order.PriceUnity.String(),
		Amount:        order.Amount.String(),
		AmountSource:  order.AmountSource.String(),
		Total:         order.Total.String(),
		Done:          order.Done,
		Deleted:       order.Deleted,
		Locked:        order.Locked,
		Time:          order.Time,
		TimeDone:      order.TimeDone,
		TimeDel:       order.TimeDel,
		BridgeFrom:    order.BridgeFrom,
		BridgeOrderID: order.BridgeOrderID,
		OurOrder:      order.OurOrder,
	}

	if !order.PriceDone.IsZero() {
		priceDone := order.PriceDone.String()
		out.PriceDone = &priceDone
	}
	if order.BridgePrice != nil {
		bridgePrice := order.BridgePrice.String()
		out.BridgePrice = &bridgePrice
	}

	return out
}

// BookEntry is one public book row joined with its owner's uid.
type BookEntry struct {
	Identificator string    `db:"identificator"`
	UserUID       string    `db:"user_uid"`
	Pair          string    `db:"pair"`
	Side          string    `db:"side"`
	Amount        string    `db:"amount"`
	PriceUnity    string    `db:"price_unity"`
	Time          time.Time `db:"time"`
}

func (e BookEntry) ToDomain() (models.BookEntry, error) {
	amount, err := parseDecimal("amount", e.Amount)
	if err != nil {
		return models.BookEntry{}, err
	}
	priceUnity, err := parseDecimal("price_unity", e.PriceUnity)
	if err != nil {
		return models.BookEntry{}, err
	}

	return models.BookEntry{
		Identificator: e.Identificator,
		UserUID:       e.UserUID,
		Pair:          models.Pair(e.Pair),
		Side:          models.Side(e.Side),
		Amount:        amount,
		PriceUnity:    priceUnity,
		Time:          e.Time,
	}, nil
}

func parseDecimal(column, value string) (decimal.Decimal, error) {
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse %s %q: %w", column, value, err)
	}
	return parsed, nil
}
