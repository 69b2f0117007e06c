package dto

import (
	"time"

	"github.com/bitmercado/ms-orders/internal/domain/models"
)

type ExecutedOrder struct {
	ID             int64     `db:"id"`
	Identificator  string    `db:"identificator"`
	ExecutionID    string    `db:"execution_id"`
	OrderID        int64     `db:"order_id"`
	UserID         int64     `db:"user_id"`
	DoneWith       int64     `db:"done_with"`
	IntDone        bool      `db:"int_done"`
	Side           string    `db:"side"`
	Pair           string    `db:"pair"`
	PriceUnity     string    `db:"price_unity"`
	OrderAmount    string    `db:"order_amount"`
	AmountExecuted string    `db:"amount_executed"`
	AmountLeft     string    `db:"amount_left"`
	Fee            string    `db:"fee"`
	Total          string    `db:"total"`
	TimeExecuted   time.Time `db:"time_executed"`
}

func (e ExecutedOrder) ToDomain() (models.ExecutedOrder, error) {
	out := models.ExecutedOrder{
		ID:            e.ID,
		Identificator: e.Identificator,
		ExecutionID:   e.ExecutionID,
		OrderID:       e.OrderID,
		UserID:        e.UserID,
		DoneWith:      e.DoneWith,
		IntDone:       e.IntDone,
		Side:          models.Side(e.Side),
		Pair:          models.Pair(e.Pair),
		TimeExecuted:  e.TimeExecuted,
	}

	var err error
	if out.PriceUnity, err = parseDecimal("price_unity", e.PriceUnity); err != nil {
		return models.ExecutedOrder{}, err
	}
	if out.OrderAmount, err = parseDecimal("order_amount", e.OrderAmount); err != nil {
		return models.ExecutedOrder{}, err
	}
	if out.AmountExecuted, err = parseDecimal("amount_executed", e.AmountExecuted); err != nil {
		return models.ExecutedOrder{}, err
	}
	if out.AmountLeft, err = parseDecimal("amount_left", e.AmountLeft); err != nil {
		return models.ExecutedOrder{}, err
	}
	if out.Fee, err = parseDecimal("fee", e.Fee); err != nil {
		return models.ExecutedOrder{}, err
	}
	if out.Total, err = parseDecimal("total", e.Total); err != nil {
		return models.ExecutedOrder{}, err
	}

	return out, nil
}

type Trade struct {
	ID                int64     `db:"id"`
	Identificator     string    `db:"identificator"`
	ExecutionID       string    `db:"execution_id"`
	OrderID           int64     `db:"order_id"`
	OrderCompatibleID int64     `db:"order_compatible_id"`
	UserIDActive      string    `db:"user_id_active"`
	UserIDPassive     string    `db:"user_id_passive"`
	Side              string    `db:"side"`
	Pair              string    `db:"pair"`
	AmountExecuted    string    `db:"amount_executed"`
	PriceUnity        string    `db:"price_unity"`
	TimeExecuted      time.Time `db:"time_executed"`
}

func (t Trade) ToDomain() (models.Trade, error) {
	amountExecuted, err := parseDecimal("amount_executed", t.AmountExecuted)
	if err != nil {
		return models.Trade{}, err
	}
	priceUnity, err := parseDecimal("price_unity", t.PriceUnity)
	if err != nil {
		return models.Trade{}, err
	}

	return models.Trade{
		ID:                t.ID,
		Identificator:     t.Identificator,
		ExecutionID:       t.ExecutionID,
		OrderID:           t.OrderID,
		OrderCompatibleID: t.OrderCompatibleID,
		UserIDActive:      t.UserIDActive,
		UserIDPassive:     t.UserIDPassive,
		Side:              models.Side(t.Side),
		Pair:              models.Pair(t.Pair),
		AmountExecuted:    amountExecuted,
		PriceUnity:        priceUnity,
		TimeExecuted:      t.TimeExecuted,
	}, nil
}
