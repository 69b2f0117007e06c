package execution

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceSource supplies the divisor the engine normalizes limit prices with.
// The production implementation reproduces the legacy input — the sum of
// every open order price across the whole book, all pairs — which is kept
// behind this interface so its scope can be corrected independently of the
// matching algorithm once intended semantics are confirmed.
type PriceSource interface {
	Divisor(ctx context.Context) (decimal.Decimal, error)
}

type OpenPricesLister interface {
	OpenPrices(ctx context.Context) ([]decimal.Decimal, error)
}

type BookPriceSource struct {
	prices OpenPricesLister
}

func NewBookPriceSource(prices OpenPricesLister) *BookPriceSource {
	return &BookPriceSource{prices: prices}
}

// Divisor sums the limit prices of all open unlocked orders. An empty book
// yields 1 so the normalization degrades to the raw limit price instead of
// dividing by zero.
func (s *BookPriceSource) Divisor(ctx context.Context) (decimal.Decimal, error) {
	const op = "execution.BookPriceSource.Divisor"

	prices, err := s.prices.OpenPrices(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	sum := decimal.Zero
	for _, price := range prices {
		sum = sum.Add(price)
	}
	if sum.IsZero() {
		return decimal.NewFromInt(1), nil
	}

	return sum, nil
}
