// Package fees resolves the maker/taker fee percentage for one fill leg.
package fees

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bitmercado/ms-orders/internal/domain/models"
	repositoryErrors "github.com/bitmercado/ms-orders/internal/errors/repository"
)

type CustomFeeGetter interface {
	GetCustomFee(ctx context.Context, userID int64, pair models.Pair) (models.CustomFee, error)
}

type DefaultFeeGetter interface {
	GetLatestDefaultFee(ctx context.Context, pair models.Pair) (models.DefaultFee, error)
}

type Resolver struct {
	custom   CustomFeeGetter
	defaults DefaultFeeGetter
}

func NewResolver(custom CustomFeeGetter, defaults DefaultFeeGetter) *Resolver {
	return &Resolver{
		custom:   custom,
		defaults: defaults,
	}
}

// Resolve returns the fee percentage for the order's owner on this pair.
// A per-user override wins when present and its maker/taker field is set;
// anything else falls back to the latest default schedule.
func (r *Resolver) Resolve(ctx context.Context, order models.Order, maker bool) (decimal.Decimal, error) {
	const op = "fees.Resolver.Resolve"

	custom, err := r.custom.GetCustomFee(ctx, order.UserID, order.Pair)
	if err != nil && !errors.Is(err, repositoryErrors.ErrCustomFeeNotFound) {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	if err == nil {
		if percent := pick(custom.Maker, custom.Taker, maker); percent != nil {
			return *percent, nil
		}
	}

	defaultFee, err := r.defaults.GetLatestDefaultFee(ctx, order.Pair)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	if maker {
		return defaultFee.Maker, nil
	}
	return defaultFee.Taker, nil
}

func pick(maker, taker *decimal.Decimal, isMaker bool) *decimal.Decimal {
	if isMaker {
		return maker
	}
	return taker
}
