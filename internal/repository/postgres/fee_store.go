package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bitmercado/ms-orders/internal/domain/models"
	repositoryErrors "github.com/bitmercado/ms-orders/internal/errors/repository"
)

type FeeStore struct {
	pool *pgxpool.Pool
}

func NewFeeStore(pool *pgxpool.Pool) *FeeStore {
	return &FeeStore{pool: pool}
}

// GetCustomFee returns the per-user override for one pair.
func (s *FeeStore) GetCustomFee(ctx context.Context, userID int64, pair models.Pair) (models.CustomFee, error) {
	const op = "postgres.FeeStore.GetCustomFee"

	var (
		fee          models.CustomFee
		maker, taker *string
		pairRaw      string
	)

	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, pair, maker, taker, time_updated
		 FROM custom_fees
		 WHERE user_id = $1 AND pair = $2
		 ORDER BY id DESC
		 LIMIT 1`,
		userID, string(pair),
	).Scan(&fee.ID, &fee.UserID, &pairRaw, &maker, &taker, &fee.TimeUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.CustomFee{}, fmt.Errorf("%s: %w", op, repositoryErrors.ErrCustomFeeNotFound)
	}
	if err != nil {
		return models.CustomFee{}, fmt.Errorf("%s: query: %w", op, err)
	}

	fee.Pair = models.Pair(pairRaw)
	if fee.Maker, err = parseOptionalPercent(maker); err != nil {
		return models.CustomFee{}, fmt.Errorf("%s: maker: %w", op, err)
	}
	if fee.Taker, err = parseOptionalPercent(taker); err != nil {
		return models.CustomFee{}, fmt.Errorf("%s: taker: %w", op, err)
	}

	return fee, nil
}

// GetLatestDefaultFee returns the global schedule for one pair, most recent
// row by id.
func (s *FeeStore) GetLatestDefaultFee(ctx context.Context, pair models.Pair) (models.DefaultFee, error) {
	const op = "postgres.FeeStore.GetLatestDefaultFee"

	var (
		fee          models.DefaultFee
		maker, taker string
		pairRaw      string
		timeUpdated  time.Time
	)

	err := s.pool.QueryRow(ctx,
		`SELECT id, pair, maker, taker, time_updated
		 FROM default_fees
		 WHERE pair = $1
		 ORDER BY id DESC
		 LIMIT 1`,
		string(pair),
	).Scan(&fee.ID, &pairRaw, &maker, &taker, &timeUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DefaultFee{}, fmt.Errorf("%s: %w", op, repositoryErrors.ErrDefaultFeeNotFound)
	}
	if err != nil {
		return models.DefaultFee{}, fmt.Errorf("%s: query: %w", op, err)
	}

	fee.Pair = models.Pair(pairRaw)
	fee.TimeUpdated = timeUpdated
	if fee.Maker, err = decimal.NewFromString(maker); err != nil {
		return models.DefaultFee{}, fmt.Errorf("%s: maker: %w", op, err)
	}
	if fee.Taker, err = decimal.NewFromString(taker); err != nil {
		return models.DefaultFee{}, fmt.Errorf("%s: taker: %w", op, err)
	}

	return fee, nil
}

func parseOptionalPercent(raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	value, err := decimal.NewFromString(*raw)
	if err != nil {
		return nil, err
	}
	return &value, nil
}
