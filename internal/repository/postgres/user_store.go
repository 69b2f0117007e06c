package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bitmercado/ms-orders/internal/domain/models"
	repositoryErrors "github.com/bitmercado/ms-orders/internal/errors/repository"
)

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func (s *UserStore) GetByID(ctx context.Context, userID int64) (models.User, error) {
	const op = "postgres.UserStore.GetByID"

	var user models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, uid, blocked, internal_account FROM users WHERE id = $1`,
		userID,
	).Scan(&user.ID, &user.UID, &user.Blocked, &user.InternalAccount)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, fmt.Errorf("%s: %w", op, repositoryErrors.ErrUserNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("%s: query: %w", op, err)
	}

	return user, nil
}
