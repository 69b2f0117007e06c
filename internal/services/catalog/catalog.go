// Package catalog validates pairs and coins against the live catalog and
// serves catalog projections to the transport.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitmercado/ms-orders/internal/domain/models"
	repositoryErrors "github.com/bitmercado/ms-orders/internal/errors/repository"
	serviceErrors "github.com/bitmercado/ms-orders/internal/errors/service"
)

type Store interface {
	Pairs(ctx context.Context) ([]string, error)
	Coins(ctx context.Context) ([]string, error)
	PairConfig(ctx context.Context, catalogKey string) (models.PairConfig, error)
	CoinConfig(ctx context.Context, coin string) (models.CoinConfig, error)
	OrderLimit(ctx context.Context) (models.OrderLimit, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Pairs(ctx context.Context) ([]string, error) {
	const op = "catalog.Service.Pairs"

	pairs, err := s.store.Pairs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, s.asCollaborator(err))
	}
	return pairs, nil
}

func (s *Service) Coins(ctx context.Context) ([]string, error) {
	const op = "catalog.Service.Coins"

	coins, err := s.store.Coins(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, s.asCollaborator(err))
	}
	return coins, nil
}

func (s *Service) OrderLimit(ctx context.Context) (models.OrderLimit, error) {
	const op = "catalog.Service.OrderLimit"

	limit, err := s.store.OrderLimit(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, s.asCollaborator(err))
	}
	return limit, nil
}

// PairConfigs returns the catalog record of every listed pair.
func (s *Service) PairConfigs(ctx context.Context) ([]models.PairConfig, error) {
	const op = "catalog.Service.PairConfigs"

	keys, err := s.store.Pairs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, s.asCollaborator(err))
	}

	configs := make([]models.PairConfig, 0, len(keys))
	for _, key := range keys {
		cfg, err := s.store.PairConfig(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, s.asCollaborator(err))
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// CoinConfigs returns the catalog record of every listed coin.
func (s *Service) CoinConfigs(ctx context.Context) ([]models.CoinConfig, error) {
	const op = "catalog.Service.CoinConfigs"

	coins, err := s.store.Coins(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, s.asCollaborator(err))
	}

	configs := make([]models.CoinConfig, 0, len(coins))
	for _, coin := range coins {
		cfg, err := s.store.CoinConfig(ctx, coin)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, s.asCollaborator(err))
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// PairInfo returns the catalog record of one pair without availability
// judgement; callers wanting a verdict use ValidatePair.
func (s *Service) PairInfo(ctx context.Context, pair models.Pair) (models.PairConfig, error) {
	const op = "catalog.Service.PairInfo"

	cfg, err := s.store.PairConfig(ctx, pair.CatalogKey())
	if errors.Is(err, repositoryErrors.ErrCatalogKeyNotFound) {
		return models.PairConfig{}, fmt.Errorf("%s: %w", op, serviceErrors.ErrPairUnavailable)
	}
	if err != nil {
		return models.PairConfig{}, fmt.Errorf("%s: %w", op, s.asCollaborator(err))
	}
	return cfg, nil
}

// CoinInfo returns the catalog record of one coin.
func (s *Service) CoinInfo(ctx context.Context, coin string) (models.CoinConfig, error) {
	const op = "catalog.Service.CoinInfo"

	cfg, err := s.store.CoinConfig(ctx, coin)
	if errors.Is(err, repositoryErrors.ErrCatalogKeyNotFound) {
		return models.CoinConfig{}, fmt.Errorf("%s: %w", op, serviceErrors.ErrCoinUnavailable)
	}
	if err != nil {
		return models.CoinConfig{}, fmt.Errorf("%s: %w", op, s.asCollaborator(err))
	}
	return cfg, nil
}

// ValidatePair confirms the pair is listed and flagged active.
func (s *Service) ValidatePair(ctx context.Context, pair models.Pair) error {
	const op = "catalog.Service.ValidatePair"

	cfg, err := s.PairInfo(ctx, pair)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !cfg.Active {
		return fmt.Errorf("%s: %w", op, serviceErrors.ErrPairUnavailable)
	}
	return nil
}

// ValidateCoin confirms the coin is listed and flagged active.
func (s *Service) ValidateCoin(ctx context.Context, coin string) error {
	const op = "catalog.Service.ValidateCoin"

	cfg, err := s.CoinInfo(ctx, coin)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !cfg.Active {
		return fmt.Errorf("%s: %w", op, serviceErrors.ErrCoinUnavailable)
	}
	return nil
}

func (s *Service) asCollaborator(err error) error {
	return &serviceErrors.CollaboratorError{Collaborator: "catalog", Err: err}
}
