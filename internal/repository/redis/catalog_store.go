// Package redis reads the coin/pair catalog maintained by the catalog
// service. Key names (including the historical "avaiable_*" spelling) are a
// shared deployment contract and must not be corrected here alone.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bitmercado/ms-orders/internal/domain/models"
	repositoryErrors "github.com/bitmercado/ms-orders/internal/errors/repository"
)

const (
	pairsKey      = "avaiable_pairs"
	coinsKey      = "avaiable_coins"
	coinKeyPrefix = "coin_"
	orderLimitKey = "order_limit"
)

type Client interface {
	ListRange(ctx context.Context, key string) ([]string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

type CatalogStore struct {
	client Client
}

func NewCatalogStore(client Client) *CatalogStore {
	return &CatalogStore{client: client}
}

// Pairs lists the catalog keys ("btc_brl") of every known pair.
func (s *CatalogStore) Pairs(ctx context.Context) ([]string, error) {
	const op = "redis.CatalogStore.Pairs"

	pairs, err := s.client.ListRange(ctx, pairsKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return pairs, nil
}

// Coins lists the lowercase symbols of every known coin.
func (s *CatalogStore) Coins(ctx context.Context) ([]string, error) {
	const op = "redis.CatalogStore.Coins"

	coins, err := s.client.ListRange(ctx, coinsKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return coins, nil
}

// PairConfig reads one pair's hash, keyed by its catalog key.
func (s *CatalogStore) PairConfig(ctx context.Context, catalogKey string) (models.PairConfig, error) {
	const op = "redis.CatalogStore.PairConfig"

	fields, err := s.client.HGetAll(ctx, strings.ToLower(catalogKey))
	if err != nil {
		return models.PairConfig{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(fields) == 0 {
		return models.PairConfig{}, fmt.Errorf("%s: %w", op, repositoryErrors.ErrCatalogKeyNotFound)
	}

	return models.PairConfig{
		Pair:   fields["pair"],
		Active: isActive(fields["active"]),
	}, nil
}

// CoinConfig reads one coin's hash.
func (s *CatalogStore) CoinConfig(ctx context.Context, coin string) (models.CoinConfig, error) {
	const op = "redis.CatalogStore.CoinConfig"

	fields, err := s.client.HGetAll(ctx, coinKeyPrefix+strings.ToLower(coin))
	if err != nil {
		return models.CoinConfig{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(fields) == 0 {
		return models.CoinConfig{}, fmt.Errorf("%s: %w", op, repositoryErrors.ErrCatalogKeyNotFound)
	}

	return models.CoinConfig{
		Coin:           fields["coin"],
		Name:           fields["name"],
		CurrencySymbol: fields["currency_symbol"],
		Active:         isActive(fields["active"]),
	}, nil
}

// OrderLimit reads the per-deployment order bounds; empty map when unset.
func (s *CatalogStore) OrderLimit(ctx context.Context) (models.OrderLimit, error) {
	const op = "redis.CatalogStore.OrderLimit"

	fields, err := s.client.HGetAll(ctx, orderLimitKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return models.OrderLimit(fields), nil
}

// isActive follows the catalog convention of numeric flags ("0"/"1").
func isActive(raw string) bool {
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return false
	}
	return value != 0
}
