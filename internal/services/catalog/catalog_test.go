package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bitmercado/ms-orders/internal/domain/models"
	repositoryErrors "github.com/bitmercado/ms-orders/internal/errors/repository"
	serviceErrors "github.com/bitmercado/ms-orders/internal/errors/service"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Pairs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockStore) Coins(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockStore) PairConfig(ctx context.Context, catalogKey string) (models.PairConfig, error) {
	args := m.Called(ctx, catalogKey)
	return args.Get(0).(models.PairConfig), args.Error(1)
}

func (m *mockStore) CoinConfig(ctx context.Context, coin string) (models.CoinConfig, error) {
	args := m.Called(ctx, coin)
	return args.Get(0).(models.CoinConfig), args.Error(1)
}

func (m *mockStore) OrderLimit(ctx context.Context) (models.OrderLimit, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.OrderLimit), args.Error(1)
}

func TestValidatePair(t *testing.T) {
	pair := models.Pair("BTC/BRL")

	tests := []struct {
		name        string
		config      models.PairConfig
		storeErr    error
		expectedErr error
	}{
		{
			name:   "active pair passes",
			config: models.PairConfig{Pair: "BTC/BRL", Active: true},
		},
		{
			name:        "inactive pair rejected",
			config:      models.PairConfig{Pair: "BTC/BRL"},
			expectedErr: serviceErrors.ErrPairUnavailable,
		},
		{
			name:        "unknown pair rejected",
			storeErr:    repositoryErrors.ErrCatalogKeyNotFound,
			expectedErr: serviceErrors.ErrPairUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{}
			store.On("PairConfig", mock.Anything, "btc_brl").Return(tt.config, tt.storeErr)

			err := NewService(store).ValidatePair(context.Background(), pair)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidateCoinStoreFailureIsCollaboratorError(t *testing.T) {
	store := &mockStore{}
	store.On("CoinConfig", mock.Anything, "btc").
		Return(models.CoinConfig{}, errors.New("connection refused"))

	err := NewService(store).ValidateCoin(context.Background(), "btc")
	require.Error(t, err)

	var collabErr *serviceErrors.CollaboratorError
	require.ErrorAs(t, err, &collabErr)
	assert.Equal(t, "catalog", collabErr.Collaborator)
}

func TestValidateCoinActive(t *testing.T) {
	store := &mockStore{}
	store.On("CoinConfig", mock.Anything, "btc").
		Return(models.CoinConfig{Coin: "btc", Active: true}, nil)

	require.NoError(t, NewService(store).ValidateCoin(context.Background(), "btc"))
}
