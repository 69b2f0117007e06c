package fees

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bitmercado/ms-orders/internal/domain/models"
	repositoryErrors "github.com/bitmercado/ms-orders/internal/errors/repository"
)

type mockCustomFeeGetter struct {
	mock.Mock
}

func (m *mockCustomFeeGetter) GetCustomFee(ctx context.Context, userID int64, pair models.Pair) (models.CustomFee, error) {
	args := m.Called(ctx, userID, pair)
	return args.Get(0).(models.CustomFee), args.Error(1)
}

type mockDefaultFeeGetter struct {
	mock.Mock
}

func (m *mockDefaultFeeGetter) GetLatestDefaultFee(ctx context.Context, pair models.Pair) (models.DefaultFee, error) {
	args := m.Called(ctx, pair)
	return args.Get(0).(models.DefaultFee), args.Error(1)
}

func TestResolve(t *testing.T) {
	order := models.Order{
		UserID: 42,
		Pair:   models.Pair("BTC/BRL"),
	}

	customMaker := decimal.RequireFromString("0.1")
	defaultFee := models.DefaultFee{
		Maker: decimal.RequireFromString("0.25"),
		Taker: decimal.RequireFromString("0.5"),
	}

	tests := []struct {
		name       string
		maker      bool
		setupMocks func(custom *mockCustomFeeGetter, defaults *mockDefaultFeeGetter)
		expected   decimal.Decimal
		expectErr  bool
	}{
		{
			name:  "custom override wins",
			maker: true,
			setupMocks: func(custom *mockCustomFeeGetter, defaults *mockDefaultFeeGetter) {
				custom.On("GetCustomFee", mock.Anything, int64(42), order.Pair).
					Return(models.CustomFee{Maker: &customMaker}, nil)
			},
			expected: customMaker,
		},
		{
			name:  "custom row with unset taker falls back to default",
			maker: false,
			setupMocks: func(custom *mockCustomFeeGetter, defaults *mockDefaultFeeGetter) {
				custom.On("GetCustomFee", mock.Anything, int64(42), order.Pair).
					Return(models.CustomFee{Maker: &customMaker}, nil)
				defaults.On("GetLatestDefaultFee", mock.Anything, order.Pair).
					Return(defaultFee, nil)
			},
			expected: defaultFee.Taker,
		},
		{
			name:  "no custom row falls back to default maker",
			maker: true,
			setupMocks: func(custom *mockCustomFeeGetter, defaults *mockDefaultFeeGetter) {
				custom.On("GetCustomFee", mock.Anything, int64(42), order.Pair).
					Return(models.CustomFee{}, repositoryErrors.ErrCustomFeeNotFound)
				defaults.On("GetLatestDefaultFee", mock.Anything, order.Pair).
					Return(defaultFee, nil)
			},
			expected: defaultFee.Maker,
		},
		{
			name:  "custom store failure propagates",
			maker: true,
			setupMocks: func(custom *mockCustomFeeGetter, defaults *mockDefaultFeeGetter) {
				custom.On("GetCustomFee", mock.Anything, int64(42), order.Pair).
					Return(models.CustomFee{}, errors.New("connection reset"))
			},
			expectErr: true,
		},
		{
			name:  "missing default schedule propagates",
			maker: false,
			setupMocks: func(custom *mockCustomFeeGetter, defaults *mockDefaultFeeGetter) {
				custom.On("GetCustomFee", mock.Anything, int64(42), order.Pair).
					Return(models.CustomFee{}, repositoryErrors.ErrCustomFeeNotFound)
				defaults.On("GetLatestDefaultFee", mock.Anything, order.Pair).
					Return(models.DefaultFee{}, repositoryErrors.ErrDefaultFeeNotFound)
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			custom := &mockCustomFeeGetter{}
			defaults := &mockDefaultFeeGetter{}
			tt.setupMocks(custom, defaults)

			resolver := NewResolver(custom, defaults)
			percent, err := resolver.Resolve(context.Background(), order, tt.maker)

			if tt.expectErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(percent),
				"expected %s, got %s", tt.expected, percent)
			custom.AssertExpectations(t)
			defaults.AssertExpectations(t)
		})
	}
}
