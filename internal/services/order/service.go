// Package order handles order placement and cancellation plus the public
// projections of the book, the tape and the ticker.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bitmercado/ms-orders/internal/domain/models"
	repositoryErrors "github.com/bitmercado/ms-orders/internal/errors/repository"
	serviceErrors "github.com/bitmercado/ms-orders/internal/errors/service"
	"github.com/bitmercado/ms-orders/internal/logger"
	"github.com/bitmercado/ms-orders/internal/metrics"
)

type OrderStore interface {
	Create(ctx context.Context, order models.Order, retention models.LedgerEntry) (models.Order, error)
	GetCancellable(ctx context.Context, identificator string) (models.Order, error)
	Cancel(ctx context.Context, orderID int64, timeDel time.Time, entries []models.LedgerEntry) error
	ListByUser(ctx context.Context, userID int64) ([]models.Order, error)
	BookEntries(ctx context.Context, pair models.Pair, side models.Side) ([]models.BookEntry, error)
	Book(ctx context.Context, pair models.Pair, side models.Side, limit int) ([]models.Order, error)
	BestPrices(ctx context.Context, pair models.Pair) (decimal.Decimal, decimal.Decimal, error)
}

type UserGetter interface {
	GetByID(ctx context.Context, userID int64) (models.User, error)
}

type CatalogValidator interface {
	ValidatePair(ctx context.Context, pair models.Pair) error
	ValidateCoin(ctx context.Context, coin string) error
	Pairs(ctx context.Context) ([]string, error)
}

type BalanceGetter interface {
	GetUserBalance(ctx context.Context, userID int64, currency string) (decimal.Decimal, error)
}

type BuyReconciler interface {
	ReconcileBuy(ctx context.Context, order models.Order) error
}

type MarketData interface {
	RecentTrades(ctx context.Context, pair models.Pair, limit int) ([]models.Trade, error)
	Stats24h(ctx context.Context, pair models.Pair) (models.ExecutedStats, error)
}

// PlaceOrderInput is a placement request after transport decoding.
type PlaceOrderInput struct {
	UserID        int64
	Pair          models.Pair
	Side          models.Side
	Amount        decimal.Decimal
	Price         decimal.Decimal
	BridgeFrom    *string
	BridgePrice   *decimal.Decimal
	BridgeOrderID *string
	OurOrder      bool
}

// PlacedOrder is the acknowledgement returned to the gateway.
type PlacedOrder struct {
	OrderIdentificator string          `json:"orderIdentificator"`
	UserUID            string          `json:"user_id"`
	Pair               models.Pair     `json:"pair"`
	Side               models.Side     `json:"side"`
	Amount             decimal.Decimal `json:"amount"`
	Price              decimal.Decimal `json:"price"`
}

type Config struct {
	MinOrderTotal       decimal.Decimal
	QuoteDecimals       int32
	AmountDecimals      int32
	StrictQuoteDecimals bool
}

type Service struct {
	orders     OrderStore
	users      UserGetter
	catalog    CatalogValidator
	balances   BalanceGetter
	reconciler BuyReconciler
	market     MarketData
	cfg        Config
	now        func() time.Time
}

func NewService(
	orders OrderStore,
	users UserGetter,
	catalog CatalogValidator,
	balances BalanceGetter,
	reconciler BuyReconciler,
	market MarketData,
	cfg Config,
) *Service {
	return &Service{
		orders:     orders,
		users:      users,
		catalog:    catalog,
		balances:   balances,
		reconciler: reconciler,
		market:     market,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Place validates a placement request, checks the owner's balance with the
// account service and writes the order together with its escrow entry.
func (s *Service) Place(ctx context.Context, in PlaceOrderInput) (PlacedOrder, error) {
	const op = "order.Service.Place"

	if !in.Side.Valid() {
		return PlacedOrder{}, fmt.Errorf("%s: %w", op, serviceErrors.ErrInvalidOrderType)
	}
	if !in.Price.IsPositive() || !in.Amount.IsPositive() {
		return PlacedOrder{}, fmt.Errorf("%s: %w", op, serviceErrors.ErrInvalidPrice)
	}
	if s.cfg.StrictQuoteDecimals && !in.Price.Round(s.cfg.QuoteDecimals).Equal(in.Price) {
		return PlacedOrder{}, fmt.Errorf("%s: %w", op, serviceErrors.ErrInvalidPrice)
	}

	if err := s.validateTradable(ctx, in.Pair); err != nil {
		return PlacedOrder{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.users.GetByID(ctx, in.UserID)
	if errors.Is(err, repositoryErrors.ErrUserNotFound) {
		return PlacedOrder{}, fmt.Errorf("%s: %w", op, serviceErrors.ErrUserNotFound)
	}
	if err != nil {
		return PlacedOrder{}, fmt.Errorf("%s: %w", op, err)
	}
	if user.Blocked {
		return PlacedOrder{}, fmt.Errorf("%s: %w", op, serviceErrors.ErrAccountBlocked)
	}

	total := in.Amount.Mul(in.Price).Round(s.cfg.QuoteDecimals)
	if total.LessThan(s.cfg.MinOrderTotal) {
		return PlacedOrder{}, fmt.Errorf("%s: %w", op, serviceErrors.ErrBelowMinimum)
	}

	// Buys escrow the quote asset, sells the target asset.
	balanceCurrency := strings.ToLower(in.Pair.Base())
	required := total
	if in.Side == models.SideSell {
		balanceCurrency = strings.ToLower(in.Pair.Target())
		required = in.Amount
	}

	balance, err := s.balances.GetUserBalance(ctx, in.UserID, balanceCurrency)
	if err != nil {
		return PlacedOrder{}, fmt.Errorf("%s: %w", op, err)
	}
	if balance.LessThan(required) {
		return PlacedOrder{}, fmt.Errorf("%s: %w", op, serviceErrors.ErrInsufficientFunds)
	}

	order := models.Order{
		Identificator: uuid.NewString(),
		UserID:        user.ID,
		Side:          in.Side,
		Pair:          in.Pair,
		PriceUnity:    in.Price,
		Amount:        in.Amount,
		AmountSource:  in.Amount,
		Total:         total,
		Time:          s.now(),
		BridgeFrom:    in.BridgeFrom,
		BridgePrice:   in.BridgePrice,
		BridgeOrderID: in.BridgeOrderID,
		OurOrder:      in.OurOrder,
	}

	retention := models.LedgerEntry{
		UserID:      user.ID,
		Coin:        balanceCurrency,
		Amount:      total.Neg(),
		IsRetention: true,
		Type:        models.EntryOrderCreatedBuy,
		Time:        order.Time,
	}
	if in.Side == models.SideSell {
		retention.Amount = in.Amount.Round(s.cfg.AmountDecimals).Neg()
		retention.Type = models.EntryOrderCreatedSell
	}

	saved, err := s.orders.Create(ctx, order, retention)
	if err != nil {
		return PlacedOrder{}, fmt.Errorf("%s: %w", op, err)
	}

	metrics.OrdersPlaced.WithLabelValues(string(in.Side)).Inc()
	logger.Info(ctx, "order placed",
		zap.String("order", saved.Identificator),
		zap.String("side", string(saved.Side)),
		zap.String("pair", string(saved.Pair)),
	)

	return PlacedOrder{
		OrderIdentificator: saved.Identificator,
		UserUID:            user.UID,
		Pair:               saved.Pair,
		Side:               saved.Side,
		Amount:             saved.Amount,
		Price:              saved.PriceUnity,
	}, nil
}

// Cancel cancels an open unlocked order owned by the caller and posts the
// escrow reversal. A locked order is reported as not found so callers retry
// after the running settlement step releases it.
func (s *Service) Cancel(ctx context.Context, userID int64, identificator string) (PlacedOrder, error) {
	const op = "order.Service.Cancel"

	order, err := s.orders.GetCancellable(ctx, identificator)
	if errors.Is(err, repositoryErrors.ErrOrderNotFound) {
		return PlacedOrder{}, fmt.Errorf("%s: %w", op, serviceErrors.ErrOrderNotFound)
	}
	if err != nil {
		return PlacedOrder{}, fmt.Errorf("%s: %w", op, err)
	}

	if order.UserID != userID {
		return PlacedOrder{}, fmt.Errorf("%s: %w", op, serviceErrors.ErrNotOrderOwner)
	}

	user, err := s.users.GetByID(ctx, order.UserID)
	if err != nil {
		return PlacedOrder{}, fmt.Errorf("%s: %w", op, err)
	}
	if user.Blocked {
		return PlacedOrder{}, fmt.Errorf("%s: %w", op, serviceErrors.ErrAccountBlocked)
	}

	if err := s.validateTradable(ctx, order.Pair); err != nil {
		return PlacedOrder{}, fmt.Errorf("%s: %w", op, err)
	}

	// The reversal releases what is still escrowed: remaining value for
	// buys, remaining quantity for sells.
	reversal := models.LedgerEntry{
		UserID:      order.UserID,
		ItemID:      order.ID,
		Coin:        strings.ToLower(order.Pair.Base()),
		Amount:      order.Amount.Mul(order.PriceUnity).Round(s.cfg.QuoteDecimals),
		IsRetention: true,
		Type:        models.EntryOrderDeleted,
		Time:        s.now(),
	}
	if order.Side == models.SideSell {
		reversal.Coin = strings.ToLower(order.Pair.Target())
		reversal.Amount = order.Amount.Round(s.cfg.AmountDecimals)
	}

	if err := s.orders.Cancel(ctx, order.ID, reversal.Time, []models.LedgerEntry{reversal}); err != nil {
		if errors.Is(err, repositoryErrors.ErrOrderNotFound) {
			return PlacedOrder{}, fmt.Errorf("%s: %w", op, serviceErrors.ErrOrderNotFound)
		}
		return PlacedOrder{}, fmt.Errorf("%s: %w", op, err)
	}

	if order.Side == models.SideBuy {
		if err := s.reconciler.ReconcileBuy(ctx, order); err != nil {
			logger.Warn(ctx, "cancel reconciliation failed",
				zap.String("order", order.Identificator),
				zap.Error(err),
			)
		}
	}

	metrics.OrdersCancelled.Inc()
	logger.Info(ctx, "order cancelled", zap.String("order", order.Identificator))

	return PlacedOrder{
		OrderIdentificator: order.Identificator,
		UserUID:            user.UID,
		Pair:               order.Pair,
		Side:               order.Side,
		Amount:             order.Amount,
		Price:              order.PriceUnity,
	}, nil
}

// validateTradable checks the pair and both of its assets in the catalog.
func (s *Service) validateTradable(ctx context.Context, pair models.Pair) error {
	if err := s.catalog.ValidatePair(ctx, pair); err != nil {
		return err
	}
	if err := s.catalog.ValidateCoin(ctx, pair.Target()); err != nil {
		return err
	}
	return s.catalog.ValidateCoin(ctx, pair.Base())
}
