// Package execution implements the matching loop and the settlement
// procedure: given an open order it finds price-compatible counter-orders
// and settles fills against them one locked step at a time.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bitmercado/ms-orders/internal/domain/models"
	repositoryErrors "github.com/bitmercado/ms-orders/internal/errors/repository"
	serviceErrors "github.com/bitmercado/ms-orders/internal/errors/service"
	"github.com/bitmercado/ms-orders/internal/logger"
	"github.com/bitmercado/ms-orders/internal/metrics"
)

type OrderStore interface {
	GetOpenByIdentificator(ctx context.Context, identificator string) (models.Order, error)
	FindCompatible(ctx context.Context, incoming models.Order) ([]models.Order, error)
	Lock(ctx context.Context, orderID int64) error
	Unlock(ctx context.Context, orderID int64) error
}

type SettlementCommitter interface {
	Commit(ctx context.Context, batch models.SettlementBatch) (int64, int64, error)
}

type UserGetter interface {
	GetByID(ctx context.Context, userID int64) (models.User, error)
}

type FeeResolver interface {
	Resolve(ctx context.Context, order models.Order, maker bool) (decimal.Decimal, error)
}

type CatalogValidator interface {
	ValidatePair(ctx context.Context, pair models.Pair) error
	ValidateCoin(ctx context.Context, coin string) error
}

type AccountFreezer interface {
	BlockAccount(ctx context.Context, userID int64) error
}

type Notifier interface {
	OrderExecuted(userID int64, notice OrderExecutedNotice)
}

type BridgeInserter interface {
	Insert(ctx context.Context, executedID int64, pair models.Pair, at time.Time) error
}

// OrderExecutedNotice is the payload handed to the notifier after a fill.
// The notifier enriches it with catalog data before dispatch.
type OrderExecutedNotice struct {
	Side               models.Side
	Pair               models.Pair
	OrderIdentificator string
	Amount             decimal.Decimal
	Price              decimal.Decimal
	Total              decimal.Decimal
	TimeExecuted       time.Time
}

// ExecutedLeg is one order's state after a settlement step, reported back
// to the caller for both legs of every fill.
type ExecutedLeg struct {
	Done               bool            `json:"done"`
	OrderIdentificator string          `json:"orderIdentificator"`
	Amount             decimal.Decimal `json:"amount"`
}

// Result is the fill summary of one matching loop invocation.
type Result struct {
	UserIDIdentified string        `json:"userIdIdentified"`
	UserIDCompatible string        `json:"userIdCompatible"`
	OrdersExecuted   []ExecutedLeg `json:"ordersExecuted"`
}

type Config struct {
	QuoteDecimals  int32
	AmountDecimals int32
}

type Service struct {
	orders     OrderStore
	settlement SettlementCommitter
	users      UserGetter
	fees       FeeResolver
	catalog    CatalogValidator
	accounts   AccountFreezer
	notifier   Notifier
	bridge     BridgeInserter
	prices     PriceSource
	reconciler *Reconciler
	cfg        Config
	now        func() time.Time
}

func NewService(
	orders OrderStore,
	settlement SettlementCommitter,
	users UserGetter,
	fees FeeResolver,
	catalog CatalogValidator,
	accounts AccountFreezer,
	notifier Notifier,
	bridge BridgeInserter,
	prices PriceSource,
	reconciler *Reconciler,
	cfg Config,
) *Service {
	return &Service{
		orders:     orders,
		settlement: settlement,
		users:      users,
		fees:       fees,
		catalog:    catalog,
		accounts:   accounts,
		notifier:   notifier,
		bridge:     bridge,
		prices:     prices,
		reconciler: reconciler,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Run is the matching loop. It loads the incoming order, walks its
// price-compatible counter-orders in priority order and settles one step
// per pairing until the incoming order is done or candidates run out.
// Any settlement failure triggers best-effort freezes of both owners and
// surfaces to the caller.
func (s *Service) Run(ctx context.Context, orderIdentificator string) (Result, error) {
	const op = "execution.Service.Run"

	incoming, candidates, err := s.searchOrders(ctx, orderIdentificator)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(candidates) == 0 {
		return Result{}, fmt.Errorf("%s: %w", op, serviceErrors.ErrNoCompatibleOrder)
	}

	userIncoming, err := s.users.GetByID(ctx, incoming.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}
	userCompatible, err := s.users.GetByID(ctx, candidates[0].UserID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	var legs []ExecutedLeg

	for i := range candidates {
		if incoming.Done {
			break
		}

		candidate := &candidates[i]

		err := s.executeStep(ctx, &incoming, candidate)
		if errors.Is(err, errCandidateLocked) {
			// Another settlement step owns this candidate; move on.
			continue
		}
		if errors.Is(err, errIncomingLocked) {
			// The incoming order is being settled elsewhere; stop here.
			break
		}
		if err != nil {
			s.freezeAccounts(ctx, incoming.UserID, candidate.UserID)
			metrics.SettlementFailures.Inc()

			logger.Error(ctx, "order execution failed",
				zap.String("order", incoming.Identificator),
				zap.Error(err),
			)

			return Result{}, fmt.Errorf("%s: %w", op, &serviceErrors.SettlementError{Err: err})
		}

		legs = append(legs,
			ExecutedLeg{
				Done:               candidate.Done,
				OrderIdentificator: candidate.Identificator,
				Amount:             candidate.Amount,
			},
			ExecutedLeg{
				Done:               incoming.Done,
				OrderIdentificator: incoming.Identificator,
				Amount:             incoming.Amount,
			},
		)
	}

	logger.Info(ctx, "order execution finished",
		zap.String("order", incoming.Identificator),
		zap.Int("fills", len(legs)/2),
	)

	return Result{
		UserIDIdentified: userIncoming.UID,
		UserIDCompatible: userCompatible.UID,
		OrdersExecuted:   legs,
	}, nil
}

// searchOrders loads the incoming order and its compatible counter-orders.
// A missing, done, deleted or locked incoming order yields an empty result;
// so does a failed first tradability check. The second coin check raises
// instead of swallowing.
func (s *Service) searchOrders(ctx context.Context, identificator string) (models.Order, []models.Order, error) {
	const op = "execution.Service.searchOrders"

	incoming, err := s.orders.GetOpenByIdentificator(ctx, identificator)
	if errors.Is(err, repositoryErrors.ErrOrderNotFound) {
		return models.Order{}, nil, nil
	}
	if err != nil {
		return models.Order{}, nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.catalog.ValidatePair(ctx, incoming.Pair); err != nil {
		return models.Order{}, nil, nil
	}
	if err := s.catalog.ValidateCoin(ctx, incoming.Pair.Target()); err != nil {
		return models.Order{}, nil, nil
	}
	if err := s.catalog.ValidateCoin(ctx, incoming.Pair.Base()); err != nil {
		return models.Order{}, nil, nil
	}

	candidates, err := s.orders.FindCompatible(ctx, incoming)
	if err != nil {
		return models.Order{}, nil, fmt.Errorf("%s: %w", op, err)
	}

	// Second tradability pass. Unlike the first it raises; both outcomes
	// are part of the operation's contract.
	if err := s.catalog.ValidateCoin(ctx, incoming.Pair.Target()); err != nil {
		return models.Order{}, nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.catalog.ValidateCoin(ctx, incoming.Pair.Base()); err != nil {
		return models.Order{}, nil, fmt.Errorf("%s: %w", op, err)
	}

	return incoming, candidates, nil
}

// freezeAccounts issues advisory freeze requests for both parties. Freeze
// failures are logged and swallowed, never escalated.
func (s *Service) freezeAccounts(ctx context.Context, userIDs ...int64) {
	for _, userID := range userIDs {
		metrics.FreezeRequests.Inc()
		if err := s.accounts.BlockAccount(ctx, userID); err != nil {
			logger.Warn(ctx, "account freeze request failed",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
		}
	}
}
