package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bitmercado/ms-orders/internal/domain/models"
	repositoryErrors "github.com/bitmercado/ms-orders/internal/errors/repository"
	serviceErrors "github.com/bitmercado/ms-orders/internal/errors/service"
	"github.com/bitmercado/ms-orders/internal/logger"
)

func TestMain(m *testing.M) {
	logger.SetNop()
	m.Run()
}

type mockOrderStore struct {
	mock.Mock
}

func (m *mockOrderStore) GetOpenByIdentificator(ctx context.Context, identificator string) (models.Order, error) {
	args := m.Called(ctx, identificator)
	return args.Get(0).(models.Order), args.Error(1)
}

func (m *mockOrderStore) FindCompatible(ctx context.Context, incoming models.Order) ([]models.Order, error) {
	args := m.Called(ctx, incoming)
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *mockOrderStore) Lock(ctx context.Context, orderID int64) error {
	return m.Called(ctx, orderID).Error(0)
}

func (m *mockOrderStore) Unlock(ctx context.Context, orderID int64) error {
	return m.Called(ctx, orderID).Error(0)
}

type mockSettlementCommitter struct {
	mock.Mock

	batches []models.SettlementBatch
}

func (m *mockSettlementCommitter) Commit(ctx context.Context, batch models.SettlementBatch) (int64, int64, error) {
	args := m.Called(ctx, batch)
	if args.Error(2) == nil {
		m.batches = append(m.batches, batch)
	}
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

type mockUserGetter struct {
	mock.Mock
}

func (m *mockUserGetter) GetByID(ctx context.Context, userID int64) (models.User, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.User), args.Error(1)
}

type mockFeeResolver struct {
	mock.Mock
}

func (m *mockFeeResolver) Resolve(ctx context.Context, order models.Order, maker bool) (decimal.Decimal, error) {
	args := m.Called(ctx, order, maker)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type mockCatalogValidator struct {
	mock.Mock
}

func (m *mockCatalogValidator) ValidatePair(ctx context.Context, pair models.Pair) error {
	return m.Called(ctx, pair).Error(0)
}

func (m *mockCatalogValidator) ValidateCoin(ctx context.Context, coin string) error {
	return m.Called(ctx, coin).Error(0)
}

type mockAccountFreezer struct {
	mock.Mock
}

func (m *mockAccountFreezer) BlockAccount(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) OrderExecuted(userID int64, notice OrderExecutedNotice) {
	m.Called(userID, notice)
}

type mockBridgeInserter struct {
	mock.Mock
}

func (m *mockBridgeInserter) Insert(ctx context.Context, executedID int64, pair models.Pair, at time.Time) error {
	return m.Called(ctx, executedID, pair, at).Error(0)
}

type mockPriceSource struct {
	mock.Mock
}

func (m *mockPriceSource) Divisor(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type mockTotalsGetter struct {
	mock.Mock
}

func (m *mockTotalsGetter) SumExecutedTotals(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type mockLedgerInserter struct {
	mock.Mock
}

func (m *mockLedgerInserter) Insert(ctx context.Context, entry models.LedgerEntry) error {
	return m.Called(ctx, entry).Error(0)
}

type fixture struct {
	orders     *mockOrderStore
	settlement *mockSettlementCommitter
	users      *mockUserGetter
	fees       *mockFeeResolver
	catalog    *mockCatalogValidator
	accounts   *mockAccountFreezer
	notifier   *mockNotifier
	bridge     *mockBridgeInserter
	prices     *mockPriceSource
	totals     *mockTotalsGetter
	ledger     *mockLedgerInserter
	service    *Service
}

func newFixture() *fixture {
	f := &fixture{
		orders:     &mockOrderStore{},
		settlement: &mockSettlementCommitter{},
		users:      &mockUserGetter{},
		fees:       &mockFeeResolver{},
		catalog:    &mockCatalogValidator{},
		accounts:   &mockAccountFreezer{},
		notifier:   &mockNotifier{},
		bridge:     &mockBridgeInserter{},
		prices:     &mockPriceSource{},
		totals:     &mockTotalsGetter{},
		ledger:     &mockLedgerInserter{},
	}
	f.service = NewService(
		f.orders,
		f.settlement,
		f.users,
		f.fees,
		f.catalog,
		f.accounts,
		f.notifier,
		f.bridge,
		f.prices,
		NewReconciler(f.totals, f.ledger, 2),
		Config{QuoteDecimals: 2, AmountDecimals: 8},
	)
	return f
}

func (f *fixture) allowCatalog() {
	f.catalog.On("ValidatePair", mock.Anything, mock.Anything).Return(nil)
	f.catalog.On("ValidateCoin", mock.Anything, mock.Anything).Return(nil)
}

func (f *fixture) allowNotifications() {
	f.notifier.On("OrderExecuted", mock.Anything, mock.Anything).Return()
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testOrder(id int64, userID int64, side models.Side, amount, price string) models.Order {
	return models.Order{
		ID:            id,
		Identificator: "ord-" + string(rune('0'+id)),
		UserID:        userID,
		Side:          side,
		Pair:          models.Pair("BTC/BRL"),
		PriceUnity:    dec(price),
		Amount:        dec(amount),
		AmountSource:  dec(amount),
	}
}

func TestRunFullFill(t *testing.T) {
	f := newFixture()
	f.allowCatalog()
	f.allowNotifications()

	incoming := testOrder(2, 10, models.SideBuy, "1", "100")
	resting := testOrder(1, 20, models.SideSell, "1", "100")

	f.orders.On("GetOpenByIdentificator", mock.Anything, incoming.Identificator).Return(incoming, nil)
	f.orders.On("FindCompatible", mock.Anything, mock.Anything).Return([]models.Order{resting}, nil)
	f.orders.On("Lock", mock.Anything, mock.Anything).Return(nil)
	f.orders.On("Unlock", mock.Anything, mock.Anything).Return(nil)

	f.users.On("GetByID", mock.Anything, int64(10)).Return(models.User{ID: 10, UID: "uid-buyer"}, nil)
	f.users.On("GetByID", mock.Anything, int64(20)).Return(models.User{ID: 20, UID: "uid-seller"}, nil)

	f.prices.On("Divisor", mock.Anything).Return(dec("1"), nil)

	// Resting order has the lower id, so it is the maker.
	f.fees.On("Resolve", mock.Anything, mock.MatchedBy(func(o models.Order) bool { return o.ID == 2 }), false).
		Return(dec("0.5"), nil)
	f.fees.On("Resolve", mock.Anything, mock.MatchedBy(func(o models.Order) bool { return o.ID == 1 }), true).
		Return(dec("0.25"), nil)

	f.settlement.On("Commit", mock.Anything, mock.Anything).Return(int64(100), int64(101), nil)

	// Buyer's order closes fully, so its escrow gets reconciled.
	f.totals.On("SumExecutedTotals", mock.Anything, int64(2)).Return(dec("100"), nil)

	result, err := f.service.Run(context.Background(), incoming.Identificator)
	require.NoError(t, err)

	assert.Equal(t, "uid-buyer", result.UserIDIdentified)
	assert.Equal(t, "uid-seller", result.UserIDCompatible)
	require.Len(t, result.OrdersExecuted, 2)
	assert.True(t, result.OrdersExecuted[0].Done)
	assert.True(t, result.OrdersExecuted[1].Done)
	assert.True(t, result.OrdersExecuted[1].Amount.IsZero())

	require.Len(t, f.settlement.batches, 1)
	batch := f.settlement.batches[0]

	assert.True(t, batch.ExecIncoming.Total.Equal(dec("100")))
	assert.True(t, batch.ExecIncoming.PriceUnity.Equal(dec("100")))
	assert.True(t, batch.ExecIncoming.IntDone)
	assert.True(t, batch.ExecCompatible.IntDone)
	assert.Equal(t, "uid-buyer", batch.Trade.UserIDActive)
	assert.Equal(t, "uid-seller", batch.Trade.UserIDPassive)
	assert.Len(t, batch.Entries, 8)
	assert.True(t, batch.UpdateIncoming.Done)
	assert.True(t, batch.UpdateCompatible.Done)
	require.NotNil(t, batch.UpdateIncoming.TimeDone)

	// 0.5% taker fee on 1 BTC, 0.25% maker fee on R$100.
	assert.True(t, batch.ExecIncoming.Fee.Equal(dec("0.005")))
	assert.True(t, batch.ExecCompatible.Fee.Equal(dec("0.25")))

	f.settlement.AssertExpectations(t)
	f.ledger.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestRunPartialWalk(t *testing.T) {
	f := newFixture()
	f.allowCatalog()
	f.allowNotifications()

	incoming := testOrder(5, 10, models.SideBuy, "1.5", "100")
	restingA := testOrder(1, 20, models.SideSell, "1", "99")
	restingB := testOrder(2, 30, models.SideSell, "1", "100")

	f.orders.On("GetOpenByIdentificator", mock.Anything, incoming.Identificator).Return(incoming, nil)
	f.orders.On("FindCompatible", mock.Anything, mock.Anything).Return([]models.Order{restingA, restingB}, nil)
	f.orders.On("Lock", mock.Anything, mock.Anything).Return(nil)
	f.orders.On("Unlock", mock.Anything, mock.Anything).Return(nil)

	for _, u := range []models.User{
		{ID: 10, UID: "uid-10"},
		{ID: 20, UID: "uid-20"},
		{ID: 30, UID: "uid-30"},
	} {
		f.users.On("GetByID", mock.Anything, u.ID).Return(u, nil)
	}

	f.prices.On("Divisor", mock.Anything).Return(dec("1"), nil)
	f.fees.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Return(dec("0"), nil)
	f.settlement.On("Commit", mock.Anything, mock.Anything).Return(int64(1), int64(2), nil)
	f.totals.On("SumExecutedTotals", mock.Anything, int64(5)).Return(dec("149"), nil)
	f.ledger.On("Insert", mock.Anything, mock.Anything).Return(nil)

	result, err := f.service.Run(context.Background(), incoming.Identificator)
	require.NoError(t, err)

	// Two steps, two legs each.
	require.Len(t, result.OrdersExecuted, 4)
	require.Len(t, f.settlement.batches, 2)

	first := f.settlement.batches[0]
	assert.True(t, first.UpdateIncoming.Amount.Equal(dec("0.5")))
	assert.False(t, first.UpdateIncoming.Done)
	assert.Nil(t, first.UpdateIncoming.TimeDone)
	assert.True(t, first.UpdateCompatible.Done)
	assert.True(t, first.ExecIncoming.Total.Equal(dec("99")))

	second := f.settlement.batches[1]
	assert.True(t, second.ExecIncoming.AmountExecuted.Equal(dec("0.5")))
	assert.True(t, second.UpdateIncoming.Done)
	assert.False(t, second.UpdateCompatible.Done)
	assert.True(t, second.UpdateCompatible.Amount.Equal(dec("0.5")))
	assert.True(t, second.ExecIncoming.Total.Equal(dec("50")))

	// The closing buy's escrow drifted: reserved 150, executed 149.
	f.ledger.AssertCalled(t, "Insert", mock.Anything, mock.MatchedBy(func(e models.LedgerEntry) bool {
		return e.Type == models.EntryOrderDiff && e.Amount.Equal(dec("1")) && e.Coin == "brl" && e.IsRetention
	}))
}

func TestRunNoCompatibleOrder(t *testing.T) {
	f := newFixture()
	f.allowCatalog()

	incoming := testOrder(1, 10, models.SideBuy, "1", "100")

	f.orders.On("GetOpenByIdentificator", mock.Anything, incoming.Identificator).Return(incoming, nil)
	f.orders.On("FindCompatible", mock.Anything, mock.Anything).Return([]models.Order{}, nil)

	_, err := f.service.Run(context.Background(), incoming.Identificator)
	require.ErrorIs(t, err, serviceErrors.ErrNoCompatibleOrder)
}

func TestRunMissingOrderYieldsNoCompatible(t *testing.T) {
	f := newFixture()

	f.orders.On("GetOpenByIdentificator", mock.Anything, "gone").
		Return(models.Order{}, repositoryErrors.ErrOrderNotFound)

	_, err := f.service.Run(context.Background(), "gone")
	require.ErrorIs(t, err, serviceErrors.ErrNoCompatibleOrder)
	f.orders.AssertNotCalled(t, "FindCompatible", mock.Anything, mock.Anything)
}

func TestRunUntradablePairYieldsNoCompatible(t *testing.T) {
	f := newFixture()

	incoming := testOrder(1, 10, models.SideBuy, "1", "100")

	f.orders.On("GetOpenByIdentificator", mock.Anything, incoming.Identificator).Return(incoming, nil)
	f.catalog.On("ValidatePair", mock.Anything, incoming.Pair).Return(serviceErrors.ErrPairUnavailable)

	_, err := f.service.Run(context.Background(), incoming.Identificator)
	require.ErrorIs(t, err, serviceErrors.ErrNoCompatibleOrder)
}

func TestRunSkipsLockedCandidate(t *testing.T) {
	f := newFixture()
	f.allowCatalog()
	f.allowNotifications()

	incoming := testOrder(5, 10, models.SideBuy, "1", "100")
	lockedResting := testOrder(1, 20, models.SideSell, "1", "99")
	freeResting := testOrder(2, 30, models.SideSell, "1", "100")

	f.orders.On("GetOpenByIdentificator", mock.Anything, incoming.Identificator).Return(incoming, nil)
	f.orders.On("FindCompatible", mock.Anything, mock.Anything).
		Return([]models.Order{lockedResting, freeResting}, nil)

	f.orders.On("Lock", mock.Anything, int64(5)).Return(nil)
	f.orders.On("Lock", mock.Anything, int64(1)).Return(repositoryErrors.ErrOrderLocked)
	f.orders.On("Lock", mock.Anything, int64(2)).Return(nil)
	f.orders.On("Unlock", mock.Anything, mock.Anything).Return(nil)

	f.users.On("GetByID", mock.Anything, int64(10)).Return(models.User{ID: 10, UID: "uid-10"}, nil)
	f.users.On("GetByID", mock.Anything, int64(20)).Return(models.User{ID: 20, UID: "uid-20"}, nil)
	f.users.On("GetByID", mock.Anything, int64(30)).Return(models.User{ID: 30, UID: "uid-30"}, nil)

	f.prices.On("Divisor", mock.Anything).Return(dec("1"), nil)
	f.fees.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Return(dec("0"), nil)
	f.settlement.On("Commit", mock.Anything, mock.Anything).Return(int64(1), int64(2), nil)
	f.totals.On("SumExecutedTotals", mock.Anything, int64(5)).Return(dec("100"), nil)

	result, err := f.service.Run(context.Background(), incoming.Identificator)
	require.NoError(t, err)

	require.Len(t, f.settlement.batches, 1)
	assert.Equal(t, int64(2), f.settlement.batches[0].Trade.OrderCompatibleID)
	require.Len(t, result.OrdersExecuted, 2)
}

func TestRunStopsWhenIncomingLocked(t *testing.T) {
	f := newFixture()
	f.allowCatalog()

	incoming := testOrder(5, 10, models.SideBuy, "1", "100")
	resting := testOrder(1, 20, models.SideSell, "1", "100")

	f.orders.On("GetOpenByIdentificator", mock.Anything, incoming.Identificator).Return(incoming, nil)
	f.orders.On("FindCompatible", mock.Anything, mock.Anything).Return([]models.Order{resting}, nil)
	f.orders.On("Lock", mock.Anything, int64(5)).Return(repositoryErrors.ErrOrderLocked)

	f.users.On("GetByID", mock.Anything, mock.Anything).Return(models.User{UID: "u"}, nil)

	result, err := f.service.Run(context.Background(), incoming.Identificator)
	require.NoError(t, err)
	assert.Empty(t, result.OrdersExecuted)
	f.settlement.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything)
}

func TestRunCommitFailureFreezesBothAccounts(t *testing.T) {
	f := newFixture()
	f.allowCatalog()

	incoming := testOrder(5, 10, models.SideBuy, "1", "100")
	resting := testOrder(1, 20, models.SideSell, "1", "100")

	f.orders.On("GetOpenByIdentificator", mock.Anything, incoming.Identificator).Return(incoming, nil)
	f.orders.On("FindCompatible", mock.Anything, mock.Anything).Return([]models.Order{resting}, nil)
	f.orders.On("Lock", mock.Anything, mock.Anything).Return(nil)

	f.users.On("GetByID", mock.Anything, int64(10)).Return(models.User{ID: 10, UID: "uid-10"}, nil)
	f.users.On("GetByID", mock.Anything, int64(20)).Return(models.User{ID: 20, UID: "uid-20"}, nil)

	f.prices.On("Divisor", mock.Anything).Return(dec("1"), nil)
	f.fees.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Return(dec("0"), nil)
	f.settlement.On("Commit", mock.Anything, mock.Anything).
		Return(int64(0), int64(0), errors.New("deadlock detected"))

	f.accounts.On("BlockAccount", mock.Anything, int64(10)).Return(nil)
	f.accounts.On("BlockAccount", mock.Anything, int64(20)).Return(nil)

	_, err := f.service.Run(context.Background(), incoming.Identificator)
	require.Error(t, err)

	var settlementErr *serviceErrors.SettlementError
	require.ErrorAs(t, err, &settlementErr)

	f.accounts.AssertExpectations(t)
	f.orders.AssertNotCalled(t, "Unlock", mock.Anything, int64(5))
}

func TestRunBridgesInternalAccountFill(t *testing.T) {
	f := newFixture()
	f.allowCatalog()
	f.allowNotifications()

	incoming := testOrder(5, 10, models.SideBuy, "1", "100")
	resting := testOrder(1, 20, models.SideSell, "1", "100")

	f.orders.On("GetOpenByIdentificator", mock.Anything, incoming.Identificator).Return(incoming, nil)
	f.orders.On("FindCompatible", mock.Anything, mock.Anything).Return([]models.Order{resting}, nil)
	f.orders.On("Lock", mock.Anything, mock.Anything).Return(nil)
	f.orders.On("Unlock", mock.Anything, mock.Anything).Return(nil)

	f.users.On("GetByID", mock.Anything, int64(10)).Return(models.User{ID: 10, UID: "uid-10"}, nil)
	f.users.On("GetByID", mock.Anything, int64(20)).
		Return(models.User{ID: 20, UID: "uid-liquidity", InternalAccount: true}, nil)

	f.prices.On("Divisor", mock.Anything).Return(dec("1"), nil)
	f.fees.On("Resolve", mock.Anything, mock.Anything, mock.Anything).Return(dec("0"), nil)
	f.settlement.On("Commit", mock.Anything, mock.Anything).Return(int64(100), int64(101), nil)
	f.totals.On("SumExecutedTotals", mock.Anything, int64(5)).Return(dec("100"), nil)

	f.bridge.On("Insert", mock.Anything, int64(101), models.Pair("BTC/BRL"), mock.Anything).Return(nil)

	_, err := f.service.Run(context.Background(), incoming.Identificator)
	require.NoError(t, err)
	f.bridge.AssertExpectations(t)
}

func TestLegEntriesNetToZeroAgainstEscrow(t *testing.T) {
	f := newFixture()

	order := testOrder(1, 10, models.SideBuy, "1", "100")
	totalDone := dec("100")

	entries := f.service.legEntries(order, dec("1"), totalDone, dec("0.005"), time.Now())
	require.Len(t, entries, 4)

	// Escrow at placement holds -100 brl; the retention release must zero it.
	retention := decimal.Zero
	settledBRL := decimal.Zero
	for _, e := range entries {
		if e.IsRetention && e.Coin == "brl" {
			retention = retention.Add(e.Amount)
		}
		if !e.IsRetention && e.Coin == "brl" {
			settledBRL = settledBRL.Add(e.Amount)
		}
	}
	assert.True(t, retention.Equal(totalDone))
	assert.True(t, settledBRL.Equal(totalDone.Neg()))
}
