package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bitmercado/ms-orders/internal/domain/models"
)

// OrderView is one of the caller's own orders with its derived state.
type OrderView struct {
	Identificator   string          `json:"identificator"`
	Side            models.Side     `json:"side"`
	Time            time.Time       `json:"time"`
	Done            bool            `json:"done"`
	InitialAmount   decimal.Decimal `json:"initial_amount"`
	AvailableAmount decimal.Decimal `json:"avaliable_amount"`
	PriceUnity      decimal.Decimal `json:"price_unity"`
	Pair            models.Pair     `json:"pair"`
	State           string          `json:"state"`
}

// BookEntryView is one public book row.
type BookEntryView struct {
	OrderIdentificator string          `json:"orderIdentificator"`
	UserUID            string          `json:"user_id"`
	Pair               models.Pair     `json:"pair"`
	Side               models.Side     `json:"side"`
	Amount             decimal.Decimal `json:"amount"`
	Price              decimal.Decimal `json:"price"`
}

// BookLevelView is one anonymized book row for the public API.
type BookLevelView struct {
	PriceUnity float64   `json:"price_unity"`
	Amount     float64   `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
}

// BookAPIView is the bid/ask split served to the public API.
type BookAPIView struct {
	Asks []BookLevelView `json:"asks"`
	Bids []BookLevelView `json:"bids"`
}

// TradeView is one tape entry with participant uids.
type TradeView struct {
	Amount        decimal.Decimal `json:"amount"`
	PriceUnity    decimal.Decimal `json:"price_unity"`
	TimeExecuted  time.Time       `json:"time_executed"`
	UserIDActive  string          `json:"user_id_active"`
	UserIDPassive string          `json:"user_id_passive"`
	Side          models.Side     `json:"side"`
}

// TradeAPIView is one anonymized tape entry for the public API.
type TradeAPIView struct {
	Type       models.Side `json:"type"`
	Amount     float64     `json:"amount"`
	PriceUnity float64     `json:"price_unity"`
	Timestamp  time.Time   `json:"timestamp"`
}

// BestPricesView carries the best bid and ask of one pair.
type BestPricesView struct {
	Buy  decimal.Decimal `json:"buy"`
	Sell decimal.Decimal `json:"sell"`
}

// ExecutedInfoView is the 24h market summary of one pair.
type ExecutedInfoView struct {
	TotalExecuted decimal.Decimal `json:"total_executed"`
	TotalTrades   int64           `json:"total_trades"`
	Last          decimal.Decimal `json:"last"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Volume        decimal.Decimal `json:"volume"`
	VarType       string          `json:"var_type"`
	Var24         decimal.Decimal `json:"var_24"`
}

// TickerView composes best prices and the 24h summary.
type TickerView struct {
	Pair          models.Pair     `json:"pair"`
	Buy           decimal.Decimal `json:"buy"`
	Sell          decimal.Decimal `json:"sell"`
	TotalTrades   int64           `json:"total_trades"`
	TotalExecuted decimal.Decimal `json:"total_executed"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Last          decimal.Decimal `json:"last"`
	Volume        decimal.Decimal `json:"volume"`
	VarType       string          `json:"var_type"`
	Var24         decimal.Decimal `json:"var_24"`
	Timestamp     time.Time       `json:"timestamp"`
}

const tapeLimit = 50

// AllOrders lists every order of one user with its lifecycle state.
func (s *Service) AllOrders(ctx context.Context, userID int64) ([]OrderView, error) {
	const op = "order.Service.AllOrders"

	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, OrderView{
			Identificator:   o.Identificator,
			Side:            o.Side,
			Time:            o.Time,
			Done:            o.Done,
			InitialAmount:   o.AmountSource,
			AvailableAmount: o.Amount,
			PriceUnity:      o.PriceUnity,
			Pair:            o.Pair,
			State:           o.State(),
		})
	}
	return views, nil
}

// OrderBook returns the public book of one pair, sells first (ascending),
// then buys (descending).
func (s *Service) OrderBook(ctx context.Context, pair models.Pair) ([]BookEntryView, error) {
	const op = "order.Service.OrderBook"

	sells, err := s.orders.BookEntries(ctx, pair, models.SideSell)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	buys, err := s.orders.BookEntries(ctx, pair, models.SideBuy)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	views := make([]BookEntryView, 0, len(sells)+len(buys))
	for _, e := range append(sells, buys...) {
		views = append(views, BookEntryView{
			OrderIdentificator: e.Identificator,
			UserUID:            e.UserUID,
			Pair:               e.Pair,
			Side:               e.Side,
			Amount:             e.Amount,
			Price:              e.PriceUnity,
		})
	}
	return views, nil
}

// OrderBookAPI returns the anonymized top of book for the public API.
func (s *Service) OrderBookAPI(ctx context.Context, pair models.Pair) (BookAPIView, error) {
	const op = "order.Service.OrderBookAPI"

	asks, err := s.orders.Book(ctx, pair, models.SideSell, tapeLimit)
	if err != nil {
		return BookAPIView{}, fmt.Errorf("%s: %w", op, err)
	}
	bids, err := s.orders.Book(ctx, pair, models.SideBuy, tapeLimit)
	if err != nil {
		return BookAPIView{}, fmt.Errorf("%s: %w", op, err)
	}

	return BookAPIView{
		Asks: toBookLevels(asks),
		Bids: toBookLevels(bids),
	}, nil
}

// Trades returns the last fills of one pair with participant uids.
func (s *Service) Trades(ctx context.Context, pair models.Pair) ([]TradeView, error) {
	const op = "order.Service.Trades"

	trades, err := s.market.RecentTrades(ctx, pair, tapeLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	views := make([]TradeView, 0, len(trades))
	for _, t := range trades {
		views = append(views, TradeView{
			Amount:        t.AmountExecuted,
			PriceUnity:    t.PriceUnity,
			TimeExecuted:  t.TimeExecuted,
			UserIDActive:  t.UserIDActive,
			UserIDPassive: t.UserIDPassive,
			Side:          t.Side,
		})
	}
	return views, nil
}

// TradesAPI returns the anonymized tape for the public API.
func (s *Service) TradesAPI(ctx context.Context, pair models.Pair) ([]TradeAPIView, error) {
	const op = "order.Service.TradesAPI"

	trades, err := s.market.RecentTrades(ctx, pair, tapeLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	views := make([]TradeAPIView, 0, len(trades))
	for _, t := range trades {
		views = append(views, TradeAPIView{
			Type:       t.Side,
			Amount:     t.AmountExecuted.InexactFloat64(),
			PriceUnity: t.PriceUnity.InexactFloat64(),
			Timestamp:  t.TimeExecuted,
		})
	}
	return views, nil
}

// BestPrices returns the best bid and ask. An unlisted pair answers zeros
// instead of failing so price widgets degrade quietly.
func (s *Service) BestPrices(ctx context.Context, pair models.Pair) (BestPricesView, error) {
	const op = "order.Service.BestPrices"

	pairs, err := s.catalog.Pairs(ctx)
	if err != nil {
		return BestPricesView{}, fmt.Errorf("%s: %w", op, err)
	}

	listed := false
	for _, key := range pairs {
		if key == pair.CatalogKey() {
			listed = true
			break
		}
	}
	if !listed {
		return BestPricesView{Buy: decimal.Zero, Sell: decimal.Zero}, nil
	}

	buy, sell, err := s.orders.BestPrices(ctx, pair)
	if err != nil {
		return BestPricesView{}, fmt.Errorf("%s: %w", op, err)
	}
	return BestPricesView{Buy: buy, Sell: sell}, nil
}

// ExecutedInfo returns the 24h market summary with the derived variation.
func (s *Service) ExecutedInfo(ctx context.Context, pair models.Pair) (ExecutedInfoView, error) {
	const op = "order.Service.ExecutedInfo"

	stats, err := s.market.Stats24h(ctx, pair)
	if err != nil {
		return ExecutedInfoView{}, fmt.Errorf("%s: %w", op, err)
	}

	varType := "down"
	if stats.Last.GreaterThanOrEqual(stats.First) {
		varType = "up"
	}

	var24 := decimal.Zero
	if !stats.First.IsZero() {
		var24 = stats.Last.Div(stats.First).Mul(hundred).Sub(hundred).Abs()
	}

	return ExecutedInfoView{
		TotalExecuted: stats.TotalExecuted,
		TotalTrades:   stats.TotalTrades,
		Last:          stats.Last,
		High:          stats.High,
		Low:           stats.Low,
		Volume:        stats.Volume,
		VarType:       varType,
		Var24:         var24,
	}, nil
}

// Ticker composes best prices and the 24h summary for one pair.
func (s *Service) Ticker(ctx context.Context, pair models.Pair) (TickerView, error) {
	const op = "order.Service.Ticker"

	prices, err := s.BestPrices(ctx, pair)
	if err != nil {
		return TickerView{}, fmt.Errorf("%s: %w", op, err)
	}
	info, err := s.ExecutedInfo(ctx, pair)
	if err != nil {
		return TickerView{}, fmt.Errorf("%s: %w", op, err)
	}

	return TickerView{
		Pair:          pair,
		Buy:           prices.Buy,
		Sell:          prices.Sell,
		TotalTrades:   info.TotalTrades,
		TotalExecuted: info.TotalExecuted,
		High:          info.High,
		Low:           info.Low,
		Last:          info.Last,
		Volume:        info.Volume,
		VarType:       info.VarType,
		Var24:         info.Var24,
		Timestamp:     s.now(),
	}, nil
}

var hundred = decimal.NewFromInt(100)

func toBookLevels(orders []models.Order) []BookLevelView {
	levels := make([]BookLevelView, 0, len(orders))
	for _, o := range orders {
		levels = append(levels, BookLevelView{
			PriceUnity: o.PriceUnity.InexactFloat64(),
			Amount:     o.Amount.InexactFloat64(),
			Timestamp:  o.Time,
		})
	}
	return levels
}
