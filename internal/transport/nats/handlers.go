package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bitmercado/ms-orders/internal/domain/models"
	"github.com/bitmercado/ms-orders/internal/services/execution"
	"github.com/bitmercado/ms-orders/internal/services/order"
)

type OrderService interface {
	Place(ctx context.Context, in order.PlaceOrderInput) (order.PlacedOrder, error)
	Cancel(ctx context.Context, userID int64, identificator string) (order.PlacedOrder, error)
	AllOrders(ctx context.Context, userID int64) ([]order.OrderView, error)
	OrderBook(ctx context.Context, pair models.Pair) ([]order.BookEntryView, error)
	OrderBookAPI(ctx context.Context, pair models.Pair) (order.BookAPIView, error)
	Trades(ctx context.Context, pair models.Pair) ([]order.TradeView, error)
	TradesAPI(ctx context.Context, pair models.Pair) ([]order.TradeAPIView, error)
	BestPrices(ctx context.Context, pair models.Pair) (order.BestPricesView, error)
	ExecutedInfo(ctx context.Context, pair models.Pair) (order.ExecutedInfoView, error)
	Ticker(ctx context.Context, pair models.Pair) (order.TickerView, error)
}

type ExecutionService interface {
	Run(ctx context.Context, orderIdentificator string) (execution.Result, error)
}

type CatalogService interface {
	PairConfigs(ctx context.Context) ([]models.PairConfig, error)
	CoinConfigs(ctx context.Context) ([]models.CoinConfig, error)
	PairInfo(ctx context.Context, pair models.Pair) (models.PairConfig, error)
	CoinInfo(ctx context.Context, coin string) (models.CoinConfig, error)
	ValidatePair(ctx context.Context, pair models.Pair) error
	ValidateCoin(ctx context.Context, coin string) error
	OrderLimit(ctx context.Context) (models.OrderLimit, error)
}

// RegisterHandlers binds every command subject to its service call.
func RegisterHandlers(srv *Server, orders OrderService, exec ExecutionService, catalog CatalogService) {
	srv.Handle("place_order", placeOrder(orders))
	srv.Handle("order_delete", orderDelete(orders))
	srv.Handle("order_execution", orderExecution(exec))

	srv.Handle("validate_pair_available", validatePair(catalog))
	srv.Handle("validate_coin_available", validateCoin(catalog))
	srv.Handle("get_all_available_pairs", allPairs(catalog))
	srv.Handle("get_all_available_coins", allCoins(catalog))
	srv.Handle("get_order_limit", orderLimit(catalog))

	srv.Handle("get_all_orders", allOrders(orders))
	srv.Handle("get_all_order_book", orderBook(orders))
	srv.Handle("get_all_order_book_api", orderBookAPI(orders))
	srv.Handle("get_all_trades", trades(orders))
	srv.Handle("get_trades_api", tradesAPI(orders))
	srv.Handle("buy_sell_orders", bestPrices(orders))
	srv.Handle("order_executed_get_info", executedInfo(orders))
	srv.Handle("get_ticker", ticker(orders))
	srv.Handle("get_ticker_api", tickerAPI(orders))
}

// normalizePair accepts both wire forms of a pair, "BTC/BRL" and "btc_brl".
func normalizePair(raw string) models.Pair {
	if strings.Contains(raw, "_") {
		return models.PairFromCatalogKey(raw)
	}
	return models.Pair(strings.ToUpper(raw))
}

type pairRequest struct {
	Pair string `json:"pair"`
}

type pairConfigView struct {
	Pair   string `json:"pair"`
	Active bool   `json:"active"`
}

type coinConfigView struct {
	Coin           string `json:"coin"`
	Name           string `json:"name"`
	CurrencySymbol string `json:"currency_symbol"`
	Active         bool   `json:"active"`
}

type dataReply struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func toPairConfigView(cfg models.PairConfig) pairConfigView {
	return pairConfigView{Pair: cfg.Pair, Active: cfg.Active}
}

func toCoinConfigView(cfg models.CoinConfig) coinConfigView {
	return coinConfigView{
		Coin:           cfg.Coin,
		Name:           cfg.Name,
		CurrencySymbol: cfg.CurrencySymbol,
		Active:         cfg.Active,
	}
}

func placeOrder(orders OrderService) Handler {
	type request struct {
		UserID        int64            `json:"userId"`
		Pair          string           `json:"pair"`
		OrderType     string           `json:"order_type"`
		Amount        decimal.Decimal  `json:"amount"`
		Price         decimal.Decimal  `json:"price"`
		BridgeFrom    *int64           `json:"bridge_from"`
		BridgePrice   *decimal.Decimal `json:"bridge_price"`
		BridgeOrderID *string          `json:"bridge_orderid"`
		OurOrder      int              `json:"our_order"`
	}
	type reply struct {
		Success  bool              `json:"success"`
		Message  string            `json:"message"`
		NewOrder order.PlacedOrder `json:"newOrder"`
	}

	return func(ctx context.Context, data []byte) (any, error) {
		var req request
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("place_order: %w: %w", errBadRequest, err)
		}

		// order_type arrives as "buy limit exchange"; only the side matters here.
		side, _, _ := strings.Cut(strings.TrimSpace(req.OrderType), " ")

		in := order.PlaceOrderInput{
			UserID:        req.UserID,
			Pair:          normalizePair(req.Pair),
			Side:          models.Side(strings.ToLower(side)),
			Amount:        req.Amount,
			Price:         req.Price,
			BridgePrice:   req.BridgePrice,
			BridgeOrderID: req.BridgeOrderID,
			OurOrder:      req.OurOrder != 0,
		}
		if req.BridgeFrom != nil {
			from := strconv.FormatInt(*req.BridgeFrom, 10)
			in.BridgeFrom = &from
		}

		placed, err := orders.Place(ctx, in)
		if err != nil {
			return nil, err
		}
		return reply{Success: true, Message: "Ordem enviada com sucesso", NewOrder: placed}, nil
	}
}

func orderDelete(orders OrderService) Handler {
	type request struct {
		UserID             int64  `json:"userId"`
		OrderIdentificator string `json:"orderIdentificator"`
	}
	type reply struct {
		Success      bool              `json:"success"`
		OrderDeleted order.PlacedOrder `json:"orderDeleted"`
		Pair         models.Pair       `json:"pair"`
	}

	return func(ctx context.Context, data []byte) (any, error) {
		var req request
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("order_delete: %w: %w", errBadRequest, err)
		}

		deleted, err := orders.Cancel(ctx, req.UserID, req.OrderIdentificator)
		if err != nil {
			return nil, err
		}
		return reply{Success: true, OrderDeleted: deleted, Pair: deleted.Pair}, nil
	}
}

func orderExecution(exec ExecutionService) Handler {
	type request struct {
		OrderIdentificator string `json:"order_identificator"`
	}
	type reply struct {
		Success          bool                    `json:"success"`
		UserIDIdentified string                  `json:"userIdIdentified"`
		UserIDCompatible string                  `json:"userIdCompatible"`
		OrdersExecuted   []execution.ExecutedLeg `json:"ordersExecuted"`
	}

	return func(ctx context.Context, data []byte) (any, error) {
		var req request
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("order_execution: %w: %w", errBadRequest, err)
		}

		result, err := exec.Run(ctx, req.OrderIdentificator)
		if err != nil {
			return nil, err
		}
		return reply{
			Success:          true,
			UserIDIdentified: result.UserIDIdentified,
			UserIDCompatible: result.UserIDCompatible,
			OrdersExecuted:   result.OrdersExecuted,
		}, nil
	}
}

func validatePair(catalog CatalogService) Handler {
	return func(ctx context.Context, data []byte) (any, error) {
		var req pairRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("validate_pair_available: %w: %w", errBadRequest, err)
		}

		pair := normalizePair(req.Pair)
		if err := catalog.ValidatePair(ctx, pair); err != nil {
			return nil, err
		}
		cfg, err := catalog.PairInfo(ctx, pair)
		if err != nil {
			return nil, err
		}
		return dataReply{Success: true, Data: toPairConfigView(cfg)}, nil
	}
}

func validateCoin(catalog CatalogService) Handler {
	type request struct {
		Coin string `json:"coin"`
	}

	return func(ctx context.Context, data []byte) (any, error) {
		var req request
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("validate_coin_available: %w: %w", errBadRequest, err)
		}

		if err := catalog.ValidateCoin(ctx, req.Coin); err != nil {
			return nil, err
		}
		cfg, err := catalog.CoinInfo(ctx, req.Coin)
		if err != nil {
			return nil, err
		}
		return dataReply{Success: true, Data: toCoinConfigView(cfg)}, nil
	}
}

func allPairs(catalog CatalogService) Handler {
	return func(ctx context.Context, _ []byte) (any, error) {
		configs, err := catalog.PairConfigs(ctx)
		if err != nil {
			return nil, err
		}
		views := make([]pairConfigView, 0, len(configs))
		for _, cfg := range configs {
			views = append(views, toPairConfigView(cfg))
		}
		return dataReply{Success: true, Data: views}, nil
	}
}

func allCoins(catalog CatalogService) Handler {
	return func(ctx context.Context, _ []byte) (any, error) {
		configs, err := catalog.CoinConfigs(ctx)
		if err != nil {
			return nil, err
		}
		views := make([]coinConfigView, 0, len(configs))
		for _, cfg := range configs {
			views = append(views, toCoinConfigView(cfg))
		}
		return dataReply{Success: true, Data: views}, nil
	}
}

func orderLimit(catalog CatalogService) Handler {
	return func(ctx context.Context, _ []byte) (any, error) {
		limit, err := catalog.OrderLimit(ctx)
		if err != nil {
			return nil, err
		}
		if limit == nil {
			limit = models.OrderLimit{}
		}
		return dataReply{Success: true, Data: limit}, nil
	}
}

func allOrders(orders OrderService) Handler {
	type request struct {
		UserID int64 `json:"userId"`
	}

	return func(ctx context.Context, data []byte) (any, error) {
		var req request
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("get_all_orders: %w: %w", errBadRequest, err)
		}

		views, err := orders.AllOrders(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		return dataReply{Success: true, Data: views}, nil
	}
}

func orderBook(orders OrderService) Handler {
	return func(ctx context.Context, data []byte) (any, error) {
		var req pairRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("get_all_order_book: %w: %w", errBadRequest, err)
		}

		pair := normalizePair(req.Pair)
		entries, err := orders.OrderBook(ctx, pair)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			string(pair): map[string]any{"orderBook": entries},
		}, nil
	}
}

func orderBookAPI(orders OrderService) Handler {
	return func(ctx context.Context, data []byte) (any, error) {
		var req pairRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("get_all_order_book_api: %w: %w", errBadRequest, err)
		}

		view, err := orders.OrderBookAPI(ctx, normalizePair(req.Pair))
		if err != nil {
			return nil, err
		}
		return dataReply{Success: true, Data: view}, nil
	}
}

func trades(orders OrderService) Handler {
	return func(ctx context.Context, data []byte) (any, error) {
		var req pairRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("get_all_trades: %w: %w", errBadRequest, err)
		}

		pair := normalizePair(req.Pair)
		views, err := orders.Trades(ctx, pair)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			string(pair): map[string]any{"trades": views},
		}, nil
	}
}

func tradesAPI(orders OrderService) Handler {
	return func(ctx context.Context, data []byte) (any, error) {
		var req pairRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("get_trades_api: %w: %w", errBadRequest, err)
		}

		views, err := orders.TradesAPI(ctx, normalizePair(req.Pair))
		if err != nil {
			return nil, err
		}
		return dataReply{Success: true, Data: views}, nil
	}
}

func bestPrices(orders OrderService) Handler {
	type reply struct {
		Success bool            `json:"success"`
		Buy     decimal.Decimal `json:"buy"`
		Sell    decimal.Decimal `json:"sell"`
	}

	return func(ctx context.Context, data []byte) (any, error) {
		var req pairRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("buy_sell_orders: %w: %w", errBadRequest, err)
		}

		view, err := orders.BestPrices(ctx, normalizePair(req.Pair))
		if err != nil {
			return nil, err
		}
		return reply{Success: true, Buy: view.Buy, Sell: view.Sell}, nil
	}
}

func executedInfo(orders OrderService) Handler {
	type reply struct {
		Success bool `json:"success"`
		order.ExecutedInfoView
	}

	return func(ctx context.Context, data []byte) (any, error) {
		var req pairRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("order_executed_get_info: %w: %w", errBadRequest, err)
		}

		view, err := orders.ExecutedInfo(ctx, normalizePair(req.Pair))
		if err != nil {
			return nil, err
		}
		return reply{Success: true, ExecutedInfoView: view}, nil
	}
}

func ticker(orders OrderService) Handler {
	return func(ctx context.Context, data []byte) (any, error) {
		var req pairRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("get_ticker: %w: %w", errBadRequest, err)
		}

		return orders.Ticker(ctx, normalizePair(req.Pair))
	}
}

func tickerAPI(orders OrderService) Handler {
	type reply struct {
		Pair      models.Pair     `json:"pair"`
		Buy       decimal.Decimal `json:"buy"`
		Sell      decimal.Decimal `json:"sell"`
		High      decimal.Decimal `json:"high"`
		Low       decimal.Decimal `json:"low"`
		Last      decimal.Decimal `json:"last"`
		Volume    decimal.Decimal `json:"volume"`
		Timestamp string          `json:"timestamp"`
	}

	return func(ctx context.Context, data []byte) (any, error) {
		var req pairRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("get_ticker_api: %w: %w", errBadRequest, err)
		}

		view, err := orders.Ticker(ctx, normalizePair(req.Pair))
		if err != nil {
			return nil, err
		}
		return reply{
			Pair:      view.Pair,
			Buy:       view.Buy,
			Sell:      view.Sell,
			High:      view.High,
			Low:       view.Low,
			Last:      view.Last,
			Volume:    view.Volume,
			Timestamp: view.Timestamp.Format("2006-01-02 15:04:05.000"),
		}, nil
	}
}
