package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bitmercado/ms-orders/internal/domain/models"
	repositoryErrors "github.com/bitmercado/ms-orders/internal/errors/repository"
	"github.com/bitmercado/ms-orders/internal/repository/postgres/dto"
)

const orderColumns = `id, identificator, user_id, side, pair, price_unity, amount,
	amount_source, total, price_done, done, deleted, locked, time, time_done,
	time_del, bridge_from, bridge_price, bridge_orderid, our_order`

type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// GetOpenByIdentificator loads an order only while it is still matchable:
// not done, not deleted, not locked, with positive price and amount.
func (s *OrderStore) GetOpenByIdentificator(ctx context.Context, identificator string) (models.Order, error) {
	const op = "postgres.OrderStore.GetOpenByIdentificator"

	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE identificator = $1
		   AND NOT done AND NOT deleted AND NOT locked
		   AND price_unity > 0 AND amount > 0
		 LIMIT 1`,
		identificator,
	)
	if err != nil {
		return models.Order{}, fmt.Errorf("%s: query: %w", op, err)
	}

	return collectOrder(op, rows)
}

// GetCancellable loads an order eligible for cancellation: open, unlocked,
// with remaining amount. A locked order is reported as not found.
func (s *OrderStore) GetCancellable(ctx context.Context, identificator string) (models.Order, error) {
	const op = "postgres.OrderStore.GetCancellable"

	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE identificator = $1
		   AND NOT done AND NOT deleted AND NOT locked
		   AND amount > 0
		 LIMIT 1`,
		identificator,
	)
	if err != nil {
		return models.Order{}, fmt.Errorf("%s: query: %w", op, err)
	}

	return collectOrder(op, rows)
}

// FindCompatible returns the price-compatible counter-orders for an incoming
// order in priority order: best price first, ties broken by id.
func (s *OrderStore) FindCompatible(ctx context.Context, incoming models.Order) ([]models.Order, error) {
	const op = "postgres.OrderStore.FindCompatible"

	predicate := `price_unity <= $3`
	ordering := `price_unity ASC, id ASC`
	if incoming.Side == models.SideSell {
		predicate = `price_unity >= $3`
		ordering = `price_unity DESC, id ASC`
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE pair = $1 AND side = $2
		   AND NOT done AND NOT deleted AND NOT locked
		   AND amount > 0
		   AND `+predicate+`
		 ORDER BY `+ordering,
		string(incoming.Pair),
		string(incoming.Side.Opposite()),
		incoming.PriceUnity.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}

	return collectOrders(op, rows)
}

// Lock acquires the settlement mutex on an order with a single conditional
// update. Zero affected rows means another settlement step holds it.
func (s *OrderStore) Lock(ctx context.Context, orderID int64) error {
	const op = "postgres.OrderStore.Lock"

	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET locked = TRUE WHERE id = $1 AND NOT locked`,
		orderID,
	)
	if err != nil {
		return fmt.Errorf("%s: exec: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repositoryErrors.ErrOrderLocked)
	}

	return nil
}

func (s *OrderStore) Unlock(ctx context.Context, orderID int64) error {
	const op = "postgres.OrderStore.Unlock"

	if _, err := s.pool.Exec(ctx,
		`UPDATE orders SET locked = FALSE WHERE id = $1`,
		orderID,
	); err != nil {
		return fmt.Errorf("%s: exec: %w", op, err)
	}

	return nil
}

// OpenPrices lists the limit prices of every open unlocked order across the
// whole book, all pairs included. Feeds the pricing divisor.
func (s *OrderStore) OpenPrices(ctx context.Context) ([]decimal.Decimal, error) {
	const op = "postgres.OrderStore.OpenPrices"

	rows, err := s.pool.Query(ctx,
		`SELECT price_unity
		 FROM orders
		 WHERE NOT done AND NOT deleted AND NOT locked
		   AND price_unity > 0 AND amount > 0`,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}

	raw, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("%s: collect: %w", op, err)
	}

	prices := make([]decimal.Decimal, 0, len(raw))
	for _, value := range raw {
		price, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("%s: parse price %q: %w", op, value, err)
		}
		prices = append(prices, price)
	}

	return prices, nil
}

// Create persists a new order together with its escrow retention entry in
// one transaction, so no order ever exists without its hold.
func (s *OrderStore) Create(ctx context.Context, order models.Order, retention models.LedgerEntry) (models.Order, error) {
	const op = "postgres.OrderStore.Create"

	orderDTO := dto.FromDomain(order)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.Order{}, fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO orders (identificator, user_id, side, pair, price_unity, amount,
			amount_source, total, done, deleted, locked, time,
			bridge_from, bridge_price, bridge_orderid, our_order)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, FALSE, FALSE, $9, $10, $11, $12, $13)
		 RETURNING id`,
		orderDTO.Identificator,
		orderDTO.UserID,
		orderDTO.Side,
		orderDTO.Pair,
		orderDTO.PriceUnity,
		orderDTO.Amount,
		orderDTO.AmountSource,
		orderDTO.Total,
		orderDTO.Time,
		orderDTO.BridgeFrom,
		orderDTO.BridgePrice,
		orderDTO.BridgeOrderID,
		orderDTO.OurOrder,
	).Scan(&order.ID)
	if err != nil {
		return models.Order{}, fmt.Errorf("%s: insert order: %w", op, err)
	}

	retention.ItemID = order.ID
	if err := insertLedgerEntry(ctx, tx, retention); err != nil {
		return models.Order{}, fmt.Errorf("%s: insert retention: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Order{}, fmt.Errorf("%s: commit: %w", op, err)
	}

	return order, nil
}

// Cancel marks the order deleted and posts the retention reversal entries in
// one transaction. The update re-checks the open/unlocked predicate so a
// settlement step that slipped in first wins.
func (s *OrderStore) Cancel(ctx context.Context, orderID int64, timeDel time.Time, entries []models.LedgerEntry) error {
	const op = "postgres.OrderStore.Cancel"

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE orders SET deleted = TRUE, time_del = $2
		 WHERE id = $1 AND NOT done AND NOT deleted AND NOT locked`,
		orderID, timeDel,
	)
	if err != nil {
		return fmt.Errorf("%s: update order: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repositoryErrors.ErrOrderNotFound)
	}

	for _, entry := range entries {
		if err := insertLedgerEntry(ctx, tx, entry); err != nil {
			return fmt.Errorf("%s: insert entry: %w", op, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}

	return nil
}

// ListByUser returns every order of one owner, newest first.
func (s *OrderStore) ListByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	const op = "postgres.OrderStore.ListByUser"

	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}

	return collectOrders(op, rows)
}

// Book returns the resting side of the public book for one pair, buys
// descending and sells ascending by price.
func (s *OrderStore) Book(ctx context.Context, pair models.Pair, side models.Side, limit int) ([]models.Order, error) {
	const op = "postgres.OrderStore.Book"

	ordering := `price_unity DESC`
	if side == models.SideSell {
		ordering = `price_unity ASC`
	}

	query := `SELECT ` + orderColumns + `
		 FROM orders
		 WHERE pair = $1 AND side = $2
		   AND NOT done AND NOT deleted AND NOT locked
		 ORDER BY ` + ordering

	args := []any{string(pair), string(side)}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}

	return collectOrders(op, rows)
}

// BookEntries returns one side of the public book joined with the owners'
// public uids, buys descending and sells ascending by price.
func (s *OrderStore) BookEntries(ctx context.Context, pair models.Pair, side models.Side) ([]models.BookEntry, error) {
	const op = "postgres.OrderStore.BookEntries"

	ordering := `o.price_unity DESC`
	if side == models.SideSell {
		ordering = `o.price_unity ASC`
	}

	rows, err := s.pool.Query(ctx,
		`SELECT o.identificator, u.uid AS user_uid, o.pair, o.side, o.amount,
		        o.price_unity, o.time
		 FROM orders o
		 JOIN users u ON u.id = o.user_id
		 WHERE o.pair = $1 AND o.side = $2
		   AND NOT o.done AND NOT o.deleted AND NOT o.locked
		 ORDER BY `+ordering,
		string(pair), string(side),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}

	entryDTOs, err := pgx.CollectRows(rows, pgx.RowToStructByName[dto.BookEntry])
	if err != nil {
		return nil, fmt.Errorf("%s: collect: %w", op, err)
	}

	entries := make([]models.BookEntry, 0, len(entryDTOs))
	for _, entryDTO := range entryDTOs {
		entry, err := entryDTO.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// BestPrices returns the best bid and best ask for one pair; zero when the
// side is empty.
func (s *OrderStore) BestPrices(ctx context.Context, pair models.Pair) (decimal.Decimal, decimal.Decimal, error) {
	const op = "postgres.OrderStore.BestPrices"

	best := func(side models.Side, ordering string) (decimal.Decimal, error) {
		var raw string
		err := s.pool.QueryRow(ctx,
			`SELECT price_unity FROM orders
			 WHERE pair = $1 AND side = $2
			   AND NOT done AND NOT deleted AND NOT locked
			 ORDER BY price_unity `+ordering+`
			 LIMIT 1`,
			string(pair), string(side),
		).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(raw)
	}

	buy, err := best(models.SideBuy, "DESC")
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%s: buy: %w", op, err)
	}
	sell, err := best(models.SideSell, "ASC")
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%s: sell: %w", op, err)
	}

	return buy, sell, nil
}

func collectOrder(op string, rows pgx.Rows) (models.Order, error) {
	orderDTO, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[dto.Order])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, fmt.Errorf("%s: %w", op, repositoryErrors.ErrOrderNotFound)
		}
		return models.Order{}, fmt.Errorf("%s: collect: %w", op, err)
	}

	order, err := orderDTO.ToDomain()
	if err != nil {
		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}
	return order, nil
}

func collectOrders(op string, rows pgx.Rows) ([]models.Order, error) {
	orderDTOs, err := pgx.CollectRows(rows, pgx.RowToStructByName[dto.Order])
	if err != nil {
		return nil, fmt.Errorf("%s: collect: %w", op, err)
	}

	orders := make([]models.Order, 0, len(orderDTOs))
	for _, orderDTO := range orderDTOs {
		order, err := orderDTO.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		orders = append(orders, order)
	}

	return orders, nil
}
