// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/whiphelmets/internal/platform/apperr"
	"github.com/taibuivan/whiphelmets/internal/platform/database/schema"
	"github.com/taibuivan/whiphelmets/internal/platform/dberr"
	"github.com/taibuivan/whiphelmets/internal/platform/postgres"
	"github.com/taibuivan/whiphelmets/internal/shop/catalog"
	"github.com/taibuivan/whiphelmets/pkg/pagination"
)

// orderColumns is the projection scanned by [scanOrder].
var orderColumns = strings.Join(schema.ShopOrder.Columns(), ", ")

// orderNumberConstraint is the unique constraint on order numbers.
const orderNumberConstraint = "orders_order_number_key"

// # PostgreSQL Store

// PostgresStore implements [Store] using pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PostgreSQL backed ledger.
func NewStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func scanOrder(row pgx.Row, extra ...any) (*Order, error) {
	order := &Order{Items: []Item{}}
	customer := &order.Customer
	targets := []any{
		&order.ID,
		&order.Number,
		&order.UserID,
		&customer.Name,
		&customer.Email,
		&customer.Phone,
		&customer.Address,
		&customer.City,
		&customer.Zip,
		&order.TotalAmount,
		&order.PaymentMethod,
		&order.Status,
		&order.PaymentID,
		&order.PreferenceID,
		&order.CheckoutURL,
		&order.VerificationCode,
		&order.CreatedAt,
		&order.UpdatedAt,
	}
	if err := row.Scan(append(targets, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

/*
loadItems attaches lines to orders with one query.

Description: The product reference is weak. Lines are LEFT JOINed to the
catalog; a line whose product was deleted keeps its captured name (or a
placeholder for rows without one) and is flagged product_deleted.
*/
func loadItems(context context.Context, querier postgres.Querier, orders []*Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	byID := make(map[int64]*Order, len(orders))
	for i, order := range orders {
		ids[i] = order.ID
		byID[order.ID] = order
	}

	item, product := schema.ShopOrderItem, schema.ShopProduct
	query := fmt.Sprintf(`
		SELECT oi.%s, oi.%s, oi.%s,
		       COALESCE(p.%s, NULLIF(oi.%s, ''), '%s'),
		       p.%s IS NULL,
		       oi.%s, oi.%s, oi.%s
		FROM %s oi
		LEFT JOIN %s p ON p.%s = oi.%s
		WHERE oi.%s = ANY($1)
		ORDER BY oi.%s, oi.%s`,
		item.ID, item.OrderID, item.ProductID,
		product.Name, item.ProductName, DeletedProductName,
		product.ID,
		item.Size, item.Quantity, item.UnitPrice,
		item.Table,
		product.Table, product.ID, item.ProductID,
		item.OrderID,
		item.OrderID, item.ID,
	)

	rows, err := querier.Query(context, query, ids)
	if err != nil {
		return fmt.Errorf("postgres_order_repo_items_failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line Item
		var orderID int64
		if err := rows.Scan(
			&line.ID, &orderID, &line.ProductID,
			&line.ProductName, &line.ProductDeleted,
			&line.Size, &line.Quantity, &line.UnitPrice,
		); err != nil {
			return fmt.Errorf("postgres_order_repo_items_scan_failed: %w", err)
		}
		if order, ok := byID[orderID]; ok {
			order.Items = append(order.Items, line)
		}
	}
	return rows.Err()
}

// WithinTx runs fn in a transaction via [postgres.WithTx].
func (store *PostgresStore) WithinTx(context context.Context, fn func(tx Tx) error) error {
	return postgres.WithTx(context, store.pool, func(tx pgx.Tx) error {
		return fn(&postgresTx{tx: tx})
	})
}

// FindByNumber retrieves an order and its lines by order number.
func (store *PostgresStore) FindByNumber(context context.Context, number string) (*Order, error) {
	return store.findOne(context, schema.ShopOrder.OrderNumber, number)
}

// FindByID retrieves an order and its lines by primary key.
func (store *PostgresStore) FindByID(context context.Context, id int64) (*Order, error) {
	return store.findOne(context, schema.ShopOrder.ID, id)
}

func (store *PostgresStore) findOne(context context.Context, column string, value any) (*Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, orderColumns, schema.ShopOrder.Table, column)

	order, err := scanOrder(store.pool.QueryRow(context, query, value))
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("postgres_order_repo_find_failed: %w", err)
	}

	if err := loadItems(context, store.pool, []*Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

/*
ListForOwner returns the orders of a customer, matched by account id or by
contact email ignoring case.

Returns:
  - []*Order: Orders with lines, newest first
  - error: Database execution errors
*/
func (store *PostgresStore) ListForOwner(context context.Context, userID int64, email string) ([]*Order, error) {
	table := schema.ShopOrder
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE ($1::bigint > 0 AND %s = $1) OR ($2::text <> '' AND lower(%s) = lower($2))
		ORDER BY %s DESC, %s DESC`,
		orderColumns, table.Table,
		table.UserID, table.CustomerEmail,
		table.CreatedAt, table.ID,
	)

	rows, err := store.pool.Query(context, query, userID, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("postgres_order_repo_list_owner_failed: %w", err)
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}

	if err := loadItems(context, store.pool, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// List returns a page of orders for staff, filtered by status or by a
// fragment of the order number or customer email.
func (store *PostgresStore) List(context context.Context, filter Filter, page pagination.Params) ([]*Order, int, error) {
	table := schema.ShopOrder
	var queryBuilder strings.Builder
	var args []any
	argID := 1

	queryBuilder.WriteString(fmt.Sprintf(`SELECT %s, COUNT(*) OVER() AS total_count FROM %s WHERE TRUE`,
		orderColumns, table.Table))

	if filter.Status != "" {
		queryBuilder.WriteString(fmt.Sprintf(" AND %s = $%d", table.Status, argID))
		args = append(args, filter.Status)
		argID++
	}

	if filter.Query != "" {
		queryBuilder.WriteString(fmt.Sprintf(" AND (%s ILIKE '%%' || $%d || '%%' OR %s ILIKE '%%' || $%d || '%%')",
			table.OrderNumber, argID, table.CustomerEmail, argID))
		args = append(args, escapeLike(filter.Query))
		argID++
	}

	queryBuilder.WriteString(fmt.Sprintf(" ORDER BY %s DESC, %s DESC LIMIT $%d OFFSET $%d",
		table.CreatedAt, table.ID, argID, argID+1))
	args = append(args, page.Limit, page.Offset())

	rows, err := store.pool.Query(context, queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_order_repo_list_failed: %w", err)
	}
	defer rows.Close()

	orders := []*Order{}
	var total int
	for rows.Next() {
		order, err := scanOrder(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres_order_repo_scan_failed: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres_order_repo_list_failed: %w", err)
	}

	if err := loadItems(context, store.pool, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// SetCheckout stores the preference id and redirect URL of an order.
func (store *PostgresStore) SetCheckout(context context.Context, id int64, preferenceID, checkoutURL string) error {
	table := schema.ShopOrder
	query := fmt.Sprintf(`UPDATE %s SET %s = $2, %s = $3, %s = NOW() WHERE %s = $1`,
		table.Table, table.PreferenceID, table.CheckoutURL, table.UpdatedAt, table.ID)

	tag, err := store.pool.Exec(context, query, id, preferenceID, checkoutURL)
	if err != nil {
		return fmt.Errorf("postgres_order_repo_set_checkout_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func collectOrders(rows pgx.Rows) ([]*Order, error) {
	defer rows.Close()

	orders := []*Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres_order_repo_scan_failed: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_order_repo_scan_failed: %w", err)
	}
	return orders, nil
}

// escapeLike neutralises LIKE wildcards in user input.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// # Transactional Writes

// postgresTx implements [Tx] on top of one pgx transaction.
type postgresTx struct {
	tx pgx.Tx
}

/*
ReserveStock performs the conditional decrement.

Description: The single UPDATE checks and decrements under the row lock, so
a concurrent checkout either sees the decremented value or waits for this
transaction to end. When no row matches, a follow-up read tells a missing
or hidden product apart from insufficient stock. Reaching zero flips an
active product to out_of_stock.
*/
func (t *postgresTx) ReserveStock(context context.Context, productID int64, quantity int) (*catalog.Product, error) {
	table := schema.ShopProduct
	query := fmt.Sprintf(`
		UPDATE %[1]s
		SET %[2]s = %[2]s - $2,
		    %[3]s = CASE WHEN %[2]s - $2 = 0 AND %[3]s = '%[4]s' THEN '%[5]s' ELSE %[3]s END,
		    %[6]s = NOW()
		WHERE %[7]s = $1 AND %[2]s >= $2 AND %[3]s <> '%[8]s'
		RETURNING %[7]s, %[9]s, %[10]s, %[11]s, %[12]s, %[2]s, %[3]s`,
		table.Table,
		table.Stock,
		table.Status, catalog.StatusActive, catalog.StatusOutOfStock,
		table.UpdatedAt,
		table.ID, catalog.StatusHidden,
		table.Name, table.Price, table.DiscountPercent, table.Sizes,
	)

	product := &catalog.Product{}
	var sizes string
	err := t.tx.QueryRow(context, query, productID, quantity).Scan(
		&product.ID, &product.Name, &product.Price, &product.DiscountPercent,
		&sizes, &product.Stock, &product.Status,
	)
	if err == nil {
		product.Sizes = catalog.SplitSizes(sizes)
		return product, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres_order_repo_reserve_failed: %w", err)
	}

	// ── Nothing reserved: explain why ──
	lookup := fmt.Sprintf(`SELECT %s, %s, %s FROM %s WHERE %s = $1`,
		table.Name, table.Stock, table.Status, table.Table, table.ID)

	var name string
	var stock int
	var status catalog.Status
	if err := t.tx.QueryRow(context, lookup, productID).Scan(&name, &stock, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("postgres_order_repo_reserve_lookup_failed: %w", err)
	}
	if status == catalog.StatusHidden {
		return nil, catalog.ErrProductNotFound
	}
	return nil, apperr.StockInsufficient(productID, name, stock)
}

// InsertOrder persists the header and assigns ID and timestamps.
func (t *postgresTx) InsertOrder(context context.Context, order *Order) error {
	table := schema.ShopOrder
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING %s, %s, %s`,
		table.Table,
		table.OrderNumber, table.UserID,
		table.CustomerName, table.CustomerEmail, table.CustomerPhone,
		table.CustomerAddress, table.CustomerCity, table.CustomerZip,
		table.TotalAmount, table.PaymentMethod, table.Status, table.VerificationCode,
		table.ID, table.CreatedAt, table.UpdatedAt,
	)

	customer := order.Customer
	err := t.tx.QueryRow(context, query,
		order.Number,
		order.UserID,
		customer.Name,
		customer.Email,
		customer.Phone,
		customer.Address,
		customer.City,
		customer.Zip,
		order.TotalAmount,
		order.PaymentMethod,
		order.Status,
		order.VerificationCode,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)

	if err != nil {
		if dberr.IsUniqueViolation(err) && dberr.ConstraintName(err) == orderNumberConstraint {
			return ErrNumberTaken
		}
		return fmt.Errorf("postgres_order_repo_insert_failed: %w", err)
	}
	return nil
}

// InsertItems writes every line in one pgx batch round trip.
func (t *postgresTx) InsertItems(context context.Context, orderID int64, items []Item) error {
	table := schema.ShopOrderItem
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s`,
		table.Table,
		table.OrderID, table.ProductID, table.ProductName, table.Size, table.Quantity, table.UnitPrice,
		table.ID,
	)

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(query, orderID, item.ProductID, item.ProductName, item.Size, item.Quantity, item.UnitPrice)
	}

	results := t.tx.SendBatch(context, batch)
	for i := range items {
		if err := results.QueryRow().Scan(&items[i].ID); err != nil {
			results.Close()
			return fmt.Errorf("postgres_order_repo_insert_items_failed: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("postgres_order_repo_insert_items_failed: %w", err)
	}
	return nil
}

// LockOrder reads an order header with SELECT ... FOR UPDATE.
func (t *postgresTx) LockOrder(context context.Context, number string) (*Order, error) {
	return t.lock(context, schema.ShopOrder.OrderNumber, number)
}

// LockOrderByID reads an order header with SELECT ... FOR UPDATE.
func (t *postgresTx) LockOrderByID(context context.Context, id int64) (*Order, error) {
	return t.lock(context, schema.ShopOrder.ID, id)
}

func (t *postgresTx) lock(context context.Context, column string, value any) (*Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 FOR UPDATE`, orderColumns, schema.ShopOrder.Table, column)

	order, err := scanOrder(t.tx.QueryRow(context, query, value))
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("postgres_order_repo_lock_failed: %w", err)
	}
	if err := loadItems(context, t.tx, []*Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

// SetStatus moves an order to status, keeping the previous payment id when
// paymentID is empty.
func (t *postgresTx) SetStatus(context context.Context, id int64, status Status, paymentID string) error {
	table := schema.ShopOrder
	query := fmt.Sprintf(`
		UPDATE %[1]s
		SET %[2]s = $2, %[3]s = COALESCE(NULLIF($3, ''), %[3]s), %[4]s = NOW()
		WHERE %[5]s = $1`,
		table.Table, table.Status, table.PaymentID, table.UpdatedAt, table.ID)

	tag, err := t.tx.Exec(context, query, id, status, paymentID)
	if err != nil {
		return fmt.Errorf("postgres_order_repo_set_status_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}
