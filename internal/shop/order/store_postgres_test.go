// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package order_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/whiphelmets/internal/platform/migration"
	"github.com/taibuivan/whiphelmets/internal/platform/postgres"
	"github.com/taibuivan/whiphelmets/internal/platform/sec"
	"github.com/taibuivan/whiphelmets/internal/shop/order"
)

// openLedger migrates and truncates the database named by TEST_DATABASE_URL.
// Tests using it are skipped when the variable is unset.
func openLedger(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	logger := discardLogger()
	require.NoError(t, migration.RunUp(dsn, "../../../data/migrations", logger))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, dsn, logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE shop.order_item, shop.orders, shop.product RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return pool
}

func insertProduct(t *testing.T, pool *pgxpool.Pool, name string, price string, stock int) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(), `
		INSERT INTO shop.product (name, slug, brand, price, category, sizes, stock, status)
		VALUES ($1, lower(replace($1, ' ', '-')), 'Fox', $2::numeric, 'Cascos', 'S,M,L', $3, 'active')
		RETURNING id`, name, price, stock,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func productState(t *testing.T, pool *pgxpool.Pool, id int64) (int, string) {
	t.Helper()
	var (
		stock  int
		status string
	)
	err := pool.QueryRow(context.Background(), `SELECT stock, status FROM shop.product WHERE id = $1`, id).Scan(&stock, &status)
	require.NoError(t, err)
	return stock, status
}

func ledgerService(pool *pgxpool.Pool) *order.Service {
	signer := sec.NewOrderLinkSigner("test-secret", "whiphelmets", time.Hour)
	return order.NewService(order.NewStore(pool), signer, nil, nil, order.Settings{PublicBaseURL: "https://shop.example.com"}, discardLogger())
}

/*
TestPostgresLedger_ConcurrentCheckout verifies concurrent buyers never
oversell: exactly as many orders succeed as there were units in stock.
*/
func TestPostgresLedger_ConcurrentCheckout(t *testing.T) {
	pool := openLedger(t)
	service := ledgerService(pool)
	productID := insertProduct(t, pool, "Casco FOX V3", "895000.00", 5)

	const buyers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.CreateOrder(context.Background(), transferInput(line(productID, 1)), nil)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			if appCode(err) == "STOCK_INSUFFICIENT" {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, buyers-5, rejected)

	stock, status := productState(t, pool, productID)
	assert.Equal(t, 0, stock)
	assert.Equal(t, "out_of_stock", status)

	var orders int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT count(*) FROM shop.orders`).Scan(&orders))
	assert.Equal(t, 5, orders)
}

/*
TestPostgresLedger_Atomicity verifies a line without stock rolls back the
reservations of the lines before it.
*/
func TestPostgresLedger_Atomicity(t *testing.T) {
	pool := openLedger(t)
	service := ledgerService(pool)
	plenty := insertProduct(t, pool, "Casco FOX V1", "500000.00", 10)
	scarce := insertProduct(t, pool, "Casco Aircraft 2", "1200000.00", 1)

	_, err := service.CreateOrder(context.Background(), transferInput(line(plenty, 3), line(scarce, 2)), nil)
	require.Error(t, err)
	assert.Equal(t, "STOCK_INSUFFICIENT", appCode(err))

	plentyStock, _ := productState(t, pool, plenty)
	scarceStock, _ := productState(t, pool, scarce)
	assert.Equal(t, 10, plentyStock)
	assert.Equal(t, 1, scarceStock)

	var orders, items int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT count(*) FROM shop.orders`).Scan(&orders))
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT count(*) FROM shop.order_item`).Scan(&items))
	assert.Zero(t, orders)
	assert.Zero(t, items)
}

/*
TestPostgresLedger_DeletedProduct verifies orders keep their lines after the
product row is removed.
*/
func TestPostgresLedger_DeletedProduct(t *testing.T) {
	pool := openLedger(t)
	service := ledgerService(pool)
	productID := insertProduct(t, pool, "Guantes CROSS", "50000.00", 4)

	receipt, err := service.CreateOrder(context.Background(), transferInput(line(productID, 2)), nil)
	require.NoError(t, err)
	assert.True(t, receipt.TotalAmount.Equal(decimal.NewFromInt(100000)))

	_, err = pool.Exec(context.Background(), `DELETE FROM shop.product WHERE id = $1`, productID)
	require.NoError(t, err)

	admin := &sec.Principal{UserID: 99, Role: sec.RoleAdmin}
	stored, err := service.GetOrder(context.Background(), receipt.Number, admin, "")
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)

	item := stored.Items[0]
	assert.True(t, item.ProductDeleted)
	assert.Equal(t, "Guantes CROSS", item.ProductName)
	assert.Equal(t, 2, item.Quantity)
	assert.True(t, stored.TotalAmount.Equal(item.Subtotal()))
}
