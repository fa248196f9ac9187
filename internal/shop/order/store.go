// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package order

import (
	"context"
	"errors"

	"github.com/taibuivan/whiphelmets/internal/platform/apperr"
	"github.com/taibuivan/whiphelmets/internal/shop/catalog"
	"github.com/taibuivan/whiphelmets/pkg/pagination"
)

var (
	// ErrOrderNotFound is returned for missing orders and for orders the
	// requester may not see.
	ErrOrderNotFound = apperr.NotFound("Order")

	// ErrNumberTaken signals a collision on the unique order number. The
	// service retries checkout with a fresh number.
	ErrNumberTaken = errors.New("order: order number already taken")
)

// # Data Access

// Store defines the persistence contract of the ledger.
type Store interface {

	/*
		WithinTx runs fn in one transaction. Returning an error from fn rolls
		back every write made through tx.

		Parameters:
		  - context: context.Context
		  - fn: func(tx Tx) error

		Returns:
		  - error: fn's error, or begin/commit failures
	*/
	WithinTx(context context.Context, fn func(tx Tx) error) error

	/*
		FindByNumber returns an order with its lines.

		Parameters:
		  - context: context.Context
		  - number: string

		Returns:
		  - *Order: Hydrated order
		  - error: ErrOrderNotFound or database failures
	*/
	FindByNumber(context context.Context, number string) (*Order, error)

	// FindByID returns an order with its lines.
	FindByID(context context.Context, id int64) (*Order, error)

	/*
		ListForOwner returns every order placed by userID or carrying email
		as its contact address (case-insensitive), newest first.

		Parameters:
		  - context: context.Context
		  - userID: int64 (0 matches by email only)
		  - email: string ("" matches by user only)

		Returns:
		  - []*Order: Orders with their lines
		  - error: Database failures
	*/
	ListForOwner(context context.Context, userID int64, email string) ([]*Order, error)

	// List returns one page of orders for staff, newest first, and the total.
	List(context context.Context, filter Filter, page pagination.Params) ([]*Order, int, error)

	// SetCheckout records the hosted checkout created for an order.
	SetCheckout(context context.Context, id int64, preferenceID, checkoutURL string) error
}

// Tx is the set of writes that must commit together.
type Tx interface {

	/*
		ReserveStock decrements the product's stock by quantity if, and only
		if, enough stock remains and the product is not hidden.

		Parameters:
		  - context: context.Context
		  - productID: int64
		  - quantity: int

		Returns:
		  - *catalog.Product: The product after the decrement
		  - error: catalog.ErrProductNotFound, a STOCK_INSUFFICIENT AppError,
		    or database failures
	*/
	ReserveStock(context context.Context, productID int64, quantity int) (*catalog.Product, error)

	/*
		InsertOrder persists the order header and assigns ID and timestamps.

		Returns:
		  - error: ErrNumberTaken on a duplicate order number, or failures
	*/
	InsertOrder(context context.Context, order *Order) error

	// InsertItems persists the lines of orderID and assigns their IDs.
	InsertItems(context context.Context, orderID int64, items []Item) error

	// LockOrder reads an order header and locks its row until commit.
	LockOrder(context context.Context, number string) (*Order, error)

	// LockOrderByID is [Tx.LockOrder] by primary key.
	LockOrderByID(context context.Context, id int64) (*Order, error)

	// SetStatus updates status and, when paymentID is not empty, the payment reference.
	SetStatus(context context.Context, id int64, status Status, paymentID string) error
}
