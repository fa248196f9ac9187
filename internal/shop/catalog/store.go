// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"context"

	"github.com/taibuivan/whiphelmets/internal/platform/apperr"
	"github.com/taibuivan/whiphelmets/pkg/pagination"
)

// ErrProductNotFound is returned by [Repository] lookups that match no row.
var ErrProductNotFound = apperr.NotFound("Product")

// # Data Access

// Repository defines persistence operations for products.
type Repository interface {
	/*
		List returns one page of products matching filter and the total count.

		Parameters:
		  - context: context.Context
		  - filter: Filter
		  - page: pagination.Params

		Returns:
		  - []*Product: Page of products, newest first
		  - int: Total matching products
		  - error: Database failures
	*/
	List(context context.Context, filter Filter, page pagination.Params) ([]*Product, int, error)

	// FindByID returns ErrProductNotFound when no row matches.
	FindByID(context context.Context, id int64) (*Product, error)

	// FindBySlug returns ErrProductNotFound when no row matches.
	FindBySlug(context context.Context, slug string) (*Product, error)

	// Create inserts product and fills its ID and timestamps. A taken slug is a Conflict.
	Create(context context.Context, product *Product) error

	// Update applies patch and returns the updated row.
	Update(context context.Context, id int64, patch ProductPatch) (*Product, error)

	// Delete removes the product. Order items keep their snapshot.
	Delete(context context.Context, id int64) error
}
