// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

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
	"github.com/taibuivan/whiphelmets/pkg/pagination"
)

// productColumns is the projection scanned by [scanProduct].
var productColumns = strings.Join(schema.ShopProduct.Columns(), ", ")

// # PostgreSQL Repository

// PostgresRepository implements [Repository] using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed product store.
func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func scanProduct(row pgx.Row, extra ...any) (*Product, error) {
	product := &Product{}
	var sizes string
	targets := []any{
		&product.ID,
		&product.Name,
		&product.Slug,
		&product.Brand,
		&product.Description,
		&product.Price,
		&product.DiscountPercent,
		&product.Category,
		&sizes,
		&product.Stock,
		&product.Image,
		&product.Images,
		&product.Status,
		&product.CreatedAt,
		&product.UpdatedAt,
	}
	if err := row.Scan(append(targets, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	product.Sizes = SplitSizes(sizes)
	if product.Images == nil {
		product.Images = []string{}
	}
	return product, nil
}

// escapeLike neutralises LIKE wildcards in user input.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

/*
List returns a filtered, paginated slice of products and the total count.

Description: The total comes from a COUNT(*) OVER() window so one round trip
serves both. The text query is matched against name and brand with unaccent,
so "rapido" finds "Rápido".

Parameters:
  - context: context.Context
  - filter: Filter
  - page: pagination.Params

Returns:
  - []*Product: Page of products
  - int: Total count matching filters
  - error: Database execution errors
*/
func (repository *PostgresRepository) List(context context.Context, filter Filter, page pagination.Params) ([]*Product, int, error) {
	var queryBuilder strings.Builder
	var args []any
	argID := 1

	queryBuilder.WriteString(fmt.Sprintf(`SELECT %s, COUNT(*) OVER() AS total_count FROM %s WHERE TRUE`,
		productColumns, schema.ShopProduct.Table))

	if !filter.IncludeHidden {
		queryBuilder.WriteString(fmt.Sprintf(" AND %s <> '%s'", schema.ShopProduct.Status, StatusHidden))
	}

	if filter.InStock {
		queryBuilder.WriteString(fmt.Sprintf(" AND %s > 0", schema.ShopProduct.Stock))
	}

	if filter.Category != "" {
		queryBuilder.WriteString(fmt.Sprintf(" AND lower(%s) = lower($%d)", schema.ShopProduct.Category, argID))
		args = append(args, filter.Category)
		argID++
	}

	if filter.Brand != "" {
		queryBuilder.WriteString(fmt.Sprintf(" AND lower(%s) = lower($%d)", schema.ShopProduct.Brand, argID))
		args = append(args, filter.Brand)
		argID++
	}

	// Search Query Filtering
	if filter.Query != "" {
		queryBuilder.WriteString(fmt.Sprintf(
			` AND unaccent(lower(%s || ' ' || %s)) LIKE '%%' || unaccent($%d) || '%%'`,
			schema.ShopProduct.Name, schema.ShopProduct.Brand, argID))
		args = append(args, escapeLike(filter.Query))
		argID++
	}

	queryBuilder.WriteString(fmt.Sprintf(" ORDER BY %s DESC, %s DESC LIMIT $%d OFFSET $%d",
		schema.ShopProduct.CreatedAt, schema.ShopProduct.ID, argID, argID+1))
	args = append(args, page.Limit, page.Offset())

	rows, err := repository.pool.Query(context, queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_product_repo_list_failed: %w", err)
	}
	defer rows.Close()

	products := []*Product{}
	var total int
	for rows.Next() {
		product, err := scanProduct(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres_product_repo_scan_failed: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres_product_repo_list_failed: %w", err)
	}

	return products, total, nil
}

// FindByID retrieves a product by primary key.
func (repository *PostgresRepository) FindByID(context context.Context, id int64) (*Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, productColumns, schema.ShopProduct.Table, schema.ShopProduct.ID)
	product, err := scanProduct(repository.pool.QueryRow(context, query, id))
	if err != nil && !errors.Is(err, ErrProductNotFound) {
		return nil, fmt.Errorf("postgres_product_repo_find_by_id_failed: %w", err)
	}
	return product, err
}

// FindBySlug retrieves a product by its unique slug.
func (repository *PostgresRepository) FindBySlug(context context.Context, slug string) (*Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, productColumns, schema.ShopProduct.Table, schema.ShopProduct.Slug)
	product, err := scanProduct(repository.pool.QueryRow(context, query, slug))
	if err != nil && !errors.Is(err, ErrProductNotFound) {
		return nil, fmt.Errorf("postgres_product_repo_find_by_slug_failed: %w", err)
	}
	return product, err
}

/*
Create persists a new product.

Returns:
  - error: Conflict when the slug is taken, or connectivity errors
*/
func (repository *PostgresRepository) Create(context context.Context, product *Product) error {
	table := schema.ShopProduct
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING %s, %s, %s`,
		table.Table,
		table.Name, table.Slug, table.Brand, table.Description, table.Price, table.DiscountPercent,
		table.Category, table.Sizes, table.Stock, table.Image, table.Images, table.Status,
		table.ID, table.CreatedAt, table.UpdatedAt,
	)

	err := repository.pool.QueryRow(context, query,
		product.Name,
		product.Slug,
		product.Brand,
		product.Description,
		product.Price,
		product.DiscountPercent,
		product.Category,
		JoinSizes(product.Sizes),
		product.Stock,
		product.Image,
		product.Images,
		product.Status,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)

	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return slugConflict()
		}
		return fmt.Errorf("postgres_product_repo_create_failed: %w", err)
	}
	return nil
}

// patchAssignments renders only the provided fields, each to its own column.
func patchAssignments(patch ProductPatch) *postgres.Assignments {
	table := schema.ShopProduct
	assignments := &postgres.Assignments{}

	if patch.Name != nil {
		assignments.Set(table.Name, *patch.Name)
	}
	if patch.Brand != nil {
		assignments.Set(table.Brand, *patch.Brand)
	}
	if patch.Description != nil {
		assignments.Set(table.Description, *patch.Description)
	}
	if patch.Price != nil {
		assignments.Set(table.Price, *patch.Price)
	}
	if patch.DiscountPercent != nil {
		assignments.Set(table.DiscountPercent, *patch.DiscountPercent)
	}
	if patch.ClearDiscount {
		assignments.SetRaw(table.DiscountPercent, "NULL")
	}
	if patch.Category != nil {
		assignments.Set(table.Category, *patch.Category)
	}
	if patch.Sizes != nil {
		assignments.Set(table.Sizes, JoinSizes(*patch.Sizes))
	}
	if patch.Stock != nil {
		assignments.Set(table.Stock, *patch.Stock)
	}
	if patch.Image != nil {
		assignments.Set(table.Image, *patch.Image)
	}
	if patch.Images != nil {
		assignments.Set(table.Images, *patch.Images)
	}
	if patch.Status != nil {
		assignments.Set(table.Status, *patch.Status)
	}
	return assignments
}

/*
Update applies a partial update.

Description: Column names come from the fixed schema table; values are bound
as positional parameters.
*/
func (repository *PostgresRepository) Update(context context.Context, id int64, patch ProductPatch) (*Product, error) {
	assignments := patchAssignments(patch)
	if assignments.Len() == 0 && !patch.ClearDiscount {
		return repository.FindByID(context, id)
	}
	assignments.SetRaw(schema.ShopProduct.UpdatedAt, "NOW()")

	query, args := assignments.Build(schema.ShopProduct.Table, schema.ShopProduct.ID, id, productColumns)
	product, err := scanProduct(repository.pool.QueryRow(context, query, args...))
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("postgres_product_repo_update_failed: %w", err)
	}
	return product, nil
}

// Delete removes a product. Order items reference products weakly.
func (repository *PostgresRepository) Delete(context context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, schema.ShopProduct.Table, schema.ShopProduct.ID)
	result, err := repository.pool.Exec(context, query, id)
	if err != nil {
		return fmt.Errorf("postgres_product_repo_delete_failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func slugConflict() *apperr.AppError {
	ae := apperr.Conflict("A product with this slug already exists")
	ae.Details = []apperr.FieldError{{Field: FieldSlug, Message: "Already in use"}}
	return ae
}
