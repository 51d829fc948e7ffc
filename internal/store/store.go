// Package store holds the hand-written pgx queries behind the service
// interfaces. Services depend on narrow interfaces; this package is the one
// concrete implementation, backed by the shared pool.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-pos/internal/catalog"
)

// Store implements the querier interfaces of catalog, pricing, analytics
// and events on top of a pgx pool.
type Store struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

const productColumns = `id, name, sku, category, price, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Category, &p.Price, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	if err != nil {
		return catalog.Product{}, fmt.Errorf("scan product: %w", err)
	}
	return p, nil
}

// GetProduct returns one product or catalog.ErrProductNotFound.
func (s *Store) GetProduct(ctx context.Context, id int64) (catalog.Product, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

// ListProducts returns one page of products plus the unpaged total.
func (s *Store) ListProducts(ctx context.Context, params catalog.ListParams) ([]catalog.Product, int64, error) {
	where := []string{"1=1"}
	args := []any{}
	if params.Query != "" {
		args = append(args, "%"+strings.ToLower(params.Query)+"%")
		where = append(where, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(COALESCE(sku, '')) LIKE $%d)", len(args), len(args)))
	}
	if params.Category != "" {
		args = append(args, params.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	offset := 0
	if params.Page > 1 {
		offset = (params.Page - 1) * params.PerPage
	}
	args = append(args, params.PerPage, offset)
	query := fmt.Sprintf(`SELECT %s FROM products WHERE %s ORDER BY name, id LIMIT $%d OFFSET $%d`,
		productColumns, cond, len(args)-1, len(args))
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := []catalog.Product{}
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.Category, &p.Price, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// CreateProduct inserts a product row.
func (s *Store) CreateProduct(ctx context.Context, in catalog.ProductInput) (catalog.Product, error) {
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	row := s.Pool.QueryRow(ctx,
		`INSERT INTO products (name, sku, category, price, is_active) VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+productColumns,
		in.Name, in.SKU, in.Category, in.Price, active,
	)
	return scanProduct(row)
}

// UpdateProduct overwrites the mutable fields of a product row.
func (s *Store) UpdateProduct(ctx context.Context, id int64, in catalog.ProductInput) (catalog.Product, error) {
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	row := s.Pool.QueryRow(ctx,
		`UPDATE products SET name = $2, sku = $3, category = $4, price = $5, is_active = $6, updated_at = now()
		 WHERE id = $1
		 RETURNING `+productColumns,
		id, in.Name, in.SKU, in.Category, in.Price, active,
	)
	return scanProduct(row)
}

// ListCategories returns the admin-managed category list.
func (s *Store) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []catalog.Category{}
	for rows.Next() {
		var c catalog.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetInventoryQuantity returns the on-hand quantity and whether an inventory
// row exists for the product.
func (s *Store) GetInventoryQuantity(ctx context.Context, productID int64) (int32, bool, error) {
	var qty int32
	err := s.Pool.QueryRow(ctx, `SELECT quantity FROM inventories WHERE product_id = $1`, productID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get inventory quantity: %w", err)
	}
	return qty, true, nil
}
