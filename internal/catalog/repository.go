package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bigelephant/storefront/internal/platform/db"
	"github.com/bigelephant/storefront/internal/shared"
)

const productColumns = `id, name, price::text, stock, is_active, is_deleted, image_url, created_at, updated_at`

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("catalog repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// Get loads a product by id.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

// ListVisible lists active, non-deleted products.
func (r *Repository) ListVisible(ctx context.Context) ([]Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products WHERE is_active AND NOT is_deleted ORDER BY id`)
}

// ListAll lists every product.
func (r *Repository) ListAll(ctx context.Context) ([]Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
}

func (r *Repository) list(ctx context.Context, query string) ([]Product, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
}

func (r *txRepository) Insert(ctx context.Context, p Product) (Product, error) {
	return scanProduct(r.tx.QueryRow(ctx, `INSERT INTO products (name, price, stock, is_active, is_deleted, image_url, created_at, updated_at)
VALUES ($1, $2::numeric, $3, $4, $5, $6, NOW(), NOW())
RETURNING `+productColumns, p.Name, p.Price.StringFixed(2), p.Stock, p.IsActive, p.IsDeleted, p.ImageURL))
}

func (r *txRepository) Update(ctx context.Context, p Product) (Product, error) {
	return scanProduct(r.tx.QueryRow(ctx, `UPDATE products
SET name = $2, price = $3::numeric, stock = $4, is_active = $5, is_deleted = $6, image_url = $7, updated_at = NOW()
WHERE id = $1
RETURNING `+productColumns, p.ID, p.Name, p.Price.StringFixed(2), p.Stock, p.IsActive, p.IsDeleted, p.ImageURL))
}

func (r *txRepository) RecordAdminAction(ctx context.Context, adminID int64, action string) error {
	return shared.NewAuditLogger(r.tx).Record(ctx, adminID, action)
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p     Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.Stock, &p.IsActive, &p.IsDeleted, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	parsed, err := decimal.NewFromString(price)
	if err != nil {
		return Product{}, fmt.Errorf("catalog: parse price of product %d: %w", p.ID, err)
	}
	p.Price = parsed
	return p, nil
}
