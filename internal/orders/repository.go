package orders

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

const orderColumns = `id, user_id, status, created_at`

// Repository persists orders in PostgreSQL.
type Repository struct {
	pool txPool
}

// txPool is the subset of *pgxpool.Pool the repository uses.
type txPool interface {
	db.Beginner
	querier
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction, retrying on
// serialization conflicts.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("orders repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// ListByUser lists a customer's orders, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	return listOrders(ctx, r.pool, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
}

// GetForUser loads an order only when userID owns it.
func (r *Repository) GetForUser(ctx context.Context, orderID, userID int64) (Order, error) {
	return getOrder(ctx, r.pool, `SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, orderID, userID)
}

// List returns one page of all orders and the total count.
func (r *Repository) List(ctx context.Context, page shared.PageRequest) ([]Order, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, err
	}
	list, err := listOrders(ctx, r.pool, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Get loads any order by id.
func (r *Repository) Get(ctx context.Context, orderID int64) (Order, error) {
	return getOrder(ctx, r.pool, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
}

func (r *txRepository) LockProducts(ctx context.Context, ids []int64) (map[int64]StockItem, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, name, price::text, stock, is_active FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := make(map[int64]StockItem, len(ids))
	for rows.Next() {
		var (
			item  StockItem
			price string
		)
		if err := rows.Scan(&item.ProductID, &item.Name, &price, &item.Stock, &item.IsActive); err != nil {
			return nil, err
		}
		if item.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("orders: parse price of product %d: %w", item.ProductID, err)
		}
		products[item.ProductID] = item
	}
	return products, rows.Err()
}

func (r *txRepository) SetStock(ctx context.Context, productID int64, stock int) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET stock = $2, updated_at = NOW() WHERE id = $1`, productID, stock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", productID, ErrProductNotFound)
	}
	return nil
}

func (r *txRepository) AddStock(ctx context.Context, productID int64, qty int) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1`, productID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", productID, ErrProductNotFound)
	}
	return nil
}

func (r *txRepository) InsertOrder(ctx context.Context, userID int64, status Status) (Order, error) {
	var o Order
	err := r.tx.QueryRow(ctx, `INSERT INTO orders (user_id, status, created_at, updated_at) VALUES ($1, $2, NOW(), NOW()) RETURNING `+orderColumns, userID, string(status)).
		Scan(&o.ID, &o.UserID, &o.Status, &o.CreatedAt)
	return o, err
}

func (r *txRepository) InsertItems(ctx context.Context, orderID int64, items []Item) ([]Item, error) {
	stored := make([]Item, 0, len(items))
	for _, item := range items {
		item.OrderID = orderID
		if err := r.tx.QueryRow(ctx, `INSERT INTO order_items (order_id, product_id, quantity, unit_price) VALUES ($1, $2, $3, $4::numeric) RETURNING id`,
			orderID, item.ProductID, item.Quantity, item.UnitPrice.StringFixed(2)).Scan(&item.ID); err != nil {
			return nil, err
		}
		stored = append(stored, item)
	}
	return stored, nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, orderID int64) (Order, error) {
	return getOrder(ctx, r.tx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID)
}

func (r *txRepository) UpdateStatus(ctx context.Context, orderID int64, status Status) error {
	_, err := r.tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, orderID, string(status))
	return err
}

func (r *txRepository) RecordAdminAction(ctx context.Context, adminID int64, action string) error {
	return shared.NewAuditLogger(r.tx).Record(ctx, adminID, action)
}

func getOrder(ctx context.Context, q querier, query string, args ...any) (Order, error) {
	var o Order
	if err := q.QueryRow(ctx, query, args...).Scan(&o.ID, &o.UserID, &o.Status, &o.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	items, err := loadItems(ctx, q, []int64{o.ID})
	if err != nil {
		return Order{}, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func listOrders(ctx context.Context, q querier, query string, args ...any) ([]Order, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	list := []Order{}
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return list, nil
	}
	ids := make([]int64, 0, len(list))
	for _, o := range list {
		ids = append(ids, o.ID)
	}
	items, err := loadItems(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Items = items[list[i].ID]
	}
	return list, nil
}

func loadItems(ctx context.Context, q querier, orderIDs []int64) (map[int64][]Item, error) {
	rows, err := q.Query(ctx, `SELECT oi.id, oi.order_id, oi.product_id, p.name, oi.quantity, oi.unit_price::text
FROM order_items oi
JOIN products p ON p.id = oi.product_id
WHERE oi.order_id = ANY($1)
ORDER BY oi.order_id, oi.id`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make(map[int64][]Item, len(orderIDs))
	for rows.Next() {
		var (
			item  Item
			price string
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Quantity, &price); err != nil {
			return nil, err
		}
		if item.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("orders: parse unit price of item %d: %w", item.ID, err)
		}
		items[item.OrderID] = append(items[item.OrderID], item)
	}
	return items, rows.Err()
}
