package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the aggregate root of a purchase.
type Order struct {
	ID        int64
	UserID    int64
	Status    Status
	CreatedAt time.Time
	Items     []Item
}

// Total sums quantity times captured unit price over all items.
func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// Item is one order line. UnitPrice is fixed when the order is placed.
type Item struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Line is one requested (product, quantity) pair.
type Line struct {
	ProductID int64
	Quantity  int
}

// StockItem is the locked view of a product used while placing an order.
type StockItem struct {
	ProductID int64
	Name      string
	Price     decimal.Decimal
	Stock     int
	IsActive  bool
}

// PlacedEvent is published after an order commits.
type PlacedEvent struct {
	OrderID  int64           `json:"order_id"`
	UserID   int64           `json:"user_id"`
	Items    int             `json:"items"`
	Total    decimal.Decimal `json:"total"`
	PlacedAt time.Time       `json:"placed_at"`
}

// StatusChangedEvent is published after a status change commits.
type StatusChangedEvent struct {
	OrderID   int64     `json:"order_id"`
	UserID    int64     `json:"user_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	ActorID   int64     `json:"actor_id"`
	ByAdmin   bool      `json:"by_admin"`
	Restocked bool      `json:"restocked"`
	ChangedAt time.Time `json:"changed_at"`
}
