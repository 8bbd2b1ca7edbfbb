package orders

import (
	"fmt"
	"slices"
)

// reservation is the outcome of checking order lines against locked stock.
type reservation struct {
	items []Item
	stock map[int64]int
}

// reserve walks lines in order, validating each against products and decrementing a
// working copy of stock so repeated lines for one product accumulate. The first failing
// line aborts with no partial result.
func reserve(lines []Line, products map[int64]StockItem) (reservation, error) {
	if len(lines) == 0 {
		return reservation{}, ErrEmptyOrder
	}
	res := reservation{items: make([]Item, 0, len(lines)), stock: make(map[int64]int)}
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			return reservation{}, fmt.Errorf("product %d: %w", line.ProductID, ErrProductNotFound)
		}
		if !product.IsActive {
			return reservation{}, fmt.Errorf("product %d: %w", line.ProductID, ErrProductInactive)
		}
		if line.Quantity <= 0 {
			return reservation{}, fmt.Errorf("product %d quantity %d: %w", line.ProductID, line.Quantity, ErrInvalidQuantity)
		}
		available, seen := res.stock[line.ProductID]
		if !seen {
			available = product.Stock
		}
		if line.Quantity > available {
			return reservation{}, fmt.Errorf("product %d: requested %d, available %d: %w", line.ProductID, line.Quantity, available, ErrInsufficientStock)
		}
		res.stock[line.ProductID] = available - line.Quantity
		res.items = append(res.items, Item{
			ProductID:   line.ProductID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   product.Price,
		})
	}
	return res, nil
}

// productIDs returns the distinct product ids of lines in ascending order, the order in
// which rows are locked.
func productIDs(lines []Line) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
