package orders

import "github.com/bigelephant/storefront/internal/platform/httpx"

// Order engine errors. Each carries a stable code and an HTTP class.
var (
	ErrEmptyOrder        = httpx.NewError(httpx.ErrValidation, "EmptyOrder", "order must contain at least one item")
	ErrProductNotFound   = httpx.NewError(httpx.ErrNotFound, "ProductNotFound", "product not found")
	ErrProductInactive   = httpx.NewError(httpx.ErrConflict, "ProductInactive", "product is not available")
	ErrInvalidQuantity   = httpx.NewError(httpx.ErrValidation, "InvalidQuantity", "quantity must be positive")
	ErrInsufficientStock = httpx.NewError(httpx.ErrConflict, "InsufficientStock", "insufficient stock")
	ErrOrderNotFound     = httpx.NewError(httpx.ErrNotFound, "OrderNotFound", "order not found")
	ErrOrderFinal        = httpx.NewError(httpx.ErrConflict, "OrderFinal", "order is final")
	ErrNoOpStatus        = httpx.NewError(httpx.ErrConflict, "NoOpStatus", "order already has this status")
	ErrIllegalTransition = httpx.NewError(httpx.ErrConflict, "IllegalTransition", "status transition not allowed")
	ErrUnknownStatus     = httpx.NewError(httpx.ErrValidation, "UnknownStatus", "unknown order status")
)
