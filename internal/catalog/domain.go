package catalog

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/bigelephant/storefront/internal/platform/httpx"
)

// MaxNameLength bounds product names, in characters.
const MaxNameLength = 200

// Product is a catalog entry.
type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	IsActive  bool            `json:"isActive"`
	IsDeleted bool            `json:"isDeleted"`
	ImageURL  *string         `json:"imageUrl,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Visible reports whether customers may see the product.
func (p Product) Visible() bool {
	return p.IsActive && !p.IsDeleted
}

// PublicProduct is the customer-facing projection of a visible product.
type PublicProduct struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	ImageURL *string         `json:"imageUrl,omitempty"`
}

// Public projects p for customers.
func (p Product) Public() PublicProduct {
	return PublicProduct{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock, ImageURL: p.ImageURL}
}

// CreateInput carries the fields of a new product.
type CreateInput struct {
	Name     string
	Price    decimal.Decimal
	Stock    int
	ImageURL *string
}

// Patch is a partial update; nil fields are left untouched. ClearImage removes the image.
type Patch struct {
	Name       *string
	Price      *decimal.Decimal
	Stock      *int
	IsActive   *bool
	ImageURL   *string
	ClearImage bool
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Price == nil && p.Stock == nil && p.IsActive == nil && p.ImageURL == nil && !p.ClearImage
}

// ErrProductNotFound indicates that no product has the requested id.
var ErrProductNotFound = httpx.NewError(httpx.ErrNotFound, "ProductNotFound", "product not found")

// NormalizeName trims and NFC-normalises a product name and checks its length.
func NormalizeName(name string) (string, error) {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return "", fmt.Errorf("%w: name is required", httpx.ErrValidation)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", fmt.Errorf("%w: name must be at most %d characters", httpx.ErrValidation, MaxNameLength)
	}
	return name, nil
}

// NormalizePrice rounds to cents and requires a strictly positive result.
func NormalizePrice(price decimal.Decimal) (decimal.Decimal, error) {
	price = price.Round(2)
	if !price.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: price must be greater than zero", httpx.ErrValidation)
	}
	return price, nil
}

// MaxStock is the largest stock level the products.stock INTEGER column holds.
const MaxStock = math.MaxInt32

// ValidateStock rejects stock levels outside [0, MaxStock].
func ValidateStock(stock int) error {
	if stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", httpx.ErrValidation)
	}
	if stock > MaxStock {
		return fmt.Errorf("%w: stock must not exceed %d", httpx.ErrValidation, MaxStock)
	}
	return nil
}

func normalizeImage(url *string) *string {
	if url == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*url)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
