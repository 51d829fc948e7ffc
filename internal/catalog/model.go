package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrProductNotFound is returned when a product id resolves to nothing.
var ErrProductNotFound = errors.New("product not found")

// Product is the catalog row the pricing engine reads. Price is the base
// price used when no price history record applies.
type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	SKU       *string         `json:"sku,omitempty"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Category is an admin-managed grouping for products.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query    string
	Category string
	Page     int
	PerPage  int
}

// ProductInput is the payload for creating or updating a product.
type ProductInput struct {
	Name     string          `json:"name" validate:"required"`
	SKU      *string         `json:"sku"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Active   *bool           `json:"active"`
}
