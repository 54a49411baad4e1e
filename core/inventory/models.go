package inventory

import (
	"context"
	"time"
)

type Product struct {
	ID              int       `db:"id" json:"id"`
	SKU             string    `db:"sku" json:"sku"`
	Name            string    `db:"name" json:"name"`
	CurrentQuantity int       `db:"current_quantity" json:"current_quantity"`
	MinimumQuantity int       `db:"minimum_quantity" json:"minimum_quantity"`
	ReorderQuantity int       `db:"reorder_quantity" json:"reorder_quantity"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// NeedsRestock reports whether the stock level has dropped below the minimum.
func (p Product) NeedsRestock() bool {
	return p.CurrentQuantity < p.MinimumQuantity
}

type Repository interface {
	ActiveProducts(ctx context.Context) ([]Product, error)
}
