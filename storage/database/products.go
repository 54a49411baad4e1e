package database

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/planbord/backend/core/inventory"
)

type productRepository struct {
	db *sqlx.DB
}

var _ inventory.Repository = (*productRepository)(nil)

func NewProductRepository(db *sqlx.DB) inventory.Repository {
	return &productRepository{db: db}
}

func (repo *productRepository) ActiveProducts(ctx context.Context) ([]inventory.Product, error) {
	products := make([]inventory.Product, 0)
	err := repo.db.SelectContext(ctx, &products,
		`SELECT id, sku, name, current_quantity, minimum_quantity, reorder_quantity, is_active, updated_at
		 FROM product
		 WHERE is_active = true
		 ORDER BY sku`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying active products")
	}
	return products, nil
}
