package inmemdb

import (
	"context"
	"sync"

	"github.com/planbord/backend/core/inventory"
)

type productRepository struct {
	mutex    sync.RWMutex
	pkCount  int
	products map[int]*inventory.Product
}

var _ inventory.Repository = (*productRepository)(nil)

func NewProductRepository() *productRepository {
	return &productRepository{products: make(map[int]*inventory.Product)}
}

func (repo *productRepository) AddProduct(p inventory.Product) inventory.Product {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	repo.pkCount++
	p.ID = repo.pkCount
	repo.products[p.ID] = &p
	return p
}

func (repo *productRepository) ActiveProducts(ctx context.Context) ([]inventory.Product, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()

	products := make([]inventory.Product, 0, len(repo.products))
	for _, p := range repo.products {
		if p.IsActive {
			products = append(products, *p)
		}
	}
	return products, nil
}
