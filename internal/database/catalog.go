package database

import (
	"context"
	"sync"

	"storefront_back_end/internal/models"
)

// Catalog expose les produits et leur stock.
// UpdateStock applique fn sur le stock courant de façon atomique par produit
// et positionne inStock selon le résultat.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	UpdateStock(ctx context.Context, id string, fn func(current int) int) (prev, next int, err error)
}

// MemoryCatalog est un catalogue en mémoire
type MemoryCatalog struct {
	mu       sync.Mutex
	products map[string]models.Product
}

func NewMemoryCatalog(products ...models.Product) *MemoryCatalog {
	c := &MemoryCatalog{products: make(map[string]models.Product)}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

// Put ajoute ou remplace un produit
func (c *MemoryCatalog) Put(p models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

// Delete retire un produit du catalogue
func (c *MemoryCatalog) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, id)
}

func (c *MemoryCatalog) GetProduct(_ context.Context, id string) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	p.Images = append([]string(nil), p.Images...)
	p.Sizes = append([]string(nil), p.Sizes...)
	p.Colors = append([]string(nil), p.Colors...)
	return &p, nil
}

func (c *MemoryCatalog) UpdateStock(_ context.Context, id string, fn func(current int) int) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.products[id]
	if !ok {
		return 0, 0, ErrProductNotFound
	}
	prev := p.StockCount
	p.StockCount = fn(prev)
	p.InStock = p.StockCount > 0
	c.products[id] = p
	return prev, p.StockCount, nil
}
