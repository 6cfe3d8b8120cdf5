package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"storefront_back_end/internal/models"
)

// ProductsSchema crée la table produits lue par le checkout
var ProductsSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		product_id text PRIMARY KEY,
		name text,
		price double,
		images list<text>,
		sizes list<text>,
		colors list<text>,
		stock_count int,
		in_stock boolean,
		updated_at timestamp
	)`,
}

// maxStockRetries borne la boucle compare-and-set sur le stock
const maxStockRetries = 5

// ScyllaCatalog lit les produits et met à jour le stock par LWT
type ScyllaCatalog struct {
	session *gocql.Session
}

func NewScyllaCatalog(session *gocql.Session) *ScyllaCatalog {
	return &ScyllaCatalog{session: session}
}

func (c *ScyllaCatalog) EnsureSchema(ctx context.Context) error {
	return applySchema(ctx, c.session, ProductsSchema)
}

func (c *ScyllaCatalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	p := models.Product{ID: id}
	err := c.session.Query(`SELECT name, price, images, sizes, colors, stock_count, in_stock
		FROM products WHERE product_id = ?`, id).WithContext(ctx).
		Scan(&p.Name, &p.Price, &p.Images, &p.Sizes, &p.Colors, &p.StockCount, &p.InStock)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture produit %s: %w", id, err)
	}
	return &p, nil
}

// stockGuard donne la valeur courante et la condition LWT qui la vérifie.
// Une colonne nulle se lit 0 mais ne satisfait que "IF stock_count = null".
func stockGuard(stored *int) (int, string, []interface{}) {
	if stored == nil {
		return 0, "stock_count = null", nil
	}
	return *stored, "stock_count = ?", []interface{}{*stored}
}

func (c *ScyllaCatalog) UpdateStock(ctx context.Context, id string, fn func(current int) int) (int, int, error) {
	for attempt := 0; attempt < maxStockRetries; attempt++ {
		var stored *int
		err := c.session.Query(`SELECT stock_count FROM products WHERE product_id = ?`, id).
			WithContext(ctx).Scan(&stored)
		if errors.Is(err, gocql.ErrNotFound) {
			return 0, 0, ErrProductNotFound
		}
		if err != nil {
			return 0, 0, fmt.Errorf("lecture stock %s: %w", id, err)
		}

		current, cond, condArgs := stockGuard(stored)
		next := fn(current)
		args := append([]interface{}{next, next > 0, time.Now(), id}, condArgs...)
		applied, err := c.session.Query(`UPDATE products SET stock_count = ?, in_stock = ?, updated_at = ?
			WHERE product_id = ? IF `+cond, args...).
			WithContext(ctx).MapScanCAS(map[string]interface{}{})
		if err != nil {
			return 0, 0, fmt.Errorf("mise à jour stock %s: %w", id, err)
		}
		if applied {
			return current, next, nil
		}
	}
	return 0, 0, fmt.Errorf("mise à jour stock %s: trop de conflits concurrents", id)
}
