package models

// Product est la vue catalogue côté serveur utilisée pour valider un panier
type Product struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Price      float64  `json:"price"`
	Images     []string `json:"images"`
	Sizes      []string `json:"sizes"`
	Colors     []string `json:"colors"`
	StockCount int      `json:"stockCount"`
	InStock    bool     `json:"inStock"`
}

// ProductSnapshot est la copie du produit figée dans une commande
type ProductSnapshot struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Price   float64  `json:"price"`
	Images  []string `json:"images,omitempty"`
	InStock bool     `json:"inStock"`
}

// Snapshot fige le produit au prix donné
func (p Product) Snapshot(price float64) ProductSnapshot {
	return ProductSnapshot{
		ID:      p.ID,
		Name:    p.Name,
		Price:   price,
		Images:  p.Images,
		InStock: p.InStock,
	}
}
