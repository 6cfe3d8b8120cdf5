package models

// CartItem est une ligne de panier telle qu'envoyée par le client.
// Quantity reste brute (nombre ou chaîne) et est convertie à la validation.
type CartItem struct {
	ProductID     string       `json:"productId"`
	Product       *CartProduct `json:"product,omitempty"`
	Quantity      any          `json:"quantity"`
	SelectedSize  string       `json:"selectedSize,omitempty"`
	SelectedColor string       `json:"selectedColor,omitempty"`
	Price         *float64     `json:"price,omitempty"`
}

// CartProduct est le produit imbriqué qu'envoient les anciens clients
type CartProduct struct {
	ID     string   `json:"id"`
	Price  *float64 `json:"price,omitempty"`
	Sizes  []string `json:"sizes,omitempty"`
	Colors []string `json:"colors,omitempty"`
}

// ResolvedProductID retourne l'id du produit, à plat ou imbriqué
func (i CartItem) ResolvedProductID() string {
	if i.ProductID != "" {
		return i.ProductID
	}
	if i.Product != nil {
		return i.Product.ID
	}
	return ""
}

// ClientPrice retourne le prix soumis par le client, s'il y en a un
func (i CartItem) ClientPrice() (float64, bool) {
	if i.Price != nil {
		return *i.Price, true
	}
	if i.Product != nil && i.Product.Price != nil {
		return *i.Product.Price, true
	}
	return 0, false
}

// CompactOrderItem est l'encodage minimal d'une ligne stocké dans les
// métadonnées Stripe. PriceAtCheckout est le montant réellement facturé.
type CompactOrderItem struct {
	ProductID       string  `json:"productId"`
	Quantity        int     `json:"quantity"`
	SelectedSize    string  `json:"selectedSize,omitempty"`
	SelectedColor   string  `json:"selectedColor,omitempty"`
	PriceAtCheckout float64 `json:"priceAtCheckout"`
}

// LegacyOrderItem est l'ancien format des métadonnées, produit complet inclus
type LegacyOrderItem struct {
	Product       ProductSnapshot `json:"product"`
	Quantity      int             `json:"quantity"`
	SelectedSize  string          `json:"selectedSize,omitempty"`
	SelectedColor string          `json:"selectedColor,omitempty"`
}
