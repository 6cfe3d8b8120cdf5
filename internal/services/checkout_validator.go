package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"storefront_back_end/internal/database"
	"storefront_back_end/internal/models"
)

// ValidationError est une erreur de checkout à renvoyer telle quelle en 400
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// CheckoutRequest est le corps de POST /api/checkout/session
type CheckoutRequest struct {
	Items           []models.CartItem       `json:"items"`
	UserID          *string                 `json:"userId,omitempty"`
	ShippingAddress *models.ShippingAddress `json:"shippingAddress,omitempty"`
	SuccessURL      *string                 `json:"successUrl,omitempty"`
	CancelURL       *string                 `json:"cancelUrl,omitempty"`
	IdempotencyKey  string                  `json:"idempotencyKey,omitempty"`
}

// ValidatedLine est une ligne de panier confrontée au catalogue
type ValidatedLine struct {
	Product       models.Product
	Quantity      int
	SelectedSize  string
	SelectedColor string
	Price         float64
}

// ValidatedCheckout est un panier prêt à être envoyé à Stripe
type ValidatedCheckout struct {
	Lines           []ValidatedLine
	UserID          string
	ShippingAddress *models.ShippingAddress
	SuccessURL      string
	CancelURL       string
}

// CheckoutValidator vérifie un panier contre les données produit du serveur
type CheckoutValidator struct {
	catalog database.Catalog
	baseURL *url.URL
	base    string
}

func NewCheckoutValidator(catalog database.Catalog, baseURL string) (*CheckoutValidator, error) {
	base := strings.TrimRight(baseURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("BASE_URL invalide: %q", baseURL)
	}
	return &CheckoutValidator{catalog: catalog, baseURL: u, base: base}, nil
}

// Validate applique les contrôles dans un ordre fixe ; le premier échec l'emporte
func (v *CheckoutValidator) Validate(ctx context.Context, req CheckoutRequest) (*ValidatedCheckout, error) {
	// 1. Articles présents, chacun avec un id produit
	if len(req.Items) == 0 {
		return nil, invalid("Cart is empty")
	}
	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		ids[i] = strings.TrimSpace(item.ResolvedProductID())
		if ids[i] == "" {
			return nil, invalid("Item at index %d is missing a product ID", i)
		}
	}

	// 2. Quantités entières ≥ 1
	quantities := make([]int, len(req.Items))
	for i, item := range req.Items {
		q, ok := coerceQuantity(item.Quantity)
		if !ok {
			return nil, invalid("Invalid quantity for product %s: must be an integer of at least 1", ids[i])
		}
		quantities[i] = q
	}

	// 3. Taille et couleur parmi celles déclarées par le produit envoyé
	for i, item := range req.Items {
		if item.Product == nil {
			continue
		}
		if err := checkVariant(ids[i], item, item.Product.Sizes, item.Product.Colors); err != nil {
			return nil, err
		}
	}

	// 4. Adresse complète
	if req.ShippingAddress != nil {
		if field := req.ShippingAddress.MissingField(); field != "" {
			return nil, invalid("Shipping address is missing %s", field)
		}
	}

	// 5. Utilisateur non vide
	userID := GuestUserID
	if req.UserID != nil {
		trimmed := strings.TrimSpace(*req.UserID)
		if trimmed == "" {
			return nil, invalid("Invalid user ID")
		}
		userID = trimmed
	}

	// 6. URLs de redirection sur la même origine
	successURL := v.base + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"
	if req.SuccessURL != nil {
		resolved, ok := v.resolveRedirect(*req.SuccessURL)
		if !ok {
			return nil, invalid("Invalid success URL: must be relative or on %s", v.base)
		}
		successURL = resolved
	}
	cancelURL := v.base + "/cart"
	if req.CancelURL != nil {
		resolved, ok := v.resolveRedirect(*req.CancelURL)
		if !ok {
			return nil, invalid("Invalid cancel URL: must be relative or on %s", v.base)
		}
		cancelURL = resolved
	}

	// 7. Produits existants, chargés en parallèle
	products, err := v.fetchProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if products[id] == nil {
			return nil, invalid("Product not found: %s", id)
		}
	}

	// Les variantes sont revérifiées contre le catalogue serveur, avant tout contrôle de stock
	for i, item := range req.Items {
		product := products[ids[i]]
		if err := checkVariant(ids[i], item, product.Sizes, product.Colors); err != nil {
			return nil, err
		}
	}

	lines := make([]ValidatedLine, len(req.Items))
	for i, item := range req.Items {
		product := products[ids[i]]

		// 8. Stock suffisant
		if !product.InStock || product.StockCount <= 0 {
			return nil, invalid("Product %s is out of stock", ids[i])
		}
		if product.StockCount < quantities[i] {
			return nil, invalid("Insufficient stock for product %s: requested %d, available %d",
				ids[i], quantities[i], product.StockCount)
		}

		// 9. Prix client identique au prix catalogue
		clientPrice, ok := item.ClientPrice()
		if !ok {
			return nil, invalid("Missing price for product %s", ids[i])
		}
		if clientPrice != product.Price {
			return nil, invalid("Price mismatch for product %s: submitted %v, current price %v",
				ids[i], clientPrice, product.Price)
		}

		lines[i] = ValidatedLine{
			Product:       *product,
			Quantity:      quantities[i],
			SelectedSize:  item.SelectedSize,
			SelectedColor: item.SelectedColor,
			Price:         product.Price,
		}
	}

	return &ValidatedCheckout{
		Lines:           lines,
		UserID:          userID,
		ShippingAddress: req.ShippingAddress,
		SuccessURL:      successURL,
		CancelURL:       cancelURL,
	}, nil
}

// fetchProducts charge chaque produit distinct ; un produit absent vaut nil
func (v *CheckoutValidator) fetchProducts(ctx context.Context, ids []string) (map[string]*models.Product, error) {
	unique := make(map[string]*models.Product, len(ids))
	for _, id := range ids {
		unique[id] = nil
	}
	distinct := make([]string, 0, len(unique))
	for id := range unique {
		distinct = append(distinct, id)
	}

	fetched := make([]*models.Product, len(distinct))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range distinct {
		i, id := i, id
		g.Go(func() error {
			p, err := v.catalog.GetProduct(gctx, id)
			if errors.Is(err, database.ErrProductNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("chargement produit %s: %w", id, err)
			}
			fetched[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, id := range distinct {
		unique[id] = fetched[i]
	}
	return unique, nil
}

// resolveRedirect accepte un chemin relatif ("/…") ou une URL de même origine
func (v *CheckoutValidator) resolveRedirect(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if strings.HasPrefix(raw, "/") {
		if strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
			return "", false
		}
		return v.base + raw, true
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return "", false
	}
	if !strings.EqualFold(u.Scheme, v.baseURL.Scheme) || !strings.EqualFold(u.Host, v.baseURL.Host) {
		return "", false
	}
	return raw, true
}

func checkVariant(id string, item models.CartItem, sizes, colors []string) error {
	if len(sizes) > 0 && !contains(sizes, item.SelectedSize) {
		return invalid("Invalid size %q for product %s", item.SelectedSize, id)
	}
	if len(colors) > 0 && !contains(colors, item.SelectedColor) {
		return invalid("Invalid color %q for product %s", item.SelectedColor, id)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// coerceQuantity accepte un nombre ou une chaîne numérique entière ≥ 1
func coerceQuantity(v any) (int, bool) {
	var f float64
	switch q := v.(type) {
	case int:
		f = float64(q)
	case int64:
		f = float64(q)
	case float64:
		f = q
	case json.Number:
		n, err := q.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(q), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < 1 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
