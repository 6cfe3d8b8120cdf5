package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront_back_end/internal/models"
)

func newTestValidator(t *testing.T) *CheckoutValidator {
	t.Helper()
	v, err := NewCheckoutValidator(testCatalog(), "https://shop.example.com/")
	require.NoError(t, err)
	return v
}

func validationMessage(t *testing.T, err error) string {
	t.Helper()
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr), "expected a validation error, got %v", err)
	return vErr.Message
}

func validAddress() *models.ShippingAddress {
	return &models.ShippingAddress{
		FullName: "Jane Doe",
		Street:   "1 Rue de la Paix",
		City:     "Paris",
		State:    "IDF",
		Zip:      "75002",
		Country:  "FR",
	}
}

func TestValidate_HappyPath(t *testing.T) {
	v := newTestValidator(t)
	item := cartItem("p1", 2, 49.99)
	item.SelectedSize = "M"
	item.SelectedColor = "Sand"

	out, err := v.Validate(context.Background(), CheckoutRequest{
		Items:           []models.CartItem{item, cartItem("p2", "3", 20)},
		UserID:          ptr("  user-42 "),
		ShippingAddress: validAddress(),
	})
	require.NoError(t, err)

	require.Len(t, out.Lines, 2)
	assert.Equal(t, 2, out.Lines[0].Quantity)
	assert.Equal(t, 3, out.Lines[1].Quantity)
	assert.Equal(t, 49.99, out.Lines[0].Price)
	assert.Equal(t, "user-42", out.UserID)
	assert.Equal(t, "https://shop.example.com/checkout/success?session_id={CHECKOUT_SESSION_ID}", out.SuccessURL)
	assert.Equal(t, "https://shop.example.com/cart", out.CancelURL)
}

func TestValidate_DefaultsToGuest(t *testing.T) {
	v := newTestValidator(t)
	out, err := v.Validate(context.Background(), CheckoutRequest{Items: []models.CartItem{cartItem("p2", 1, 20)}})
	require.NoError(t, err)
	assert.Equal(t, GuestUserID, out.UserID)
}

func TestValidate_Failures(t *testing.T) {
	sized := cartItem("p1", 1, 49.99)
	sized.SelectedSize = "XXL"
	sized.SelectedColor = "White"

	colored := cartItem("p1", 1, 49.99)
	colored.SelectedSize = "M"
	colored.SelectedColor = "Neon"

	declared := models.CartItem{
		Product:      &models.CartProduct{ID: "p2", Price: ptr(20.0), Sizes: []string{"One"}},
		Quantity:     1,
		SelectedSize: "Two",
	}

	badAddress := validAddress()
	badAddress.City = "   "

	tests := []struct {
		name string
		req  CheckoutRequest
		want string
	}{
		{"empty cart", CheckoutRequest{}, "Cart is empty"},
		{"missing product id", CheckoutRequest{Items: []models.CartItem{{Quantity: 1}}}, "Item at index 0 is missing a product ID"},
		{"zero quantity", CheckoutRequest{Items: []models.CartItem{cartItem("p2", 0, 20)}}, "Invalid quantity for product p2: must be an integer of at least 1"},
		{"fractional quantity", CheckoutRequest{Items: []models.CartItem{cartItem("p2", 1.5, 20)}}, "Invalid quantity for product p2: must be an integer of at least 1"},
		{"non numeric quantity", CheckoutRequest{Items: []models.CartItem{cartItem("p2", "two", 20)}}, "Invalid quantity for product p2: must be an integer of at least 1"},
		{"size not offered", CheckoutRequest{Items: []models.CartItem{sized}}, `Invalid size "XXL" for product p1`},
		{"color not offered", CheckoutRequest{Items: []models.CartItem{colored}}, `Invalid color "Neon" for product p1`},
		{"size outside declared list", CheckoutRequest{Items: []models.CartItem{declared}}, `Invalid size "Two" for product p2`},
		{"blank address field", CheckoutRequest{Items: []models.CartItem{cartItem("p2", 1, 20)}, ShippingAddress: badAddress}, "Shipping address is missing city"},
		{"blank user id", CheckoutRequest{Items: []models.CartItem{cartItem("p2", 1, 20)}, UserID: ptr("  ")}, "Invalid user ID"},
		{"foreign success url", CheckoutRequest{Items: []models.CartItem{cartItem("p2", 1, 20)}, SuccessURL: ptr("https://evil.example.com/ok")}, "Invalid success URL: must be relative or on https://shop.example.com"},
		{"protocol relative cancel url", CheckoutRequest{Items: []models.CartItem{cartItem("p2", 1, 20)}, CancelURL: ptr("//evil.example.com")}, "Invalid cancel URL: must be relative or on https://shop.example.com"},
		{"unknown product", CheckoutRequest{Items: []models.CartItem{cartItem("ghost", 1, 20)}}, "Product not found: ghost"},
		{"out of stock", CheckoutRequest{Items: []models.CartItem{cartItem("p3", 1, 15.5)}}, "Product p3 is out of stock"},
		{"insufficient stock", CheckoutRequest{Items: []models.CartItem{cartItem("p2", 20, 20)}}, "Insufficient stock for product p2: requested 20, available 12"},
		{"missing price", CheckoutRequest{Items: []models.CartItem{{ProductID: "p2", Quantity: 1}}}, "Missing price for product p2"},
		{"price tamper", CheckoutRequest{Items: []models.CartItem{cartItem("p2", 1, 0.01)}}, "Price mismatch for product p2: submitted 0.01, current price 20"},
	}

	v := newTestValidator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.want, validationMessage(t, err))
		})
	}
}

func TestValidate_FirstFailingStepWins(t *testing.T) {
	v := newTestValidator(t)

	// Quantité invalide et produit inconnu : l'étape 2 passe avant l'étape 7
	_, err := v.Validate(context.Background(), CheckoutRequest{
		Items: []models.CartItem{cartItem("ghost", -1, 1)},
	})
	assert.Equal(t, "Invalid quantity for product ghost: must be an integer of at least 1", validationMessage(t, err))

	// Stock insuffisant et prix faux : le stock est vérifié d'abord
	_, err = v.Validate(context.Background(), CheckoutRequest{
		Items: []models.CartItem{cartItem("p2", 20, 1)},
	})
	assert.Equal(t, "Insufficient stock for product p2: requested 20, available 12", validationMessage(t, err))

	// Variante refusée par le catalogue sur le second article, stock insuffisant sur le premier
	shirt := cartItem("p1", 1, 49.99)
	shirt.SelectedSize = "XXL"
	shirt.SelectedColor = "White"
	_, err = v.Validate(context.Background(), CheckoutRequest{
		Items: []models.CartItem{cartItem("p2", 20, 20), shirt},
	})
	assert.Equal(t, `Invalid size "XXL" for product p1`, validationMessage(t, err))
}

func TestValidate_RedirectURLs(t *testing.T) {
	v := newTestValidator(t)
	out, err := v.Validate(context.Background(), CheckoutRequest{
		Items:      []models.CartItem{cartItem("p2", 1, 20)},
		SuccessURL: ptr("/thanks?id={CHECKOUT_SESSION_ID}"),
		CancelURL:  ptr("https://shop.example.com/basket"),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/thanks?id={CHECKOUT_SESSION_ID}", out.SuccessURL)
	assert.Equal(t, "https://shop.example.com/basket", out.CancelURL)

	_, err = v.Validate(context.Background(), CheckoutRequest{
		Items:      []models.CartItem{cartItem("p2", 1, 20)},
		SuccessURL: ptr("http://shop.example.com/thanks"),
	})
	assert.Contains(t, validationMessage(t, err), "Invalid success URL")
}

func TestValidate_LegacyNestedProduct(t *testing.T) {
	v := newTestValidator(t)
	out, err := v.Validate(context.Background(), CheckoutRequest{
		Items: []models.CartItem{{
			Product:  &models.CartProduct{ID: "p2", Price: ptr(20.0)},
			Quantity: 2,
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "p2", out.Lines[0].Product.ID)
}

func TestCoerceQuantity(t *testing.T) {
	for _, ok := range []any{1, 3.0, "4", " 2 ", int64(7)} {
		_, valid := coerceQuantity(ok)
		assert.True(t, valid, "%v", ok)
	}
	for _, bad := range []any{0, -2, 1.2, "1.5", "", nil, true, []int{1}} {
		_, valid := coerceQuantity(bad)
		assert.False(t, valid, "%v", bad)
	}
}

func TestNewCheckoutValidator_RejectsRelativeBase(t *testing.T) {
	_, err := NewCheckoutValidator(testCatalog(), "shop.example.com")
	assert.Error(t, err)
}
