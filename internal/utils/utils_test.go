package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront_back_end/internal/models"
)

func sampleOrder() models.Order {
	return models.Order{
		ID:     "cs_test_123",
		Status: models.StatusProcessing,
		Total:  65.5,
		Items: []models.OrderItem{
			{
				ProductID:    "p1",
				Product:      models.ProductSnapshot{ID: "p1", Name: "Linen <Shirt>"},
				Quantity:     1,
				SelectedSize: "M",
				Price:        49.99,
			},
		},
	}
}

func TestOrderConfirmationEscapesProductNames(t *testing.T) {
	body := GenerateOrderConfirmationHTML(sampleOrder())

	assert.Contains(t, body, "cs_test_123")
	assert.Contains(t, body, "Linen &lt;Shirt&gt;")
	assert.NotContains(t, body, "<Shirt>")
	assert.Contains(t, body, "65.50€")
}

func TestRefundUsesRefundedAmount(t *testing.T) {
	order := sampleOrder()
	order.Status = models.StatusRefunded
	partial := 20.0
	order.RefundedAmount = &partial

	body := GenerateRefundHTML(order)
	assert.Contains(t, body, "20.00€")
	assert.Equal(t, "💰 Remboursement effectué", OrderEmailSubject(order.Status))
}

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT("s3cret", "user-1", "a@b.c", time.Minute)
	require.NoError(t, err)

	userID, email, err := ParseJWT("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, "a@b.c", email)

	_, _, err = ParseJWT("wrong", token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = ParseJWT("s3cret", "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
