package payement

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront_back_end/internal/services"
)

// SessionCreator crée une session de paiement pour un panier
type SessionCreator interface {
	CreateSession(ctx context.Context, req services.CheckoutRequest, headerKey string) (*services.CheckoutResult, error)
}

type CheckoutHandler struct {
	sessions SessionCreator
}

func NewCheckoutHandler(sessions SessionCreator) *CheckoutHandler {
	return &CheckoutHandler{sessions: sessions}
}

// CreateCheckoutSession : POST /api/checkout/session
func (h *CheckoutHandler) CreateCheckoutSession(c *gin.Context) {
	var req services.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	// L'identité vérifiée remplace le userId déclaré
	if userID := c.GetString("user_id"); userID != "" {
		req.UserID = &userID
	}

	result, err := h.sessions.CreateSession(c.Request.Context(), req, c.GetHeader("Idempotency-Key"))
	if err != nil {
		var validationErr *services.ValidationError
		var tooLarge *services.CartTooLargeError
		switch {
		case errors.As(err, &validationErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
		case errors.As(err, &tooLarge):
			c.JSON(http.StatusBadRequest, gin.H{"error": tooLarge.Error()})
		case errors.Is(err, services.ErrCheckoutInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": "Checkout already in progress for this idempotency key"})
		default:
			log.Printf("❌ Création session échouée: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create checkout session"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}
