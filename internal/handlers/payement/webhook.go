package payement

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"

	"storefront_back_end/internal/services"
)

// MaxWebhookBodyBytes est la taille maximale d'un événement Stripe accepté
const MaxWebhookBodyBytes = int64(65536)

// EventHandler applique un événement Stripe vérifié
type EventHandler interface {
	HandleEvent(ctx context.Context, event stripe.Event) error
}

type WebhookHandler struct {
	events  EventHandler
	archive services.EventArchive
	secret  string
}

// NewWebhookHandler : sans secret, les événements ne sont pas signés (mode test)
func NewWebhookHandler(events EventHandler, archive services.EventArchive, secret string) *WebhookHandler {
	return &WebhookHandler{events: events, archive: archive, secret: secret}
}

// StripeWebhook : POST /api/webhooks/stripe
func (h *WebhookHandler) StripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxWebhookBodyBytes)

	payload, err := c.GetRawData()
	if err != nil {
		log.Println("❌ Lecture payload échouée:", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	var event stripe.Event
	if h.secret == "" {
		log.Println("⚠️ Pas de STRIPE_WEBHOOK_SECRET — mode test")
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Println("❌ JSON invalide:", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
	} else {
		event, err = webhook.ConstructEventWithOptions(payload, c.GetHeader("Stripe-Signature"), h.secret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			log.Println("❌ Signature Stripe invalide:", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
			return
		}
	}

	log.Printf("📥 Événement Stripe reçu : %s (%s)", event.Type, event.ID)

	if h.archive != nil {
		if err := h.archive.Archive(c.Request.Context(), event.ID, string(event.Type), payload); err != nil {
			log.Printf("⚠️ Archivage de l'événement %s échoué: %v", event.ID, err)
		}
	}

	if err := h.events.HandleEvent(c.Request.Context(), event); err != nil {
		if errors.Is(err, services.ErrMalformedEvent) {
			log.Printf("❌ Événement %s rejeté: %v", event.ID, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed event"})
			return
		}
		// Erreur de stockage : Stripe relivrera l'événement
		log.Printf("❌ Traitement de l'événement %s échoué: %v", event.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Event processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
