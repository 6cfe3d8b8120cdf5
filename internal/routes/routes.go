package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"storefront_back_end/internal/handlers/payement"
	"storefront_back_end/internal/middleware"
	"storefront_back_end/internal/services"
)

// Deps regroupe ce dont les routes ont besoin
type Deps struct {
	Checkout    *payement.CheckoutHandler
	Webhook     *payement.WebhookHandler
	Limiter     *services.RateLimiter
	JWTSecret   string
	CORSOrigins []string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(cors.New(corsConfig(d.CORSOrigins)))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	// Checkout
	api.POST("/checkout/session",
		middleware.OptionalAuth(d.JWTSecret),
		middleware.CheckoutRateLimit(d.Limiter),
		d.Checkout.CreateCheckoutSession,
	)

	// Webhooks Stripe (pas de CORS ni d'auth, la signature fait foi)
	api.POST("/webhooks/stripe", d.Webhook.StripeWebhook)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{"Retry-After", "X-RateLimit-Remaining"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
