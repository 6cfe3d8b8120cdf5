package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront_back_end/internal/services"
)

// MaxCheckoutBodyBytes borne le corps d'une demande de checkout
const MaxCheckoutBodyBytes = int64(1 << 20)

// ResolveClientIP : premier X-Forwarded-For, puis X-Real-IP, puis la boucle locale
func ResolveClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return "127.0.0.1"
}

// CheckoutRateLimit limite les créations de session par IP et par utilisateur.
// L'utilisateur authentifié l'emporte sur le userId du corps.
func CheckoutRateLimit(limiter *services.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Lire le body sans le consommer
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxCheckoutBodyBytes)
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		userID := c.GetString("user_id")
		if userID == "" {
			var input struct {
				UserID string `json:"userId"`
			}
			if err := json.Unmarshal(bodyBytes, &input); err == nil {
				userID = strings.TrimSpace(input.UserID)
			}
		}

		ip := ResolveClientIP(c.Request)
		res, err := limiter.CheckAndConsume(c.Request.Context(), ip, userID)
		if err != nil {
			log.Printf("⚠️ Rate limit indisponible, requête acceptée: %v", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if res.Limited {
			log.Printf("⛔ Checkout limité (%s) pour %s", res.LimitType, ip)
			c.Header("Retry-After", strconv.Itoa(res.RetryAfterSeconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("Too many checkout attempts. Please try again in %d seconds.", res.RetryAfterSeconds),
			})
			return
		}

		c.Next()
	}
}
