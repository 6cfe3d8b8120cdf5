package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront_back_end/internal/utils"
)

// OptionalAuth identifie l'utilisateur quand un token Bearer est présent.
// Sans en-tête la requête continue en invité ; un token invalide est refusé.
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			log.Printf("❌ Format Authorization invalide: %v parties", len(parts))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid Authorization header"})
			return
		}
		if secret == "" {
			log.Println("⚠️ JWT_SECRET absent, token ignoré")
			c.Next()
			return
		}

		userID, email, err := utils.ParseJWT(secret, parts[1])
		if err != nil {
			log.Printf("❌ Token refusé: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set("user_id", userID)
		c.Set("email", email)
		c.Next()
	}
}
