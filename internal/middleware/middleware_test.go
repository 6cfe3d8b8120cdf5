package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront_back_end/internal/cache"
	"storefront_back_end/internal/services"
	"storefront_back_end/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestResolveClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded first hop wins", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1", "X-Real-IP": "198.51.100.2"}, "203.0.113.7"},
		{"real ip fallback", map[string]string{"X-Real-IP": "198.51.100.2"}, "198.51.100.2"},
		{"empty forwarded entry", map[string]string{"X-Forwarded-For": " , 10.0.0.1", "X-Real-IP": "198.51.100.2"}, "198.51.100.2"},
		{"loopback default", nil, "127.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ResolveClientIP(r))
		})
	}
}

func newLimitedRouter(maxIP, maxUser int, window time.Duration) *gin.Engine {
	limiter := services.NewRateLimiter(cache.NewMemoryCounterStore(), services.RateLimitConfig{
		Window:     window,
		MaxPerIP:   maxIP,
		MaxPerUser: maxUser,
	})

	r := gin.New()
	r.POST("/checkout", OptionalAuth("test-secret"), CheckoutRateLimit(limiter), func(c *gin.Context) {
		body, _ := c.GetRawData()
		c.String(http.StatusOK, string(body))
	})
	return r
}

func postCheckout(r *gin.Engine, ip, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", ip)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCheckoutRateLimit_IPExhausted(t *testing.T) {
	r := newLimitedRouter(3, 10, time.Minute)

	for i := 0; i < 3; i++ {
		w := postCheckout(r, "203.0.113.7", `{"items":[]}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `{"items":[]}`, w.Body.String(), "body must reach the handler intact")
		assert.Equal(t, strconv.Itoa(2-i), w.Header().Get("X-RateLimit-Remaining"))
	}

	w := postCheckout(r, "203.0.113.7", `{"items":[]}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retry, 0)
	assert.LessOrEqual(t, retry, 60)
	assert.Contains(t, w.Body.String(), "Too many checkout attempts")

	// Une autre IP n'est pas concernée
	assert.Equal(t, http.StatusOK, postCheckout(r, "198.51.100.2", `{}`).Code)
}

func TestCheckoutRateLimit_UserFromBody(t *testing.T) {
	r := newLimitedRouter(100, 2, time.Minute)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, postCheckout(r, "10.0.0.1", `{"userId":"alice"}`).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, postCheckout(r, "10.0.0.1", `{"userId":"alice"}`).Code)
	assert.Equal(t, http.StatusOK, postCheckout(r, "10.0.0.1", `{"userId":"bob"}`).Code)
	assert.Equal(t, http.StatusOK, postCheckout(r, "10.0.0.1", `{"userId":"guest"}`).Code)
}

func TestCheckoutRateLimit_AuthenticatedUserWins(t *testing.T) {
	r := newLimitedRouter(100, 1, time.Minute)
	token, err := utils.GenerateJWT("test-secret", "carol", "carol@example.com", time.Hour)
	require.NoError(t, err)
	auth := "Bearer " + token

	require.Equal(t, http.StatusOK, postCheckout(r, "10.0.0.2", `{"userId":"alice"}`, "Authorization", auth).Code)
	// Changer le userId du corps ne contourne pas la limite de carol
	assert.Equal(t, http.StatusTooManyRequests, postCheckout(r, "10.0.0.2", `{"userId":"mallory"}`, "Authorization", auth).Code)
}

func TestOptionalAuth(t *testing.T) {
	r := gin.New()
	r.GET("/me", OptionalAuth("test-secret"), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id"))
	})

	get := func(auth string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := get("")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	token, err := utils.GenerateJWT("test-secret", "user-42", "u@example.com", time.Hour)
	require.NoError(t, err)
	w = get("Bearer " + token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-42", w.Body.String())

	forged, err := utils.GenerateJWT("other-secret", "user-42", "u@example.com", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get("Bearer "+forged).Code)
	assert.Equal(t, http.StatusUnauthorized, get("Token abc").Code)

	expired, err := utils.GenerateJWT("test-secret", "user-42", "u@example.com", -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get("Bearer "+expired).Code)
}
