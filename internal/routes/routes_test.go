package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront_back_end/internal/cache"
	"storefront_back_end/internal/database"
	"storefront_back_end/internal/handlers/payement"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubProvider struct {
	mu       sync.Mutex
	requests []*services.SessionRequest
}

func (p *stubProvider) CreateCheckoutSession(_ context.Context, req *services.SessionRequest) (*services.CreatedSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	id := fmt.Sprintf("cs_e2e_%d", len(p.requests))
	return &services.CreatedSession{ID: id, URL: "https://checkout.stripe.com/c/pay/" + id}, nil
}

type storefront struct {
	router   *gin.Engine
	provider *stubProvider
	catalog  *database.MemoryCatalog
	orders   *database.MemoryOrderRepository
	proc     *services.WebhookProcessor
}

func newStorefront(t *testing.T, maxIP int) *storefront {
	t.Helper()
	catalog := database.NewMemoryCatalog(models.Product{
		ID: "tee", Name: "Organic Tee", Price: 25, Sizes: []string{"S", "M"}, StockCount: 4, InStock: true,
	})
	orders := database.NewMemoryOrderRepository()
	provider := &stubProvider{}

	validator, err := services.NewCheckoutValidator(catalog, "https://shop.example.com")
	require.NoError(t, err)
	checkout := services.NewCheckoutService(cache.NewMemoryIdempotencyStore(func() time.Duration { return time.Hour }), validator, provider, "eur")
	limiter := services.NewRateLimiter(cache.NewMemoryCounterStore(), services.RateLimitConfig{
		Window: time.Minute, MaxPerIP: maxIP, MaxPerUser: 5,
	})
	proc := services.NewWebhookProcessor(orders, catalog, services.NewInventoryLedger(catalog))

	r := gin.New()
	RegisterRoutes(r, Deps{
		Checkout:    payement.NewCheckoutHandler(checkout),
		Webhook:     payement.NewWebhookHandler(proc, nil, ""),
		Limiter:     limiter,
		JWTSecret:   "test-secret",
		CORSOrigins: []string{"https://shop.example.com"},
	})
	return &storefront{router: r, provider: provider, catalog: catalog, orders: orders, proc: proc}
}

func (s *storefront) post(path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newStorefront(t, 10)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCheckoutThenWebhookLifecycle(t *testing.T) {
	s := newStorefront(t, 10)
	cart := map[string]any{
		"items":  []map[string]any{{"productId": "tee", "quantity": 2, "selectedSize": "M", "price": 25}},
		"userId": "user-7",
	}

	w := s.post("/api/checkout/session", cart, map[string]string{"Idempotency-Key": "intent-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var first services.CheckoutResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.False(t, first.Cached)

	w = s.post("/api/checkout/session", cart, map[string]string{"Idempotency-Key": "intent-1"})
	require.Equal(t, http.StatusOK, w.Code)
	var second services.CheckoutResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.True(t, second.Cached)
	assert.Equal(t, first.ID, second.ID)
	require.Len(t, s.provider.requests, 1)

	sent := s.provider.requests[0]
	assert.Equal(t, int64(2500), sent.LineItems[0].UnitAmount)

	// Stripe renvoie les métadonnées telles qu'envoyées
	completed := map[string]any{
		"id":   "evt_1",
		"type": "checkout.session.completed",
		"data": map[string]any{"object": map[string]any{
			"id":             first.ID,
			"object":         "checkout.session",
			"payment_intent": "pi_e2e",
			"payment_status": "paid",
			"amount_total":   5000,
			"metadata":       sent.Metadata,
		}},
	}
	require.Equal(t, http.StatusOK, s.post("/api/webhooks/stripe", completed, nil).Code)
	require.Equal(t, http.StatusOK, s.post("/api/webhooks/stripe", completed, nil).Code)

	order, err := s.orders.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, order.Status)
	assert.Equal(t, "user-7", order.UserID)
	p, _ := s.catalog.GetProduct(context.Background(), "tee")
	assert.Equal(t, 2, p.StockCount)

	refund := map[string]any{
		"id":   "evt_2",
		"type": "charge.refunded",
		"data": map[string]any{"object": map[string]any{
			"id": "ch_1", "object": "charge", "amount": 5000, "amount_refunded": 5000, "refunded": true, "payment_intent": "pi_e2e",
		}},
	}
	require.Equal(t, http.StatusOK, s.post("/api/webhooks/stripe", refund, nil).Code)
	s.proc.Wait()

	order, err = s.orders.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, order.Status)
	p, _ = s.catalog.GetProduct(context.Background(), "tee")
	assert.Equal(t, 4, p.StockCount)
}

func TestCheckoutRateLimitedAfterMax(t *testing.T) {
	s := newStorefront(t, 2)
	cart := map[string]any{"items": []map[string]any{{"productId": "tee", "quantity": 1, "price": 25}}}

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, s.post("/api/checkout/session", cart, nil).Code)
	}
	w := s.post("/api/checkout/session", cart, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestCheckoutPriceTamperRejected(t *testing.T) {
	s := newStorefront(t, 10)
	cart := map[string]any{"items": []map[string]any{{"productId": "tee", "quantity": 1, "price": 1}}}

	w := s.post("/api/checkout/session", cart, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Price mismatch for product tee: submitted 1, current price 25"}`, w.Body.String())
	assert.Empty(t, s.provider.requests)
}
