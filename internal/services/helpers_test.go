package services

import (
	"context"
	"fmt"
	"sync"

	"storefront_back_end/internal/database"
	"storefront_back_end/internal/models"
)

type fakeProvider struct {
	mu       sync.Mutex
	calls    int
	requests []*SessionRequest
	err      error
	release  chan struct{}
}

func (f *fakeProvider) CreateCheckoutSession(ctx context.Context, req *SessionRequest) (*CreatedSession, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	id := fmt.Sprintf("cs_test_%d", f.calls)
	return &CreatedSession{ID: id, URL: "https://checkout.stripe.com/c/pay/" + id}, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeProvider) lastRequest() *SessionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func ptr[T any](v T) *T {
	return &v
}

func testCatalog() *database.MemoryCatalog {
	return database.NewMemoryCatalog(
		models.Product{
			ID:         "p1",
			Name:       "Linen Shirt",
			Price:      49.99,
			Images:     []string{"https://cdn.example.com/p1-front.jpg", "https://cdn.example.com/p1-back.jpg"},
			Sizes:      []string{"S", "M", "L"},
			Colors:     []string{"White", "Sand"},
			StockCount: 5,
			InStock:    true,
		},
		models.Product{
			ID:         "p2",
			Name:       "Canvas Tote",
			Price:      20,
			StockCount: 12,
			InStock:    true,
		},
		models.Product{
			ID:         "p3",
			Name:       "Wool Beanie",
			Price:      15.5,
			StockCount: 0,
			InStock:    false,
		},
	)
}

func cartItem(id string, qty any, price float64) models.CartItem {
	return models.CartItem{ProductID: id, Quantity: qty, Price: ptr(price)}
}
