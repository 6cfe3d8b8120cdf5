package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront_back_end/internal/models"
)

// OrderRepository stocke les commandes avec une sémantique de document.
// Toutes les écritures sont des fusions, jamais des écrasements.
type OrderRepository interface {
	Get(ctx context.Context, id string) (*models.Order, error)
	FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, error)
	// Merge crée le document s'il n'existe pas et retourne la version fusionnée
	Merge(ctx context.Context, id string, patch models.OrderPatch) (*models.Order, error)
	// ClaimTransition pose le marqueur (commande, transition) s'il est absent
	ClaimTransition(ctx context.Context, orderID string, kind models.TransitionKind) (bool, error)
	HasTransition(ctx context.Context, orderID string, kind models.TransitionKind) (bool, error)
	ListNeedingAttention(ctx context.Context) ([]models.Order, error)
}

type transitionKey struct {
	orderID string
	kind    models.TransitionKind
}

// MemoryOrderRepository est l'implémentation mémoire, utilisée en dev et en test
type MemoryOrderRepository struct {
	mu          sync.Mutex
	orders      map[string]*models.Order
	byIntent    map[string]string
	transitions map[transitionKey]time.Time
	now         func() time.Time
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{
		orders:      make(map[string]*models.Order),
		byIntent:    make(map[string]string),
		transitions: make(map[transitionKey]time.Time),
		now:         time.Now,
	}
}

func copyOrder(o *models.Order) *models.Order {
	cp := *o
	if o.Items != nil {
		cp.Items = make([]models.OrderItem, len(o.Items))
		copy(cp.Items, o.Items)
	}
	cp.UndeductedProductIDs = append([]string(nil), o.UndeductedProductIDs...)
	return &cp
}

func (r *MemoryOrderRepository) Get(_ context.Context, id string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (r *MemoryOrderRepository) FindByPaymentIntent(_ context.Context, paymentIntentID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byIntent[paymentIntentID]
	if !ok || paymentIntentID == "" {
		return nil, ErrOrderNotFound
	}
	return copyOrder(r.orders[id]), nil
}

func (r *MemoryOrderRepository) Merge(_ context.Context, id string, patch models.OrderPatch) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	o, ok := r.orders[id]
	if !ok {
		o = &models.Order{ID: id, CreatedAt: now}
		r.orders[id] = o
	}
	o.Apply(patch)
	o.UpdatedAt = now
	if o.StripePaymentIntentID != "" {
		r.byIntent[o.StripePaymentIntentID] = id
	}
	return copyOrder(o), nil
}

func (r *MemoryOrderRepository) ClaimTransition(_ context.Context, orderID string, kind models.TransitionKind) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := transitionKey{orderID, kind}
	if _, done := r.transitions[key]; done {
		return false, nil
	}
	r.transitions[key] = r.now()
	return true, nil
}

func (r *MemoryOrderRepository) HasTransition(_ context.Context, orderID string, kind models.TransitionKind) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, done := r.transitions[transitionKey{orderID, kind}]
	return done, nil
}

func (r *MemoryOrderRepository) ListNeedingAttention(_ context.Context) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Order
	for _, o := range r.orders {
		if o.NeedsAttention() {
			out = append(out, *copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
