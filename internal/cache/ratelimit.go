package cache

import (
	"context"
	"sync"
	"time"

	"storefront_back_end/internal/models"
)

// HitResult est le résultat d'une consommation sur un compteur à fenêtre fixe
type HitResult struct {
	Allowed    bool
	Count      int
	Remaining  int
	RetryAfter time.Duration // temps restant avant la fin de la fenêtre
}

// CounterStore compte les requêtes par clé sur des fenêtres fixes.
// Hit n'incrémente pas un compteur déjà au maximum.
type CounterStore interface {
	Hit(ctx context.Context, key string, max int, window time.Duration) (HitResult, error)
}

// sweepThreshold déclenche le nettoyage des compteurs expirés
const sweepThreshold = 10000

// MemoryCounterStore garde les compteurs dans la mémoire du processus
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*models.RateLimitCounter
	now      func() time.Time
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counters: make(map[string]*models.RateLimitCounter),
		now:      time.Now,
	}
}

// WithClock remplace l'horloge, pour les tests
func (s *MemoryCounterStore) WithClock(now func() time.Time) *MemoryCounterStore {
	s.now = now
	return s
}

func (s *MemoryCounterStore) Hit(_ context.Context, key string, max int, window time.Duration) (HitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	nowMs := now.UnixMilli()
	windowMs := window.Milliseconds()

	if len(s.counters) > sweepThreshold {
		s.sweep(nowMs, windowMs)
	}

	c, ok := s.counters[key]
	if !ok || nowMs-c.WindowStartEpochMs >= windowMs {
		s.counters[key] = &models.RateLimitCounter{Count: 1, WindowStartEpochMs: nowMs}
		return HitResult{Allowed: true, Count: 1, Remaining: max - 1, RetryAfter: window}, nil
	}

	retryAfter := time.Duration(c.WindowStartEpochMs+windowMs-nowMs) * time.Millisecond
	if c.Count >= max {
		return HitResult{Allowed: false, Count: c.Count, Remaining: 0, RetryAfter: retryAfter}, nil
	}

	c.Count++
	return HitResult{Allowed: true, Count: c.Count, Remaining: max - c.Count, RetryAfter: retryAfter}, nil
}

// Len retourne le nombre de clés suivies
func (s *MemoryCounterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

func (s *MemoryCounterStore) sweep(nowMs, windowMs int64) {
	for key, c := range s.counters {
		if nowMs-c.WindowStartEpochMs >= windowMs {
			delete(s.counters, key)
		}
	}
}
