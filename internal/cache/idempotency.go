package cache

import (
	"context"
	"sync"
	"time"

	"storefront_back_end/internal/models"
)

// IdempotencyStore associe une clé d'idempotence à la session Checkout créée.
// L'implémentation mémoire ne vaut que pour une seule instance ; la version
// Redis est à utiliser dès qu'il y en a plusieurs.
type IdempotencyStore interface {
	// Get retourne nil si la clé est absente ou expirée
	Get(ctx context.Context, key string) (*models.CachedSession, error)
	// Set écrase sans condition l'entrée de la clé
	Set(ctx context.Context, key, sessionID string, redirectURL *string) error
	// Reserve pose un marqueur si aucune entrée vivante n'existe
	Reserve(ctx context.Context, key, token string) (bool, error)
	// Release supprime la réservation si elle appartient toujours à token
	Release(ctx context.Context, key, token string) error
	Clear(ctx context.Context) error
	Size(ctx context.Context) (int, error)
}

// ReservationTTL borne la durée de vie d'une réservation orpheline
const ReservationTTL = 2 * time.Minute

// MemoryIdempotencyStore garde les sessions dans une map protégée par un mutex
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]models.CachedSession
	ttl     func() time.Duration
	now     func() time.Time
}

// NewMemoryIdempotencyStore crée un store mémoire ; ttl est relu à chaque accès
func NewMemoryIdempotencyStore(ttl func() time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		entries: make(map[string]models.CachedSession),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock remplace l'horloge, pour les tests
func (s *MemoryIdempotencyStore) WithClock(now func() time.Time) *MemoryIdempotencyStore {
	s.now = now
	return s
}

func (s *MemoryIdempotencyStore) expired(entry models.CachedSession, now time.Time) bool {
	lifetime := s.ttl()
	if entry.Pending && ReservationTTL < lifetime {
		lifetime = ReservationTTL
	}
	return now.Sub(time.UnixMilli(entry.CreatedAtEpochMs)) >= lifetime
}

func (s *MemoryIdempotencyStore) Get(_ context.Context, key string) (*models.CachedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	if s.expired(entry, s.now()) {
		delete(s.entries, key)
		return nil, nil
	}
	return &entry, nil
}

func (s *MemoryIdempotencyStore) Set(_ context.Context, key, sessionID string, redirectURL *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = models.CachedSession{
		SessionID:        sessionID,
		RedirectURL:      redirectURL,
		CreatedAtEpochMs: s.now().UnixMilli(),
	}
	return nil
}

func (s *MemoryIdempotencyStore) Reserve(_ context.Context, key, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if entry, ok := s.entries[key]; ok && !s.expired(entry, now) {
		return false, nil
	}
	s.entries[key] = models.CachedSession{
		CreatedAtEpochMs: now.UnixMilli(),
		Pending:          true,
		Token:            token,
	}
	return true, nil
}

func (s *MemoryIdempotencyStore) Release(_ context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok && entry.Pending && entry.Token == token {
		delete(s.entries, key)
	}
	return nil
}

func (s *MemoryIdempotencyStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]models.CachedSession)
	return nil
}

// Size compte aussi les entrées expirées pas encore évincées
func (s *MemoryIdempotencyStore) Size(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}
