package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront_back_end/internal/cache"
)

// ErrCheckoutInProgress : une autre requête tient la même clé d'idempotence
var ErrCheckoutInProgress = errors.New("checkout already in progress")

// CheckoutResult est la réponse de POST /api/checkout/session
type CheckoutResult struct {
	URL    *string `json:"url"`
	ID     string  `json:"id"`
	Cached bool    `json:"cached,omitempty"`
}

// CheckoutService crée les sessions de paiement, une seule fois par clé d'idempotence
type CheckoutService struct {
	store     cache.IdempotencyStore
	validator *CheckoutValidator
	provider  PaymentProvider
	currency  string

	pollInterval time.Duration
	waitTimeout  time.Duration
}

func NewCheckoutService(store cache.IdempotencyStore, validator *CheckoutValidator, provider PaymentProvider, currency string) *CheckoutService {
	return &CheckoutService{
		store:        store,
		validator:    validator,
		provider:     provider,
		currency:     currency,
		pollInterval: 100 * time.Millisecond,
		waitTimeout:  10 * time.Second,
	}
}

// WithPolling règle l'attente sur une clé déjà réservée
func (s *CheckoutService) WithPolling(interval, timeout time.Duration) *CheckoutService {
	s.pollInterval = interval
	s.waitTimeout = timeout
	return s
}

// ResolveIdempotencyKey : l'en-tête l'emporte sur le corps
func ResolveIdempotencyKey(header, body string) string {
	if key := strings.TrimSpace(header); key != "" {
		return key
	}
	return strings.TrimSpace(body)
}

// CreateSession renvoie la session mise en cache pour la clé, ou en crée une.
// La clé est réservée avant l'appel à Stripe ; une requête concurrente sur
// la même clé attend le résultat au lieu de créer une seconde session.
func (s *CheckoutService) CreateSession(ctx context.Context, req CheckoutRequest, headerKey string) (*CheckoutResult, error) {
	key := ResolveIdempotencyKey(headerKey, req.IdempotencyKey)
	if key == "" {
		return s.create(ctx, req)
	}

	token := uuid.NewString()
	deadline := time.Now().Add(s.waitTimeout)

	for {
		cached, err := s.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("lecture idempotence: %w", err)
		}
		if cached != nil && !cached.Pending {
			log.Printf("♻️ Session %s resservie depuis le cache idempotence", cached.SessionID)
			return &CheckoutResult{URL: cached.RedirectURL, ID: cached.SessionID, Cached: true}, nil
		}

		if cached == nil {
			reserved, err := s.store.Reserve(ctx, key, token)
			if err != nil {
				return nil, fmt.Errorf("réservation idempotence: %w", err)
			}
			if reserved {
				return s.createReserved(ctx, req, key, token)
			}
		}

		if !time.Now().Before(deadline) {
			log.Printf("⚠️ Clé d'idempotence toujours réservée après %s", s.waitTimeout)
			return nil, ErrCheckoutInProgress
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}

func (s *CheckoutService) createReserved(ctx context.Context, req CheckoutRequest, key, token string) (*CheckoutResult, error) {
	result, err := s.create(ctx, req)
	if err != nil {
		if relErr := s.store.Release(context.WithoutCancel(ctx), key, token); relErr != nil {
			log.Printf("⚠️ Libération réservation impossible: %v", relErr)
		}
		return nil, err
	}

	if err := s.store.Set(context.WithoutCancel(ctx), key, result.ID, result.URL); err != nil {
		// La session existe chez Stripe, on la renvoie quand même
		log.Printf("⚠️ Session %s non mise en cache: %v", result.ID, err)
	}
	return result, nil
}

func (s *CheckoutService) create(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	validated, err := s.validator.Validate(ctx, req)
	if err != nil {
		return nil, err
	}

	sessionReq, err := BuildSessionRequest(validated, s.currency)
	if err != nil {
		return nil, err
	}

	created, err := s.provider.CreateCheckoutSession(ctx, sessionReq)
	if err != nil {
		return nil, err
	}

	var url *string
	if created.URL != "" {
		u := created.URL
		url = &u
	}
	return &CheckoutResult{URL: url, ID: created.ID}, nil
}
