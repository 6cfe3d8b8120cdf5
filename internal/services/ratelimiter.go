package services

import (
	"context"
	"strings"
	"time"

	"storefront_back_end/internal/cache"
)

// LimitType indique quelle fenêtre a bloqué la requête
type LimitType string

const (
	LimitNone LimitType = ""
	LimitIP   LimitType = "ip"
	LimitUser LimitType = "user"
)

// RateLimitConfig règle les fenêtres de checkout
type RateLimitConfig struct {
	Window     time.Duration
	MaxPerIP   int
	MaxPerUser int
}

// RateLimitResult est la décision pour une tentative de checkout
type RateLimitResult struct {
	Limited           bool
	RetryAfterSeconds int
	Remaining         int
	LimitType         LimitType
}

// RateLimiter applique deux fenêtres fixes indépendantes, par IP et par utilisateur
type RateLimiter struct {
	store  cache.CounterStore
	config RateLimitConfig
}

func NewRateLimiter(store cache.CounterStore, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{store: store, config: config}
}

// CheckAndConsume vérifie l'IP d'abord ; si elle est bloquée le compteur
// utilisateur n'est pas touché. Les invités ne sont jamais suivis par utilisateur.
func (l *RateLimiter) CheckAndConsume(ctx context.Context, ip, userID string) (RateLimitResult, error) {
	ipHit, err := l.store.Hit(ctx, "ip:"+ip, l.config.MaxPerIP, l.config.Window)
	if err != nil {
		return RateLimitResult{}, err
	}
	if !ipHit.Allowed {
		return RateLimitResult{
			Limited:           true,
			RetryAfterSeconds: retryAfterSeconds(ipHit.RetryAfter),
			Remaining:         0,
			LimitType:         LimitIP,
		}, nil
	}

	userID = strings.TrimSpace(userID)
	if userID == "" || userID == GuestUserID {
		return RateLimitResult{Remaining: ipHit.Remaining}, nil
	}

	userHit, err := l.store.Hit(ctx, "user:"+userID, l.config.MaxPerUser, l.config.Window)
	if err != nil {
		return RateLimitResult{}, err
	}
	if !userHit.Allowed {
		return RateLimitResult{
			Limited:           true,
			RetryAfterSeconds: retryAfterSeconds(userHit.RetryAfter),
			Remaining:         0,
			LimitType:         LimitUser,
		}, nil
	}

	remaining := ipHit.Remaining
	if userHit.Remaining < remaining {
		remaining = userHit.Remaining
	}
	return RateLimitResult{Remaining: remaining}, nil
}

// retryAfterSeconds arrondit au supérieur, jamais moins d'une seconde
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
