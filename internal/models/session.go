package models

// CachedSession est la session Checkout mémorisée pour une clé d'idempotence.
// Pending marque une réservation posée avant l'appel à Stripe.
type CachedSession struct {
	SessionID        string  `json:"sessionId"`
	RedirectURL      *string `json:"redirectUrl"`
	CreatedAtEpochMs int64   `json:"createdAtEpochMs"`
	Pending          bool    `json:"pending,omitempty"`
	Token            string  `json:"token,omitempty"`
}

// RateLimitCounter est un compteur à fenêtre fixe
type RateLimitCounter struct {
	Count              int   `json:"count"`
	WindowStartEpochMs int64 `json:"windowStartEpochMs"`
}
