package services

import (
	"context"
	"fmt"
	"log"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/checkout/session"
)

// CreatedSession est la session renvoyée par le prestataire
type CreatedSession struct {
	ID  string
	URL string
}

// PaymentProvider crée les sessions de paiement hébergées
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, req *SessionRequest) (*CreatedSession, error)
}

// StripeProvider crée des sessions Stripe Checkout
type StripeProvider struct{}

// NewStripeProvider configure la clé API globale du SDK
func NewStripeProvider(secretKey string) *StripeProvider {
	if secretKey == "" {
		log.Println("⚠️ STRIPE_SECRET_KEY manquante, les appels Stripe échoueront")
	}
	stripe.Key = secretKey
	return &StripeProvider{}
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req *SessionRequest) (*CreatedSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx

	for _, item := range req.LineItems {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.Description != "" {
			product.Description = stripe.String(item.Description)
		}
		if item.Image != "" {
			product.Images = stripe.StringSlice([]string{item.Image})
		}

		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(req.Currency),
				UnitAmount:  stripe.Int64(item.UnitAmount),
				ProductData: product,
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("création session Stripe: %w", err)
	}

	log.Printf("💳 Session Stripe créée: %s (%d articles)", s.ID, len(req.LineItems))
	return &CreatedSession{ID: s.ID, URL: s.URL}, nil
}
