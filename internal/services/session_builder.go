package services

import (
	"math"
	"strings"

	"storefront_back_end/internal/models"
)

// SessionLineItem est une ligne facturée par le prestataire de paiement
type SessionLineItem struct {
	Name        string
	Description string
	Image       string
	UnitAmount  int64
	Quantity    int64
}

// SessionRequest est la demande de création de session, indépendante de Stripe
type SessionRequest struct {
	Currency          string
	LineItems         []SessionLineItem
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
	Metadata          map[string]string
}

// UnitAmount convertit un prix en centimes
func UnitAmount(price float64) int64 {
	return int64(math.Round(price * 100))
}

// BuildSessionRequest traduit un panier validé en demande de session.
// Les articles partent au format compact dans les métadonnées.
func BuildSessionRequest(checkout *ValidatedCheckout, currency string) (*SessionRequest, error) {
	compact := make([]models.CompactOrderItem, len(checkout.Lines))
	lineItems := make([]SessionLineItem, len(checkout.Lines))

	for i, line := range checkout.Lines {
		compact[i] = models.CompactOrderItem{
			ProductID:       line.Product.ID,
			Quantity:        line.Quantity,
			SelectedSize:    line.SelectedSize,
			SelectedColor:   line.SelectedColor,
			PriceAtCheckout: line.Price,
		}

		item := SessionLineItem{
			Name:        line.Product.Name,
			Description: variantDescription(line.SelectedSize, line.SelectedColor),
			UnitAmount:  UnitAmount(line.Price),
			Quantity:    int64(line.Quantity),
		}
		if len(line.Product.Images) > 0 {
			item.Image = line.Product.Images[0]
		}
		lineItems[i] = item
	}

	itemsJSON, err := EncodeCompactItems(compact)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		MetadataUserID: checkout.UserID,
		MetadataItems:  itemsJSON,
	}
	if checkout.ShippingAddress != nil {
		addrJSON, err := EncodeShippingAddress(*checkout.ShippingAddress)
		if err != nil {
			return nil, err
		}
		metadata[MetadataShippingAddress] = addrJSON
	}

	req := &SessionRequest{
		Currency:   currency,
		LineItems:  lineItems,
		SuccessURL: checkout.SuccessURL,
		CancelURL:  checkout.CancelURL,
		Metadata:   metadata,
	}
	if checkout.UserID != GuestUserID {
		req.ClientReferenceID = checkout.UserID
	}
	return req, nil
}

func variantDescription(size, color string) string {
	var parts []string
	if size != "" {
		parts = append(parts, "Size: "+size)
	}
	if color != "" {
		parts = append(parts, "Color: "+color)
	}
	return strings.Join(parts, " · ")
}
