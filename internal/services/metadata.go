package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"storefront_back_end/internal/models"
)

// Clés des métadonnées de session Stripe
const (
	MetadataUserID          = "userId"
	MetadataItems           = "items"
	MetadataShippingAddress = "shippingAddress"

	GuestUserID = "guest"

	// MaxMetadataValueLength est la limite Stripe par valeur de métadonnée, en caractères
	MaxMetadataValueLength = 500
)

var ErrUnknownItemShape = errors.New("format d'article inconnu dans les métadonnées")

// CartTooLargeError signale un champ de métadonnées au-delà de la limite Stripe
type CartTooLargeError struct {
	Field  string
	Length int
}

func (e *CartTooLargeError) Error() string {
	if e.Field == MetadataItems {
		return fmt.Sprintf("Cart too large: encoded items take %d characters (limit %d). Please reduce the number of items.", e.Length, MaxMetadataValueLength)
	}
	return fmt.Sprintf("Cart too large: %s takes %d characters (limit %d)", e.Field, e.Length, MaxMetadataValueLength)
}

// EncodeCompactItems sérialise les articles au format compact, sans jamais tronquer
func EncodeCompactItems(items []models.CompactOrderItem) (string, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	if n := utf8.RuneCount(data); n > MaxMetadataValueLength {
		return "", &CartTooLargeError{Field: MetadataItems, Length: n}
	}
	return string(data), nil
}

// EncodeShippingAddress sérialise l'adresse sous la même limite
func EncodeShippingAddress(addr models.ShippingAddress) (string, error) {
	data, err := json.Marshal(addr)
	if err != nil {
		return "", err
	}
	if n := utf8.RuneCount(data); n > MaxMetadataValueLength {
		return "", &CartTooLargeError{Field: MetadataShippingAddress, Length: n}
	}
	return string(data), nil
}

// ItemShape distingue les deux formats historiques des métadonnées
type ItemShape int

const (
	ShapeCompact ItemShape = iota + 1
	ShapeLegacy
)

// DecodedItems est l'union étiquetée des articles lus dans les métadonnées.
// Un seul des deux tableaux est rempli, selon Shape.
type DecodedItems struct {
	Shape   ItemShape
	Compact []models.CompactOrderItem
	Legacy  []models.LegacyOrderItem
}

// Len retourne le nombre d'articles décodés
func (d DecodedItems) Len() int {
	if d.Shape == ShapeLegacy {
		return len(d.Legacy)
	}
	return len(d.Compact)
}

// DecodeItems lit metadata.items. Le format est choisi par la présence de
// "productId" (compact) ou "product" (ancien) sur le premier élément, puis
// exigé sur tous les autres. Tout autre format est une erreur.
func DecodeItems(raw string) (DecodedItems, error) {
	var elems []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return DecodedItems{}, fmt.Errorf("items JSON invalide: %w", err)
	}
	if len(elems) == 0 {
		return DecodedItems{Shape: ShapeCompact}, nil
	}

	shape, err := detectShape(elems[0])
	if err != nil {
		return DecodedItems{}, fmt.Errorf("article 0: %w", err)
	}
	for i, elem := range elems[1:] {
		if s, err := detectShape(elem); err != nil || s != shape {
			return DecodedItems{}, fmt.Errorf("article %d: formats mélangés: %w", i+1, ErrUnknownItemShape)
		}
	}

	out := DecodedItems{Shape: shape}
	switch shape {
	case ShapeCompact:
		if err := json.Unmarshal([]byte(raw), &out.Compact); err != nil {
			return DecodedItems{}, fmt.Errorf("articles compacts invalides: %w", err)
		}
	case ShapeLegacy:
		if err := json.Unmarshal([]byte(raw), &out.Legacy); err != nil {
			return DecodedItems{}, fmt.Errorf("articles anciens invalides: %w", err)
		}
	}
	return out, nil
}

func detectShape(elem map[string]json.RawMessage) (ItemShape, error) {
	if elem == nil {
		return 0, ErrUnknownItemShape
	}
	if _, ok := elem["productId"]; ok {
		return ShapeCompact, nil
	}
	if _, ok := elem["product"]; ok {
		return ShapeLegacy, nil
	}
	return 0, ErrUnknownItemShape
}

// DecodeShippingAddress lit metadata.shippingAddress
func DecodeShippingAddress(raw string) (*models.ShippingAddress, error) {
	var addr models.ShippingAddress
	if err := json.Unmarshal([]byte(raw), &addr); err != nil {
		return nil, fmt.Errorf("adresse JSON invalide: %w", err)
	}
	return &addr, nil
}
