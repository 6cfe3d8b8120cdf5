package models

import "strings"

// ShippingAddress est l'adresse de livraison saisie au checkout
type ShippingAddress struct {
	FullName string `json:"fullName"`
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	Zip      string `json:"zip"`
	Country  string `json:"country"`
}

// MissingField retourne le premier champ vide, ou "" si l'adresse est complète
func (a ShippingAddress) MissingField() string {
	fields := []struct{ name, value string }{
		{"fullName", a.FullName},
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"zip", a.Zip},
		{"country", a.Country},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return f.name
		}
	}
	return ""
}
