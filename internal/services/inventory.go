package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"storefront_back_end/internal/database"
	"storefront_back_end/internal/models"
)

// LedgerLine est une quantité à mouvementer pour un produit
type LedgerLine struct {
	ProductID string
	Quantity  int
}

// InventoryLedger applique les mouvements de stock liés aux commandes.
// Chaque produit est écrit indépendamment, sans transaction globale.
type InventoryLedger struct {
	catalog database.Catalog
}

func NewInventoryLedger(catalog database.Catalog) *InventoryLedger {
	return &InventoryLedger{catalog: catalog}
}

// Deduct retire les quantités commandées, sans descendre sous zéro
func (l *InventoryLedger) Deduct(ctx context.Context, lines []LedgerLine) ([]models.StockChange, error) {
	return l.apply(ctx, lines, -1)
}

// Restore remet en stock les quantités d'une commande remboursée
func (l *InventoryLedger) Restore(ctx context.Context, lines []LedgerLine) ([]models.StockChange, error) {
	return l.apply(ctx, lines, 1)
}

func (l *InventoryLedger) apply(ctx context.Context, lines []LedgerLine, sign int) ([]models.StockChange, error) {
	var changes []models.StockChange
	var errs []error

	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		delta := sign * line.Quantity

		prev, next, err := l.catalog.UpdateStock(ctx, line.ProductID, func(current int) int {
			n := current + delta
			if n < 0 {
				return 0
			}
			return n
		})
		if errors.Is(err, database.ErrProductNotFound) {
			log.Printf("⚠️ Produit %s introuvable, mouvement de stock ignoré", line.ProductID)
			continue
		}
		if err != nil {
			log.Printf("❌ Mouvement de stock %s (%+d) échoué: %v", line.ProductID, delta, err)
			errs = append(errs, fmt.Errorf("produit %s: %w", line.ProductID, err))
			continue
		}

		change := models.StockChange{
			ProductID:     line.ProductID,
			PreviousStock: prev,
			Delta:         next - prev,
			NewStock:      next,
		}
		log.Printf("📦 Stock %s: %d → %d (%+d)", change.ProductID, prev, next, change.Delta)
		changes = append(changes, change)
	}

	return changes, errors.Join(errs...)
}

// LinesFromOrder extrait les quantités d'une commande
func LinesFromOrder(items []models.OrderItem) []LedgerLine {
	lines := make([]LedgerLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, LedgerLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}
