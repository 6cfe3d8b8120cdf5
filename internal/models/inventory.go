package models

// StockChange décrit un mouvement de stock appliqué par le ledger
type StockChange struct {
	ProductID     string `json:"productId"`
	PreviousStock int    `json:"previousStock"`
	Delta         int    `json:"delta"`
	NewStock      int    `json:"newStock"`
}
