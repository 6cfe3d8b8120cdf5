package models

import "time"

// OrderStatus représente l'état d'une commande dans la machine à états
type OrderStatus string

const (
	StatusProcessing        OrderStatus = "processing"
	StatusRefunded          OrderStatus = "refunded"
	StatusPartiallyRefunded OrderStatus = "partially_refunded"
	StatusDisputed          OrderStatus = "disputed"
	StatusNeedsReview       OrderStatus = "needs_review"

	// Pilotés par l'admin, jamais touchés par le webhook
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

const (
	PaymentStatusRefunded          = "refunded"
	PaymentStatusPartiallyRefunded = "partially_refunded"
)

// OrderItem est une ligne de commande étendue avec un instantané du produit
type OrderItem struct {
	ProductID     string          `json:"productId"`
	Product       ProductSnapshot `json:"product"`
	Quantity      int             `json:"quantity"`
	SelectedSize  string          `json:"selectedSize,omitempty"`
	SelectedColor string          `json:"selectedColor,omitempty"`
	Price         float64         `json:"price"`
}

// Order est le document durable d'une commande.
// Les noms de champs JSON sont un contrat persistant.
type Order struct {
	ID                    string           `json:"id"`
	UserID                string           `json:"userId"`
	Items                 []OrderItem      `json:"items"`
	Total                 float64          `json:"total"`
	ShippingAddress       *ShippingAddress `json:"shippingAddress"`
	Status                OrderStatus      `json:"status"`
	PaymentStatus         string           `json:"paymentStatus"`
	CustomerEmail         string           `json:"customerEmail,omitempty"`
	StripeSessionID       string           `json:"stripeSessionId"`
	StripePaymentIntentID string           `json:"stripePaymentIntentId"`
	RefundedAmount        *float64         `json:"refundedAmount,omitempty"`
	DisputeID             string           `json:"disputeId,omitempty"`
	DisputeReason         string           `json:"disputeReason,omitempty"`
	DisputeAmount         *float64         `json:"disputeAmount,omitempty"`
	DisputedAt            *time.Time       `json:"disputedAt,omitempty"`
	InventoryRestoreError bool             `json:"inventoryRestoreError,omitempty"`
	InventoryDeductError  bool             `json:"inventoryDeductError,omitempty"`
	UndeductedProductIDs  []string         `json:"undeductedProductIds,omitempty"`
	MetadataParseError    bool             `json:"metadataParseError,omitempty"`
	CreatedAt             time.Time        `json:"createdAt"`
	UpdatedAt             time.Time        `json:"updatedAt"`
}

// NeedsAttention indique si un opérateur doit regarder la commande
func (o Order) NeedsAttention() bool {
	return o.Status == StatusNeedsReview || o.MetadataParseError || o.InventoryRestoreError || o.InventoryDeductError
}

// OrderPatch décrit une écriture en fusion : seuls les champs non nil sont appliqués.
// Les drapeaux de diagnostic sont collants, un patch ne peut que les lever.
type OrderPatch struct {
	UserID                *string
	Items                 *[]OrderItem
	Total                 *float64
	ShippingAddress       **ShippingAddress
	Status                *OrderStatus
	PaymentStatus         *string
	CustomerEmail         *string
	StripeSessionID       *string
	StripePaymentIntentID *string
	RefundedAmount        *float64
	DisputeID             *string
	DisputeReason         *string
	DisputeAmount         *float64
	DisputedAt            *time.Time
	UndeductedProductIDs  *[]string

	FlagInventoryRestoreError bool
	FlagInventoryDeductError  bool
	FlagMetadataParseError    bool
}

// Apply fusionne le patch dans la commande
func (o *Order) Apply(p OrderPatch) {
	if p.UserID != nil {
		o.UserID = *p.UserID
	}
	if p.Items != nil {
		o.Items = make([]OrderItem, len(*p.Items))
		copy(o.Items, *p.Items)
	}
	if p.Total != nil {
		o.Total = *p.Total
	}
	if p.ShippingAddress != nil {
		o.ShippingAddress = *p.ShippingAddress
	}
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.PaymentStatus != nil {
		o.PaymentStatus = *p.PaymentStatus
	}
	if p.CustomerEmail != nil {
		o.CustomerEmail = *p.CustomerEmail
	}
	if p.StripeSessionID != nil {
		o.StripeSessionID = *p.StripeSessionID
	}
	if p.StripePaymentIntentID != nil {
		o.StripePaymentIntentID = *p.StripePaymentIntentID
	}
	if p.RefundedAmount != nil {
		v := *p.RefundedAmount
		o.RefundedAmount = &v
	}
	if p.DisputeID != nil {
		o.DisputeID = *p.DisputeID
	}
	if p.DisputeReason != nil {
		o.DisputeReason = *p.DisputeReason
	}
	if p.DisputeAmount != nil {
		v := *p.DisputeAmount
		o.DisputeAmount = &v
	}
	if p.DisputedAt != nil {
		v := *p.DisputedAt
		o.DisputedAt = &v
	}
	if p.UndeductedProductIDs != nil {
		o.UndeductedProductIDs = append([]string(nil), *p.UndeductedProductIDs...)
	}
	if p.FlagInventoryRestoreError {
		o.InventoryRestoreError = true
	}
	if p.FlagInventoryDeductError {
		o.InventoryDeductError = true
	}
	if p.FlagMetadataParseError {
		o.MetadataParseError = true
	}
}

// TransitionKind identifie un effet de bord appliqué une seule fois par commande
type TransitionKind string

const (
	TransitionInventoryDeducted TransitionKind = "inventory_deducted"
	TransitionInventoryRestored TransitionKind = "inventory_restored"
)
