package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"storefront_back_end/internal/models"
)

// OrdersSchema crée les tables du keyspace commandes
var OrdersSchema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		order_id text PRIMARY KEY,
		user_id text,
		items text,
		total double,
		shipping_address text,
		status text,
		payment_status text,
		customer_email text,
		stripe_session_id text,
		stripe_payment_intent_id text,
		refunded_amount double,
		dispute_id text,
		dispute_reason text,
		dispute_amount double,
		disputed_at timestamp,
		inventory_restore_error boolean,
		inventory_deduct_error boolean,
		undeducted_products list<text>,
		metadata_parse_error boolean,
		created_at timestamp,
		updated_at timestamp
	)`,
	`CREATE TABLE IF NOT EXISTS orders_by_payment_intent (
		payment_intent_id text PRIMARY KEY,
		order_id text
	)`,
	`CREATE TABLE IF NOT EXISTS order_transitions (
		order_id text,
		kind text,
		applied_at timestamp,
		PRIMARY KEY ((order_id), kind)
	)`,
}

const orderColumns = `order_id, user_id, items, total, shipping_address, status, payment_status,
	customer_email, stripe_session_id, stripe_payment_intent_id, refunded_amount, dispute_id,
	dispute_reason, dispute_amount, disputed_at, inventory_restore_error, inventory_deduct_error,
	undeducted_products, metadata_parse_error, created_at, updated_at`

// ScyllaOrderRepository stocke les commandes dans ScyllaDB.
// Un UPDATE CQL ne touche que les colonnes citées, ce qui donne la fusion.
type ScyllaOrderRepository struct {
	session *gocql.Session
	now     func() time.Time
}

func NewScyllaOrderRepository(session *gocql.Session) *ScyllaOrderRepository {
	return &ScyllaOrderRepository{session: session, now: time.Now}
}

// EnsureSchema crée les tables si elles n'existent pas
func (r *ScyllaOrderRepository) EnsureSchema(ctx context.Context) error {
	return applySchema(ctx, r.session, OrdersSchema)
}

func scanOrder(scan func(dest ...interface{}) bool) (*models.Order, bool, error) {
	var (
		o                       models.Order
		itemsJSON, shippingJSON string
		status                  string
		restoreErr, deductErr   bool
		metadataErr             bool
		refunded, disputeAmount *float64
		disputedAt              *time.Time
	)
	if !scan(&o.ID, &o.UserID, &itemsJSON, &o.Total, &shippingJSON, &status, &o.PaymentStatus,
		&o.CustomerEmail, &o.StripeSessionID, &o.StripePaymentIntentID, &refunded, &o.DisputeID,
		&o.DisputeReason, &disputeAmount, &disputedAt, &restoreErr, &deductErr,
		&o.UndeductedProductIDs, &metadataErr, &o.CreatedAt, &o.UpdatedAt) {
		return nil, false, nil
	}

	o.Status = models.OrderStatus(status)
	o.RefundedAmount = refunded
	o.DisputeAmount = disputeAmount
	o.DisputedAt = disputedAt
	o.InventoryRestoreError = restoreErr
	o.InventoryDeductError = deductErr
	o.MetadataParseError = metadataErr

	if itemsJSON != "" {
		if err := json.Unmarshal([]byte(itemsJSON), &o.Items); err != nil {
			return nil, true, fmt.Errorf("items commande %s illisibles: %w", o.ID, err)
		}
	}
	if shippingJSON != "" {
		var addr models.ShippingAddress
		if err := json.Unmarshal([]byte(shippingJSON), &addr); err != nil {
			return nil, true, fmt.Errorf("adresse commande %s illisible: %w", o.ID, err)
		}
		o.ShippingAddress = &addr
	}
	return &o, true, nil
}

func (r *ScyllaOrderRepository) Get(ctx context.Context, id string) (*models.Order, error) {
	iter := r.session.Query(`SELECT `+orderColumns+` FROM orders WHERE order_id = ?`, id).
		WithContext(ctx).Iter()
	order, found, err := scanOrder(iter.Scan)
	if closeErr := iter.Close(); closeErr != nil {
		return nil, closeErr
	}
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (r *ScyllaOrderRepository) FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	if paymentIntentID == "" {
		return nil, ErrOrderNotFound
	}

	var orderID string
	err := r.session.Query(`SELECT order_id FROM orders_by_payment_intent WHERE payment_intent_id = ?`, paymentIntentID).
		WithContext(ctx).Scan(&orderID)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, orderID)
}

func (r *ScyllaOrderRepository) Merge(ctx context.Context, id string, patch models.OrderPatch) (*models.Order, error) {
	now := r.now()

	// Crée la ligne une seule fois pour figer created_at
	if _, err := r.session.Query(`INSERT INTO orders (order_id, created_at, updated_at) VALUES (?, ?, ?) IF NOT EXISTS`,
		id, now, now).WithContext(ctx).MapScanCAS(map[string]interface{}{}); err != nil {
		return nil, fmt.Errorf("création commande %s: %w", id, err)
	}

	sets, args, err := patchAssignments(patch)
	if err != nil {
		return nil, err
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now, id)

	stmt := `UPDATE orders SET ` + strings.Join(sets, ", ") + ` WHERE order_id = ?`
	if err := r.session.Query(stmt, args...).WithContext(ctx).Exec(); err != nil {
		return nil, fmt.Errorf("fusion commande %s: %w", id, err)
	}

	if patch.StripePaymentIntentID != nil && *patch.StripePaymentIntentID != "" {
		if err := r.session.Query(`INSERT INTO orders_by_payment_intent (payment_intent_id, order_id) VALUES (?, ?)`,
			*patch.StripePaymentIntentID, id).WithContext(ctx).Exec(); err != nil {
			return nil, fmt.Errorf("index payment intent %s: %w", id, err)
		}
	}

	return r.Get(ctx, id)
}

func patchAssignments(p models.OrderPatch) ([]string, []interface{}, error) {
	var sets []string
	var args []interface{}
	add := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if p.UserID != nil {
		add("user_id", *p.UserID)
	}
	if p.Items != nil {
		data, err := json.Marshal(*p.Items)
		if err != nil {
			return nil, nil, err
		}
		add("items", string(data))
	}
	if p.Total != nil {
		add("total", *p.Total)
	}
	if p.ShippingAddress != nil {
		shipping := ""
		if addr := *p.ShippingAddress; addr != nil {
			data, err := json.Marshal(addr)
			if err != nil {
				return nil, nil, err
			}
			shipping = string(data)
		}
		add("shipping_address", shipping)
	}
	if p.Status != nil {
		add("status", string(*p.Status))
	}
	if p.PaymentStatus != nil {
		add("payment_status", *p.PaymentStatus)
	}
	if p.CustomerEmail != nil {
		add("customer_email", *p.CustomerEmail)
	}
	if p.StripeSessionID != nil {
		add("stripe_session_id", *p.StripeSessionID)
	}
	if p.StripePaymentIntentID != nil {
		add("stripe_payment_intent_id", *p.StripePaymentIntentID)
	}
	if p.RefundedAmount != nil {
		add("refunded_amount", *p.RefundedAmount)
	}
	if p.DisputeID != nil {
		add("dispute_id", *p.DisputeID)
	}
	if p.DisputeReason != nil {
		add("dispute_reason", *p.DisputeReason)
	}
	if p.DisputeAmount != nil {
		add("dispute_amount", *p.DisputeAmount)
	}
	if p.DisputedAt != nil {
		add("disputed_at", *p.DisputedAt)
	}
	if p.UndeductedProductIDs != nil {
		add("undeducted_products", *p.UndeductedProductIDs)
	}
	if p.FlagInventoryRestoreError {
		add("inventory_restore_error", true)
	}
	if p.FlagInventoryDeductError {
		add("inventory_deduct_error", true)
	}
	if p.FlagMetadataParseError {
		add("metadata_parse_error", true)
	}
	return sets, args, nil
}

func (r *ScyllaOrderRepository) ClaimTransition(ctx context.Context, orderID string, kind models.TransitionKind) (bool, error) {
	applied, err := r.session.Query(`INSERT INTO order_transitions (order_id, kind, applied_at) VALUES (?, ?, ?) IF NOT EXISTS`,
		orderID, string(kind), r.now()).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return false, fmt.Errorf("marqueur %s/%s: %w", orderID, kind, err)
	}
	return applied, nil
}

func (r *ScyllaOrderRepository) HasTransition(ctx context.Context, orderID string, kind models.TransitionKind) (bool, error) {
	var found string
	err := r.session.Query(`SELECT kind FROM order_transitions WHERE order_id = ? AND kind = ?`, orderID, string(kind)).
		WithContext(ctx).Scan(&found)
	if errors.Is(err, gocql.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListNeedingAttention parcourt toute la table ; réservé aux outils opérateur
func (r *ScyllaOrderRepository) ListNeedingAttention(ctx context.Context) ([]models.Order, error) {
	iter := r.session.Query(`SELECT ` + orderColumns + ` FROM orders`).WithContext(ctx).Iter()

	var out []models.Order
	for {
		order, found, err := scanOrder(iter.Scan)
		if !found {
			break
		}
		if err != nil {
			iter.Close()
			return nil, err
		}
		if order.NeedsAttention() {
			out = append(out, *order)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return out, nil
}
