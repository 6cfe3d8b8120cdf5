package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v83"
	"golang.org/x/sync/errgroup"

	"storefront_back_end/internal/database"
	"storefront_back_end/internal/models"
)

// ErrMalformedEvent : l'objet de l'événement Stripe est illisible
var ErrMalformedEvent = errors.New("événement Stripe illisible")

// DeletedProductPrefix préfixe le nom des produits retirés du catalogue
const DeletedProductPrefix = "[Deleted Product]"

const notifyTimeout = 30 * time.Second

// WebhookProcessor applique les événements Stripe aux commandes et au stock.
// Les événements arrivent au moins une fois et dans le désordre : chaque
// écriture est une fusion, et les mouvements de stock sont protégés par des
// marqueurs (commande, transition).
type WebhookProcessor struct {
	orders   database.OrderRepository
	catalog  database.Catalog
	ledger   *InventoryLedger
	notifier Notifier
	reviews  ReviewSink
	now      func() time.Time

	wg sync.WaitGroup
}

func NewWebhookProcessor(orders database.OrderRepository, catalog database.Catalog, ledger *InventoryLedger) *WebhookProcessor {
	return &WebhookProcessor{
		orders:  orders,
		catalog: catalog,
		ledger:  ledger,
		now:     time.Now,
	}
}

func (p *WebhookProcessor) WithNotifier(n Notifier) *WebhookProcessor {
	p.notifier = n
	return p
}

func (p *WebhookProcessor) WithReviewSink(r ReviewSink) *WebhookProcessor {
	p.reviews = r
	return p
}

func (p *WebhookProcessor) WithClock(now func() time.Time) *WebhookProcessor {
	p.now = now
	return p
}

// Wait attend la fin des notifications en arrière-plan
func (p *WebhookProcessor) Wait() {
	p.wg.Wait()
}

// HandleEvent aiguille l'événement selon son type.
// Une erreur retournée est transitoire (stockage) ou ErrMalformedEvent.
func (p *WebhookProcessor) HandleEvent(ctx context.Context, event stripe.Event) error {
	if event.Data == nil {
		return fmt.Errorf("%w: pas de data", ErrMalformedEvent)
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return fmt.Errorf("%w: session: %v", ErrMalformedEvent, err)
		}
		return p.handleSessionCompleted(ctx, &s)

	case stripe.EventTypeChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return fmt.Errorf("%w: charge: %v", ErrMalformedEvent, err)
		}
		return p.handleChargeRefunded(ctx, &ch)

	case stripe.EventTypeChargeDisputeCreated:
		var d stripe.Dispute
		if err := json.Unmarshal(event.Data.Raw, &d); err != nil {
			return fmt.Errorf("%w: litige: %v", ErrMalformedEvent, err)
		}
		return p.handleDisputeCreated(ctx, &d)

	default:
		log.Printf("ℹ️ Événement ignoré : %s", event.Type)
		return nil
	}
}

func (p *WebhookProcessor) handleSessionCompleted(ctx context.Context, s *stripe.CheckoutSession) error {
	if s.ID == "" {
		return fmt.Errorf("%w: session sans id", ErrMalformedEvent)
	}

	existing, err := p.orders.Get(ctx, s.ID)
	switch {
	case err == nil:
		return p.handleRedelivery(ctx, existing)
	case !errors.Is(err, database.ErrOrderNotFound):
		return fmt.Errorf("lecture commande %s: %w", s.ID, err)
	}

	userID := s.Metadata[MetadataUserID]
	if userID == "" {
		userID = GuestUserID
	}
	paymentIntentID := ""
	if s.PaymentIntent != nil {
		paymentIntentID = s.PaymentIntent.ID
	}
	paymentStatus := string(s.PaymentStatus)
	email := s.CustomerEmail
	if s.CustomerDetails != nil && s.CustomerDetails.Email != "" {
		email = s.CustomerDetails.Email
	}

	patch := models.OrderPatch{
		UserID:                &userID,
		StripeSessionID:       &s.ID,
		StripePaymentIntentID: &paymentIntentID,
		PaymentStatus:         &paymentStatus,
		CustomerEmail:         &email,
	}

	decoded, err := DecodeItems(s.Metadata[MetadataItems])
	if err != nil {
		log.Printf("❌ Articles illisibles pour la session %s: %v", s.ID, err)
		status := models.StatusNeedsReview
		empty := []models.OrderItem{}
		total := float64(s.AmountTotal) / 100
		patch.Status = &status
		patch.Items = &empty
		patch.Total = &total
		patch.FlagMetadataParseError = true

		order, err := p.orders.Merge(ctx, s.ID, patch)
		if err != nil {
			return fmt.Errorf("enregistrement commande %s: %w", s.ID, err)
		}
		p.flagForReview(ctx, *order)
		return nil
	}

	status := models.StatusProcessing
	var address *models.ShippingAddress
	if raw, ok := s.Metadata[MetadataShippingAddress]; ok && raw != "" {
		address, err = DecodeShippingAddress(raw)
		if err != nil {
			log.Printf("⚠️ Adresse illisible pour la session %s: %v", s.ID, err)
			address = nil
			status = models.StatusNeedsReview
			patch.FlagMetadataParseError = true
		}
	}

	items, err := p.expandItems(ctx, decoded)
	if err != nil {
		return err
	}

	total := float64(s.AmountTotal) / 100
	if s.AmountTotal == 0 {
		total = sumItems(items)
	}

	patch.Items = &items
	patch.Total = &total
	patch.ShippingAddress = &address
	patch.Status = &status

	order, err := p.orders.Merge(ctx, s.ID, patch)
	if err != nil {
		return fmt.Errorf("enregistrement commande %s: %w", s.ID, err)
	}
	log.Printf("✅ Commande %s enregistrée (%d articles, %.2f€, %s)", order.ID, len(order.Items), order.Total, order.Status)

	// Sans marqueur posé, l'erreur fait répondre 500 : Stripe relivre et handleRedelivery retente
	order, deductErr := p.deductOnce(ctx, order)

	if order.NeedsAttention() {
		p.flagForReview(ctx, *order)
	}
	if order.Status == models.StatusProcessing {
		p.notify(*order, Notifier.OrderConfirmed)
	}
	return deductErr
}

// handleRedelivery ne rejoue que la déduction, protégée par son marqueur
func (p *WebhookProcessor) handleRedelivery(ctx context.Context, order *models.Order) error {
	log.Printf("🔁 Session %s déjà enregistrée (statut %s)", order.ID, order.Status)
	if order.Status != models.StatusProcessing && order.Status != models.StatusNeedsReview {
		return nil
	}
	updated, err := p.deductOnce(ctx, order)
	if updated.InventoryDeductError && !order.InventoryDeductError {
		p.flagForReview(ctx, *updated)
	}
	return err
}

// deductOnce retire le stock une seule fois par commande.
// Un échec du marqueur est renvoyé ; un échec du stock est noté sur la commande,
// avec les produits non déduits que la restauration devra ignorer.
func (p *WebhookProcessor) deductOnce(ctx context.Context, order *models.Order) (*models.Order, error) {
	if len(order.Items) == 0 {
		return order, nil
	}

	claimed, err := p.orders.ClaimTransition(ctx, order.ID, models.TransitionInventoryDeducted)
	if err != nil {
		log.Printf("❌ Marqueur de déduction pour %s: %v", order.ID, err)
		return order, fmt.Errorf("marqueur de déduction %s: %w", order.ID, err)
	}
	if !claimed {
		log.Printf("🔁 Stock déjà déduit pour la commande %s", order.ID)
		return order, nil
	}

	lines := LinesFromOrder(order.Items)
	changes, deductErr := p.ledger.Deduct(ctx, lines)
	missing := undeducted(lines, changes)
	if deductErr == nil && len(missing) == 0 {
		return order, nil
	}
	if deductErr != nil {
		log.Printf("❌ Déduction de stock incomplète pour %s: %v", order.ID, deductErr)
	}

	updated, err := p.orders.Merge(ctx, order.ID, models.OrderPatch{
		UndeductedProductIDs:     &missing,
		FlagInventoryDeductError: deductErr != nil,
	})
	if err != nil {
		return order, fmt.Errorf("signalement commande %s: %w", order.ID, err)
	}
	return updated, nil
}

// undeducted liste les produits sans mouvement de stock enregistré
func undeducted(lines []LedgerLine, changes []models.StockChange) []string {
	moved := make(map[string]bool, len(changes))
	for _, c := range changes {
		moved[c.ProductID] = true
	}
	var ids []string
	for _, line := range lines {
		if line.Quantity > 0 && !moved[line.ProductID] && !contains(ids, line.ProductID) {
			ids = append(ids, line.ProductID)
		}
	}
	return ids
}

// expandItems reconstruit les lignes de commande depuis les métadonnées.
// Un produit compact absent du catalogue devient un produit fantôme au prix payé.
func (p *WebhookProcessor) expandItems(ctx context.Context, decoded DecodedItems) ([]models.OrderItem, error) {
	if decoded.Shape == ShapeLegacy {
		items := make([]models.OrderItem, 0, len(decoded.Legacy))
		for _, li := range decoded.Legacy {
			items = append(items, models.OrderItem{
				ProductID:     li.Product.ID,
				Product:       li.Product,
				Quantity:      li.Quantity,
				SelectedSize:  li.SelectedSize,
				SelectedColor: li.SelectedColor,
				Price:         li.Product.Price,
			})
		}
		return items, nil
	}

	products := make([]*models.Product, len(decoded.Compact))
	g, gctx := errgroup.WithContext(ctx)
	for i, ci := range decoded.Compact {
		i, ci := i, ci
		g.Go(func() error {
			product, err := p.catalog.GetProduct(gctx, ci.ProductID)
			if errors.Is(err, database.ErrProductNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("chargement produit %s: %w", ci.ProductID, err)
			}
			products[i] = product
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(decoded.Compact))
	for i, ci := range decoded.Compact {
		var snapshot models.ProductSnapshot
		if products[i] != nil {
			snapshot = products[i].Snapshot(ci.PriceAtCheckout)
		} else {
			log.Printf("⚠️ Produit %s introuvable, remplacé par un produit fantôme", ci.ProductID)
			snapshot = models.ProductSnapshot{
				ID:      ci.ProductID,
				Name:    DeletedProductPrefix + " " + ci.ProductID,
				Price:   ci.PriceAtCheckout,
				InStock: false,
			}
		}
		items = append(items, models.OrderItem{
			ProductID:     ci.ProductID,
			Product:       snapshot,
			Quantity:      ci.Quantity,
			SelectedSize:  ci.SelectedSize,
			SelectedColor: ci.SelectedColor,
			Price:         ci.PriceAtCheckout,
		})
	}
	return items, nil
}

func (p *WebhookProcessor) handleChargeRefunded(ctx context.Context, ch *stripe.Charge) error {
	order, err := p.orderForPaymentIntent(ctx, ch.PaymentIntent, "remboursement "+ch.ID)
	if order == nil || err != nil {
		return err
	}

	refunded := float64(ch.AmountRefunded) / 100
	full := ch.Refunded || (ch.Amount > 0 && ch.AmountRefunded == ch.Amount)

	if !full {
		if order.Status == models.StatusRefunded {
			log.Printf("ℹ️ Remboursement partiel tardif ignoré, commande %s déjà remboursée", order.ID)
			return nil
		}
		status := models.StatusPartiallyRefunded
		paymentStatus := models.PaymentStatusPartiallyRefunded
		if _, err := p.orders.Merge(ctx, order.ID, models.OrderPatch{
			Status:         &status,
			PaymentStatus:  &paymentStatus,
			RefundedAmount: &refunded,
		}); err != nil {
			return fmt.Errorf("mise à jour commande %s: %w", order.ID, err)
		}
		log.Printf("💸 Remboursement partiel de %.2f€ sur la commande %s", refunded, order.ID)
		return nil
	}

	alreadyRefunded := order.Status == models.StatusRefunded
	status := models.StatusRefunded
	paymentStatus := models.PaymentStatusRefunded
	updated, err := p.orders.Merge(ctx, order.ID, models.OrderPatch{
		Status:         &status,
		PaymentStatus:  &paymentStatus,
		RefundedAmount: &refunded,
	})
	if err != nil {
		return fmt.Errorf("mise à jour commande %s: %w", order.ID, err)
	}
	log.Printf("💰 Commande %s remboursée (%.2f€)", order.ID, refunded)

	if err := p.restoreOnce(ctx, *updated); err != nil {
		log.Printf("❌ Restauration du stock échouée pour %s: %v", order.ID, err)
		flagged, mergeErr := p.orders.Merge(ctx, order.ID, models.OrderPatch{FlagInventoryRestoreError: true})
		if mergeErr != nil {
			return fmt.Errorf("signalement commande %s: %w", order.ID, mergeErr)
		}
		p.flagForReview(ctx, *flagged)
	}

	if !alreadyRefunded {
		p.notify(*updated, Notifier.OrderRefunded)
	}
	return nil
}

// restoreOnce remet le stock si la commande l'avait déduit et ne l'a pas déjà rendu
func (p *WebhookProcessor) restoreOnce(ctx context.Context, order models.Order) error {
	deducted, err := p.orders.HasTransition(ctx, order.ID, models.TransitionInventoryDeducted)
	if err != nil {
		return err
	}
	if !deducted {
		log.Printf("ℹ️ Aucun stock déduit pour la commande %s, rien à restaurer", order.ID)
		return nil
	}

	claimed, err := p.orders.ClaimTransition(ctx, order.ID, models.TransitionInventoryRestored)
	if err != nil {
		return err
	}
	if !claimed {
		log.Printf("🔁 Stock déjà restauré pour la commande %s", order.ID)
		return nil
	}

	var lines []LedgerLine
	for _, line := range LinesFromOrder(order.Items) {
		if contains(order.UndeductedProductIDs, line.ProductID) {
			log.Printf("ℹ️ Produit %s jamais déduit pour %s, pas de remise en stock", line.ProductID, order.ID)
			continue
		}
		lines = append(lines, line)
	}
	_, err = p.ledger.Restore(ctx, lines)
	return err
}

func (p *WebhookProcessor) handleDisputeCreated(ctx context.Context, d *stripe.Dispute) error {
	pi := d.PaymentIntent
	if pi == nil && d.Charge != nil {
		pi = d.Charge.PaymentIntent
	}
	order, err := p.orderForPaymentIntent(ctx, pi, "litige "+d.ID)
	if order == nil || err != nil {
		return err
	}

	status := models.StatusDisputed
	reason := string(d.Reason)
	amount := float64(d.Amount) / 100
	disputedAt := p.now().UTC()
	if _, err := p.orders.Merge(ctx, order.ID, models.OrderPatch{
		Status:        &status,
		DisputeID:     &d.ID,
		DisputeReason: &reason,
		DisputeAmount: &amount,
		DisputedAt:    &disputedAt,
	}); err != nil {
		return fmt.Errorf("mise à jour commande %s: %w", order.ID, err)
	}
	log.Printf("⚖️ Litige %s ouvert sur la commande %s (%.2f€, %s)", d.ID, order.ID, amount, reason)
	return nil
}

// orderForPaymentIntent retourne nil sans erreur si rien ne correspond
func (p *WebhookProcessor) orderForPaymentIntent(ctx context.Context, pi *stripe.PaymentIntent, what string) (*models.Order, error) {
	if pi == nil || pi.ID == "" {
		log.Printf("⚠️ %s sans PaymentIntent, ignoré", what)
		return nil, nil
	}
	order, err := p.orders.FindByPaymentIntent(ctx, pi.ID)
	if errors.Is(err, database.ErrOrderNotFound) {
		log.Printf("⚠️ %s: aucune commande pour le PaymentIntent %s", what, pi.ID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("recherche commande %s: %w", pi.ID, err)
	}
	return order, nil
}

func (p *WebhookProcessor) flagForReview(ctx context.Context, order models.Order) {
	log.Printf("🚩 Commande %s à vérifier: %v", order.ID, ReviewReasons(order))
	if p.reviews == nil {
		return
	}
	if err := p.reviews.Flag(ctx, order); err != nil {
		log.Printf("⚠️ Indexation revue échouée pour %s: %v", order.ID, err)
	}
}

// notify envoie la notification en arrière-plan ; un échec est seulement journalisé
func (p *WebhookProcessor) notify(order models.Order, send func(Notifier, context.Context, models.Order) error) {
	if p.notifier == nil || order.CustomerEmail == "" {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := send(p.notifier, ctx, order); err != nil {
			log.Printf("❌ Erreur envoi e-mail à %s: %v", order.CustomerEmail, err)
			return
		}
		log.Println("📧 E-mail envoyé à", order.CustomerEmail)
	}()
}

func sumItems(items []models.OrderItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}
