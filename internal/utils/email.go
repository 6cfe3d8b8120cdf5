package utils

import (
	"fmt"
	"html"
	"strings"

	"storefront_back_end/internal/models"
)

// OrderEmailSubject retourne l'objet du mail selon le statut de la commande
func OrderEmailSubject(status models.OrderStatus) string {
	switch status {
	case models.StatusProcessing:
		return "✅ Commande confirmée"
	case models.StatusRefunded:
		return "💰 Remboursement effectué"
	default:
		return "📋 Mise à jour de votre commande"
	}
}

// GenerateOrderConfirmationHTML génère le HTML de confirmation de commande
func GenerateOrderConfirmationHTML(order models.Order) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html lang="fr">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>Confirmation de commande</title>
</head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Confirmation de votre commande</h2>
		<p>Bonjour,</p>
		<p>Votre commande <strong>%s</strong> a été confirmée avec succès.</p>
		%s
		<p style="margin-top: 30px; color: #555;">Cordialement,<br><strong>L'équipe boutique</strong></p>
	</div>
</body>
</html>`, html.EscapeString(order.ID), itemsTable(order))
}

// GenerateRefundHTML génère le HTML de confirmation de remboursement
func GenerateRefundHTML(order models.Order) string {
	refunded := order.Total
	if order.RefundedAmount != nil {
		refunded = *order.RefundedAmount
	}
	return fmt.Sprintf(`
<!DOCTYPE html>
<html lang="fr">
<head>
	<meta charset="UTF-8">
	<title>Remboursement</title>
</head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Remboursement effectué</h2>
		<p>Bonjour,</p>
		<p>Votre commande <strong>%s</strong> a été remboursée : <strong>%.2f€</strong>.</p>
		<p>Le montant apparaîtra sur votre moyen de paiement sous quelques jours.</p>
		%s
		<p style="margin-top: 30px; color: #555;">Cordialement,<br><strong>L'équipe boutique</strong></p>
	</div>
</body>
</html>`, html.EscapeString(order.ID), refunded, itemsTable(order))
}

func itemsTable(order models.Order) string {
	var rows strings.Builder
	for _, item := range order.Items {
		variant := strings.TrimSpace(item.SelectedSize + " " + item.SelectedColor)
		fmt.Fprintf(&rows, `
			<tr>
				<td style="padding: 10px; border: 1px solid #ddd;">%s</td>
				<td style="padding: 10px; border: 1px solid #ddd;">%s</td>
				<td style="padding: 10px; border: 1px solid #ddd;">%d</td>
				<td style="padding: 10px; border: 1px solid #ddd;">%.2f€</td>
			</tr>`, html.EscapeString(item.Product.Name), html.EscapeString(variant), item.Quantity, item.Price*float64(item.Quantity))
	}

	return fmt.Sprintf(`
		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background-color: #f0f0f0;">
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Produit</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Variante</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Quantité</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Total</th>
				</tr>
			</thead>
			<tbody>%s
			</tbody>
			<tfoot>
				<tr>
					<td colspan="3" style="padding: 10px; text-align: right; font-weight: bold;">Total:</td>
					<td style="padding: 10px; font-weight: bold;">%.2f€</td>
				</tr>
			</tfoot>
		</table>`, rows.String(), order.Total)
}
