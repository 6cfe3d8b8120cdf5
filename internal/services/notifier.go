package services

import (
	"context"
	"fmt"
	"log"

	"github.com/wneessen/go-mail"

	"storefront_back_end/internal/config"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/utils"
)

// Notifier prévient le client des changements de sa commande
type Notifier interface {
	OrderConfirmed(ctx context.Context, order models.Order) error
	OrderRefunded(ctx context.Context, order models.Order) error
}

// MailNotifier envoie les notifications par SMTP
type MailNotifier struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewMailNotifier(cfg config.Settings) *MailNotifier {
	return &MailNotifier{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.MailFrom,
	}
}

func (n *MailNotifier) OrderConfirmed(ctx context.Context, order models.Order) error {
	return n.send(ctx, order.CustomerEmail, utils.OrderEmailSubject(order.Status), utils.GenerateOrderConfirmationHTML(order))
}

func (n *MailNotifier) OrderRefunded(ctx context.Context, order models.Order) error {
	return n.send(ctx, order.CustomerEmail, utils.OrderEmailSubject(order.Status), utils.GenerateRefundHTML(order))
}

func (n *MailNotifier) send(ctx context.Context, to, subject, htmlBody string) error {
	if to == "" {
		return fmt.Errorf("aucune adresse e-mail client")
	}

	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	client, err := mail.NewClient(n.host,
		mail.WithPort(n.port),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(n.username),
		mail.WithPassword(n.password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return err
	}

	log.Println("📤 Envoi de l'e-mail à", to)
	return client.DialAndSendWithContext(ctx, msg)
}
