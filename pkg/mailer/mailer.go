// Package mailer sends transactional customer emails over SMTP.
package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"ticket-office/config"
	"ticket-office/internal/entity"

	"github.com/sirupsen/logrus"
)

type Mailer struct {
	cfg *config.EmailConfig
}

func NewMailer(cfg *config.EmailConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

func (m *Mailer) SendOrderConfirmation(order *entity.Order) error {
	subject := fmt.Sprintf("Order #%d confirmed", order.ID)

	var body strings.Builder
	fmt.Fprintf(&body, "Hello %s,\n\n", order.CustomerName)
	fmt.Fprintf(&body, "Your order #%d is confirmed.\n\n", order.ID)
	if order.Event != nil {
		fmt.Fprintf(&body, "Event: %s\n", order.Event.Name)
		fmt.Fprintf(&body, "Venue: %s\n", order.Event.Venue)
		fmt.Fprintf(&body, "Date: %s\n", order.Event.Date.Format("02 Jan 2006 15:04"))
	}
	fmt.Fprintf(&body, "Tickets: %d\n", order.Quantity)
	fmt.Fprintf(&body, "Total: %s\n\n", order.TotalAmount.StringFixed(2))
	body.WriteString("See you there!\n")

	return m.send(order.CustomerEmail, subject, body.String())
}

func (m *Mailer) SendOrderCancellation(order *entity.Order, reason string) error {
	subject := fmt.Sprintf("Order #%d cancelled", order.ID)

	var body strings.Builder
	fmt.Fprintf(&body, "Hello %s,\n\n", order.CustomerName)
	fmt.Fprintf(&body, "Your order #%d has been cancelled.\n", order.ID)
	if order.Event != nil {
		fmt.Fprintf(&body, "Event: %s\n", order.Event.Name)
	}
	fmt.Fprintf(&body, "Reason: %s\n\n", reason)
	fmt.Fprintf(&body, "The amount of %s will be refunded to your payment method.\n", order.TotalAmount.StringFixed(2))

	return m.send(order.CustomerEmail, subject, body.String())
}

func (m *Mailer) send(to, subject, body string) error {
	if !m.cfg.Enabled {
		logrus.Debugf("Mailer disabled, skipping email to %s: %s", to, subject)
		return nil
	}

	msg := strings.Join([]string{
		"From: " + m.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}
