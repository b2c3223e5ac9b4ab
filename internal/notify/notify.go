// Package notify alerts the sales team by email when a lead turns hot.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v5"

	"github.com/ninalabs/ninabot/internal/config"
	"github.com/ninalabs/ninabot/internal/event"
	"github.com/ninalabs/ninabot/internal/lead"
)

// Mailer sends one email. Satisfied by the Mailgun client; faked in tests.
type Mailer interface {
	Send(ctx context.Context, domain, from, subject, text string, to []string) (string, error)
}

// MailgunMailer is the production Mailer.
type MailgunMailer struct {
	mg mailgun.Mailgun
}

// NewMailgunMailer creates a Mailer over the Mailgun API.
func NewMailgunMailer(apiKey string) *MailgunMailer {
	return &MailgunMailer{mg: mailgun.NewMailgun(apiKey)}
}

func (m *MailgunMailer) Send(ctx context.Context, domain, from, subject, text string, to []string) (string, error) {
	msg := mailgun.NewMessage(domain, from, subject, text, to...)
	resp, err := m.mg.Send(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("mailgun send: %w", err)
	}
	return resp.ID, nil
}

// Notifier consumes lead_hot events and emails the sales team. Alerts ride
// the event hub so a mail outage can never fail a conversation.
type Notifier struct {
	mailer Mailer
	cfg    config.MailgunConfig
	hub    *event.Hub
	logger *slog.Logger

	cancel func()
	done   chan struct{}
}

// New creates the hot-lead notifier.
func New(mailer Mailer, cfg config.MailgunConfig, hub *event.Hub, logger *slog.Logger) *Notifier {
	return &Notifier{
		mailer: mailer,
		cfg:    cfg,
		hub:    hub,
		logger: logger.With(slog.String("service", "notify")),
	}
}

// Start subscribes to hot-lead events and processes them until Stop is called.
func (n *Notifier) Start() {
	_, stream, cancel := n.hub.Subscribe(event.TypeLeadHot, event.DefaultBufferSize)
	n.cancel = cancel
	n.done = make(chan struct{})

	go func() {
		defer close(n.done)
		for e := range stream {
			n.handle(e)
		}
	}()
}

// Stop unsubscribes and waits for in-flight work to finish.
func (n *Notifier) Stop() {
	if n.cancel != nil {
		n.cancel()
		<-n.done
	}
}

func (n *Notifier) handle(e event.Event) {
	if len(n.cfg.SalesTeam) == 0 {
		return
	}

	var l lead.QualifiedLead
	if err := json.Unmarshal(e.Data, &l); err != nil {
		n.logger.Error("decode lead event", slog.Any("error", err))
		return
	}

	ctx, cancelCtx := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelCtx()

	subject, body := composeAlert(l)
	id, err := n.mailer.Send(ctx, n.cfg.Domain, n.cfg.From, subject, body, n.cfg.SalesTeam)
	if err != nil {
		n.logger.Warn("hot lead alert failed",
			slog.String("lead_id", l.ID), slog.Any("error", err))
		return
	}
	n.logger.Info("hot lead alert sent",
		slog.String("lead_id", l.ID), slog.String("message_id", id))
}

// composeAlert builds the Spanish alert email for a hot lead.
func composeAlert(l lead.QualifiedLead) (subject, body string) {
	name := l.Name
	if name == "" {
		name = l.Phone
	}
	subject = "Lead caliente: " + name

	var b strings.Builder
	b.WriteString("Un cliente está listo para avanzar.\n\n")
	writeField(&b, "Nombre", l.Name)
	writeField(&b, "Teléfono", l.Phone)
	writeField(&b, "Email", l.Email)
	writeField(&b, "Ciudad de interés", l.CityOfInterest)
	writeField(&b, "Proyecto", l.ProjectOfInterest)
	if l.BudgetMax > 0 {
		writeField(&b, "Presupuesto", budgetLine(l.BudgetMin, l.BudgetMax))
	}
	writeField(&b, "Urgencia", l.PurchaseUrgency)
	writeField(&b, "Resumen", l.ConversationSummary)

	wants := make([]string, 0, 3)
	if l.WantsVisit {
		wants = append(wants, "visita")
	}
	if l.WantsCall {
		wants = append(wants, "llamada")
	}
	if l.WantsInfo {
		wants = append(wants, "información")
	}
	if len(wants) > 0 {
		writeField(&b, "Solicita", strings.Join(wants, ", "))
	}
	b.WriteString("\nContactar lo antes posible.\n")
	return subject, b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}

func budgetLine(min, max int64) string {
	if min > 0 {
		return fmt.Sprintf("$%s a $%s MXN", formatAmount(min), formatAmount(max))
	}
	return fmt.Sprintf("hasta $%s MXN", formatAmount(max))
}

// formatAmount groups digits in thousands: 3500000 -> "3,500,000".
func formatAmount(v int64) string {
	s := fmt.Sprintf("%d", v)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
