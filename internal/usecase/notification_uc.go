package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/rs/zerolog"

	"payment-reconciler/internal/domain"
	"payment-reconciler/internal/domain/model"
	"payment-reconciler/internal/domain/ports/adapter"
	"payment-reconciler/internal/domain/ports/repository"
)

// Compile-time check
var _ PaymentNotifier = (*notificationUC)(nil)

var (
	mailHTML = htmltemplate.Must(htmltemplate.New("mail").Parse(
		`<p>{{.Greeting}}</p><p>{{.Body}}</p><p>{{.Reference}}</p>`))
	mailText = texttemplate.Must(texttemplate.New("mail").Parse(
		"{{.Greeting}}\n\n{{.Body}}\n\n{{.Reference}}\n"))
)

// Translator resolves localized mail copy by key.
type Translator interface {
	T(key string, args ...interface{}) string
}

type mailView struct {
	Greeting  string
	Body      string
	Reference string
}

type notificationUC struct {
	mailer   adapter.Mailer
	contacts repository.UserContactRepository
	tr       Translator
	log      *zerolog.Logger
}

// NewNotificationUseCase builds the email notifier. contacts may be nil when
// every record carries a billing email.
func NewNotificationUseCase(mailer adapter.Mailer, contacts repository.UserContactRepository, tr Translator, logger *zerolog.Logger) *notificationUC {
	l := logger.With().Str("component", "NotificationUseCase").Logger()
	return &notificationUC{mailer: mailer, contacts: contacts, tr: tr, log: &l}
}

func (n *notificationUC) OnPaid(ctx context.Context, p *model.PaymentRecord) error {
	body := n.tr.T("mail.paid.body", FormatAmount(p.Amount, p.Currency), p.ProductID)
	return n.send(ctx, p, n.tr.T("mail.paid.subject"), body)
}

func (n *notificationUC) OnFailed(ctx context.Context, p *model.PaymentRecord) error {
	body := n.tr.T("mail.failed.body", FormatAmount(p.Amount, p.Currency), p.ProductID, string(p.Status))
	return n.send(ctx, p, n.tr.T("mail.failed.subject"), body)
}

func (n *notificationUC) send(ctx context.Context, p *model.PaymentRecord, subject, body string) error {
	to, err := n.recipient(ctx, p)
	if err != nil {
		return err
	}
	view := mailView{
		Greeting:  n.tr.T("mail.greeting_anonymous"),
		Body:      body,
		Reference: n.tr.T("mail.reference", p.ID),
	}
	if name := strings.TrimSpace(p.BillingDetails.Name); name != "" {
		view.Greeting = n.tr.T("mail.greeting", name)
	}

	var hb, tb bytes.Buffer
	if err := mailHTML.Execute(&hb, view); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	if err := mailText.Execute(&tb, view); err != nil {
		return fmt.Errorf("render text: %w", err)
	}
	if err := n.mailer.Send(ctx, to, subject, hb.String(), tb.String()); err != nil {
		return err
	}
	n.log.Debug().Str("record_id", p.ID).Str("status", string(p.Status)).Msg("notification sent")
	return nil
}

func (n *notificationUC) recipient(ctx context.Context, p *model.PaymentRecord) (string, error) {
	if email := strings.TrimSpace(p.BillingDetails.Email); email != "" {
		return email, nil
	}
	if n.contacts == nil {
		return "", fmt.Errorf("%w: no email for payment %s", domain.ErrNotFound, p.ID)
	}
	email, err := n.contacts.EmailFor(ctx, repository.NoTX, p.UserID)
	if err != nil {
		return "", err
	}
	if email == "" {
		return "", errors.New("user has no email address")
	}
	return email, nil
}

// FormatAmount renders minor units as "49.00 EUR".
func FormatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, minor/100, minor%100, currency)
}
