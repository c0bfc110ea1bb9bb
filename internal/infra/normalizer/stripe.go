package normalizer

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"payment-reconciler/internal/domain"
	"payment-reconciler/internal/domain/model"
	"payment-reconciler/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.Normalizer = (*StripeNormalizer)(nil)

const (
	ProviderStripe        = "stripe"
	stripeSignatureHeader = "Stripe-Signature"
)

// stripeObject is the subset of a PaymentIntent or Checkout Session the reconciler needs.
type stripeObject struct {
	ID            string `json:"id"`
	Object        string `json:"object"`
	PaymentStatus string `json:"payment_status"`
}

// StripeNormalizer maps Stripe webhook events onto payment events. When a
// signing secret is configured every payload must carry a valid signature.
type StripeNormalizer struct {
	secret string
	now    func() time.Time
}

func NewStripeNormalizer(secret string) *StripeNormalizer {
	return &StripeNormalizer{
		secret: strings.TrimSpace(secret),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (n *StripeNormalizer) Provider() string { return ProviderStripe }

func (n *StripeNormalizer) Normalize(header http.Header, body []byte) (model.PaymentEvent, error) {
	event, err := n.construct(header, body)
	if err != nil {
		return model.PaymentEvent{}, err
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return model.PaymentEvent{}, &domain.MalformedEventError{Reason: "stripe event has no data object"}
	}

	var obj stripeObject
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return model.PaymentEvent{}, &domain.MalformedEventError{Reason: "cannot decode stripe object", Err: err}
	}
	if strings.TrimSpace(obj.ID) == "" {
		return model.PaymentEvent{}, &domain.MalformedEventError{Reason: "stripe object has no id"}
	}

	return model.PaymentEvent{
		ProviderPaymentID: obj.ID,
		Status:            stripeStatus(string(event.Type), obj),
		Provider:          ProviderStripe,
		Details:           event.Data.Raw,
		ReceivedAt:        n.now(),
	}, nil
}

func (n *StripeNormalizer) construct(header http.Header, body []byte) (stripe.Event, error) {
	if n.secret == "" {
		var event stripe.Event
		if err := json.Unmarshal(body, &event); err != nil {
			return event, &domain.MalformedEventError{Reason: "cannot decode stripe event", Err: err}
		}
		return event, nil
	}

	sig := header.Get(stripeSignatureHeader)
	if sig == "" {
		return stripe.Event{}, &domain.MalformedEventError{Reason: "received stripe event is not signed"}
	}
	event, err := webhook.ConstructEventWithOptions(body, sig, n.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, &domain.MalformedEventError{Reason: "cannot construct stripe event", Err: err}
	}
	return event, nil
}

func stripeStatus(eventType string, obj stripeObject) model.ReportedStatus {
	switch eventType {
	case "payment_intent.succeeded",
		"checkout.session.async_payment_succeeded":
		return model.ReportedPaid
	case "payment_intent.payment_failed",
		"checkout.session.async_payment_failed":
		return model.ReportedFailed
	case "payment_intent.canceled":
		return model.ReportedCanceled
	case "payment_intent.processing":
		return model.ReportedPending
	case "payment_intent.amount_capturable_updated":
		return model.ReportedAuthorized
	case "checkout.session.expired":
		return model.ReportedExpired
	case "checkout.session.completed":
		// Delayed payment methods complete the session before the money arrives.
		if obj.PaymentStatus == "unpaid" {
			return model.ReportedOpen
		}
		return model.ReportedPaid
	}
	return model.Unknown(eventType)
}
