package normalizer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"payment-reconciler/internal/domain"
	"payment-reconciler/internal/domain/model"
	"payment-reconciler/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.Normalizer = (*ZarinPalNormalizer)(nil)

const (
	ProviderZarinPal      = "zarinpal"
	zarinPalSignatureHead = "X-ZarinPal-Signature"
)

// ZarinPalNormalizer reads the gateway callback relayed as a urlencoded form:
// Authority identifies the payment, Status is OK or NOK and ref_id is present
// once the gateway has verified the transaction.
type ZarinPalNormalizer struct {
	secret string
	now    func() time.Time
}

// NewZarinPalNormalizer builds the normalizer. An empty secret skips signature checks.
func NewZarinPalNormalizer(secret string) *ZarinPalNormalizer {
	return &ZarinPalNormalizer{secret: secret, now: func() time.Time { return time.Now().UTC() }}
}

func (n *ZarinPalNormalizer) Provider() string { return ProviderZarinPal }

func (n *ZarinPalNormalizer) Normalize(header http.Header, body []byte) (model.PaymentEvent, error) {
	values, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return model.PaymentEvent{}, &domain.MalformedEventError{Reason: "invalid form body", Err: err}
	}
	fields := map[string]string{
		"authority": strings.TrimSpace(firstOf(values, "Authority", "authority")),
		"status":    strings.TrimSpace(firstOf(values, "Status", "status")),
		"amount":    strings.TrimSpace(values.Get("amount")),
		"ref_id":    strings.TrimSpace(values.Get("ref_id")),
	}
	if fields["authority"] == "" {
		return model.PaymentEvent{}, &domain.MalformedEventError{Reason: "missing authority"}
	}
	if n.secret != "" {
		sig := header.Get(zarinPalSignatureHead)
		if sig == "" {
			return model.PaymentEvent{}, &domain.MalformedEventError{Reason: "missing " + zarinPalSignatureHead + " header"}
		}
		if !verifyZarinPal(n.secret, fields, sig) {
			return model.PaymentEvent{}, &domain.MalformedEventError{Reason: "signature mismatch"}
		}
	}

	details := make(map[string]string, len(fields))
	for k, v := range fields {
		if v != "" && k != "authority" {
			details[k] = v
		}
	}
	raw, _ := json.Marshal(details)

	return model.PaymentEvent{
		ProviderPaymentID: fields["authority"],
		Status:            zarinPalStatus(fields["status"], fields["ref_id"]),
		Provider:          ProviderZarinPal,
		Details:           raw,
		ReceivedAt:        n.now(),
	}, nil
}

// OK without a ref_id means the payer returned but the gateway has not verified yet.
func zarinPalStatus(status, refID string) model.ReportedStatus {
	switch strings.ToUpper(status) {
	case "OK":
		if refID != "" {
			return model.ReportedPaid
		}
		return model.ReportedAuthorized
	case "NOK":
		return model.ReportedFailed
	case "":
		return model.Unknown("")
	}
	return model.Unknown(status)
}

// signature = hex(HMAC-SHA256(amount + authority + status + secret)), compared case-insensitively.
func verifyZarinPal(secret string, fields map[string]string, signature string) bool {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(fields["amount"] + fields["authority"] + fields["status"] + secret))
	got, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(signature)))
	if err != nil {
		return false
	}
	return hmac.Equal(h.Sum(nil), got)
}

func firstOf(values url.Values, keys ...string) string {
	for _, k := range keys {
		if v := values.Get(k); v != "" {
			return v
		}
	}
	return ""
}
