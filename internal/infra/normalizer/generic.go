package normalizer

import (
	"bytes"
	"encoding/json"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"payment-reconciler/internal/config"
	"payment-reconciler/internal/domain"
	"payment-reconciler/internal/domain/model"
	"payment-reconciler/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.Normalizer = (*GenericNormalizer)(nil)

const ProviderGeneric = "generic"

type genericPayload struct {
	ID      string          `json:"id" validate:"required,max=255"`
	Status  string          `json:"status" validate:"max=64"`
	Details json.RawMessage `json:"details"`
}

// GenericNormalizer accepts the minimal notification most providers can be
// configured to send: a payment id, an optional status and optional details,
// either as JSON or as a urlencoded form.
type GenericNormalizer struct {
	now func() time.Time
}

func NewGenericNormalizer() *GenericNormalizer {
	return &GenericNormalizer{now: func() time.Time { return time.Now().UTC() }}
}

func (n *GenericNormalizer) Provider() string { return ProviderGeneric }

func (n *GenericNormalizer) Normalize(header http.Header, body []byte) (model.PaymentEvent, error) {
	var (
		p   genericPayload
		err error
	)
	if isForm(header.Get("Content-Type")) {
		p, err = decodeForm(body)
	} else {
		p, err = decodeJSON(body)
	}
	if err != nil {
		return model.PaymentEvent{}, err
	}

	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return model.PaymentEvent{}, &domain.MalformedEventError{Reason: "missing payment id"}
	}
	if err := config.Check(&p); err != nil {
		return model.PaymentEvent{}, &domain.MalformedEventError{Reason: err.Error()}
	}

	return model.PaymentEvent{
		ProviderPaymentID: p.ID,
		Status:            model.ParseReportedStatus(p.Status),
		Provider:          ProviderGeneric,
		Details:           p.Details,
		ReceivedAt:        n.now(),
	}, nil
}

func isForm(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/x-www-form-urlencoded"
}

func decodeJSON(body []byte) (genericPayload, error) {
	var p genericPayload
	if len(bytes.TrimSpace(body)) == 0 {
		return p, &domain.MalformedEventError{Reason: "empty body"}
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return p, &domain.MalformedEventError{Reason: "invalid json", Err: err}
	}
	if string(p.Details) == "null" {
		p.Details = nil
	}
	return p, nil
}

func decodeForm(body []byte) (genericPayload, error) {
	var p genericPayload
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return p, &domain.MalformedEventError{Reason: "invalid form body", Err: err}
	}
	p.ID = values.Get("id")
	p.Status = values.Get("status")

	extra := make(map[string]string, len(values))
	for k := range values {
		if k == "id" || k == "status" {
			continue
		}
		extra[k] = values.Get(k)
	}
	if len(extra) > 0 {
		// Marshalling a map of strings cannot fail.
		p.Details, _ = json.Marshal(extra)
	}
	return p, nil
}
