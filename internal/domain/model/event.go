package model

import (
	"encoding/json"
	"strings"
	"time"
)

type reportedKind int

const (
	reportedUnknown reportedKind = iota
	reportedPaid
	reportedFailed
	reportedCanceled
	reportedExpired
	reportedPending
	reportedOpen
	reportedAuthorized
)

// ReportedStatus is the provider's claim about a payment, before classification.
// The zero value is an unknown status with an empty raw string.
type ReportedStatus struct {
	kind reportedKind
	raw  string
}

var (
	ReportedPaid       = ReportedStatus{kind: reportedPaid, raw: "paid"}
	ReportedFailed     = ReportedStatus{kind: reportedFailed, raw: "failed"}
	ReportedCanceled   = ReportedStatus{kind: reportedCanceled, raw: "canceled"}
	ReportedExpired    = ReportedStatus{kind: reportedExpired, raw: "expired"}
	ReportedPending    = ReportedStatus{kind: reportedPending, raw: "pending"}
	ReportedOpen       = ReportedStatus{kind: reportedOpen, raw: "open"}
	ReportedAuthorized = ReportedStatus{kind: reportedAuthorized, raw: "authorized"}
)

// Unknown wraps a status string the service does not recognise.
func Unknown(raw string) ReportedStatus {
	return ReportedStatus{kind: reportedUnknown, raw: raw}
}

// ParseReportedStatus maps a provider status string onto the closed set.
func ParseReportedStatus(s string) ReportedStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid":
		return ReportedPaid
	case "failed":
		return ReportedFailed
	case "canceled", "cancelled":
		return ReportedCanceled
	case "expired":
		return ReportedExpired
	case "pending":
		return ReportedPending
	case "open":
		return ReportedOpen
	case "authorized":
		return ReportedAuthorized
	}
	return Unknown(s)
}

func (r ReportedStatus) String() string { return r.raw }

func (r ReportedStatus) IsUnknown() bool { return r.kind == reportedUnknown }

// Classify maps the reported status to a local status. ok is false for unknown values.
func (r ReportedStatus) Classify() (PaymentStatus, bool) {
	switch r.kind {
	case reportedPaid:
		return PaymentStatusPaid, true
	case reportedFailed:
		return PaymentStatusFailed, true
	case reportedCanceled:
		return PaymentStatusCanceled, true
	case reportedExpired:
		return PaymentStatusExpired, true
	case reportedPending, reportedOpen, reportedAuthorized:
		return PaymentStatusPending, true
	}
	return "", false
}

// PaymentEvent is the normalized form of an inbound provider notification.
type PaymentEvent struct {
	ProviderPaymentID string          `json:"provider_payment_id"`
	Status            ReportedStatus  `json:"-"`
	Provider          string          `json:"provider"`
	Details           json.RawMessage `json:"details,omitempty"`
	ReceivedAt        time.Time       `json:"received_at"`
	Source            AuditSource     `json:"source,omitempty"` // empty means webhook
}

// Origin is the audit source of the event, webhook unless set.
func (e PaymentEvent) Origin() AuditSource {
	if e.Source == "" {
		return AuditSourceWebhook
	}
	return e.Source
}
