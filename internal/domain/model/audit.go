package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

const AuditEventStatusChanged = "payment.status_changed"

// AuditSource tells where a status change originated.
type AuditSource string

const (
	AuditSourceWebhook AuditSource = "webhook"
	AuditSourceSweep   AuditSource = "sweep"
	AuditSourceAdmin   AuditSource = "admin"
)

// AuditLogEntry is an append-only record of one applied status change.
type AuditLogEntry struct {
	ID                string                 `json:"id"`
	Event             string                 `json:"event"`
	Type              string                 `json:"type"` // status reached, e.g. "paid"
	ProviderPaymentID string                 `json:"provider_payment_id"`
	RecordID          string                 `json:"record_id"`
	UserID            string                 `json:"user_id"`
	FromStatus        PaymentStatus          `json:"from_status"`
	ToStatus          PaymentStatus          `json:"to_status"`
	Source            AuditSource            `json:"source"`
	Data              map[string]interface{} `json:"data,omitempty"`
	Timestamp         time.Time              `json:"timestamp"`
}

// NewStatusChangedEntry records the move of p from `from` to its current status.
func NewStatusChangedEntry(p *PaymentRecord, from PaymentStatus, source AuditSource, at time.Time) AuditLogEntry {
	return AuditLogEntry{
		ID:                ulid.Make().String(),
		Event:             AuditEventStatusChanged,
		Type:              string(p.Status),
		ProviderPaymentID: p.ProviderPaymentID,
		RecordID:          p.ID,
		UserID:            p.UserID,
		FromStatus:        from,
		ToStatus:          p.Status,
		Source:            source,
		Data: map[string]interface{}{
			"product_id": p.ProductID,
			"amount":     p.Amount,
			"currency":   p.Currency,
		},
		Timestamp: at,
	}
}
