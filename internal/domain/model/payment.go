package model

import (
	"encoding/json"
	"strings"
	"time"

	"payment-reconciler/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"  // order created; awaiting provider outcome
	PaymentStatusPaid     PaymentStatus = "paid"     // provider confirmed the charge
	PaymentStatusFailed   PaymentStatus = "failed"   // provider reported a failed charge
	PaymentStatusCanceled PaymentStatus = "canceled" // buyer or provider canceled
	PaymentStatusExpired  PaymentStatus = "expired"  // provider expiry or stale-pending sweep
)

// IsTerminal reports whether no further transition is permitted from s.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusFailed, PaymentStatusCanceled, PaymentStatusExpired:
		return true
	}
	return false
}

func (s PaymentStatus) Valid() bool {
	return s == PaymentStatusPending || s.IsTerminal()
}

// BillingDetails is captured at checkout and never changed afterwards.
type BillingDetails struct {
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Company    string `json:"company,omitempty"`
	VATNumber  string `json:"vat_number,omitempty"`
	Address    string `json:"address,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
}

// PaymentRecord is the local view of one provider payment for one product purchase.
type PaymentRecord struct {
	ID                string         `json:"id"`                  // UUID, assigned at order time
	ProviderPaymentID string         `json:"provider_payment_id"` // e.g. tr_xxx / pi_xxx / cs_xxx
	Provider          string         `json:"provider"`
	Status            PaymentStatus  `json:"status"`
	UserID            string         `json:"user_id"`
	ProductID         string         `json:"product_id"`
	Amount            int64          `json:"amount"` // minor units
	Currency          string         `json:"currency"`
	BillingDetails    BillingDetails `json:"billing_details"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"` // set on paid
	FailedAt          *time.Time     `json:"failed_at,omitempty"`    // set on failed or canceled
	ExpiredAt         *time.Time     `json:"expired_at,omitempty"`   // set on expired
	// ProviderDetails is attached verbatim at the status change; never interpreted here.
	ProviderDetails json.RawMessage `json:"provider_details,omitempty"`
}

// NewPaymentRecord creates a pending record at order time.
func NewPaymentRecord(id, providerPaymentID, provider, userID, productID string, amount int64, currency string, billing BillingDetails) (*PaymentRecord, error) {
	if id == "" || strings.TrimSpace(providerPaymentID) == "" || userID == "" || productID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if amount <= 0 || len(currency) != 3 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &PaymentRecord{
		ID:                id,
		ProviderPaymentID: strings.TrimSpace(providerPaymentID),
		Provider:          provider,
		Status:            PaymentStatusPending,
		UserID:            userID,
		ProductID:         productID,
		Amount:            amount,
		Currency:          strings.ToUpper(currency),
		BillingDetails:    billing,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// TerminalAt returns whichever terminal timestamp is set, or nil.
func (p *PaymentRecord) TerminalAt() *time.Time {
	switch {
	case p.CompletedAt != nil:
		return p.CompletedAt
	case p.FailedAt != nil:
		return p.FailedAt
	case p.ExpiredAt != nil:
		return p.ExpiredAt
	}
	return nil
}

// Transition returns a copy of p moved to status `to` at time `at`.
// Terminal records are never moved; the caller gets ErrInvalidArgument.
func (p *PaymentRecord) Transition(to PaymentStatus, at time.Time, details json.RawMessage) (*PaymentRecord, error) {
	if p.Status.IsTerminal() || !to.Valid() || to == p.Status {
		return nil, domain.ErrInvalidArgument
	}
	next := *p
	next.Status = to
	next.UpdatedAt = at
	if len(details) > 0 {
		next.ProviderDetails = append(json.RawMessage(nil), details...)
	}
	ts := at
	switch to {
	case PaymentStatusPaid:
		next.CompletedAt = &ts
	case PaymentStatusFailed, PaymentStatusCanceled:
		next.FailedAt = &ts
	case PaymentStatusExpired:
		next.ExpiredAt = &ts
	}
	return &next, nil
}
