package repository

import (
	"context"
	"time"

	"payment-reconciler/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.PaymentRecord) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentRecord, error)
	// FindByProviderPaymentID returns every record carrying the id. Rows are
	// locked for the rest of the transaction when tx is non-nil.
	FindByProviderPaymentID(ctx context.Context, tx Tx, providerPaymentID string) ([]*model.PaymentRecord, error)
	// ApplyTransition writes next only if the stored status still equals from.
	// applied is false when another writer got there first.
	ApplyTransition(ctx context.Context, tx Tx, from model.PaymentStatus, next *model.PaymentRecord) (applied bool, err error)
	ListPendingOlderThan(ctx context.Context, tx Tx, deadline time.Time, limit int) ([]*model.PaymentRecord, error)
	// ExpirePending moves the given ids to expired, re-checking status and age
	// in the same statement. Returns the ids actually changed.
	ExpirePending(ctx context.Context, tx Tx, ids []string, deadline, at time.Time) ([]string, error)
}
