package repository

import (
	"context"

	"payment-reconciler/internal/domain/model"
)

// -----------------------------
// Audit log
// -----------------------------

type AuditRepository interface {
	Append(ctx context.Context, tx Tx, e *model.AuditLogEntry) error
	ListByProviderPaymentID(ctx context.Context, tx Tx, providerPaymentID string) ([]*model.AuditLogEntry, error)
}
