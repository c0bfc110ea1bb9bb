package repository

import (
	"context"

	"payment-reconciler/internal/domain/model"
)

// -----------------------------
// Enrollments
// -----------------------------

type EnrollmentRepository interface {
	// Upsert creates the enrollment or refreshes payment_id/enrolled_at on an
	// existing one, leaving progress untouched. inserted is true for new rows.
	Upsert(ctx context.Context, tx Tx, e *model.EnrollmentRecord) (inserted bool, err error)
	FindByUserAndProduct(ctx context.Context, tx Tx, userID, productID string) (*model.EnrollmentRecord, error)
	IncrementUserEnrollments(ctx context.Context, tx Tx, userID string) error
	CountForUser(ctx context.Context, tx Tx, userID string) (int, error)
}

// -----------------------------
// Users
// -----------------------------

type UserContactRepository interface {
	EmailFor(ctx context.Context, tx Tx, userID string) (string, error)
}
