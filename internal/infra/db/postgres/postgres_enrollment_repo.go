package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"payment-reconciler/internal/domain"
	"payment-reconciler/internal/domain/model"
	"payment-reconciler/internal/domain/ports/repository"
)

var _ repository.EnrollmentRepository = (*enrollmentRepo)(nil)

type enrollmentRepo struct{ pool *pgxpool.Pool }

func NewEnrollmentRepo(pool *pgxpool.Pool) *enrollmentRepo {
	return &enrollmentRepo{pool: pool}
}

// Upsert never touches progress on conflict. xmax is zero only for a row
// this statement inserted.
func (r *enrollmentRepo) Upsert(ctx context.Context, tx repository.Tx, e *model.EnrollmentRecord) (bool, error) {
	const q = `
INSERT INTO enrollments (id, user_id, product_id, payment_id, enrolled_at, progress)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (user_id, product_id) DO UPDATE SET
  payment_id=EXCLUDED.payment_id, enrolled_at=EXCLUDED.enrolled_at
RETURNING (xmax = 0);`

	progress, err := json.Marshal(e.Progress)
	if err != nil {
		return false, domain.ErrInvalidArgument
	}
	row, err := pickRow(ctx, r.pool, tx, q, e.ID, e.UserID, e.ProductID, e.PaymentID, e.EnrolledAt, progress)
	if err != nil {
		return false, err
	}
	var inserted bool
	if err := row.Scan(&inserted); err != nil {
		return false, mapErr(err)
	}
	return inserted, nil
}

func (r *enrollmentRepo) FindByUserAndProduct(ctx context.Context, tx repository.Tx, userID, productID string) (*model.EnrollmentRecord, error) {
	const q = `SELECT id, user_id, product_id, payment_id, enrolled_at, progress FROM enrollments WHERE user_id=$1 AND product_id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, productID)
	if err != nil {
		return nil, err
	}
	var (
		e        model.EnrollmentRecord
		progress []byte
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.ProductID, &e.PaymentID, &e.EnrolledAt, &progress); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(progress) > 0 {
		if err := json.Unmarshal(progress, &e.Progress); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return &e, nil
}

func (r *enrollmentRepo) IncrementUserEnrollments(ctx context.Context, tx repository.Tx, userID string) error {
	const q = `
INSERT INTO user_enrollment_counters (user_id, enrollments, updated_at) VALUES ($1, 1, NOW())
ON CONFLICT (user_id) DO UPDATE SET
  enrollments = user_enrollment_counters.enrollments + 1, updated_at = NOW();`
	_, err := execSQL(ctx, r.pool, tx, q, userID)
	return mapErr(err)
}

func (r *enrollmentRepo) CountForUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	const q = `SELECT COALESCE((SELECT enrollments FROM user_enrollment_counters WHERE user_id=$1), 0);`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}
