package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"payment-reconciler/internal/domain"
	"payment-reconciler/internal/domain/model"
	"payment-reconciler/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

const paymentColumns = `id, provider_payment_id, provider, status, user_id, product_id, amount, currency, billing_details,
  created_at, updated_at, completed_at, failed_at, expired_at, provider_details`

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error {
	const q = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15);`

	billing, err := json.Marshal(p.BillingDetails)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		p.ID, p.ProviderPaymentID, p.Provider, string(p.Status), p.UserID, p.ProductID, p.Amount, p.Currency, billing,
		p.CreatedAt, p.UpdatedAt, p.CompletedAt, p.FailedAt, p.ExpiredAt, nullJSON(p.ProviderDetails))
	return mapErr(err)
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRecord, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if isTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *paymentRepo) FindByProviderPaymentID(ctx context.Context, tx repository.Tx, providerPaymentID string) ([]*model.PaymentRecord, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE provider_payment_id=$1 ORDER BY created_at`
	if isTx(tx) {
		q += " FOR UPDATE"
	}
	return r.list(ctx, tx, q, providerPaymentID)
}

func (r *paymentRepo) ApplyTransition(ctx context.Context, tx repository.Tx, from model.PaymentStatus, next *model.PaymentRecord) (bool, error) {
	const q = `
UPDATE payments
   SET status=$3, updated_at=$4, completed_at=$5, failed_at=$6, expired_at=$7,
       provider_details=COALESCE($8, provider_details)
 WHERE id=$1 AND status=$2;`
	tag, err := execSQL(ctx, r.pool, tx, q,
		next.ID, string(from), string(next.Status), next.UpdatedAt,
		next.CompletedAt, next.FailedAt, next.ExpiredAt, nullJSON(next.ProviderDetails))
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, deadline time.Time, limit int) ([]*model.PaymentRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + `
  FROM payments WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, deadline, limit)
}

func (r *paymentRepo) ExpirePending(ctx context.Context, tx repository.Tx, ids []string, deadline, at time.Time) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const q = `
UPDATE payments
   SET status='expired', expired_at=$3, updated_at=$3
 WHERE id = ANY($1) AND status='pending' AND created_at < $2
RETURNING id;`
	rows, err := queryRows(ctx, r.pool, tx, q, ids, deadline, at)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, id)
	}
	return out, mapErr(rows.Err())
}

func (r *paymentRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.PaymentRecord, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func scanPayment(row pgx.Row) (*model.PaymentRecord, error) {
	var (
		p       model.PaymentRecord
		status  string
		billing []byte
		details []byte
	)
	if err := row.Scan(&p.ID, &p.ProviderPaymentID, &p.Provider, &status, &p.UserID, &p.ProductID, &p.Amount, &p.Currency, &billing,
		&p.CreatedAt, &p.UpdatedAt, &p.CompletedAt, &p.FailedAt, &p.ExpiredAt, &details); err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatus(status)
	if len(billing) > 0 {
		if err := json.Unmarshal(billing, &p.BillingDetails); err != nil {
			return nil, err
		}
	}
	if len(details) > 0 {
		p.ProviderDetails = json.RawMessage(details)
	}
	return &p, nil
}

// nullJSON maps an empty payload to SQL NULL.
func nullJSON(b json.RawMessage) interface{} {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}
