package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"payment-reconciler/internal/domain"
	"payment-reconciler/internal/domain/model"
	"payment-reconciler/internal/domain/ports/repository"
)

var _ repository.AuditRepository = (*auditRepo)(nil)

type auditRepo struct{ pool *pgxpool.Pool }

func NewAuditRepo(pool *pgxpool.Pool) *auditRepo {
	return &auditRepo{pool: pool}
}

// Append is idempotent on entry id so a retried sink write cannot duplicate a row.
func (r *auditRepo) Append(ctx context.Context, tx repository.Tx, e *model.AuditLogEntry) error {
	const q = `
INSERT INTO audit_log (id, event, type, provider_payment_id, record_id, user_id, from_status, to_status, source, data, ts)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO NOTHING;`
	var data interface{}
	if len(e.Data) > 0 {
		b, err := json.Marshal(e.Data)
		if err != nil {
			return domain.ErrInvalidArgument
		}
		data = b
	}
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.Event, e.Type, e.ProviderPaymentID, e.RecordID, e.UserID,
		string(e.FromStatus), string(e.ToStatus), string(e.Source), data, e.Timestamp)
	return mapErr(err)
}

func (r *auditRepo) ListByProviderPaymentID(ctx context.Context, tx repository.Tx, providerPaymentID string) ([]*model.AuditLogEntry, error) {
	const q = `
SELECT id, event, type, provider_payment_id, record_id, user_id, from_status, to_status, source, data, ts
  FROM audit_log WHERE provider_payment_id=$1 ORDER BY ts, id;`
	rows, err := queryRows(ctx, r.pool, tx, q, providerPaymentID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.AuditLogEntry
	for rows.Next() {
		var (
			e                model.AuditLogEntry
			from, to, source string
			data             []byte
		)
		if err := rows.Scan(&e.ID, &e.Event, &e.Type, &e.ProviderPaymentID, &e.RecordID, &e.UserID, &from, &to, &source, &data, &e.Timestamp); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		e.FromStatus, e.ToStatus, e.Source = model.PaymentStatus(from), model.PaymentStatus(to), model.AuditSource(source)
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, domain.ErrReadDatabaseRow
			}
		}
		out = append(out, &e)
	}
	return out, mapErr(rows.Err())
}
