package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"payment-reconciler/internal/domain"
	"payment-reconciler/internal/domain/ports/repository"
)

var _ repository.UserContactRepository = (*userRepo)(nil)

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

func (r *userRepo) EmailFor(ctx context.Context, tx repository.Tx, userID string) (string, error) {
	const q = `SELECT email FROM users WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return "", err
	}
	var email string
	if err := row.Scan(&email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", domain.ErrReadDatabaseRow
	}
	return email, nil
}

// Upsert stores a user's contact details. Used by seeding and tests.
func (r *userRepo) Upsert(ctx context.Context, tx repository.Tx, id, email, name string) error {
	const q = `
INSERT INTO users (id, email, name) VALUES ($1,$2,$3)
ON CONFLICT (id) DO UPDATE SET email=EXCLUDED.email, name=EXCLUDED.name;`
	_, err := execSQL(ctx, r.pool, tx, q, id, email, name)
	return mapErr(err)
}
