package postgres

import (
	"context"
	"fmt"
	"time"

	"payment-reconciler/internal/domain/ports/repository"
	"payment-reconciler/internal/infra/metrics"
	red "payment-reconciler/internal/infra/redis"
)

var _ repository.UserContactRepository = (*userContactCacheDecorator)(nil)

type userContactCacheDecorator struct {
	inner repository.UserContactRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewUserContactCacheDecorator(inner repository.UserContactRepository, cache red.RedisClient, ttl time.Duration) repository.UserContactRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &userContactCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func (d *userContactCacheDecorator) EmailFor(ctx context.Context, tx repository.Tx, userID string) (string, error) {
	key := fmt.Sprintf("user:email:%s", userID)
	if val, err := d.cache.Get(ctx, key); err == nil && val != "" {
		metrics.IncCacheRequest("user_email", "hit")
		return val, nil
	}

	metrics.IncCacheRequest("user_email", "miss")
	email, err := d.inner.EmailFor(ctx, tx, userID)
	if err != nil {
		return "", err
	}
	if email != "" {
		_ = d.cache.Set(ctx, key, email, d.ttl)
	}
	return email, nil
}
