//go:build !integration

package postgres

import (
	"context"
	"time"

	"payment-reconciler/internal/domain/ports/repository"
	red "payment-reconciler/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerContactRepo mocks the database repository that the contact decorator wraps.
type mockInnerContactRepo struct {
	EmailForFunc func(ctx context.Context, tx repository.Tx, userID string) (string, error)
}

func (m *mockInnerContactRepo) EmailFor(ctx context.Context, tx repository.Tx, userID string) (string, error) {
	return m.EmailForFunc(ctx, tx, userID)
}

// mockRedisClient mocks the Redis client used by the decorators.
type mockRedisClient struct {
	GetFunc func(ctx context.Context, key string) (string, error)
	SetFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc func(ctx context.Context, keys ...string) error
}

var _ red.RedisClient = (*mockRedisClient)(nil)

func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, expiration)
	}
	return nil
}
func (m *mockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return true, nil
}
func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return "", red.Nil
}
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) { return 1, nil }
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc != nil {
		return m.DelFunc(ctx, keys...)
	}
	return nil
}
func (m *mockRedisClient) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	return true, nil
}
func (m *mockRedisClient) Close() error { return nil }
