package caching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orgstock/internal/common"
	"orgstock/internal/logger"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StockLocker serializes stock adjustments per product across processes.
// The returned release func must always be called.
type StockLocker interface {
	Lock(ctx context.Context, orgID, productID uuid.UUID) (release func(), err error)
}

type redisStockLocker struct {
	locker *redislock.Client
	ttl    time.Duration
	retry  redislock.RetryStrategy
}

func NewRedisStockLocker(client *redis.Client, ttl time.Duration) StockLocker {
	return &redisStockLocker{
		locker: redislock.New(client),
		ttl:    ttl,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(25*time.Millisecond), 40),
	}
}

func stockLockKey(orgID, productID uuid.UUID) string {
	return fmt.Sprintf("%s:lock:stock:%s:%s", keyPrefix, orgID, productID)
}

func (l *redisStockLocker) Lock(ctx context.Context, orgID, productID uuid.UUID) (func(), error) {
	lock, err := l.locker.Obtain(ctx, stockLockKey(orgID, productID), l.ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return func() {}, common.NewConcurrentModification("product", productID, err)
	}
	if err != nil {
		return func() {}, fmt.Errorf("obtain stock lock: %w", err)
	}

	return func() {
		// Use a fresh context so a cancelled request still frees the lock.
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.FromContext(ctx).Warn("failed to release stock lock",
				zap.String("product_id", productID.String()), zap.Error(err))
		}
	}, nil
}

type noopStockLocker struct{}

func NewNoopStockLocker() StockLocker {
	return noopStockLocker{}
}

func (noopStockLocker) Lock(context.Context, uuid.UUID, uuid.UUID) (func(), error) {
	return func() {}, nil
}
