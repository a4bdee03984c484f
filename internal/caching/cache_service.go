package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"orgstock/internal/logger"
	"orgstock/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "orgstock"

// CacheService is a read-through cache. Get methods return (nil, nil) on a miss.
type CacheService interface {
	GetProduct(ctx context.Context, orgID, productID uuid.UUID) (*models.Product, error)
	SetProduct(ctx context.Context, product *models.Product, ttl time.Duration) error
	DeleteProduct(ctx context.Context, orgID, productID uuid.UUID) error

	GetCategories(ctx context.Context, orgID uuid.UUID) ([]*models.Category, error)
	SetCategories(ctx context.Context, orgID uuid.UUID, categories []*models.Category, ttl time.Duration) error
	DeleteCategories(ctx context.Context, orgID uuid.UUID) error

	Ping(ctx context.Context) error
}

func productKey(orgID, productID uuid.UUID) string {
	return fmt.Sprintf("%s:product:%s:%s", keyPrefix, orgID, productID)
}

func categoriesKey(orgID uuid.UUID) string {
	return fmt.Sprintf("%s:categories:%s", keyPrefix, orgID)
}

// NewRedisClient builds a client, accepting either host:port or a redis:// URL.
func NewRedisClient(addr, password string, db int) *redis.Client {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if opts, err := redis.ParseURL(addr); err == nil {
			if password != "" {
				opts.Password = password
			}
			return redis.NewClient(opts)
		}
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(client *redis.Client) CacheService {
	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.L().Warn("redis ping failed on initialization", zap.Error(err))
	}
	return &redisCacheService{client: client}
}

func (r *redisCacheService) getJSON(ctx context.Context, key string, dest any) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (r *redisCacheService) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *redisCacheService) GetProduct(ctx context.Context, orgID, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	found, err := r.getJSON(ctx, productKey(orgID, productID), &product)
	if err != nil || !found {
		return nil, err
	}
	return &product, nil
}

func (r *redisCacheService) SetProduct(ctx context.Context, product *models.Product, ttl time.Duration) error {
	return r.setJSON(ctx, productKey(product.OrgID, product.ID), product, ttl)
}

func (r *redisCacheService) DeleteProduct(ctx context.Context, orgID, productID uuid.UUID) error {
	return r.client.Del(ctx, productKey(orgID, productID)).Err()
}

func (r *redisCacheService) GetCategories(ctx context.Context, orgID uuid.UUID) ([]*models.Category, error) {
	var categories []*models.Category
	found, err := r.getJSON(ctx, categoriesKey(orgID), &categories)
	if err != nil || !found {
		return nil, err
	}
	return categories, nil
}

func (r *redisCacheService) SetCategories(ctx context.Context, orgID uuid.UUID, categories []*models.Category, ttl time.Duration) error {
	return r.setJSON(ctx, categoriesKey(orgID), categories, ttl)
}

func (r *redisCacheService) DeleteCategories(ctx context.Context, orgID uuid.UUID) error {
	return r.client.Del(ctx, categoriesKey(orgID)).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// noopCacheService is used when REDIS_ADDR is unset; every read is a miss.
type noopCacheService struct{}

func NewNoopCacheService() CacheService {
	return noopCacheService{}
}

func (noopCacheService) GetProduct(context.Context, uuid.UUID, uuid.UUID) (*models.Product, error) {
	return nil, nil
}

func (noopCacheService) SetProduct(context.Context, *models.Product, time.Duration) error { return nil }

func (noopCacheService) DeleteProduct(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (noopCacheService) GetCategories(context.Context, uuid.UUID) ([]*models.Category, error) {
	return nil, nil
}

func (noopCacheService) SetCategories(context.Context, uuid.UUID, []*models.Category, time.Duration) error {
	return nil
}

func (noopCacheService) DeleteCategories(context.Context, uuid.UUID) error { return nil }

func (noopCacheService) Ping(context.Context) error { return nil }
