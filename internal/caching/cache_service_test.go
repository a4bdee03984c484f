package caching

import (
	"context"
	"testing"

	"orgstock/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestKeysAreScopedByOrganization(t *testing.T) {
	orgA, orgB, productID := uuid.New(), uuid.New(), uuid.New()

	assert.NotEqual(t, productKey(orgA, productID), productKey(orgB, productID))
	assert.Equal(t, "orgstock:categories:"+orgA.String(), categoriesKey(orgA))
	assert.Equal(t, "orgstock:lock:stock:"+orgA.String()+":"+productID.String(), stockLockKey(orgA, productID))
}

func TestNoopCacheAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	cache := NewNoopCacheService()
	orgID := uuid.New()
	product := &models.Product{ID: uuid.New(), OrgID: orgID}

	assert.NoError(t, cache.SetProduct(ctx, product, 0))
	got, err := cache.GetProduct(ctx, orgID, product.ID)
	assert.NoError(t, err)
	assert.Nil(t, got)

	categories, err := cache.GetCategories(ctx, orgID)
	assert.NoError(t, err)
	assert.Nil(t, categories)
}

func TestNoopStockLocker(t *testing.T) {
	release, err := NewNoopStockLocker().Lock(context.Background(), uuid.New(), uuid.New())
	assert.NoError(t, err)
	assert.NotPanics(t, release)
}

func TestNewRedisClient_ParsesURL(t *testing.T) {
	client := NewRedisClient("redis://localhost:6380/2", "secret", 0)
	defer client.Close()

	opts := client.Options()
	assert.Equal(t, "localhost:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "secret", opts.Password)
}
