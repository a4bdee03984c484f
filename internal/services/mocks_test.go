package services

import (
	"context"
	"io"
	"time"

	"orgstock/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetProduct(ctx context.Context, orgID, productID uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, orgID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockCacheService) SetProduct(ctx context.Context, product *models.Product, ttl time.Duration) error {
	args := m.Called(ctx, product, ttl)
	return args.Error(0)
}

func (m *MockCacheService) DeleteProduct(ctx context.Context, orgID, productID uuid.UUID) error {
	args := m.Called(ctx, orgID, productID)
	return args.Error(0)
}

func (m *MockCacheService) GetCategories(ctx context.Context, orgID uuid.UUID) ([]*models.Category, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Category), args.Error(1)
}

func (m *MockCacheService) SetCategories(ctx context.Context, orgID uuid.UUID, categories []*models.Category, ttl time.Duration) error {
	args := m.Called(ctx, orgID, categories, ttl)
	return args.Error(0)
}

func (m *MockCacheService) DeleteCategories(ctx context.Context, orgID uuid.UUID) error {
	args := m.Called(ctx, orgID)
	return args.Error(0)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockMinioService struct {
	mock.Mock
}

func (m *MockMinioService) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	args := m.Called(ctx, objectName, reader, size, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockMinioService) Delete(ctx context.Context, objectName string) error {
	args := m.Called(ctx, objectName)
	return args.Error(0)
}

func (m *MockMinioService) EnsureBucket(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
