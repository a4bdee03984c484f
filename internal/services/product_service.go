package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"orgstock/internal/caching"
	"orgstock/internal/common"
	"orgstock/internal/logger"
	"orgstock/internal/models"
	"orgstock/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var allowedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

type ProductService interface {
	Create(ctx context.Context, orgID, userID uuid.UUID, input *models.ProductCreate) (*models.Product, error)
	Update(ctx context.Context, orgID, id uuid.UUID, input *models.ProductUpdate) (*models.Product, error)
	Delete(ctx context.Context, orgID, id uuid.UUID) error
	FindByID(ctx context.Context, orgID, id uuid.UUID) (*models.Product, error)
	FindAll(ctx context.Context, orgID uuid.UUID, filter *models.ProductFilter) ([]*models.Product, error)
	UploadImage(ctx context.Context, orgID, id uuid.UUID, filename string, reader io.Reader, size int64) (*models.Product, error)
}

type productService struct {
	store    repositories.Store
	cache    caching.CacheService
	cacheTTL time.Duration
	images   MinioService
}

// NewProductService wires the catalog. images may be nil, in which case uploads are rejected.
func NewProductService(store repositories.Store, cache caching.CacheService, cacheTTL time.Duration, images MinioService) ProductService {
	return &productService{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		images:   images,
	}
}

func (s *productService) Create(ctx context.Context, orgID, userID uuid.UUID, input *models.ProductCreate) (*models.Product, error) {
	product := &models.Product{
		ID:              uuid.New(),
		OrgID:           orgID,
		Name:            strings.TrimSpace(input.Name),
		Description:     input.Description,
		Brand:           input.Brand,
		DefaultUnit:     strings.TrimSpace(input.DefaultUnit),
		CurrentQuantity: input.InitialQuantity,
	}
	if product.Name == "" {
		return nil, common.NewValidation("name", "name is required")
	}
	if product.DefaultUnit == "" {
		return nil, common.NewValidation("default_unit", "default unit is required")
	}
	if input.InitialQuantity < 0 {
		return nil, common.NewValidation("initial_quantity", "initial quantity cannot be negative")
	}
	price, err := purchasePrice(input.DefaultPurchasePrice)
	if err != nil {
		return nil, err
	}
	product.DefaultPurchasePrice = price

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		categoryIDs, err := resolveCategoryIDs(ctx, tx.Categories(), orgID, input.CategoryIDs)
		if err != nil {
			return err
		}
		product.CategoryIDs = categoryIDs

		if err := ensureProductNameFree(ctx, tx.Products(), orgID, uuid.Nil, product.Name); err != nil {
			return err
		}
		if err := tx.Products().Create(ctx, product); err != nil {
			return err
		}
		if product.CurrentQuantity == 0 {
			return nil
		}
		// The opening balance is recorded as a stocktake so the ledger always sums to the quantity.
		return tx.InventoryLogs().Create(ctx, &models.InventoryLog{
			ID:               uuid.New(),
			OrgID:            orgID,
			ProductID:        product.ID,
			UserID:           userID,
			Type:             models.LogTypeStocktake,
			Quantity:         product.CurrentQuantity,
			PreviousQuantity: 0,
			NewQuantity:      product.CurrentQuantity,
		})
	})
	if err != nil {
		logOutcome(ctx, "product create", err)
		return nil, err
	}
	return product, nil
}

func (s *productService) Update(ctx context.Context, orgID, id uuid.UUID, input *models.ProductUpdate) (*models.Product, error) {
	var updated *models.Product
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		product, err := tx.Products().GetByID(ctx, orgID, id)
		if err != nil {
			return err
		}

		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return common.NewValidation("name", "name must not be empty")
			}
			if name != product.Name {
				if err := ensureProductNameFree(ctx, tx.Products(), orgID, id, name); err != nil {
					return err
				}
				product.Name = name
			}
		}
		if input.Description != nil {
			product.Description = input.Description
		}
		if input.Brand != nil {
			product.Brand = input.Brand
		}
		if input.DefaultUnit != nil {
			unit := strings.TrimSpace(*input.DefaultUnit)
			if unit == "" {
				return common.NewValidation("default_unit", "default unit must not be empty")
			}
			product.DefaultUnit = unit
		}
		if input.DefaultPurchasePrice != nil {
			price, err := purchasePrice(input.DefaultPurchasePrice)
			if err != nil {
				return err
			}
			product.DefaultPurchasePrice = price
		}
		if input.CategoryIDs != nil {
			categoryIDs, err := resolveCategoryIDs(ctx, tx.Categories(), orgID, *input.CategoryIDs)
			if err != nil {
				return err
			}
			product.CategoryIDs = categoryIDs
		}

		if err := tx.Products().Update(ctx, product); err != nil {
			return err
		}
		updated = product
		return nil
	})
	if err != nil {
		logOutcome(ctx, "product update", err)
		return nil, err
	}
	s.evict(ctx, orgID, id)
	return updated, nil
}

func (s *productService) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	if err := s.store.Products().Delete(ctx, orgID, id); err != nil {
		logOutcome(ctx, "product delete", err)
		return err
	}
	s.evict(ctx, orgID, id)
	return nil
}

func (s *productService) FindByID(ctx context.Context, orgID, id uuid.UUID) (*models.Product, error) {
	log := logger.FromContext(ctx)
	if cached, err := s.cache.GetProduct(ctx, orgID, id); err != nil {
		log.Warn("product cache read failed", zap.String("product_id", id.String()), zap.Error(err))
	} else if cached != nil {
		// Quantity is always read from the store; a cached copy may predate an adjustment.
		quantity, err := s.store.Products().GetQuantity(ctx, orgID, id)
		if err != nil {
			return nil, err
		}
		product := *cached
		product.CurrentQuantity = quantity
		return &product, nil
	}

	product, err := s.store.Products().GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetProduct(ctx, product, s.cacheTTL); err != nil {
		log.Warn("product cache write failed", zap.String("product_id", id.String()), zap.Error(err))
	}
	return product, nil
}

func (s *productService) FindAll(ctx context.Context, orgID uuid.UUID, filter *models.ProductFilter) ([]*models.Product, error) {
	return s.store.Products().List(ctx, orgID, filter)
}

func (s *productService) UploadImage(ctx context.Context, orgID, id uuid.UUID, filename string, reader io.Reader, size int64) (*models.Product, error) {
	if s.images == nil {
		return nil, common.NewValidation("image", "image storage is not configured")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	contentType, ok := allowedImageExtensions[ext]
	if !ok {
		return nil, common.NewValidation("image", fmt.Sprintf("unsupported image type %q", ext))
	}

	if _, err := s.store.Products().GetByID(ctx, orgID, id); err != nil {
		return nil, err
	}

	objectName := fmt.Sprintf("products/%s/%s/%s%s", orgID, id, uuid.New(), ext)
	url, err := s.images.Upload(ctx, objectName, reader, size, contentType)
	if err != nil {
		logOutcome(ctx, "product image upload", err)
		return nil, err
	}
	if err := s.store.Products().SetImageURL(ctx, orgID, id, url); err != nil {
		// product deleted mid-upload
		if delErr := s.images.Delete(ctx, objectName); delErr != nil {
			logger.FromContext(ctx).Warn("failed to remove orphaned image", zap.String("object", objectName), zap.Error(delErr))
		}
		return nil, err
	}
	s.evict(ctx, orgID, id)
	return s.store.Products().GetByID(ctx, orgID, id)
}

func (s *productService) evict(ctx context.Context, orgID, id uuid.UUID) {
	if err := s.cache.DeleteProduct(ctx, orgID, id); err != nil {
		logger.FromContext(ctx).Warn("failed to evict product from cache", zap.String("product_id", id.String()), zap.Error(err))
	}
}

func purchasePrice(price *decimal.Decimal) (decimal.NullDecimal, error) {
	if price == nil {
		return decimal.NullDecimal{}, nil
	}
	if price.IsNegative() {
		return decimal.NullDecimal{}, common.NewValidation("default_purchase_price", "default purchase price cannot be negative")
	}
	return decimal.NewNullDecimal(*price), nil
}

// resolveCategoryIDs dedupes ids and fails on the first one outside the organization.
func resolveCategoryIDs(ctx context.Context, repo repositories.CategoryRepository, orgID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return unique, nil
	}

	// Held until commit so a concurrent category delete cannot strip an id between this check and the write.
	if err := repo.LockHierarchy(ctx, orgID); err != nil {
		return nil, err
	}
	existing, err := repo.ExistingIDs(ctx, orgID, unique)
	if err != nil {
		return nil, err
	}
	found := make(map[uuid.UUID]struct{}, len(existing))
	for _, id := range existing {
		found[id] = struct{}{}
	}
	for _, id := range unique {
		if _, ok := found[id]; !ok {
			return nil, common.NewInvalidCategory(id)
		}
	}
	return unique, nil
}

func ensureProductNameFree(ctx context.Context, repo repositories.ProductRepository, orgID, exceptID uuid.UUID, name string) error {
	existing, err := repo.GetByName(ctx, orgID, name)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != exceptID {
		return common.NewNameConflict("product", name)
	}
	return nil
}
