package services

import (
	"context"
	"errors"
	"time"

	"orgstock/internal/caching"
	"orgstock/internal/common"
	"orgstock/internal/logger"
	"orgstock/internal/metrics"
	"orgstock/internal/models"
	"orgstock/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type InventoryService interface {
	AdjustStock(ctx context.Context, orgID, productID, userID uuid.UUID, input *models.StockAdjustment) (*models.InventoryLog, error)
	GetProductInventoryLogs(ctx context.Context, orgID, productID uuid.UUID, start, end *time.Time) ([]*models.InventoryLog, error)
	ListInventoryLogs(ctx context.Context, orgID uuid.UUID, filter *models.InventoryLogFilter) ([]*models.InventoryLog, error)
	FindLedgerDrift(ctx context.Context, limit int) ([]*models.LedgerDrift, error)
	FindLowStock(ctx context.Context, threshold int64, limit int) ([]*models.Product, error)
}

type inventoryService struct {
	store       repositories.Store
	cache       caching.CacheService
	locker      caching.StockLocker
	metrics     *metrics.Metrics
	maxAttempts int
}

// NewInventoryService builds the ledger engine. maxAttempts bounds how many
// times one adjustment is tried when it loses a race with a concurrent writer.
func NewInventoryService(store repositories.Store, cache caching.CacheService, locker caching.StockLocker, m *metrics.Metrics, maxAttempts int) InventoryService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if locker == nil {
		locker = caching.NewNoopStockLocker()
	}
	return &inventoryService{
		store:       store,
		cache:       cache,
		locker:      locker,
		metrics:     m,
		maxAttempts: maxAttempts,
	}
}

func (s *inventoryService) AdjustStock(ctx context.Context, orgID, productID, userID uuid.UUID, input *models.StockAdjustment) (*models.InventoryLog, error) {
	if input.Quantity == 0 {
		return nil, s.reject(ctx, common.NewZeroAdjustment())
	}
	if !input.Type.Valid() {
		return nil, s.reject(ctx, common.NewValidation("type", "type must be one of purchase, consumption, adjustment, stocktake"))
	}

	release, err := s.locker.Lock(ctx, orgID, productID)
	if err != nil {
		return nil, s.reject(ctx, err)
	}
	defer release()

	log := logger.FromContext(ctx).With(zap.String("product_id", productID.String()))
	for attempt := 1; ; attempt++ {
		entry, err := s.adjustOnce(ctx, orgID, productID, userID, input)
		if err == nil {
			s.metrics.RecordStockAdjustment(string(entry.Type))
			if cacheErr := s.cache.DeleteProduct(ctx, orgID, productID); cacheErr != nil {
				log.Warn("failed to evict product from cache", zap.Error(cacheErr))
			}
			return entry, nil
		}
		if errors.Is(err, common.ErrConcurrentModification) && attempt < s.maxAttempts {
			s.metrics.RecordStockRetry()
			log.Warn("stock adjustment lost a concurrent write, retrying", zap.Int("attempt", attempt))
			continue
		}
		return nil, s.reject(ctx, err)
	}
}

// adjustOnce runs one read, conditional update and log append as a single transaction.
func (s *inventoryService) adjustOnce(ctx context.Context, orgID, productID, userID uuid.UUID, input *models.StockAdjustment) (*models.InventoryLog, error) {
	var entry *models.InventoryLog
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		product, err := tx.Products().GetByID(ctx, orgID, productID)
		if err != nil {
			return err
		}

		previous := product.CurrentQuantity
		next := previous + input.Quantity
		if next < 0 {
			return common.NewNegativeStock(previous, input.Quantity)
		}

		applied, err := tx.Products().UpdateQuantity(ctx, orgID, productID, previous, next)
		if err != nil {
			return err
		}
		if !applied {
			return common.NewConcurrentModification("product", productID, nil)
		}

		entry = &models.InventoryLog{
			ID:               uuid.New(),
			OrgID:            orgID,
			ProductID:        productID,
			UserID:           userID,
			Type:             input.Type,
			Quantity:         input.Quantity,
			PreviousQuantity: previous,
			NewQuantity:      next,
			Note:             input.Note,
		}
		return tx.InventoryLogs().Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *inventoryService) GetProductInventoryLogs(ctx context.Context, orgID, productID uuid.UUID, start, end *time.Time) ([]*models.InventoryLog, error) {
	if start != nil && end != nil && start.After(*end) {
		return nil, common.NewInvalidDateRange()
	}
	if _, err := s.store.Products().GetByID(ctx, orgID, productID); err != nil {
		return nil, err
	}
	return s.store.InventoryLogs().ListByProduct(ctx, orgID, productID, start, end)
}

func (s *inventoryService) ListInventoryLogs(ctx context.Context, orgID uuid.UUID, filter *models.InventoryLogFilter) ([]*models.InventoryLog, error) {
	if filter == nil {
		filter = &models.InventoryLogFilter{}
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.StartDate.After(*filter.EndDate) {
		return nil, common.NewInvalidDateRange()
	}
	if filter.Type != nil && !filter.Type.Valid() {
		return nil, common.NewValidation("type", "unknown inventory log type")
	}
	return s.store.InventoryLogs().List(ctx, orgID, filter)
}

func (s *inventoryService) FindLedgerDrift(ctx context.Context, limit int) ([]*models.LedgerDrift, error) {
	return s.store.InventoryLogs().FindLedgerDrift(ctx, limit)
}

func (s *inventoryService) FindLowStock(ctx context.Context, threshold int64, limit int) ([]*models.Product, error) {
	return s.store.Products().ListLowStock(ctx, threshold, limit)
}

func (s *inventoryService) reject(ctx context.Context, err error) error {
	if kind, ok := common.KindOf(err); ok {
		s.metrics.RecordStockRejection(string(kind))
	}
	logOutcome(ctx, "stock adjustment", err)
	return err
}
