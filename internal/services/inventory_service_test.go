package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"orgstock/internal/caching"
	"orgstock/internal/common"
	"orgstock/internal/metrics"
	"orgstock/internal/models"
	"orgstock/internal/repositories"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type InventoryServiceTestSuite struct {
	suite.Suite
	store   *repositories.MemoryStore
	metrics *metrics.Metrics
	service InventoryService
	orgID   uuid.UUID
	userID  uuid.UUID
	ctx     context.Context
}

func (suite *InventoryServiceTestSuite) SetupTest() {
	suite.store = repositories.NewMemoryStore()
	suite.metrics = metrics.New(prometheus.NewRegistry())
	suite.service = NewInventoryService(suite.store, caching.NewNoopCacheService(), caching.NewNoopStockLocker(), suite.metrics, 3)
	suite.orgID = uuid.New()
	suite.userID = uuid.New()
	suite.ctx = context.Background()
}

func TestInventoryServiceTestSuite(t *testing.T) {
	suite.Run(t, new(InventoryServiceTestSuite))
}

func (suite *InventoryServiceTestSuite) productWithQuantity(quantity int64) *models.Product {
	product := &models.Product{ID: uuid.New(), OrgID: suite.orgID, Name: uuid.NewString(), DefaultUnit: "pcs",
		CurrentQuantity: quantity}
	require.NoError(suite.T(), suite.store.Products().Create(suite.ctx, product))
	return product
}

func (suite *InventoryServiceTestSuite) quantityOf(productID uuid.UUID) int64 {
	product, err := suite.store.Products().GetByID(suite.ctx, suite.orgID, productID)
	require.NoError(suite.T(), err)
	return product.CurrentQuantity
}

func (suite *InventoryServiceTestSuite) logsOf(productID uuid.UUID) []*models.InventoryLog {
	logs, err := suite.store.InventoryLogs().ListByProduct(suite.ctx, suite.orgID, productID, nil, nil)
	require.NoError(suite.T(), err)
	return logs
}

func (suite *InventoryServiceTestSuite) TestConsumingMoreThanOnHandIsRejected() {
	product := suite.productWithQuantity(10)

	_, err := suite.service.AdjustStock(suite.ctx, suite.orgID, product.ID, suite.userID,
		&models.StockAdjustment{Type: models.LogTypeConsumption, Quantity: -15})
	require.ErrorIs(suite.T(), err, common.ErrNegativeStock)

	var de *common.DomainError
	require.True(suite.T(), errors.As(err, &de))
	assert.Equal(suite.T(), int64(10), de.Details["previous_quantity"])
	assert.Equal(suite.T(), int64(-15), de.Details["delta"])

	assert.Equal(suite.T(), int64(10), suite.quantityOf(product.ID))
	assert.Empty(suite.T(), suite.logsOf(product.ID))
	assert.Equal(suite.T(), float64(1), testutil.ToFloat64(suite.metrics.StockRejections.WithLabelValues("NEGATIVE_STOCK")))
}

func (suite *InventoryServiceTestSuite) TestPurchaseAppendsLogAndMovesQuantity() {
	product := suite.productWithQuantity(10)

	entry, err := suite.service.AdjustStock(suite.ctx, suite.orgID, product.ID, suite.userID,
		&models.StockAdjustment{Type: models.LogTypePurchase, Quantity: 5})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(10), entry.PreviousQuantity)
	assert.Equal(suite.T(), int64(15), entry.NewQuantity)
	assert.Equal(suite.T(), suite.userID, entry.UserID)
	assert.Equal(suite.T(), int64(15), suite.quantityOf(product.ID))

	logs := suite.logsOf(product.ID)
	require.Len(suite.T(), logs, 1)
	assert.Equal(suite.T(), entry.ID, logs[0].ID)
}

func (suite *InventoryServiceTestSuite) TestZeroAdjustment() {
	product := suite.productWithQuantity(3)

	_, err := suite.service.AdjustStock(suite.ctx, suite.orgID, product.ID, suite.userID,
		&models.StockAdjustment{Type: models.LogTypeAdjustment, Quantity: 0})
	assert.ErrorIs(suite.T(), err, common.ErrZeroAdjustment)
}

func (suite *InventoryServiceTestSuite) TestUnknownProduct() {
	_, err := suite.service.AdjustStock(suite.ctx, suite.orgID, uuid.New(), suite.userID,
		&models.StockAdjustment{Type: models.LogTypePurchase, Quantity: 1})
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *InventoryServiceTestSuite) TestProductFromAnotherOrgIsNotFound() {
	product := suite.productWithQuantity(3)

	_, err := suite.service.AdjustStock(suite.ctx, uuid.New(), product.ID, suite.userID,
		&models.StockAdjustment{Type: models.LogTypePurchase, Quantity: 1})
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
	assert.Equal(suite.T(), int64(3), suite.quantityOf(product.ID))
}

func (suite *InventoryServiceTestSuite) TestInvalidType() {
	product := suite.productWithQuantity(3)

	_, err := suite.service.AdjustStock(suite.ctx, suite.orgID, product.ID, suite.userID,
		&models.StockAdjustment{Type: "gift", Quantity: 1})
	assert.ErrorIs(suite.T(), err, common.ErrValidation)
}

// Random adjustment sequences keep the quantity non-negative and fully explained by the ledger.
func (suite *InventoryServiceTestSuite) TestRandomSequencesKeepLedgerComplete() {
	rng := rand.New(rand.NewSource(7))
	product := suite.productWithQuantity(0)
	types := []models.InventoryLogType{models.LogTypePurchase, models.LogTypeConsumption, models.LogTypeAdjustment, models.LogTypeStocktake}

	expected := int64(0)
	successes := 0
	for i := 0; i < 200; i++ {
		delta := int64(rng.Intn(21) - 10)
		before := suite.quantityOf(product.ID)
		entry, err := suite.service.AdjustStock(suite.ctx, suite.orgID, product.ID, suite.userID,
			&models.StockAdjustment{Type: types[rng.Intn(len(types))], Quantity: delta})

		switch {
		case delta == 0:
			assert.ErrorIs(suite.T(), err, common.ErrZeroAdjustment)
		case before+delta < 0:
			assert.ErrorIs(suite.T(), err, common.ErrNegativeStock)
		default:
			require.NoError(suite.T(), err)
			expected += delta
			successes++
			assert.Equal(suite.T(), before, entry.PreviousQuantity)
			assert.Equal(suite.T(), expected, entry.NewQuantity)
		}
		require.GreaterOrEqual(suite.T(), suite.quantityOf(product.ID), int64(0))
		require.Equal(suite.T(), expected, suite.quantityOf(product.ID))
	}

	logs := suite.logsOf(product.ID)
	require.Len(suite.T(), logs, successes)
	var sum int64
	for _, l := range logs {
		assert.Equal(suite.T(), l.PreviousQuantity+l.Quantity, l.NewQuantity)
		sum += l.Quantity
	}
	assert.Equal(suite.T(), expected, sum)

	drift, err := suite.service.FindLedgerDrift(suite.ctx, 0)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), drift)
}

func (suite *InventoryServiceTestSuite) TestFailedQuantityWriteLeavesNoLog() {
	product := suite.productWithQuantity(10)
	suite.store.FailOn = func(op string) error {
		if op == "products.update_quantity" {
			return errors.New("write timeout")
		}
		return nil
	}

	_, err := suite.service.AdjustStock(suite.ctx, suite.orgID, product.ID, suite.userID,
		&models.StockAdjustment{Type: models.LogTypePurchase, Quantity: 5})
	assert.EqualError(suite.T(), err, "write timeout")

	suite.store.FailOn = nil
	assert.Empty(suite.T(), suite.logsOf(product.ID))
	assert.Equal(suite.T(), int64(10), suite.quantityOf(product.ID))
}

func (suite *InventoryServiceTestSuite) TestFailedLogWriteRollsBackQuantity() {
	product := suite.productWithQuantity(10)
	suite.store.FailOn = func(op string) error {
		if op == "inventory_logs.create" {
			return errors.New("log insert failed")
		}
		return nil
	}

	_, err := suite.service.AdjustStock(suite.ctx, suite.orgID, product.ID, suite.userID,
		&models.StockAdjustment{Type: models.LogTypePurchase, Quantity: 5})
	assert.Error(suite.T(), err)

	suite.store.FailOn = nil
	assert.Equal(suite.T(), int64(10), suite.quantityOf(product.ID))
	assert.Empty(suite.T(), suite.logsOf(product.ID))
}

func (suite *InventoryServiceTestSuite) TestConcurrentAdjustmentsAllApply() {
	product := suite.productWithQuantity(100)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			delta := int64(3)
			if i%2 == 0 {
				delta = -2
			}
			_, err := suite.service.AdjustStock(suite.ctx, suite.orgID, product.ID, suite.userID,
				&models.StockAdjustment{Type: models.LogTypeAdjustment, Quantity: delta})
			assert.NoError(suite.T(), err)
		}(i)
	}
	wg.Wait()

	assert.Equal(suite.T(), int64(100+10*3-10*2), suite.quantityOf(product.ID))
	assert.Len(suite.T(), suite.logsOf(product.ID), 20)
}

func (suite *InventoryServiceTestSuite) TestGetProductInventoryLogs() {
	product := suite.productWithQuantity(0)
	for _, delta := range []int64{5, -2, 4} {
		_, err := suite.service.AdjustStock(suite.ctx, suite.orgID, product.ID, suite.userID,
			&models.StockAdjustment{Type: models.LogTypeAdjustment, Quantity: delta})
		require.NoError(suite.T(), err)
	}

	logs, err := suite.service.GetProductInventoryLogs(suite.ctx, suite.orgID, product.ID, nil, nil)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), logs, 3)
	assert.Equal(suite.T(), int64(4), logs[0].Quantity)
	assert.Equal(suite.T(), int64(5), logs[2].Quantity)

	past := time.Now().Add(-time.Hour)
	logs, err = suite.service.GetProductInventoryLogs(suite.ctx, suite.orgID, product.ID, nil, &past)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), logs)
}

func (suite *InventoryServiceTestSuite) TestGetProductInventoryLogs_InvalidRange() {
	product := suite.productWithQuantity(0)
	start := time.Now()
	end := start.Add(-time.Minute)

	_, err := suite.service.GetProductInventoryLogs(suite.ctx, suite.orgID, product.ID, &start, &end)
	assert.ErrorIs(suite.T(), err, common.ErrInvalidDateRange)
}

func (suite *InventoryServiceTestSuite) TestGetProductInventoryLogs_UnknownProduct() {
	_, err := suite.service.GetProductInventoryLogs(suite.ctx, suite.orgID, uuid.New(), nil, nil)
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *InventoryServiceTestSuite) TestListInventoryLogs_FilterByType() {
	product := suite.productWithQuantity(0)
	_, err := suite.service.AdjustStock(suite.ctx, suite.orgID, product.ID, suite.userID,
		&models.StockAdjustment{Type: models.LogTypePurchase, Quantity: 5})
	require.NoError(suite.T(), err)
	_, err = suite.service.AdjustStock(suite.ctx, suite.orgID, product.ID, suite.userID,
		&models.StockAdjustment{Type: models.LogTypeConsumption, Quantity: -1})
	require.NoError(suite.T(), err)

	logType := models.LogTypeConsumption
	logs, err := suite.service.ListInventoryLogs(suite.ctx, suite.orgID, &models.InventoryLogFilter{Type: &logType})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), logs, 1)
	assert.Equal(suite.T(), int64(-1), logs[0].Quantity)
}

// racingStore makes the conditional quantity update lose a fixed number of races.
type racingStore struct {
	*repositories.MemoryStore
	losses int
}

func (r *racingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Store) error) error {
	return r.MemoryStore.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		return fn(ctx, &racingTx{Store: tx, parent: r})
	})
}

type racingTx struct {
	repositories.Store
	parent *racingStore
}

func (t *racingTx) Products() repositories.ProductRepository {
	return &racingProducts{ProductRepository: t.Store.Products(), parent: t.parent}
}

type racingProducts struct {
	repositories.ProductRepository
	parent *racingStore
}

func (p *racingProducts) UpdateQuantity(ctx context.Context, orgID, id uuid.UUID, expected, next int64) (bool, error) {
	if p.parent.losses > 0 {
		p.parent.losses--
		return false, nil
	}
	return p.ProductRepository.UpdateQuantity(ctx, orgID, id, expected, next)
}

func TestAdjustStock_RetriesLostRaces(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()
	memory := repositories.NewMemoryStore()
	product := &models.Product{ID: uuid.New(), OrgID: orgID, Name: "Cola", DefaultUnit: "can", CurrentQuantity: 10}
	require.NoError(t, memory.Products().Create(ctx, product))

	m := metrics.New(prometheus.NewRegistry())
	store := &racingStore{MemoryStore: memory, losses: 2}
	service := NewInventoryService(store, caching.NewNoopCacheService(), nil, m, 3)

	entry, err := service.AdjustStock(ctx, orgID, product.ID, uuid.New(), &models.StockAdjustment{Type: models.LogTypePurchase, Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(15), entry.NewQuantity)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.StockRetries))
}

func TestAdjustStock_GivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()
	memory := repositories.NewMemoryStore()
	product := &models.Product{ID: uuid.New(), OrgID: orgID, Name: "Cola", DefaultUnit: "can", CurrentQuantity: 10}
	require.NoError(t, memory.Products().Create(ctx, product))

	store := &racingStore{MemoryStore: memory, losses: 3}
	service := NewInventoryService(store, caching.NewNoopCacheService(), nil, nil, 3)

	_, err := service.AdjustStock(ctx, orgID, product.ID, uuid.New(), &models.StockAdjustment{Type: models.LogTypePurchase, Quantity: 5})
	assert.ErrorIs(t, err, common.ErrConcurrentModification)

	logs, err := memory.InventoryLogs().ListByProduct(ctx, orgID, product.ID, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

// Against Postgres a failed quantity update must roll back before any log insert is issued.
func TestAdjustStock_PostgresRollbackOnUpdateFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	orgID, productID := uuid.New(), uuid.New()
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM products WHERE org_id = \$1 AND id = \$2`).
		WithArgs(orgID, productID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "org_id", "name", "description", "brand", "default_unit",
			"default_purchase_price", "current_quantity", "category_ids", "image_url", "created_at", "updated_at"}).
			AddRow(productID, orgID, "Cola", nil, nil, "can", nil, int64(10), []uuid.UUID{}, nil, now, now))
	mock.ExpectExec(`UPDATE products\s+SET current_quantity`).
		WithArgs(int64(15), orgID, productID, int64(10)).
		WillReturnError(errors.New("connection lost"))
	mock.ExpectRollback()

	service := NewInventoryService(repositories.NewStore(mock), caching.NewNoopCacheService(), nil, nil, 3)
	_, err = service.AdjustStock(context.Background(), orgID, productID, uuid.New(),
		&models.StockAdjustment{Type: models.LogTypePurchase, Quantity: 5})
	assert.ErrorContains(t, err, "connection lost")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustStock_PostgresCommitsUpdateAndLogTogether(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	orgID, productID, userID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM products`).
		WithArgs(orgID, productID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "org_id", "name", "description", "brand", "default_unit",
			"default_purchase_price", "current_quantity", "category_ids", "image_url", "created_at", "updated_at"}).
			AddRow(productID, orgID, "Cola", nil, nil, "can", nil, int64(10), []uuid.UUID{}, nil, now, now))
	mock.ExpectExec(`UPDATE products\s+SET current_quantity`).
		WithArgs(int64(7), orgID, productID, int64(10)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO inventory_logs`).
		WithArgs(pgxmock.AnyArg(), orgID, productID, userID, "consumption", int64(-3), int64(10), int64(7), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectCommit()

	service := NewInventoryService(repositories.NewStore(mock), caching.NewNoopCacheService(), nil, nil, 3)
	entry, err := service.AdjustStock(context.Background(), orgID, productID, userID,
		&models.StockAdjustment{Type: models.LogTypeConsumption, Quantity: -3})
	require.NoError(t, err)
	assert.Equal(t, int64(7), entry.NewQuantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}
