package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"orgstock/internal/models"
	"orgstock/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TestDB holds the database connection for testing
type TestDB struct {
	Pool *pgxpool.Pool
}

// SetupTestDB migrates and connects to TEST_DATABASE_URL, skipping the test
// when it is unset. Every table is truncated when the test ends.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	if err := database.MigrateUp(connString); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := database.NewPool(ctx, connString, 20)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	t.Cleanup(func() {
		// inventory_logs rejects DELETE, TRUNCATE bypasses the row trigger
		_, err := pool.Exec(context.Background(), `TRUNCATE inventory_logs, products, categories`)
		if err != nil {
			t.Logf("Failed to truncate test tables: %v", err)
		}
		pool.Close()
	})
	return &TestDB{Pool: pool}
}

// SetupTestCategory creates a category for orgID
func SetupTestCategory(t *testing.T, db *TestDB, orgID uuid.UUID, name string, parentID *uuid.UUID) uuid.UUID {
	t.Helper()

	categoryID := uuid.New()
	query := `INSERT INTO categories (id, org_id, name, parent_id) VALUES ($1, $2, $3, $4)`
	if _, err := db.Pool.Exec(context.Background(), query, categoryID, orgID, name, parentID); err != nil {
		t.Fatalf("Failed to create test category: %v", err)
	}
	return categoryID
}

// SetupTestProduct creates a product with the given on-hand quantity and no ledger.
func SetupTestProduct(t *testing.T, db *TestDB, orgID uuid.UUID, quantity int64) *models.Product {
	t.Helper()

	product := &models.Product{
		ID:              uuid.New(),
		OrgID:           orgID,
		Name:            "Test Product " + uuid.NewString()[:8],
		DefaultUnit:     "pcs",
		CurrentQuantity: quantity,
		CategoryIDs:     []uuid.UUID{},
	}
	query := `
		INSERT INTO products (id, org_id, name, default_unit, current_quantity, category_ids)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := db.Pool.Exec(context.Background(), query,
		product.ID, product.OrgID, product.Name, product.DefaultUnit, product.CurrentQuantity, product.CategoryIDs)
	if err != nil {
		t.Fatalf("Failed to create test product: %v", err)
	}
	return product
}
