package repositories

import (
	"context"
	"errors"
	"fmt"

	"orgstock/internal/common"
	"orgstock/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Product, error)
	GetByName(ctx context.Context, orgID uuid.UUID, name string) (*models.Product, error)
	GetQuantity(ctx context.Context, orgID, id uuid.UUID) (int64, error)
	// Update writes every descriptive field. CurrentQuantity is never touched here.
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, orgID, id uuid.UUID) error
	List(ctx context.Context, orgID uuid.UUID, filter *models.ProductFilter) ([]*models.Product, error)
	// UpdateQuantity sets current_quantity to next only while it still equals
	// expected. It reports false when another writer got there first.
	UpdateQuantity(ctx context.Context, orgID, id uuid.UUID, expected, next int64) (bool, error)
	SetImageURL(ctx context.Context, orgID, id uuid.UUID, url string) error
	// RemoveCategory strips categoryID from every product of the organization
	// and returns the ids of the products it changed.
	RemoveCategory(ctx context.Context, orgID, categoryID uuid.UUID) ([]uuid.UUID, error)
	ListLowStock(ctx context.Context, threshold int64, limit int) ([]*models.Product, error)
}

type productRepo struct {
	db DBTX
}

func NewProductRepo(db DBTX) ProductRepository {
	return &productRepo{db: db}
}

const productColumns = `id, org_id, name, description, brand, default_unit, default_purchase_price,
	current_quantity, category_ids, image_url, created_at, updated_at`

func scanProduct(row pgx.Row) (*models.Product, error) {
	product := &models.Product{}
	err := row.Scan(&product.ID, &product.OrgID, &product.Name, &product.Description, &product.Brand,
		&product.DefaultUnit, &product.DefaultPurchasePrice, &product.CurrentQuantity, &product.CategoryIDs,
		&product.ImageURL, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if product.CategoryIDs == nil {
		product.CategoryIDs = []uuid.UUID{}
	}
	return product, nil
}

func collectProducts(rows pgx.Rows) ([]*models.Product, error) {
	defer rows.Close()

	products := []*models.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// categoryIDsArg keeps the NOT NULL array column from receiving a nil slice.
func categoryIDsArg(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

func (r *productRepo) Create(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (id, org_id, name, description, brand, default_unit, default_purchase_price,
			current_quantity, category_ids, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, product.ID, product.OrgID, product.Name, product.Description, product.Brand,
		product.DefaultUnit, product.DefaultPurchasePrice, product.CurrentQuantity,
		categoryIDsArg(product.CategoryIDs), product.ImageURL).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return common.NewNameConflict("product", product.Name)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *productRepo) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE org_id = $1 AND id = $2`
	product, err := scanProduct(r.db.QueryRow(ctx, query, orgID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFound("product", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

func (r *productRepo) GetQuantity(ctx context.Context, orgID, id uuid.UUID) (int64, error) {
	var quantity int64
	err := r.db.QueryRow(ctx, `SELECT current_quantity FROM products WHERE org_id = $1 AND id = $2`, orgID, id).Scan(&quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, common.NewNotFound("product", id)
		}
		return 0, fmt.Errorf("get product quantity: %w", err)
	}
	return quantity, nil
}

func (r *productRepo) GetByName(ctx context.Context, orgID uuid.UUID, name string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE org_id = $1 AND name = $2`
	product, err := scanProduct(r.db.QueryRow(ctx, query, orgID, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &common.DomainError{Kind: common.KindNotFound, Message: fmt.Sprintf("product %q not found", name)}
		}
		return nil, fmt.Errorf("get product by name: %w", err)
	}
	return product, nil
}

func (r *productRepo) Update(ctx context.Context, product *models.Product) error {
	query := `
		UPDATE products
		SET name = $1, description = $2, brand = $3, default_unit = $4, default_purchase_price = $5,
			category_ids = $6, updated_at = NOW()
		WHERE org_id = $7 AND id = $8
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query, product.Name, product.Description, product.Brand, product.DefaultUnit,
		product.DefaultPurchasePrice, categoryIDsArg(product.CategoryIDs), product.OrgID, product.ID).
		Scan(&product.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.NewNotFound("product", product.ID)
		}
		if isUniqueViolation(err) {
			return common.NewNameConflict("product", product.Name)
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (r *productRepo) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	query := `DELETE FROM products WHERE org_id = $1 AND id = $2`
	tag, err := r.db.Exec(ctx, query, orgID, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFound("product", id)
	}
	return nil
}

func (r *productRepo) List(ctx context.Context, orgID uuid.UUID, filter *models.ProductFilter) ([]*models.Product, error) {
	if filter == nil {
		filter = &models.ProductFilter{}
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE org_id = $1`
	args := []any{orgID}
	argIndex := 1

	if filter.CategoryID != nil {
		argIndex++
		query += fmt.Sprintf(` AND $%d = ANY(category_ids)`, argIndex)
		args = append(args, *filter.CategoryID)
	}
	if filter.Search != "" {
		argIndex++
		query += fmt.Sprintf(` AND (name ILIKE $%d OR COALESCE(brand, '') ILIKE $%d)`, argIndex, argIndex)
		args = append(args, "%"+filter.Search+"%")
	}

	argIndex++
	query += fmt.Sprintf(` ORDER BY name ASC LIMIT $%d`, argIndex)
	args = append(args, filter.Limit)
	argIndex++
	query += fmt.Sprintf(` OFFSET $%d`, argIndex)
	args = append(args, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (r *productRepo) UpdateQuantity(ctx context.Context, orgID, id uuid.UUID, expected, next int64) (bool, error) {
	query := `
		UPDATE products
		SET current_quantity = $1, updated_at = NOW()
		WHERE org_id = $2 AND id = $3 AND current_quantity = $4
	`
	tag, err := r.db.Exec(ctx, query, next, orgID, id, expected)
	if err != nil {
		return false, fmt.Errorf("update product quantity: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *productRepo) SetImageURL(ctx context.Context, orgID, id uuid.UUID, url string) error {
	query := `UPDATE products SET image_url = $1, updated_at = NOW() WHERE org_id = $2 AND id = $3`
	tag, err := r.db.Exec(ctx, query, url, orgID, id)
	if err != nil {
		return fmt.Errorf("set product image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFound("product", id)
	}
	return nil
}

func (r *productRepo) RemoveCategory(ctx context.Context, orgID, categoryID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		UPDATE products
		SET category_ids = array_remove(category_ids, $1), updated_at = NOW()
		WHERE org_id = $2 AND $1 = ANY(category_ids)
		RETURNING id
	`
	rows, err := r.db.Query(ctx, query, categoryID, orgID)
	if err != nil {
		return nil, fmt.Errorf("detach category from products: %w", err)
	}
	defer rows.Close()

	changed := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan product id: %w", err)
		}
		changed = append(changed, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("detach category from products: %w", err)
	}
	return changed, nil
}

func (r *productRepo) ListLowStock(ctx context.Context, threshold int64, limit int) ([]*models.Product, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE current_quantity <= $1
		ORDER BY org_id, current_quantity ASC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("list low stock products: %w", err)
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, fmt.Errorf("list low stock products: %w", err)
	}
	return products, nil
}
