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

type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Category, error)
	GetByName(ctx context.Context, orgID uuid.UUID, name string) (*models.Category, error)
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, orgID, id uuid.UUID) error
	List(ctx context.Context, orgID uuid.UUID) ([]*models.Category, error)
	CountChildren(ctx context.Context, orgID, id uuid.UUID) (int, error)
	ExistingIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	// LockHierarchy serializes hierarchy mutations for one organization until the
	// surrounding transaction ends. Outside a transaction it has no lasting effect.
	LockHierarchy(ctx context.Context, orgID uuid.UUID) error
}

type categoryRepo struct {
	db DBTX
}

func NewCategoryRepo(db DBTX) CategoryRepository {
	return &categoryRepo{db: db}
}

const categoryColumns = `id, org_id, name, description, parent_id, created_at, updated_at`

func scanCategory(row pgx.Row) (*models.Category, error) {
	category := &models.Category{}
	err := row.Scan(&category.ID, &category.OrgID, &category.Name, &category.Description,
		&category.ParentID, &category.CreatedAt, &category.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return category, nil
}

func (r *categoryRepo) Create(ctx context.Context, category *models.Category) error {
	query := `
		INSERT INTO categories (id, org_id, name, description, parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, category.ID, category.OrgID, category.Name, category.Description,
		category.ParentID).Scan(&category.CreatedAt, &category.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return common.NewNameConflict("category", category.Name)
		}
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (r *categoryRepo) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE org_id = $1 AND id = $2`
	category, err := scanCategory(r.db.QueryRow(ctx, query, orgID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFound("category", id)
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return category, nil
}

func (r *categoryRepo) GetByName(ctx context.Context, orgID uuid.UUID, name string) (*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE org_id = $1 AND name = $2`
	category, err := scanCategory(r.db.QueryRow(ctx, query, orgID, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &common.DomainError{Kind: common.KindNotFound, Message: fmt.Sprintf("category %q not found", name)}
		}
		return nil, fmt.Errorf("get category by name: %w", err)
	}
	return category, nil
}

func (r *categoryRepo) Update(ctx context.Context, category *models.Category) error {
	query := `
		UPDATE categories
		SET name = $1, description = $2, parent_id = $3, updated_at = NOW()
		WHERE org_id = $4 AND id = $5
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query, category.Name, category.Description, category.ParentID,
		category.OrgID, category.ID).Scan(&category.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return common.NewNotFound("category", category.ID)
		}
		if isUniqueViolation(err) {
			return common.NewNameConflict("category", category.Name)
		}
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

func (r *categoryRepo) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	query := `DELETE FROM categories WHERE org_id = $1 AND id = $2`
	tag, err := r.db.Exec(ctx, query, orgID, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFound("category", id)
	}
	return nil
}

func (r *categoryRepo) List(ctx context.Context, orgID uuid.UUID) ([]*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE org_id = $1 ORDER BY name ASC`
	rows, err := r.db.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []*models.Category{}
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (r *categoryRepo) CountChildren(ctx context.Context, orgID, id uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM categories WHERE org_id = $1 AND parent_id = $2`
	var count int
	if err := r.db.QueryRow(ctx, query, orgID, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("count child categories: %w", err)
	}
	return count, nil
}

func (r *categoryRepo) ExistingIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return []uuid.UUID{}, nil
	}
	query := `SELECT id FROM categories WHERE org_id = $1 AND id = ANY($2)`
	rows, err := r.db.Query(ctx, query, orgID, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup categories: %w", err)
	}
	defer rows.Close()

	existing := make([]uuid.UUID, 0, len(ids))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan category id: %w", err)
		}
		existing = append(existing, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lookup categories: %w", err)
	}
	return existing, nil
}

func (r *categoryRepo) LockHierarchy(ctx context.Context, orgID uuid.UUID) error {
	query := `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`
	if _, err := r.db.Exec(ctx, query, "categories:"+orgID.String()); err != nil {
		return fmt.Errorf("lock category hierarchy: %w", err)
	}
	return nil
}
