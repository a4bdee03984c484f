package repositories

import (
	"context"
	"fmt"
	"time"

	"orgstock/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InventoryLogRepository is append-only: ledger entries are never updated or deleted.
type InventoryLogRepository interface {
	Create(ctx context.Context, log *models.InventoryLog) error
	// ListByProduct returns a product's history newest first. Both bounds are inclusive.
	ListByProduct(ctx context.Context, orgID, productID uuid.UUID, start, end *time.Time) ([]*models.InventoryLog, error)
	List(ctx context.Context, orgID uuid.UUID, filter *models.InventoryLogFilter) ([]*models.InventoryLog, error)
	// FindLedgerDrift returns products whose current quantity differs from the sum of their log quantities.
	FindLedgerDrift(ctx context.Context, limit int) ([]*models.LedgerDrift, error)
}

type inventoryLogRepo struct {
	db DBTX
}

func NewInventoryLogRepo(db DBTX) InventoryLogRepository {
	return &inventoryLogRepo{db: db}
}

const inventoryLogColumns = `id, org_id, product_id, user_id, type, quantity, previous_quantity, new_quantity, note, created_at`

func collectInventoryLogs(rows pgx.Rows) ([]*models.InventoryLog, error) {
	defer rows.Close()

	logs := []*models.InventoryLog{}
	for rows.Next() {
		entry := &models.InventoryLog{}
		if err := rows.Scan(&entry.ID, &entry.OrgID, &entry.ProductID, &entry.UserID, &entry.Type, &entry.Quantity,
			&entry.PreviousQuantity, &entry.NewQuantity, &entry.Note, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory log: %w", err)
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *inventoryLogRepo) Create(ctx context.Context, log *models.InventoryLog) error {
	query := `
		INSERT INTO inventory_logs (id, org_id, product_id, user_id, type, quantity, previous_quantity, new_quantity, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query, log.ID, log.OrgID, log.ProductID, log.UserID, string(log.Type), log.Quantity,
		log.PreviousQuantity, log.NewQuantity, log.Note).Scan(&log.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert inventory log: %w", err)
	}
	return nil
}

func (r *inventoryLogRepo) ListByProduct(ctx context.Context, orgID, productID uuid.UUID, start, end *time.Time) ([]*models.InventoryLog, error) {
	query := `SELECT ` + inventoryLogColumns + ` FROM inventory_logs WHERE org_id = $1 AND product_id = $2`
	args := []any{orgID, productID}
	argIndex := 2

	if start != nil {
		argIndex++
		query += fmt.Sprintf(` AND created_at >= $%d`, argIndex)
		args = append(args, *start)
	}
	if end != nil {
		argIndex++
		query += fmt.Sprintf(` AND created_at <= $%d`, argIndex)
		args = append(args, *end)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list product inventory logs: %w", err)
	}
	logs, err := collectInventoryLogs(rows)
	if err != nil {
		return nil, fmt.Errorf("list product inventory logs: %w", err)
	}
	return logs, nil
}

func (r *inventoryLogRepo) List(ctx context.Context, orgID uuid.UUID, filter *models.InventoryLogFilter) ([]*models.InventoryLog, error) {
	if filter == nil {
		filter = &models.InventoryLogFilter{}
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	query := `SELECT ` + inventoryLogColumns + ` FROM inventory_logs WHERE org_id = $1`
	args := []any{orgID}
	argIndex := 1

	if filter.ProductID != nil {
		argIndex++
		query += fmt.Sprintf(` AND product_id = $%d`, argIndex)
		args = append(args, *filter.ProductID)
	}
	if filter.UserID != nil {
		argIndex++
		query += fmt.Sprintf(` AND user_id = $%d`, argIndex)
		args = append(args, *filter.UserID)
	}
	if filter.Type != nil {
		argIndex++
		query += fmt.Sprintf(` AND type = $%d`, argIndex)
		args = append(args, string(*filter.Type))
	}
	if filter.StartDate != nil {
		argIndex++
		query += fmt.Sprintf(` AND created_at >= $%d`, argIndex)
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		argIndex++
		query += fmt.Sprintf(` AND created_at <= $%d`, argIndex)
		args = append(args, *filter.EndDate)
	}

	argIndex++
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, argIndex)
	args = append(args, filter.Limit)
	argIndex++
	query += fmt.Sprintf(` OFFSET $%d`, argIndex)
	args = append(args, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list inventory logs: %w", err)
	}
	logs, err := collectInventoryLogs(rows)
	if err != nil {
		return nil, fmt.Errorf("list inventory logs: %w", err)
	}
	return logs, nil
}

func (r *inventoryLogRepo) FindLedgerDrift(ctx context.Context, limit int) ([]*models.LedgerDrift, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT p.org_id, p.id, p.current_quantity, COALESCE(SUM(l.quantity), 0)::BIGINT AS ledger_sum
		FROM products p
		LEFT JOIN inventory_logs l ON l.org_id = p.org_id AND l.product_id = p.id
		GROUP BY p.org_id, p.id, p.current_quantity
		HAVING p.current_quantity <> COALESCE(SUM(l.quantity), 0)
		ORDER BY p.org_id, p.id
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("find ledger drift: %w", err)
	}
	defer rows.Close()

	drifts := []*models.LedgerDrift{}
	for rows.Next() {
		drift := &models.LedgerDrift{}
		if err := rows.Scan(&drift.OrgID, &drift.ProductID, &drift.CurrentQuantity, &drift.LedgerSum); err != nil {
			return nil, fmt.Errorf("scan ledger drift: %w", err)
		}
		drifts = append(drifts, drift)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find ledger drift: %w", err)
	}
	return drifts, nil
}
