package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the query surface shared by *pgxpool.Pool, pgx.Tx and pgxmock.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store groups the repositories that take part in one unit of work.
type Store interface {
	Categories() CategoryRepository
	Products() ProductRepository
	InventoryLogs() InventoryLogRepository

	// WithinTx runs fn against a transaction-bound Store. The transaction
	// commits when fn returns nil and rolls back on every other exit path.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

type pgStore struct {
	db            DBTX
	categories    CategoryRepository
	products      ProductRepository
	inventoryLogs InventoryLogRepository
}

// NewStore returns a Postgres backed Store.
func NewStore(db DBTX) Store {
	return &pgStore{
		db:            db,
		categories:    NewCategoryRepo(db),
		products:      NewProductRepo(db),
		inventoryLogs: NewInventoryLogRepo(db),
	}
}

func (s *pgStore) Categories() CategoryRepository        { return s.categories }
func (s *pgStore) Products() ProductRepository            { return s.products }
func (s *pgStore) InventoryLogs() InventoryLogRepository { return s.inventoryLogs }

func (s *pgStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	// Inside a transaction Begin opens a savepoint, so nesting is safe.
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(context.Background())
		}
	}()

	if err := fn(ctx, NewStore(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
