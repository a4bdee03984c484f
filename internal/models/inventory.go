package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryLogType classifies a stock adjustment
type InventoryLogType string

const (
	LogTypePurchase    InventoryLogType = "purchase"
	LogTypeConsumption InventoryLogType = "consumption"
	LogTypeAdjustment  InventoryLogType = "adjustment"
	LogTypeStocktake   InventoryLogType = "stocktake"
)

// Valid reports whether t is one of the known adjustment types.
func (t InventoryLogType) Valid() bool {
	switch t {
	case LogTypePurchase, LogTypeConsumption, LogTypeAdjustment, LogTypeStocktake:
		return true
	}
	return false
}

// InventoryLog is an immutable ledger entry written once per stock adjustment.
type InventoryLog struct {
	ID               uuid.UUID        `json:"id" db:"id"`
	OrgID            uuid.UUID        `json:"org_id" db:"org_id"`
	ProductID        uuid.UUID        `json:"product_id" db:"product_id"`
	UserID           uuid.UUID        `json:"user_id" db:"user_id"`
	Type             InventoryLogType `json:"type" db:"type"`
	Quantity         int64            `json:"quantity" db:"quantity"`
	PreviousQuantity int64            `json:"previous_quantity" db:"previous_quantity"`
	NewQuantity      int64            `json:"new_quantity" db:"new_quantity"`
	Note             *string          `json:"note,omitempty" db:"note"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
}

// StockAdjustment is the validated input for a single stock mutation.
type StockAdjustment struct {
	Type     InventoryLogType
	Quantity int64
	Note     *string
}

// InventoryLogFilter holds filter criteria for ledger queries
type InventoryLogFilter struct {
	ProductID *uuid.UUID        `json:"product_id,omitempty"`
	UserID    *uuid.UUID        `json:"user_id,omitempty"`
	Type      *InventoryLogType `json:"type,omitempty"`
	StartDate *time.Time        `json:"start_date,omitempty"` // Inclusive
	EndDate   *time.Time        `json:"end_date,omitempty"`   // Inclusive
	Limit     int               `json:"limit,omitempty"`      // Page size (default: 50, 0 on product history means all)
	Offset    int               `json:"offset,omitempty"`
}

// LedgerDrift reports a product whose quantity disagrees with its ledger
type LedgerDrift struct {
	OrgID           uuid.UUID `json:"org_id"`
	ProductID       uuid.UUID `json:"product_id"`
	CurrentQuantity int64     `json:"current_quantity"`
	LedgerSum       int64     `json:"ledger_sum"`
}
