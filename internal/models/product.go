package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductFilter holds filter criteria for product listing
type ProductFilter struct {
	CategoryID *uuid.UUID `json:"category_id,omitempty"` // Products carrying this category
	Search     string     `json:"search,omitempty"`      // Case-insensitive match on name and brand
	Limit      int        `json:"limit,omitempty"`       // Page size (default: 50)
	Offset     int        `json:"offset,omitempty"`      // Page offset
}

type Product struct {
	ID                   uuid.UUID           `json:"id" db:"id"`
	OrgID                uuid.UUID           `json:"org_id" db:"org_id"`
	Name                 string              `json:"name" db:"name"`
	Description          *string             `json:"description,omitempty" db:"description"`
	Brand                *string             `json:"brand,omitempty" db:"brand"`
	DefaultUnit          string              `json:"default_unit" db:"default_unit"`
	DefaultPurchasePrice decimal.NullDecimal `json:"default_purchase_price" db:"default_purchase_price"`
	CurrentQuantity      int64               `json:"current_quantity" db:"current_quantity"`
	CategoryIDs          []uuid.UUID         `json:"category_ids" db:"category_ids"`
	ImageURL             *string             `json:"image_url,omitempty" db:"image_url"`
	CreatedAt            time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at" db:"updated_at"`
}

// ProductCreate is the validated input for creating a product.
type ProductCreate struct {
	Name                 string
	Description          *string
	Brand                *string
	DefaultUnit          string
	DefaultPurchasePrice *decimal.Decimal
	CategoryIDs          []uuid.UUID
	InitialQuantity      int64
}

// ProductUpdate is the validated input for updating a product.
// Quantity is intentionally absent: it only moves through stock adjustments.
type ProductUpdate struct {
	Name                 *string
	Description          *string
	Brand                *string
	DefaultUnit          *string
	DefaultPurchasePrice *decimal.Decimal
	CategoryIDs          *[]uuid.UUID
}
