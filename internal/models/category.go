package models

import (
	"time"

	"github.com/google/uuid"
)

type Category struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	OrgID       uuid.UUID  `json:"org_id" db:"org_id"`
	Name        string     `json:"name" db:"name"`
	Description *string    `json:"description,omitempty" db:"description"`
	ParentID    *uuid.UUID `json:"parent_id" db:"parent_id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// CategoryCreate is the validated input for creating a category.
type CategoryCreate struct {
	Name        string
	Description *string
	ParentID    *uuid.UUID
}

// CategoryUpdate is the validated input for updating a category.
// Nil fields are left untouched; ParentID distinguishes "absent" from "detach".
type CategoryUpdate struct {
	Name        *string
	Description *string
	ParentID    OptionalUUID
}

// CategoryNode represents a category with its children for tree responses
type CategoryNode struct {
	Category
	Children []*CategoryNode `json:"children"`
}
