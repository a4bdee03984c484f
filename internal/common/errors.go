package common

import (
	"errors"
	"fmt"
)

// ErrorKind discriminates domain failures so callers can branch without string matching.
type ErrorKind string

const (
	KindNotFound               ErrorKind = "NOT_FOUND"
	KindNameConflict           ErrorKind = "NAME_CONFLICT"
	KindInvalidParent          ErrorKind = "INVALID_PARENT"
	KindSelfParent             ErrorKind = "SELF_PARENT"
	KindCircularReference      ErrorKind = "CIRCULAR_REFERENCE"
	KindHasChildren            ErrorKind = "HAS_CHILDREN"
	KindInvalidCategory        ErrorKind = "INVALID_CATEGORY"
	KindZeroAdjustment         ErrorKind = "ZERO_ADJUSTMENT"
	KindNegativeStock          ErrorKind = "NEGATIVE_STOCK"
	KindInvalidDateRange       ErrorKind = "INVALID_DATE_RANGE"
	KindConcurrentModification ErrorKind = "CONCURRENT_MODIFICATION"
	KindValidation             ErrorKind = "VALIDATION_ERROR"
)

// DomainError is the typed failure returned by the engines.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Details map[string]any
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Err }

// Is matches any DomainError of the same kind, so the sentinels below work with errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound               = &DomainError{Kind: KindNotFound}
	ErrNameConflict           = &DomainError{Kind: KindNameConflict}
	ErrInvalidParent          = &DomainError{Kind: KindInvalidParent}
	ErrSelfParent             = &DomainError{Kind: KindSelfParent}
	ErrCircularReference      = &DomainError{Kind: KindCircularReference}
	ErrHasChildren            = &DomainError{Kind: KindHasChildren}
	ErrInvalidCategory        = &DomainError{Kind: KindInvalidCategory}
	ErrZeroAdjustment         = &DomainError{Kind: KindZeroAdjustment}
	ErrNegativeStock          = &DomainError{Kind: KindNegativeStock}
	ErrInvalidDateRange       = &DomainError{Kind: KindInvalidDateRange}
	ErrConcurrentModification = &DomainError{Kind: KindConcurrentModification}
	ErrValidation             = &DomainError{Kind: KindValidation}
)

// KindOf returns the kind of the first DomainError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

func NewNotFound(resource string, id fmt.Stringer) error {
	return &DomainError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s %s not found", resource, id),
		Details: map[string]any{"resource": resource, "id": id.String()},
	}
}

func NewNameConflict(resource, name string) error {
	return &DomainError{
		Kind:    KindNameConflict,
		Message: fmt.Sprintf("%s named %q already exists", resource, name),
		Details: map[string]any{"resource": resource, "name": name},
	}
}

func NewInvalidParent(parentID fmt.Stringer) error {
	return &DomainError{
		Kind:    KindInvalidParent,
		Message: fmt.Sprintf("parent category %s does not exist in this organization", parentID),
		Details: map[string]any{"parent_id": parentID.String()},
	}
}

func NewSelfParent(categoryID fmt.Stringer) error {
	return &DomainError{
		Kind:    KindSelfParent,
		Message: "a category cannot be its own parent",
		Details: map[string]any{"category_id": categoryID.String()},
	}
}

func NewCircularReference(categoryID, parentID fmt.Stringer) error {
	return &DomainError{
		Kind:    KindCircularReference,
		Message: fmt.Sprintf("setting parent %s on category %s would create a cycle", parentID, categoryID),
		Details: map[string]any{"category_id": categoryID.String(), "parent_id": parentID.String()},
	}
}

func NewHasChildren(categoryID fmt.Stringer, children int) error {
	return &DomainError{
		Kind:    KindHasChildren,
		Message: fmt.Sprintf("category %s has %d child categories", categoryID, children),
		Details: map[string]any{"category_id": categoryID.String(), "children": children},
	}
}

func NewInvalidCategory(categoryID fmt.Stringer) error {
	return &DomainError{
		Kind:    KindInvalidCategory,
		Message: fmt.Sprintf("category %s does not exist in this organization", categoryID),
		Details: map[string]any{"category_id": categoryID.String()},
	}
}

func NewZeroAdjustment() error {
	return &DomainError{
		Kind:    KindZeroAdjustment,
		Message: "adjustment quantity must not be zero",
	}
}

func NewNegativeStock(previousQuantity, delta int64) error {
	return &DomainError{
		Kind:    KindNegativeStock,
		Message: fmt.Sprintf("insufficient stock: current %d, requested change %d", previousQuantity, delta),
		Details: map[string]any{"previous_quantity": previousQuantity, "delta": delta},
	}
}

func NewInvalidDateRange() error {
	return &DomainError{
		Kind:    KindInvalidDateRange,
		Message: "start date must not be after end date",
	}
}

func NewConcurrentModification(resource string, id fmt.Stringer, err error) error {
	return &DomainError{
		Kind:    KindConcurrentModification,
		Message: fmt.Sprintf("%s %s was modified concurrently", resource, id),
		Details: map[string]any{"resource": resource, "id": id.String()},
		Err:     err,
	}
}

func NewValidation(field, message string) error {
	return &DomainError{
		Kind:    KindValidation,
		Message: message,
		Details: map[string]any{"field": field},
	}
}
