package field

import (
	"context"

	"github.com/xraph/fieldgate/id"
)

// Store defines persistence operations for the field catalog.
type Store interface {
	// CreateField persists a new field. A duplicate (module, code) returns an
	// error wrapping store.ErrDuplicate.
	CreateField(ctx context.Context, f *Field) error

	// GetField retrieves a field by ID.
	GetField(ctx context.Context, fieldID id.FieldID) (*Field, error)

	// GetFieldByCode retrieves a field by module and code.
	GetFieldByCode(ctx context.Context, moduleCode, code string) (*Field, error)

	// UpdateField persists changes to a field.
	UpdateField(ctx context.Context, f *Field) error

	// DeleteField removes a field by ID. Permission entries that reference
	// the field are left in place.
	DeleteField(ctx context.Context, fieldID id.FieldID) error

	// ListFields returns fields matching the filter in insertion order.
	ListFields(ctx context.Context, filter *ListFilter) ([]*Field, error)

	// CountFields returns the number of fields matching the filter.
	CountFields(ctx context.Context, filter *ListFilter) (int64, error)
}
