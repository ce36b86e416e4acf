package permission

import (
	"context"

	"github.com/xraph/fieldgate/id"
)

// Store defines persistence operations for permission entries.
//
// The store does not check that the module, field or role of an entry exist.
type Store interface {
	// GetEntry retrieves the entry for a triple. It returns an error wrapping
	// store.ErrNotFound when the triple has no entry.
	GetEntry(ctx context.Context, moduleCode, fieldCode, roleCode string) (*Entry, error)

	// ListEntries returns entries matching the filter, oldest first.
	ListEntries(ctx context.Context, filter *ListFilter) ([]*Entry, error)

	// CountEntries returns the number of entries matching the filter.
	CountEntries(ctx context.Context, filter *ListFilter) (int64, error)

	// UpsertEntry inserts the entry or replaces the level of the existing
	// entry with the same triple.
	UpsertEntry(ctx context.Context, e *Entry) error

	// UpsertEntries upserts a batch. SQL backends apply the batch in one
	// transaction; backends without transactions apply it entry by entry and
	// stop at the first failure.
	UpsertEntries(ctx context.Context, entries []*Entry) error

	// DeleteEntry removes an entry by ID.
	DeleteEntry(ctx context.Context, entryID id.EntryID) error
}
