package fieldgate

import (
	"context"

	"github.com/xraph/fieldgate/permission"
)

// Cache holds the stored entries of a module between resolutions.
//
// Every invalidation moves the module to a new generation. A fill carries
// the generation read before the store was queried and is discarded when
// the module was invalidated in the meantime, so a load racing a save can
// never repopulate the cache with pre-save entries. The check and the
// write must be atomic with respect to invalidation, across every process
// sharing the cache.
type Cache interface {
	// GetEntries returns the cached entries of a module, if present.
	GetEntries(ctx context.Context, moduleCode string) ([]*permission.Entry, bool)

	// Generation returns the current generation of a module. ok is false
	// when it cannot be read; the caller then skips the fill.
	Generation(ctx context.Context, moduleCode string) (gen uint64, ok bool)

	// SetEntries caches the entries of a module loaded at generation gen.
	// It does nothing when the module has been invalidated since.
	SetEntries(ctx context.Context, moduleCode string, gen uint64, entries []*permission.Entry)

	// InvalidateModule drops the cached entries of a module and advances
	// its generation.
	InvalidateModule(ctx context.Context, moduleCode string)

	// InvalidateAll drops every cached module and advances every
	// generation.
	InvalidateAll(ctx context.Context)
}
