// Package plugin defines the plugin system for fieldgate.
// Plugins are notified of lifecycle events (matrix saved, field hidden on
// read, write rejected, role created, ...) and can react with logging,
// metrics or tracing.
//
// Each lifecycle hook is a separate interface so plugins opt in only
// to the events they care about.
package plugin

import (
	"context"

	"github.com/xraph/fieldgate/field"
	"github.com/xraph/fieldgate/id"
	"github.com/xraph/fieldgate/permission"
	"github.com/xraph/fieldgate/role"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// ──────────────────────────────────────────────────
// Resolution and matrix hooks
// ──────────────────────────────────────────────────

// AfterResolve is called after permissions are resolved for a module.
// roleCode is empty when the whole module matrix was resolved.
type AfterResolve interface {
	OnAfterResolve(ctx context.Context, moduleCode, roleCode string, fieldCount int) error
}

// MatrixSaved is called after a matrix save is persisted. entries holds the
// deduplicated batch; changed counts the triples whose stored level differed.
type MatrixSaved interface {
	OnMatrixSaved(ctx context.Context, batchID id.BatchID, entries []*permission.Entry, changed int) error
}

// EntriesPruned is called after orphaned entries are removed.
type EntriesPruned interface {
	OnEntriesPruned(ctx context.Context, entries []*permission.Entry) error
}

// ──────────────────────────────────────────────────
// Enforcement hooks
// ──────────────────────────────────────────────────

// FieldsHidden is called when a read filter omits fields from a record.
type FieldsHidden interface {
	OnFieldsHidden(ctx context.Context, moduleCode, roleCode string, fields []string) error
}

// WriteRejected is called when a write filter drops fields from a payload.
type WriteRejected interface {
	OnWriteRejected(ctx context.Context, moduleCode, roleCode string, fields []string) error
}

// ActionDenied is called when an elevated action is refused.
type ActionDenied interface {
	OnActionDenied(ctx context.Context, moduleCode, fieldCode, roleCode string) error
}

// ──────────────────────────────────────────────────
// Catalog hooks
// ──────────────────────────────────────────────────

// FieldCreated is called after a field is added to the catalog.
type FieldCreated interface {
	OnFieldCreated(ctx context.Context, f *field.Field) error
}

// FieldUpdated is called after a catalog field is updated.
type FieldUpdated interface {
	OnFieldUpdated(ctx context.Context, f *field.Field) error
}

// FieldDeleted is called after a catalog field is deleted.
type FieldDeleted interface {
	OnFieldDeleted(ctx context.Context, fieldID id.FieldID) error
}

// ──────────────────────────────────────────────────
// Role hooks
// ──────────────────────────────────────────────────

// RoleCreated is called after a role is created.
type RoleCreated interface {
	OnRoleCreated(ctx context.Context, r *role.Role) error
}

// RoleUpdated is called after a role is updated.
type RoleUpdated interface {
	OnRoleUpdated(ctx context.Context, r *role.Role) error
}

// RoleDeleted is called after a role is deleted.
type RoleDeleted interface {
	OnRoleDeleted(ctx context.Context, roleID id.RoleID) error
}

// ──────────────────────────────────────────────────
// Shutdown hook
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
