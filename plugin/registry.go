package plugin

import (
	"context"
	"log/slog"

	"github.com/xraph/fieldgate/field"
	"github.com/xraph/fieldgate/id"
	"github.com/xraph/fieldgate/permission"
	"github.com/xraph/fieldgate/role"
)

// Named entry types pair a hook with the plugin name for logging.

type afterResolveEntry struct {
	name string
	hook AfterResolve
}
type matrixSavedEntry struct {
	name string
	hook MatrixSaved
}
type entriesPrunedEntry struct {
	name string
	hook EntriesPruned
}
type fieldsHiddenEntry struct {
	name string
	hook FieldsHidden
}
type writeRejectedEntry struct {
	name string
	hook WriteRejected
}
type actionDeniedEntry struct {
	name string
	hook ActionDenied
}
type fieldCreatedEntry struct {
	name string
	hook FieldCreated
}
type fieldUpdatedEntry struct {
	name string
	hook FieldUpdated
}
type fieldDeletedEntry struct {
	name string
	hook FieldDeleted
}
type roleCreatedEntry struct {
	name string
	hook RoleCreated
}
type roleUpdatedEntry struct {
	name string
	hook RoleUpdated
}
type roleDeletedEntry struct {
	name string
	hook RoleDeleted
}
type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered plugins and dispatches lifecycle events.
// It type-caches plugins at registration time so emit calls iterate
// only over plugins implementing the relevant hook.
//
// A nil *Registry is valid and drops every event.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	afterResolve  []afterResolveEntry
	matrixSaved   []matrixSavedEntry
	entriesPruned []entriesPrunedEntry
	fieldsHidden  []fieldsHiddenEntry
	writeRejected []writeRejectedEntry
	actionDenied  []actionDeniedEntry
	fieldCreated  []fieldCreatedEntry
	fieldUpdated  []fieldUpdatedEntry
	fieldDeleted  []fieldDeletedEntry
	roleCreated   []roleCreatedEntry
	roleUpdated   []roleUpdatedEntry
	roleDeleted   []roleDeletedEntry
	shutdown      []shutdownEntry
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a plugin and type-asserts it into all applicable
// hook caches. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	if h, ok := p.(AfterResolve); ok {
		r.afterResolve = append(r.afterResolve, afterResolveEntry{name, h})
	}
	if h, ok := p.(MatrixSaved); ok {
		r.matrixSaved = append(r.matrixSaved, matrixSavedEntry{name, h})
	}
	if h, ok := p.(EntriesPruned); ok {
		r.entriesPruned = append(r.entriesPruned, entriesPrunedEntry{name, h})
	}
	if h, ok := p.(FieldsHidden); ok {
		r.fieldsHidden = append(r.fieldsHidden, fieldsHiddenEntry{name, h})
	}
	if h, ok := p.(WriteRejected); ok {
		r.writeRejected = append(r.writeRejected, writeRejectedEntry{name, h})
	}
	if h, ok := p.(ActionDenied); ok {
		r.actionDenied = append(r.actionDenied, actionDeniedEntry{name, h})
	}
	if h, ok := p.(FieldCreated); ok {
		r.fieldCreated = append(r.fieldCreated, fieldCreatedEntry{name, h})
	}
	if h, ok := p.(FieldUpdated); ok {
		r.fieldUpdated = append(r.fieldUpdated, fieldUpdatedEntry{name, h})
	}
	if h, ok := p.(FieldDeleted); ok {
		r.fieldDeleted = append(r.fieldDeleted, fieldDeletedEntry{name, h})
	}
	if h, ok := p.(RoleCreated); ok {
		r.roleCreated = append(r.roleCreated, roleCreatedEntry{name, h})
	}
	if h, ok := p.(RoleUpdated); ok {
		r.roleUpdated = append(r.roleUpdated, roleUpdatedEntry{name, h})
	}
	if h, ok := p.(RoleDeleted); ok {
		r.roleDeleted = append(r.roleDeleted, roleDeletedEntry{name, h})
	}
	if h, ok := p.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin {
	if r == nil {
		return nil
	}
	return r.plugins
}

// ──────────────────────────────────────────────────
// Resolution and matrix event emitters
// ──────────────────────────────────────────────────

// EmitAfterResolve notifies all plugins that implement AfterResolve.
func (r *Registry) EmitAfterResolve(ctx context.Context, moduleCode, roleCode string, fieldCount int) {
	if r == nil {
		return
	}
	for _, e := range r.afterResolve {
		if err := e.hook.OnAfterResolve(ctx, moduleCode, roleCode, fieldCount); err != nil {
			r.logHookError("OnAfterResolve", e.name, err)
		}
	}
}

// EmitMatrixSaved notifies all plugins that implement MatrixSaved.
func (r *Registry) EmitMatrixSaved(ctx context.Context, batchID id.BatchID, entries []*permission.Entry, changed int) {
	if r == nil {
		return
	}
	for _, e := range r.matrixSaved {
		if err := e.hook.OnMatrixSaved(ctx, batchID, entries, changed); err != nil {
			r.logHookError("OnMatrixSaved", e.name, err)
		}
	}
}

// EmitEntriesPruned notifies all plugins that implement EntriesPruned.
func (r *Registry) EmitEntriesPruned(ctx context.Context, entries []*permission.Entry) {
	if r == nil {
		return
	}
	for _, e := range r.entriesPruned {
		if err := e.hook.OnEntriesPruned(ctx, entries); err != nil {
			r.logHookError("OnEntriesPruned", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Enforcement event emitters
// ──────────────────────────────────────────────────

// EmitFieldsHidden notifies all plugins that implement FieldsHidden.
func (r *Registry) EmitFieldsHidden(ctx context.Context, moduleCode, roleCode string, fields []string) {
	if r == nil {
		return
	}
	for _, e := range r.fieldsHidden {
		if err := e.hook.OnFieldsHidden(ctx, moduleCode, roleCode, fields); err != nil {
			r.logHookError("OnFieldsHidden", e.name, err)
		}
	}
}

// EmitWriteRejected notifies all plugins that implement WriteRejected.
func (r *Registry) EmitWriteRejected(ctx context.Context, moduleCode, roleCode string, fields []string) {
	if r == nil {
		return
	}
	for _, e := range r.writeRejected {
		if err := e.hook.OnWriteRejected(ctx, moduleCode, roleCode, fields); err != nil {
			r.logHookError("OnWriteRejected", e.name, err)
		}
	}
}

// EmitActionDenied notifies all plugins that implement ActionDenied.
func (r *Registry) EmitActionDenied(ctx context.Context, moduleCode, fieldCode, roleCode string) {
	if r == nil {
		return
	}
	for _, e := range r.actionDenied {
		if err := e.hook.OnActionDenied(ctx, moduleCode, fieldCode, roleCode); err != nil {
			r.logHookError("OnActionDenied", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Catalog event emitters
// ──────────────────────────────────────────────────

// EmitFieldCreated notifies all plugins that implement FieldCreated.
func (r *Registry) EmitFieldCreated(ctx context.Context, f *field.Field) {
	if r == nil {
		return
	}
	for _, e := range r.fieldCreated {
		if err := e.hook.OnFieldCreated(ctx, f); err != nil {
			r.logHookError("OnFieldCreated", e.name, err)
		}
	}
}

// EmitFieldUpdated notifies all plugins that implement FieldUpdated.
func (r *Registry) EmitFieldUpdated(ctx context.Context, f *field.Field) {
	if r == nil {
		return
	}
	for _, e := range r.fieldUpdated {
		if err := e.hook.OnFieldUpdated(ctx, f); err != nil {
			r.logHookError("OnFieldUpdated", e.name, err)
		}
	}
}

// EmitFieldDeleted notifies all plugins that implement FieldDeleted.
func (r *Registry) EmitFieldDeleted(ctx context.Context, fieldID id.FieldID) {
	if r == nil {
		return
	}
	for _, e := range r.fieldDeleted {
		if err := e.hook.OnFieldDeleted(ctx, fieldID); err != nil {
			r.logHookError("OnFieldDeleted", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Role event emitters
// ──────────────────────────────────────────────────

// EmitRoleCreated notifies all plugins that implement RoleCreated.
func (r *Registry) EmitRoleCreated(ctx context.Context, rl *role.Role) {
	if r == nil {
		return
	}
	for _, e := range r.roleCreated {
		if err := e.hook.OnRoleCreated(ctx, rl); err != nil {
			r.logHookError("OnRoleCreated", e.name, err)
		}
	}
}

// EmitRoleUpdated notifies all plugins that implement RoleUpdated.
func (r *Registry) EmitRoleUpdated(ctx context.Context, rl *role.Role) {
	if r == nil {
		return
	}
	for _, e := range r.roleUpdated {
		if err := e.hook.OnRoleUpdated(ctx, rl); err != nil {
			r.logHookError("OnRoleUpdated", e.name, err)
		}
	}
}

// EmitRoleDeleted notifies all plugins that implement RoleDeleted.
func (r *Registry) EmitRoleDeleted(ctx context.Context, roleID id.RoleID) {
	if r == nil {
		return
	}
	for _, e := range r.roleDeleted {
		if err := e.hook.OnRoleDeleted(ctx, roleID); err != nil {
			r.logHookError("OnRoleDeleted", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Shutdown event emitter
// ──────────────────────────────────────────────────

// EmitShutdown notifies all plugins that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	if r == nil {
		return
	}
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Hook errors are never propagated to the caller.
func (r *Registry) logHookError(hook, pluginName string, err error) {
	r.logger.Warn("plugin hook error",
		slog.String("hook", hook),
		slog.String("plugin", pluginName),
		slog.String("error", err.Error()),
	)
}
