package fieldgate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/fieldgate/changelog"
	"github.com/xraph/fieldgate/field"
	"github.com/xraph/fieldgate/id"
	"github.com/xraph/fieldgate/permission"
	"github.com/xraph/fieldgate/plugin"
	"github.com/xraph/fieldgate/role"
	"github.com/xraph/fieldgate/store"
)

// Engine is the permission resolution service. It reads the field catalog,
// the role registry and stored entries, produces dense defaulted matrices,
// and persists matrix edits.
//
// Engine is stateless between calls apart from the optional cache and is
// safe for concurrent use.
type Engine struct {
	store   store.Store
	cache   Cache
	roles   RoleResolver
	plugins *plugin.Registry
	logger  *slog.Logger
	config  Config
}

// NewEngine creates a new engine with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, errors.New("fieldgate: store is required")
	}
	if len(e.config.Modules) == 0 {
		e.config.Modules = DefaultModules()
	}
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry (may be nil).
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// Start performs any startup initialization.
func (e *Engine) Start(_ context.Context) error { return nil }

// Stop notifies plugins of shutdown.
func (e *Engine) Stop(ctx context.Context) error {
	e.plugins.EmitShutdown(ctx)
	return nil
}

// Modules returns the governed modules in display order.
func (e *Engine) Modules() []Module {
	out := make([]Module, len(e.config.Modules))
	copy(out, e.config.Modules)
	return out
}

// IsGoverned reports whether moduleCode is one of the governed modules.
func (e *Engine) IsGoverned(moduleCode string) bool {
	for _, m := range e.config.Modules {
		if m.Code == moduleCode {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────────
// Catalog and registry reads
// ──────────────────────────────────────────────────

// ListFields returns the catalog of a module ordered by group label, then
// order index, then insertion. An unknown module has no fields.
func (e *Engine) ListFields(ctx context.Context, moduleCode string) ([]*field.Field, error) {
	if !e.IsGoverned(moduleCode) {
		return []*field.Field{}, nil
	}
	fields, err := e.store.ListFields(ctx, &field.ListFilter{ModuleCode: moduleCode})
	if err != nil {
		return nil, fmt.Errorf("fieldgate: list fields of %s: %w", moduleCode, err)
	}
	field.Sort(fields)
	return fields, nil
}

// FieldGroups returns the catalog of a module grouped for display.
func (e *Engine) FieldGroups(ctx context.Context, moduleCode string) ([]FieldGroup, error) {
	fields, err := e.ListFields(ctx, moduleCode)
	if err != nil {
		return nil, err
	}
	return groupViews(fields), nil
}

// ListActiveRoles returns the active roles in registry order. This order is
// the column order of every matrix.
func (e *Engine) ListActiveRoles(ctx context.Context) ([]*role.Role, error) {
	active := true
	roles, err := e.store.ListRoles(ctx, &role.ListFilter{Active: &active})
	if err != nil {
		return nil, fmt.Errorf("fieldgate: list active roles: %w", err)
	}
	return roles, nil
}

// ──────────────────────────────────────────────────
// Resolution
// ──────────────────────────────────────────────────

// ResolveModuleMatrix returns the dense matrix of a module: every catalog
// field crossed with every active role. Triples without a stored entry are R.
func (e *Engine) ResolveModuleMatrix(ctx context.Context, moduleCode string) (LevelGrid, error) {
	if !e.IsGoverned(moduleCode) {
		return LevelGrid{}, nil
	}
	fields, err := e.ListFields(ctx, moduleCode)
	if err != nil {
		return nil, err
	}
	roles, err := e.ListActiveRoles(ctx)
	if err != nil {
		return nil, err
	}
	grid, err := e.resolveGrid(ctx, moduleCode, fields, roles)
	if err != nil {
		return nil, err
	}
	e.plugins.EmitAfterResolve(ctx, moduleCode, "", len(fields))
	return grid, nil
}

// ResolveRolePermissions returns the level of every catalog field of a
// module for one role. Fields without a stored entry are R. The role is not
// required to exist or be active.
func (e *Engine) ResolveRolePermissions(ctx context.Context, moduleCode, roleCode string) (Permissions, error) {
	if !e.IsGoverned(moduleCode) {
		return Permissions{}, nil
	}
	fields, err := e.ListFields(ctx, moduleCode)
	if err != nil {
		return nil, err
	}
	stored, err := e.storedLevels(ctx, moduleCode)
	if err != nil {
		return nil, err
	}
	out := make(Permissions, len(fields))
	for _, f := range fields {
		out[f.Code] = levelOrDefault(stored, moduleCode, f.Code, roleCode)
	}
	e.plugins.EmitAfterResolve(ctx, moduleCode, roleCode, len(fields))
	return out, nil
}

// GetFullMatrix resolves every governed module for the matrix editor.
func (e *Engine) GetFullMatrix(ctx context.Context) (*Matrix, error) {
	roles, err := e.ListActiveRoles(ctx)
	if err != nil {
		return nil, err
	}
	m := &Matrix{
		Roles:   roleViews(roles),
		Modules: make([]ModuleMatrix, 0, len(e.config.Modules)),
	}
	for _, mod := range e.config.Modules {
		fields, err := e.ListFields(ctx, mod.Code)
		if err != nil {
			return nil, err
		}
		grid, err := e.resolveGrid(ctx, mod.Code, fields, roles)
		if err != nil {
			return nil, err
		}
		m.Modules = append(m.Modules, ModuleMatrix{
			Module:      mod,
			Groups:      groupViews(fields),
			Permissions: grid,
		})
	}
	return m, nil
}

func (e *Engine) resolveGrid(ctx context.Context, moduleCode string, fields []*field.Field, roles []*role.Role) (LevelGrid, error) {
	stored, err := e.storedLevels(ctx, moduleCode)
	if err != nil {
		return nil, err
	}
	grid := make(LevelGrid, len(fields))
	for _, f := range fields {
		row := make(map[string]Level, len(roles))
		for _, r := range roles {
			row[r.Code] = levelOrDefault(stored, moduleCode, f.Code, r.Code)
		}
		grid[f.Code] = row
	}
	return grid, nil
}

// storedLevels returns the stored levels of a module keyed by triple, from
// the cache when one is configured. A stored level outside N/R/W/A is an
// error, never a default.
func (e *Engine) storedLevels(ctx context.Context, moduleCode string) (map[permission.Key]Level, error) {
	entries, err := e.loadEntries(ctx, moduleCode)
	if err != nil {
		return nil, err
	}
	out := make(map[permission.Key]Level, len(entries))
	for _, en := range entries {
		if !en.Level.Valid() {
			return nil, fmt.Errorf("fieldgate: stored level of %s.%s for %s: %w",
				en.ModuleCode, en.FieldCode, en.RoleCode, permission.ErrInvalidLevel)
		}
		out[en.Key()] = en.Level
	}
	return out, nil
}

// loadEntries reads a module's entries through the cache. The generation is
// taken before the store is queried, so a save landing in between makes the
// cache refuse the fill.
func (e *Engine) loadEntries(ctx context.Context, moduleCode string) ([]*permission.Entry, error) {
	if e.cache == nil {
		return e.listEntries(ctx, moduleCode)
	}
	if entries, ok := e.cache.GetEntries(ctx, moduleCode); ok {
		return entries, nil
	}
	gen, fill := e.cache.Generation(ctx, moduleCode)
	entries, err := e.listEntries(ctx, moduleCode)
	if err != nil {
		return nil, err
	}
	if fill {
		e.cache.SetEntries(ctx, moduleCode, gen, entries)
	}
	return entries, nil
}

func (e *Engine) listEntries(ctx context.Context, moduleCode string) ([]*permission.Entry, error) {
	entries, err := e.store.ListEntries(ctx, &permission.ListFilter{ModuleCode: moduleCode})
	if err != nil {
		return nil, fmt.Errorf("fieldgate: load entries of %s: %w", moduleCode, err)
	}
	return entries, nil
}

func levelOrDefault(stored map[permission.Key]Level, moduleCode, fieldCode, roleCode string) Level {
	if l, ok := stored[permission.Key{ModuleCode: moduleCode, FieldCode: fieldCode, RoleCode: roleCode}]; ok {
		return l
	}
	return DefaultLevel
}

// ──────────────────────────────────────────────────
// Persistence
// ──────────────────────────────────────────────────

// SaveMatrix validates and persists a batch of matrix edits.
//
// Every edit is validated before anything is written: one invalid level (or,
// in strict mode, one unknown module, field or role) rejects the whole batch.
// When a triple appears more than once the last edit wins. Cells not named
// by an edit are left untouched.
func (e *Engine) SaveMatrix(ctx context.Context, edits []Edit) (*SaveResult, error) {
	result := &SaveResult{BatchID: id.NewBatchID()}
	if len(edits) == 0 {
		return result, nil
	}
	if e.config.MaxBatchSize > 0 && len(edits) > e.config.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d edits, limit %d", ErrBatchTooLarge, len(edits), e.config.MaxBatchSize)
	}
	if err := e.validateEdits(ctx, edits); err != nil {
		return nil, err
	}

	batch, modules := dedupeEdits(edits)

	previous := make(map[permission.Key]Level)
	if !e.config.DisableChangeLog {
		for _, m := range modules {
			entries, err := e.store.ListEntries(ctx, &permission.ListFilter{ModuleCode: m})
			if err != nil {
				return nil, fmt.Errorf("fieldgate: save matrix: read %s: %w", m, err)
			}
			for _, en := range entries {
				previous[en.Key()] = en.Level
			}
		}
	}

	err := e.store.UpsertEntries(ctx, batch)
	// A failed batch may still be partially applied on backends without
	// transactions, so the cache is dropped either way.
	e.invalidate(ctx, modules)
	if err != nil {
		return nil, fmt.Errorf("fieldgate: save matrix: %w", err)
	}

	result.Applied = len(batch)
	if e.config.DisableChangeLog {
		result.Changed = result.Applied
	} else {
		changes := e.changesFor(ctx, result.BatchID, batch, previous)
		result.Changed = len(changes)
		if len(changes) > 0 {
			if err := e.store.CreateChanges(ctx, changes); err != nil {
				e.logger.Warn("fieldgate: write change log",
					slog.String("batch_id", result.BatchID.String()),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	e.logger.Info("fieldgate: matrix saved",
		slog.String("batch_id", result.BatchID.String()),
		slog.Int("applied", result.Applied),
		slog.Int("changed", result.Changed),
	)
	e.plugins.EmitMatrixSaved(ctx, result.BatchID, batch, result.Changed)
	return result, nil
}

func (e *Engine) validateEdits(ctx context.Context, edits []Edit) error {
	for i, ed := range edits {
		if !ed.Level.Valid() {
			return fmt.Errorf("%w: edit %d (%s.%s/%s)", ErrInvalidLevel, i, ed.Module, ed.Field, ed.Role)
		}
		if ed.Module == "" || ed.Field == "" || ed.Role == "" {
			return fmt.Errorf("%w: edit %d needs module, field and role", ErrInvalidEdit, i)
		}
	}
	if !e.config.StrictSave {
		return nil
	}

	knownFields := make(map[string]map[string]struct{})
	knownRoles := make(map[string]struct{})
	for i, ed := range edits {
		if !e.IsGoverned(ed.Module) {
			return fmt.Errorf("%w: edit %d: %q", ErrUnknownModule, i, ed.Module)
		}
		codes, ok := knownFields[ed.Module]
		if !ok {
			fields, err := e.store.ListFields(ctx, &field.ListFilter{ModuleCode: ed.Module})
			if err != nil {
				return fmt.Errorf("fieldgate: save matrix: list fields of %s: %w", ed.Module, err)
			}
			codes = make(map[string]struct{}, len(fields))
			for _, f := range fields {
				codes[f.Code] = struct{}{}
			}
			knownFields[ed.Module] = codes
		}
		if _, ok := codes[ed.Field]; !ok {
			return fmt.Errorf("%w: edit %d: %s.%s", ErrUnknownField, i, ed.Module, ed.Field)
		}
		if _, ok := knownRoles[ed.Role]; ok {
			continue
		}
		if _, err := e.store.GetRoleByCode(ctx, ed.Role); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: edit %d: %q", ErrUnknownRole, i, ed.Role)
			}
			return fmt.Errorf("fieldgate: save matrix: look up role %s: %w", ed.Role, err)
		}
		knownRoles[ed.Role] = struct{}{}
	}
	return nil
}

// dedupeEdits turns edits into entries, keeping the last edit per triple at
// the position of its first occurrence, and lists the touched modules.
func dedupeEdits(edits []Edit) ([]*permission.Entry, []string) {
	index := make(map[permission.Key]int, len(edits))
	batch := make([]*permission.Entry, 0, len(edits))
	var modules []string
	seenModule := make(map[string]struct{})
	now := time.Now().UTC()

	for _, ed := range edits {
		k := permission.Key{ModuleCode: ed.Module, FieldCode: ed.Field, RoleCode: ed.Role}
		if i, ok := index[k]; ok {
			batch[i].Level = ed.Level
			continue
		}
		index[k] = len(batch)
		batch = append(batch, &permission.Entry{
			ID:         id.NewEntryID(),
			ModuleCode: ed.Module,
			FieldCode:  ed.Field,
			RoleCode:   ed.Role,
			Level:      ed.Level,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if _, ok := seenModule[ed.Module]; !ok {
			seenModule[ed.Module] = struct{}{}
			modules = append(modules, ed.Module)
		}
	}
	return batch, modules
}

func (e *Engine) changesFor(ctx context.Context, batchID id.BatchID, batch []*permission.Entry, previous map[permission.Key]Level) []*changelog.Entry {
	actor := actorOf(ctx)
	now := time.Now().UTC()
	var changes []*changelog.Entry
	for _, en := range batch {
		old, existed := previous[en.Key()]
		if existed && old == en.Level {
			continue
		}
		changes = append(changes, &changelog.Entry{
			ID:         id.NewChangeID(),
			BatchID:    batchID,
			ModuleCode: en.ModuleCode,
			FieldCode:  en.FieldCode,
			RoleCode:   en.RoleCode,
			OldLevel:   old,
			NewLevel:   en.Level,
			Actor:      actor,
			CreatedAt:  now,
		})
	}
	return changes
}

func (e *Engine) invalidate(ctx context.Context, modules []string) {
	if e.cache == nil {
		return
	}
	for _, m := range modules {
		e.cache.InvalidateModule(ctx, m)
	}
}

// PruneOrphanEntries deletes stored entries whose module is not governed,
// whose field is no longer in the catalog, or whose role no longer exists.
// Entries of inactive roles are kept. It returns the number deleted.
func (e *Engine) PruneOrphanEntries(ctx context.Context) (int, error) {
	entries, err := e.store.ListEntries(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("fieldgate: prune: list entries: %w", err)
	}
	roles, err := e.store.ListRoles(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("fieldgate: prune: list roles: %w", err)
	}
	roleCodes := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleCodes[r.Code] = struct{}{}
	}
	fieldCodes := make(map[string]map[string]struct{}, len(e.config.Modules))
	for _, m := range e.config.Modules {
		fields, err := e.store.ListFields(ctx, &field.ListFilter{ModuleCode: m.Code})
		if err != nil {
			return 0, fmt.Errorf("fieldgate: prune: list fields of %s: %w", m.Code, err)
		}
		codes := make(map[string]struct{}, len(fields))
		for _, f := range fields {
			codes[f.Code] = struct{}{}
		}
		fieldCodes[m.Code] = codes
	}

	var pruned []*permission.Entry
	var modules []string
	seenModule := make(map[string]struct{})
	for _, en := range entries {
		codes, governed := fieldCodes[en.ModuleCode]
		_, fieldOK := codes[en.FieldCode]
		_, roleOK := roleCodes[en.RoleCode]
		if governed && fieldOK && roleOK {
			continue
		}
		if err := e.store.DeleteEntry(ctx, en.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			e.invalidate(ctx, modules)
			return len(pruned), fmt.Errorf("fieldgate: prune: delete %s: %w", en.ID, err)
		}
		pruned = append(pruned, en)
		if _, ok := seenModule[en.ModuleCode]; !ok {
			seenModule[en.ModuleCode] = struct{}{}
			modules = append(modules, en.ModuleCode)
		}
	}
	e.invalidate(ctx, modules)

	if len(pruned) > 0 {
		e.logger.Info("fieldgate: pruned orphaned entries", slog.Int("count", len(pruned)))
		e.plugins.EmitEntriesPruned(ctx, pruned)
	}
	return len(pruned), nil
}

// ListChangeLog returns change log entries, newest first.
func (e *Engine) ListChangeLog(ctx context.Context, filter *changelog.QueryFilter) ([]*changelog.Entry, error) {
	entries, err := e.store.ListChanges(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("fieldgate: list change log: %w", err)
	}
	return entries, nil
}
