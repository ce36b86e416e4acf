// Package sqlite provides a SQLite implementation of the fieldgate
// composite store using grove ORM with Go-based migrations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/fieldgate/changelog"
	"github.com/xraph/fieldgate/field"
	"github.com/xraph/fieldgate/id"
	"github.com/xraph/fieldgate/permission"
	"github.com/xraph/fieldgate/role"
	"github.com/xraph/fieldgate/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// upsertConflict replaces the level of an existing triple and keeps its ID
// and creation time.
const upsertConflict = "(module_code, field_code, role_code) DO UPDATE SET level = excluded.level, updated_at = excluded.updated_at"

// Store is a SQLite implementation of the composite fieldgate store.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("fieldgate/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("fieldgate/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return isNoRows(err)
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
// The driver only exposes it through the message.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ──────────────────────────────────────────────────
// Field operations
// ──────────────────────────────────────────────────

func (s *Store) CreateField(ctx context.Context, f *field.Field) error {
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now
	m, err := fieldToModel(f)
	if err != nil {
		return fmt.Errorf("fieldgate: create field: %w", err)
	}
	_, err = s.sdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("field %s.%s: %w", f.ModuleCode, f.Code, store.ErrDuplicate)
		}
		return fmt.Errorf("fieldgate: create field: %w", err)
	}
	return nil
}

func (s *Store) GetField(ctx context.Context, fieldID id.FieldID) (*field.Field, error) {
	m := new(fieldModel)
	err := s.sdb.NewSelect(m).Where("id = ?", fieldID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("field %s: %w", fieldID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("fieldgate: get field: %w", err)
	}
	return fieldFromModel(m)
}

func (s *Store) GetFieldByCode(ctx context.Context, moduleCode, code string) (*field.Field, error) {
	m := new(fieldModel)
	err := s.sdb.NewSelect(m).
		Where("module_code = ?", moduleCode).
		Where("code = ?", code).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("field %s.%s: %w", moduleCode, code, store.ErrNotFound)
		}
		return nil, fmt.Errorf("fieldgate: get field by code: %w", err)
	}
	return fieldFromModel(m)
}

func (s *Store) UpdateField(ctx context.Context, f *field.Field) error {
	f.UpdatedAt = time.Now().UTC()
	m, err := fieldToModel(f)
	if err != nil {
		return fmt.Errorf("fieldgate: update field: %w", err)
	}
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("field %s.%s: %w", f.ModuleCode, f.Code, store.ErrDuplicate)
		}
		return fmt.Errorf("fieldgate: update field: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // sqlite always reports rows
		return fmt.Errorf("field %s: %w", f.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteField(ctx context.Context, fieldID id.FieldID) error {
	res, err := s.sdb.NewDelete((*fieldModel)(nil)).
		Where("id = ?", fieldID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("fieldgate: delete field: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // sqlite always reports rows
		return fmt.Errorf("field %s: %w", fieldID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ListFields(ctx context.Context, filter *field.ListFilter) ([]*field.Field, error) {
	var models []fieldModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at ASC, id ASC")
	if filter != nil {
		if filter.ModuleCode != "" {
			q = q.Where("module_code = ?", filter.ModuleCode)
		}
		if filter.GroupCode != "" {
			q = q.Where("group_code = ?", filter.GroupCode)
		}
		if filter.Search != "" {
			q = q.Where("(LOWER(label) LIKE LOWER(?) OR LOWER(code) LIKE LOWER(?))", "%"+filter.Search+"%", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("fieldgate: list fields: %w", err)
	}
	result := make([]*field.Field, len(models))
	for i := range models {
		f, err := fieldFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("fieldgate: list fields: %w", err)
		}
		result[i] = f
	}
	return result, nil
}

func (s *Store) CountFields(ctx context.Context, filter *field.ListFilter) (int64, error) {
	q := s.sdb.NewSelect((*fieldModel)(nil))
	if filter != nil {
		if filter.ModuleCode != "" {
			q = q.Where("module_code = ?", filter.ModuleCode)
		}
		if filter.GroupCode != "" {
			q = q.Where("group_code = ?", filter.GroupCode)
		}
		if filter.Search != "" {
			q = q.Where("(LOWER(label) LIKE LOWER(?) OR LOWER(code) LIKE LOWER(?))", "%"+filter.Search+"%", "%"+filter.Search+"%")
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("fieldgate: count fields: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Role operations
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(ctx context.Context, r *role.Role) error {
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	m, err := roleToModel(r)
	if err != nil {
		return fmt.Errorf("fieldgate: create role: %w", err)
	}
	_, err = s.sdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("role %q: %w", r.Code, store.ErrDuplicate)
		}
		return fmt.Errorf("fieldgate: create role: %w", err)
	}
	return nil
}

func (s *Store) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	m := new(roleModel)
	err := s.sdb.NewSelect(m).Where("id = ?", roleID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("fieldgate: get role: %w", err)
	}
	return roleFromModel(m)
}

func (s *Store) GetRoleByCode(ctx context.Context, code string) (*role.Role, error) {
	m := new(roleModel)
	err := s.sdb.NewSelect(m).Where("code = ?", code).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("role %q: %w", code, store.ErrNotFound)
		}
		return nil, fmt.Errorf("fieldgate: get role by code: %w", err)
	}
	return roleFromModel(m)
}

func (s *Store) UpdateRole(ctx context.Context, r *role.Role) error {
	r.UpdatedAt = time.Now().UTC()
	m, err := roleToModel(r)
	if err != nil {
		return fmt.Errorf("fieldgate: update role: %w", err)
	}
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("role %q: %w", r.Code, store.ErrDuplicate)
		}
		return fmt.Errorf("fieldgate: update role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // sqlite always reports rows
		return fmt.Errorf("role %s: %w", r.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	res, err := s.sdb.NewDelete((*roleModel)(nil)).
		Where("id = ?", roleID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("fieldgate: delete role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // sqlite always reports rows
		return fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	var models []roleModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at ASC, id ASC")
	if filter != nil {
		if filter.Active != nil {
			q = q.Where("active = ?", *filter.Active)
		}
		if filter.Search != "" {
			q = q.Where("(LOWER(name) LIKE LOWER(?) OR LOWER(code) LIKE LOWER(?))", "%"+filter.Search+"%", "%"+filter.Search+"%")
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("fieldgate: list roles: %w", err)
	}
	result := make([]*role.Role, len(models))
	for i := range models {
		r, err := roleFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("fieldgate: list roles: %w", err)
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	q := s.sdb.NewSelect((*roleModel)(nil))
	if filter != nil {
		if filter.Active != nil {
			q = q.Where("active = ?", *filter.Active)
		}
		if filter.Search != "" {
			q = q.Where("(LOWER(name) LIKE LOWER(?) OR LOWER(code) LIKE LOWER(?))", "%"+filter.Search+"%", "%"+filter.Search+"%")
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("fieldgate: count roles: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Permission entry operations
// ──────────────────────────────────────────────────

func (s *Store) GetEntry(ctx context.Context, moduleCode, fieldCode, roleCode string) (*permission.Entry, error) {
	m := new(entryModel)
	err := s.sdb.NewSelect(m).
		Where("module_code = ?", moduleCode).
		Where("field_code = ?", fieldCode).
		Where("role_code = ?", roleCode).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("entry %s/%s/%s: %w", moduleCode, fieldCode, roleCode, store.ErrNotFound)
		}
		return nil, fmt.Errorf("fieldgate: get entry: %w", err)
	}
	return entryFromModel(m)
}

func (s *Store) ListEntries(ctx context.Context, filter *permission.ListFilter) ([]*permission.Entry, error) {
	var models []entryModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at ASC, id ASC")
	if filter != nil {
		for _, c := range entryConds(filter) {
			q = q.Where(c.query, c.args...)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("fieldgate: list entries: %w", err)
	}
	result := make([]*permission.Entry, len(models))
	for i := range models {
		e, err := entryFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("fieldgate: list entries: %w", err)
		}
		result[i] = e
	}
	return result, nil
}

func (s *Store) CountEntries(ctx context.Context, filter *permission.ListFilter) (int64, error) {
	q := s.sdb.NewSelect((*entryModel)(nil))
	if filter != nil {
		for _, c := range entryConds(filter) {
			q = q.Where(c.query, c.args...)
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("fieldgate: count entries: %w", err)
	}
	return count, nil
}

// cond is one WHERE clause with its arguments.
type cond struct {
	query string
	args  []any
}

func entryConds(filter *permission.ListFilter) []cond {
	var conds []cond
	if filter.ModuleCode != "" {
		conds = append(conds, cond{"module_code = ?", []any{filter.ModuleCode}})
	}
	if filter.FieldCode != "" {
		conds = append(conds, cond{"field_code = ?", []any{filter.FieldCode}})
	}
	if filter.RoleCode != "" {
		conds = append(conds, cond{"role_code = ?", []any{filter.RoleCode}})
	}
	return conds
}

func (s *Store) UpsertEntry(ctx context.Context, e *permission.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	prepareEntry(e, time.Now().UTC())
	_, err := s.sdb.NewInsert(entryToModel(e)).OnConflict(upsertConflict).Exec(ctx)
	if err != nil {
		return fmt.Errorf("fieldgate: upsert entry: %w", err)
	}
	return nil
}

// UpsertEntries applies the batch in one transaction.
func (s *Store) UpsertEntries(ctx context.Context, entries []*permission.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("fieldgate: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	now := time.Now().UTC()
	for _, e := range entries {
		prepareEntry(e, now)
		if _, err := tx.NewInsert(entryToModel(e)).OnConflict(upsertConflict).Exec(ctx); err != nil {
			return fmt.Errorf("fieldgate: upsert entries: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("fieldgate: commit tx: %w", err)
	}
	return nil
}

func (s *Store) DeleteEntry(ctx context.Context, entryID id.EntryID) error {
	res, err := s.sdb.NewDelete((*entryModel)(nil)).
		Where("id = ?", entryID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("fieldgate: delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // sqlite always reports rows
		return fmt.Errorf("entry %s: %w", entryID, store.ErrNotFound)
	}
	return nil
}

// prepareEntry fills the ID and timestamps of an entry about to be written.
func prepareEntry(e *permission.Entry, now time.Time) {
	if e.ID.IsNil() {
		e.ID = id.NewEntryID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
}

// ──────────────────────────────────────────────────
// Change log operations
// ──────────────────────────────────────────────────

func (s *Store) CreateChanges(ctx context.Context, entries []*changelog.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	models := make([]changeModel, len(entries))
	for i, e := range entries {
		models[i] = changeToModel(e)
	}
	if _, err := s.sdb.NewInsert(&models).Exec(ctx); err != nil {
		return fmt.Errorf("fieldgate: create changes: %w", err)
	}
	return nil
}

func (s *Store) ListChanges(ctx context.Context, filter *changelog.QueryFilter) ([]*changelog.Entry, error) {
	var models []changeModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at DESC, id DESC")
	if filter != nil {
		for _, c := range changeConds(filter) {
			q = q.Where(c.query, c.args...)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("fieldgate: list changes: %w", err)
	}
	result := make([]*changelog.Entry, len(models))
	for i := range models {
		result[i] = changeFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountChanges(ctx context.Context, filter *changelog.QueryFilter) (int64, error) {
	q := s.sdb.NewSelect((*changeModel)(nil))
	if filter != nil {
		for _, c := range changeConds(filter) {
			q = q.Where(c.query, c.args...)
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("fieldgate: count changes: %w", err)
	}
	return count, nil
}

func changeConds(filter *changelog.QueryFilter) []cond {
	var conds []cond
	if filter.ModuleCode != "" {
		conds = append(conds, cond{"module_code = ?", []any{filter.ModuleCode}})
	}
	if filter.FieldCode != "" {
		conds = append(conds, cond{"field_code = ?", []any{filter.FieldCode}})
	}
	if filter.RoleCode != "" {
		conds = append(conds, cond{"role_code = ?", []any{filter.RoleCode}})
	}
	if filter.Actor != "" {
		conds = append(conds, cond{"actor = ?", []any{filter.Actor}})
	}
	if filter.BatchID != "" {
		conds = append(conds, cond{"batch_id = ?", []any{filter.BatchID}})
	}
	if filter.After != nil {
		conds = append(conds, cond{"created_at >= ?", []any{*filter.After}})
	}
	if filter.Before != nil {
		conds = append(conds, cond{"created_at <= ?", []any{*filter.Before}})
	}
	return conds
}

func (s *Store) PurgeChanges(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.sdb.NewDelete((*changeModel)(nil)).
		Where("created_at < ?", before).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("fieldgate: purge changes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fieldgate: purge changes rows: %w", err)
	}
	return n, nil
}
