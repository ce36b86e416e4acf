package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/fieldgate/changelog"
	"github.com/xraph/fieldgate/field"
	"github.com/xraph/fieldgate/id"
	"github.com/xraph/fieldgate/permission"
	"github.com/xraph/fieldgate/role"
	"github.com/xraph/fieldgate/store"
)

// Collection name constants.
const (
	colFields  = "fieldgate_fields"
	colRoles   = "fieldgate_roles"
	colEntries = "fieldgate_permissions"
	colChanges = "fieldgate_permission_changes"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a MongoDB implementation of the composite fieldgate store.
//
// MongoDB has no multi-document transaction here, so UpsertEntries applies
// a batch entry by entry and stops at the first failure.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Migrate creates indexes for all fieldgate collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()
	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("fieldgate/mongo: migrate %s indexes: %w", col, err)
		}
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

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all fieldgate collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colFields: {
			{
				Keys:    bson.D{{Key: "module_code", Value: 1}, {Key: "code", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "module_code", Value: 1}, {Key: "group_label", Value: 1}, {Key: "order_index", Value: 1}}},
		},
		colRoles: {
			{
				Keys:    bson.D{{Key: "code", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "active", Value: 1}}},
		},
		colEntries: {
			{
				Keys: bson.D{
					{Key: "module_code", Value: 1},
					{Key: "field_code", Value: 1},
					{Key: "role_code", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "module_code", Value: 1}, {Key: "role_code", Value: 1}}},
		},
		colChanges: {
			{Keys: bson.D{{Key: "batch_id", Value: 1}}},
			{Keys: bson.D{{Key: "module_code", Value: 1}, {Key: "field_code", Value: 1}, {Key: "role_code", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
	}
}

// containsFilter matches key values containing s, case-insensitively.
func containsFilter(s string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(s), "$options": "i"}
}

// ──────────────────────────────────────────────────
// Field operations
// ──────────────────────────────────────────────────

func (s *Store) CreateField(ctx context.Context, f *field.Field) error {
	t := now()
	f.CreatedAt = t
	f.UpdatedAt = t
	if _, err := s.mdb.NewInsert(fieldToModel(f)).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("field %s.%s: %w", f.ModuleCode, f.Code, store.ErrDuplicate)
		}
		return fmt.Errorf("fieldgate: create field: %w", err)
	}
	return nil
}

func (s *Store) GetField(ctx context.Context, fieldID id.FieldID) (*field.Field, error) {
	var m fieldModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": fieldID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("field %s: %w", fieldID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("fieldgate: get field: %w", err)
	}
	return fieldFromModel(&m), nil
}

func (s *Store) GetFieldByCode(ctx context.Context, moduleCode, code string) (*field.Field, error) {
	var m fieldModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"module_code": moduleCode, "code": code}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("field %s.%s: %w", moduleCode, code, store.ErrNotFound)
		}
		return nil, fmt.Errorf("fieldgate: get field by code: %w", err)
	}
	return fieldFromModel(&m), nil
}

func (s *Store) UpdateField(ctx context.Context, f *field.Field) error {
	f.UpdatedAt = now()
	m := fieldToModel(f)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("field %s.%s: %w", f.ModuleCode, f.Code, store.ErrDuplicate)
		}
		return fmt.Errorf("fieldgate: update field: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("field %s: %w", f.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteField(ctx context.Context, fieldID id.FieldID) error {
	res, err := s.mdb.NewDelete((*fieldModel)(nil)).
		Filter(bson.M{"_id": fieldID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("fieldgate: delete field: %w", err)
	}
	if res.DeletedCount() == 0 {
		return fmt.Errorf("field %s: %w", fieldID, store.ErrNotFound)
	}
	return nil
}

func fieldFilter(filter *field.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.ModuleCode != "" {
		f["module_code"] = filter.ModuleCode
	}
	if filter.GroupCode != "" {
		f["group_code"] = filter.GroupCode
	}
	if filter.Search != "" {
		f["$or"] = bson.A{
			bson.M{"label": containsFilter(filter.Search)},
			bson.M{"code": containsFilter(filter.Search)},
		}
	}
	return f
}

func (s *Store) ListFields(ctx context.Context, filter *field.ListFilter) ([]*field.Field, error) {
	var models []fieldModel
	q := s.mdb.NewFind(&models).
		Filter(fieldFilter(filter)).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("fieldgate: list fields: %w", err)
	}
	result := make([]*field.Field, len(models))
	for i := range models {
		result[i] = fieldFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountFields(ctx context.Context, filter *field.ListFilter) (int64, error) {
	count, err := s.mdb.NewFind((*fieldModel)(nil)).
		Filter(fieldFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("fieldgate: count fields: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Role operations
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(ctx context.Context, r *role.Role) error {
	t := now()
	r.CreatedAt = t
	r.UpdatedAt = t
	if _, err := s.mdb.NewInsert(roleToModel(r)).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("role %q: %w", r.Code, store.ErrDuplicate)
		}
		return fmt.Errorf("fieldgate: create role: %w", err)
	}
	return nil
}

func (s *Store) GetRole(ctx context.Context, roleID id.RoleID) (*role.Role, error) {
	var m roleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": roleID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("fieldgate: get role: %w", err)
	}
	return roleFromModel(&m), nil
}

func (s *Store) GetRoleByCode(ctx context.Context, code string) (*role.Role, error) {
	var m roleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"code": code}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("role %q: %w", code, store.ErrNotFound)
		}
		return nil, fmt.Errorf("fieldgate: get role by code: %w", err)
	}
	return roleFromModel(&m), nil
}

func (s *Store) UpdateRole(ctx context.Context, r *role.Role) error {
	r.UpdatedAt = now()
	m := roleToModel(r)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("role %q: %w", r.Code, store.ErrDuplicate)
		}
		return fmt.Errorf("fieldgate: update role: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("role %s: %w", r.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	res, err := s.mdb.NewDelete((*roleModel)(nil)).
		Filter(bson.M{"_id": roleID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("fieldgate: delete role: %w", err)
	}
	if res.DeletedCount() == 0 {
		return fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
	}
	return nil
}

func roleFilter(filter *role.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.Active != nil {
		f["active"] = *filter.Active
	}
	if filter.Search != "" {
		f["$or"] = bson.A{
			bson.M{"name": containsFilter(filter.Search)},
			bson.M{"code": containsFilter(filter.Search)},
		}
	}
	return f
}

func (s *Store) ListRoles(ctx context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	var models []roleModel
	q := s.mdb.NewFind(&models).
		Filter(roleFilter(filter)).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("fieldgate: list roles: %w", err)
	}
	result := make([]*role.Role, len(models))
	for i := range models {
		result[i] = roleFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	count, err := s.mdb.NewFind((*roleModel)(nil)).
		Filter(roleFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("fieldgate: count roles: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Permission entry operations
// ──────────────────────────────────────────────────

func (s *Store) GetEntry(ctx context.Context, moduleCode, fieldCode, roleCode string) (*permission.Entry, error) {
	var m entryModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"module_code": moduleCode, "field_code": fieldCode, "role_code": roleCode}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("entry %s/%s/%s: %w", moduleCode, fieldCode, roleCode, store.ErrNotFound)
		}
		return nil, fmt.Errorf("fieldgate: get entry: %w", err)
	}
	return entryFromModel(&m)
}

func entryFilter(filter *permission.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.ModuleCode != "" {
		f["module_code"] = filter.ModuleCode
	}
	if filter.FieldCode != "" {
		f["field_code"] = filter.FieldCode
	}
	if filter.RoleCode != "" {
		f["role_code"] = filter.RoleCode
	}
	return f
}

func (s *Store) ListEntries(ctx context.Context, filter *permission.ListFilter) ([]*permission.Entry, error) {
	var models []entryModel
	q := s.mdb.NewFind(&models).
		Filter(entryFilter(filter)).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	count, err := s.mdb.NewFind((*entryModel)(nil)).
		Filter(entryFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("fieldgate: count entries: %w", err)
	}
	return count, nil
}

func (s *Store) UpsertEntry(ctx context.Context, e *permission.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if err := s.upsertEntry(ctx, e, now()); err != nil {
		return fmt.Errorf("fieldgate: upsert entry: %w", err)
	}
	return nil
}

// UpsertEntries validates the whole batch before writing any of it.
func (s *Store) UpsertEntries(ctx context.Context, entries []*permission.Entry) error {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	t := now()
	for _, e := range entries {
		if err := s.upsertEntry(ctx, e, t); err != nil {
			return fmt.Errorf("fieldgate: upsert entries: %w", err)
		}
	}
	return nil
}

// upsertEntry sets the level of a triple. The ID and creation time are only
// written when the document is inserted.
func (s *Store) upsertEntry(ctx context.Context, e *permission.Entry, t time.Time) error {
	if e.ID.IsNil() {
		e.ID = id.NewEntryID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = t
	}
	e.UpdatedAt = t
	filter := bson.M{"module_code": e.ModuleCode, "field_code": e.FieldCode, "role_code": e.RoleCode}
	update := bson.M{
		"$set": bson.M{"level": e.Level.String(), "updated_at": e.UpdatedAt},
		"$setOnInsert": bson.M{
			"_id":        e.ID.String(),
			"created_at": e.CreatedAt,
		},
	}
	_, err := s.mdb.Collection(colEntries).UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

func (s *Store) DeleteEntry(ctx context.Context, entryID id.EntryID) error {
	res, err := s.mdb.NewDelete((*entryModel)(nil)).
		Filter(bson.M{"_id": entryID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("fieldgate: delete entry: %w", err)
	}
	if res.DeletedCount() == 0 {
		return fmt.Errorf("entry %s: %w", entryID, store.ErrNotFound)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Change log operations
// ──────────────────────────────────────────────────

func (s *Store) CreateChanges(ctx context.Context, entries []*changelog.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	t := now()
	models := make([]changeModel, len(entries))
	for i, e := range entries {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = t
		}
		models[i] = changeToModel(e)
	}
	if _, err := s.mdb.NewInsert(&models).Exec(ctx); err != nil {
		return fmt.Errorf("fieldgate: create changes: %w", err)
	}
	return nil
}

func changeFilter(filter *changelog.QueryFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.ModuleCode != "" {
		f["module_code"] = filter.ModuleCode
	}
	if filter.FieldCode != "" {
		f["field_code"] = filter.FieldCode
	}
	if filter.RoleCode != "" {
		f["role_code"] = filter.RoleCode
	}
	if filter.Actor != "" {
		f["actor"] = filter.Actor
	}
	if filter.BatchID != "" {
		f["batch_id"] = filter.BatchID
	}
	if filter.After != nil || filter.Before != nil {
		created := bson.M{}
		if filter.After != nil {
			created["$gte"] = *filter.After
		}
		if filter.Before != nil {
			created["$lte"] = *filter.Before
		}
		f["created_at"] = created
	}
	return f
}

func (s *Store) ListChanges(ctx context.Context, filter *changelog.QueryFilter) ([]*changelog.Entry, error) {
	var models []changeModel
	q := s.mdb.NewFind(&models).
		Filter(changeFilter(filter)).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	count, err := s.mdb.NewFind((*changeModel)(nil)).
		Filter(changeFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("fieldgate: count changes: %w", err)
	}
	return count, nil
}

func (s *Store) PurgeChanges(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*changeModel)(nil)).
		Many().
		Filter(bson.M{"created_at": bson.M{"$lt": before}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("fieldgate: purge changes: %w", err)
	}
	return res.DeletedCount(), nil
}
