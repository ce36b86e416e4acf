// Package memory provides an in-memory implementation of the fieldgate
// composite store. It is intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xraph/fieldgate/changelog"
	"github.com/xraph/fieldgate/field"
	"github.com/xraph/fieldgate/id"
	"github.com/xraph/fieldgate/permission"
	"github.com/xraph/fieldgate/role"
	"github.com/xraph/fieldgate/store"
)

// Compile-time interface checks.
var (
	_ field.Store      = (*Store)(nil)
	_ role.Store       = (*Store)(nil)
	_ permission.Store = (*Store)(nil)
	_ changelog.Store  = (*Store)(nil)
	_ store.Store      = (*Store)(nil)
)

// Store is a thread-safe in-memory store for all fieldgate entities.
// Lists come back in insertion order, which is tracked with a sequence
// number per record.
type Store struct {
	mu sync.RWMutex

	fields  map[string]*field.Field
	roles   map[string]*role.Role
	entries map[permission.Key]*permission.Entry
	changes []*changelog.Entry

	seq  map[string]uint64 // record ID -> insertion sequence
	next uint64
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		fields:  make(map[string]*field.Field),
		roles:   make(map[string]*role.Role),
		entries: make(map[permission.Key]*permission.Entry),
		seq:     make(map[string]uint64),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Field Store
// ──────────────────────────────────────────────────

func (s *Store) CreateField(_ context.Context, f *field.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.fields {
		if existing.ModuleCode == f.ModuleCode && existing.Code == f.Code {
			return fmt.Errorf("field %s.%s: %w", f.ModuleCode, f.Code, store.ErrDuplicate)
		}
	}
	s.fields[f.ID.String()] = copyField(f)
	s.track(f.ID.String())
	return nil
}

func (s *Store) GetField(_ context.Context, fieldID id.FieldID) (*field.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fields[fieldID.String()]
	if !ok {
		return nil, fmt.Errorf("field %s: %w", fieldID, store.ErrNotFound)
	}
	return copyField(f), nil
}

func (s *Store) GetFieldByCode(_ context.Context, moduleCode, code string) (*field.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.fields {
		if f.ModuleCode == moduleCode && f.Code == code {
			return copyField(f), nil
		}
	}
	return nil, fmt.Errorf("field %s.%s: %w", moduleCode, code, store.ErrNotFound)
}

func (s *Store) UpdateField(_ context.Context, f *field.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fields[f.ID.String()]; !ok {
		return fmt.Errorf("field %s: %w", f.ID, store.ErrNotFound)
	}
	for k, existing := range s.fields {
		if k != f.ID.String() && existing.ModuleCode == f.ModuleCode && existing.Code == f.Code {
			return fmt.Errorf("field %s.%s: %w", f.ModuleCode, f.Code, store.ErrDuplicate)
		}
	}
	s.fields[f.ID.String()] = copyField(f)
	return nil
}

func (s *Store) DeleteField(_ context.Context, fieldID id.FieldID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fields[fieldID.String()]; !ok {
		return fmt.Errorf("field %s: %w", fieldID, store.ErrNotFound)
	}
	delete(s.fields, fieldID.String())
	delete(s.seq, fieldID.String())
	return nil
}

func (s *Store) ListFields(_ context.Context, filter *field.ListFilter) ([]*field.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*field.Field, 0, len(s.fields))
	for _, f := range s.fields {
		if filter != nil {
			if filter.ModuleCode != "" && f.ModuleCode != filter.ModuleCode {
				continue
			}
			if filter.GroupCode != "" && f.GroupCode != filter.GroupCode {
				continue
			}
			if filter.Search != "" && !containsFold(f.Label, filter.Search) && !containsFold(f.Code, filter.Search) {
				continue
			}
		}
		result = append(result, copyField(f))
	}
	s.sortBySeq(len(result), func(i int) string { return result[i].ID.String() }, func(i, j int) {
		result[i], result[j] = result[j], result[i]
	})
	var p pagOpts
	if filter != nil {
		p = pagOpts{limit: filter.Limit, offset: filter.Offset}
	}
	return applyPagination(result, p), nil
}

func (s *Store) CountFields(ctx context.Context, filter *field.ListFilter) (int64, error) {
	var f field.ListFilter
	if filter != nil {
		f = *filter
		f.Limit, f.Offset = 0, 0
	}
	list, err := s.ListFields(ctx, &f)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

// ──────────────────────────────────────────────────
// Role Store
// ──────────────────────────────────────────────────

func (s *Store) CreateRole(_ context.Context, r *role.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if existing.Code == r.Code {
			return fmt.Errorf("role %q: %w", r.Code, store.ErrDuplicate)
		}
	}
	s.roles[r.ID.String()] = copyRole(r)
	s.track(r.ID.String())
	return nil
}

func (s *Store) GetRole(_ context.Context, roleID id.RoleID) (*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[roleID.String()]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
	}
	return copyRole(r), nil
}

func (s *Store) GetRoleByCode(_ context.Context, code string) (*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.roles {
		if r.Code == code {
			return copyRole(r), nil
		}
	}
	return nil, fmt.Errorf("role %q: %w", code, store.ErrNotFound)
}

func (s *Store) UpdateRole(_ context.Context, r *role.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[r.ID.String()]; !ok {
		return fmt.Errorf("role %s: %w", r.ID, store.ErrNotFound)
	}
	for k, existing := range s.roles {
		if k != r.ID.String() && existing.Code == r.Code {
			return fmt.Errorf("role %q: %w", r.Code, store.ErrDuplicate)
		}
	}
	s.roles[r.ID.String()] = copyRole(r)
	return nil
}

func (s *Store) DeleteRole(_ context.Context, roleID id.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID.String()]; !ok {
		return fmt.Errorf("role %s: %w", roleID, store.ErrNotFound)
	}
	delete(s.roles, roleID.String())
	delete(s.seq, roleID.String())
	return nil
}

func (s *Store) ListRoles(_ context.Context, filter *role.ListFilter) ([]*role.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*role.Role, 0, len(s.roles))
	for _, r := range s.roles {
		if filter != nil {
			if filter.Active != nil && r.Active != *filter.Active {
				continue
			}
			if filter.Search != "" && !containsFold(r.Name, filter.Search) && !containsFold(r.Code, filter.Search) {
				continue
			}
		}
		result = append(result, copyRole(r))
	}
	s.sortBySeq(len(result), func(i int) string { return result[i].ID.String() }, func(i, j int) {
		result[i], result[j] = result[j], result[i]
	})
	var p pagOpts
	if filter != nil {
		p = pagOpts{limit: filter.Limit, offset: filter.Offset}
	}
	return applyPagination(result, p), nil
}

func (s *Store) CountRoles(ctx context.Context, filter *role.ListFilter) (int64, error) {
	var f role.ListFilter
	if filter != nil {
		f = *filter
		f.Limit, f.Offset = 0, 0
	}
	list, err := s.ListRoles(ctx, &f)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

// ──────────────────────────────────────────────────
// Permission Entry Store
// ──────────────────────────────────────────────────

func (s *Store) GetEntry(_ context.Context, moduleCode, fieldCode, roleCode string) (*permission.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k := permission.Key{ModuleCode: moduleCode, FieldCode: fieldCode, RoleCode: roleCode}
	e, ok := s.entries[k]
	if !ok {
		return nil, fmt.Errorf("entry %s/%s/%s: %w", moduleCode, fieldCode, roleCode, store.ErrNotFound)
	}
	return copyEntry(e), nil
}

func (s *Store) ListEntries(_ context.Context, filter *permission.ListFilter) ([]*permission.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*permission.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if filter != nil {
			if filter.ModuleCode != "" && e.ModuleCode != filter.ModuleCode {
				continue
			}
			if filter.FieldCode != "" && e.FieldCode != filter.FieldCode {
				continue
			}
			if filter.RoleCode != "" && e.RoleCode != filter.RoleCode {
				continue
			}
		}
		result = append(result, copyEntry(e))
	}
	s.sortBySeq(len(result), func(i int) string { return result[i].ID.String() }, func(i, j int) {
		result[i], result[j] = result[j], result[i]
	})
	var p pagOpts
	if filter != nil {
		p = pagOpts{limit: filter.Limit, offset: filter.Offset}
	}
	return applyPagination(result, p), nil
}

func (s *Store) CountEntries(ctx context.Context, filter *permission.ListFilter) (int64, error) {
	var f permission.ListFilter
	if filter != nil {
		f = *filter
		f.Limit, f.Offset = 0, 0
	}
	list, err := s.ListEntries(ctx, &f)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) UpsertEntry(_ context.Context, e *permission.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(e, time.Now().UTC())
	return nil
}

// UpsertEntries applies the whole batch under a single lock, so readers see
// either none or all of it.
func (s *Store) UpsertEntries(_ context.Context, entries []*permission.Entry) error {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, e := range entries {
		s.upsertLocked(e, now)
	}
	return nil
}

func (s *Store) DeleteEntry(_ context.Context, entryID id.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if e.ID == entryID {
			delete(s.entries, k)
			delete(s.seq, entryID.String())
			return nil
		}
	}
	return fmt.Errorf("entry %s: %w", entryID, store.ErrNotFound)
}

// upsertLocked must be called with the write lock held. An existing entry
// keeps its ID and creation time.
func (s *Store) upsertLocked(e *permission.Entry, now time.Time) {
	k := e.Key()
	if existing, ok := s.entries[k]; ok {
		existing.Level = e.Level
		existing.UpdatedAt = now
		return
	}
	c := copyEntry(e)
	if c.ID.IsNil() {
		c.ID = id.NewEntryID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.entries[k] = c
	s.track(c.ID.String())
}

// ──────────────────────────────────────────────────
// Change Log Store
// ──────────────────────────────────────────────────

func (s *Store) CreateChanges(_ context.Context, entries []*changelog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.changes = append(s.changes, copyChange(e))
	}
	return nil
}

func (s *Store) ListChanges(_ context.Context, filter *changelog.QueryFilter) ([]*changelog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*changelog.Entry, 0, len(s.changes))
	// Newest first.
	for i := len(s.changes) - 1; i >= 0; i-- {
		e := s.changes[i]
		if filter != nil {
			if filter.ModuleCode != "" && e.ModuleCode != filter.ModuleCode {
				continue
			}
			if filter.FieldCode != "" && e.FieldCode != filter.FieldCode {
				continue
			}
			if filter.RoleCode != "" && e.RoleCode != filter.RoleCode {
				continue
			}
			if filter.Actor != "" && e.Actor != filter.Actor {
				continue
			}
			if filter.BatchID != "" && e.BatchID.String() != filter.BatchID {
				continue
			}
			if filter.After != nil && e.CreatedAt.Before(*filter.After) {
				continue
			}
			if filter.Before != nil && e.CreatedAt.After(*filter.Before) {
				continue
			}
		}
		result = append(result, copyChange(e))
	}
	var p pagOpts
	if filter != nil {
		p = pagOpts{limit: filter.Limit, offset: filter.Offset}
	}
	return applyPagination(result, p), nil
}

func (s *Store) CountChanges(ctx context.Context, filter *changelog.QueryFilter) (int64, error) {
	var f changelog.QueryFilter
	if filter != nil {
		f = *filter
		f.Limit, f.Offset = 0, 0
	}
	list, err := s.ListChanges(ctx, &f)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) PurgeChanges(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.changes[:0]
	var count int64
	for _, e := range s.changes {
		if e.CreatedAt.Before(before) {
			count++
			continue
		}
		kept = append(kept, e)
	}
	s.changes = kept
	return count, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// track records the insertion sequence of a new record. Must hold write lock.
func (s *Store) track(key string) {
	s.next++
	s.seq[key] = s.next
}

// sortBySeq sorts n items by insertion sequence. Must hold at least a read lock.
func (s *Store) sortBySeq(n int, key func(int) string, swap func(i, j int)) {
	sort.Sort(bySeq{n: n, seq: s.seq, key: key, swap: swap})
}

type bySeq struct {
	n    int
	seq  map[string]uint64
	key  func(int) string
	swap func(i, j int)
}

func (b bySeq) Len() int           { return b.n }
func (b bySeq) Less(i, j int) bool { return b.seq[b.key(i)] < b.seq[b.key(j)] }
func (b bySeq) Swap(i, j int)      { b.swap(i, j) }

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func copyField(f *field.Field) *field.Field {
	c := *f
	c.Metadata = copyMetadata(f.Metadata)
	return &c
}

func copyRole(r *role.Role) *role.Role {
	c := *r
	c.Metadata = copyMetadata(r.Metadata)
	return &c
}

func copyEntry(e *permission.Entry) *permission.Entry {
	c := *e
	return &c
}

func copyChange(e *changelog.Entry) *changelog.Entry {
	c := *e
	return &c
}

func copyMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

type pagOpts struct{ limit, offset int }

func applyPagination[T any](items []*T, p pagOpts) []*T {
	if p.offset > 0 && p.offset < len(items) {
		items = items[p.offset:]
	} else if p.offset > 0 && p.offset >= len(items) {
		return nil
	}
	if p.limit > 0 && p.limit < len(items) {
		items = items[:p.limit]
	}
	return items
}
