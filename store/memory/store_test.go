package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/fieldgate/changelog"
	"github.com/xraph/fieldgate/field"
	"github.com/xraph/fieldgate/id"
	"github.com/xraph/fieldgate/permission"
	"github.com/xraph/fieldgate/role"
	"github.com/xraph/fieldgate/store"
)

func TestFieldCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	f := &field.Field{
		ID:         id.NewFieldID(),
		ModuleCode: "qlcp",
		Code:       "paymentStatus",
		Label:      "Payment status",
		GroupCode:  "payment",
		GroupLabel: "Payment",
	}

	// Create
	if err := s.CreateField(ctx, f); err != nil {
		t.Fatal(err)
	}

	// Duplicate code in the same module
	dup := &field.Field{ID: id.NewFieldID(), ModuleCode: "qlcp", Code: "paymentStatus"}
	if err := s.CreateField(ctx, dup); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Same code in another module is fine
	other := &field.Field{ID: id.NewFieldID(), ModuleCode: "qlkh", Code: "paymentStatus"}
	if err := s.CreateField(ctx, other); err != nil {
		t.Fatal(err)
	}

	// Get / GetByCode
	got, err := s.GetField(ctx, f.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Label != "Payment status" {
		t.Fatalf("expected label, got %q", got.Label)
	}
	got, err = s.GetFieldByCode(ctx, "qlcp", "paymentStatus")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != f.ID {
		t.Fatal("code lookup mismatch")
	}

	// Update
	f.Label = "Status"
	if err := s.UpdateField(ctx, f); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetField(ctx, f.ID)
	if got.Label != "Status" {
		t.Fatal("update failed")
	}

	// List / Count
	list, _ := s.ListFields(ctx, &field.ListFilter{ModuleCode: "qlcp"})
	if len(list) != 1 {
		t.Fatalf("expected 1 field, got %d", len(list))
	}
	count, _ := s.CountFields(ctx, nil)
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}

	// Delete
	if err := s.DeleteField(ctx, f.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetField(ctx, f.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteField(ctx, f.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestListFieldsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := New()

	codes := []string{"zeta", "alpha", "mid", "beta", "omega"}
	for _, c := range codes {
		if err := s.CreateField(ctx, &field.Field{ID: id.NewFieldID(), ModuleCode: "qlkh", Code: c}); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.ListFields(ctx, &field.ListFilter{ModuleCode: "qlkh"})
	if err != nil {
		t.Fatal(err)
	}
	for i, f := range list {
		if f.Code != codes[i] {
			t.Fatalf("position %d: got %q, want %q", i, f.Code, codes[i])
		}
	}

	page, _ := s.ListFields(ctx, &field.ListFilter{ModuleCode: "qlkh", Limit: 2, Offset: 1})
	if len(page) != 2 || page[0].Code != "alpha" || page[1].Code != "mid" {
		t.Fatalf("unexpected page %v", field.Codes(page))
	}
}

func TestRoleCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	accountant := &role.Role{ID: id.NewRoleID(), Code: "accountant", Name: "Accountant", Active: true}
	director := &role.Role{ID: id.NewRoleID(), Code: "director", Name: "Director", Active: true}
	retired := &role.Role{ID: id.NewRoleID(), Code: "intern", Name: "Intern", Active: false}

	for _, r := range []*role.Role{accountant, director, retired} {
		if err := s.CreateRole(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.CreateRole(ctx, &role.Role{ID: id.NewRoleID(), Code: "director"}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := s.GetRoleByCode(ctx, "director")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != director.ID {
		t.Fatal("code lookup mismatch")
	}

	active := true
	list, _ := s.ListRoles(ctx, &role.ListFilter{Active: &active})
	if len(list) != 2 || list[0].Code != "accountant" || list[1].Code != "director" {
		t.Fatalf("unexpected active roles %+v", list)
	}

	retired.Active = true
	if err := s.UpdateRole(ctx, retired); err != nil {
		t.Fatal(err)
	}
	count, _ := s.CountRoles(ctx, &role.ListFilter{Active: &active})
	if count != 3 {
		t.Fatalf("expected 3 active roles, got %d", count)
	}

	if err := s.DeleteRole(ctx, accountant.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetRole(ctx, accountant.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEntryUpsert(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.GetEntry(ctx, "qlcp", "paymentStatus", "accountant"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unset triple, got %v", err)
	}

	first := &permission.Entry{ModuleCode: "qlcp", FieldCode: "paymentStatus", RoleCode: "accountant", Level: permission.Write}
	if err := s.UpsertEntry(ctx, first); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetEntry(ctx, "qlcp", "paymentStatus", "accountant")
	if err != nil {
		t.Fatal(err)
	}
	if got.Level != permission.Write || got.ID.IsNil() {
		t.Fatalf("unexpected entry %+v", got)
	}
	originalID := got.ID

	// Same triple again replaces the level and keeps the row.
	second := &permission.Entry{ModuleCode: "qlcp", FieldCode: "paymentStatus", RoleCode: "accountant", Level: permission.Hidden}
	if err := s.UpsertEntry(ctx, second); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetEntry(ctx, "qlcp", "paymentStatus", "accountant")
	if got.Level != permission.Hidden {
		t.Fatalf("expected N after upsert, got %s", got.Level)
	}
	if got.ID != originalID {
		t.Fatal("upsert replaced the entry ID")
	}
	count, _ := s.CountEntries(ctx, nil)
	if count != 1 {
		t.Fatalf("expected 1 entry, got %d", count)
	}
}

func TestUpsertEntriesBatch(t *testing.T) {
	ctx := context.Background()
	s := New()

	batch := []*permission.Entry{
		{ModuleCode: "qlcp", FieldCode: "paymentStatus", RoleCode: "accountant", Level: permission.Write},
		{ModuleCode: "qlcp", FieldCode: "paymentStatus", RoleCode: "director", Level: permission.Admin},
		{ModuleCode: "qlkh", FieldCode: "phone", RoleCode: "marketing_sales", Level: permission.Hidden},
	}
	if err := s.UpsertEntries(ctx, batch); err != nil {
		t.Fatal(err)
	}

	list, _ := s.ListEntries(ctx, &permission.ListFilter{ModuleCode: "qlcp"})
	if len(list) != 2 {
		t.Fatalf("expected 2 qlcp entries, got %d", len(list))
	}
	if list[0].RoleCode != "accountant" || list[1].RoleCode != "director" {
		t.Fatalf("entries not in insertion order: %s, %s", list[0].RoleCode, list[1].RoleCode)
	}

	byRole, _ := s.ListEntries(ctx, &permission.ListFilter{RoleCode: "marketing_sales"})
	if len(byRole) != 1 || byRole[0].Level != permission.Hidden {
		t.Fatalf("unexpected role filter result %+v", byRole)
	}

	if err := s.DeleteEntry(ctx, byRole[0].ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteEntry(ctx, byRole[0].ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertRejectsInvalidLevel(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		level permission.Level
	}{
		{"zero", permission.Level(0)},
		{"out of range", permission.Level(9)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			bad := &permission.Entry{ModuleCode: "qlcp", FieldCode: "amount", RoleCode: "accountant", Level: tt.level}
			if err := s.UpsertEntry(ctx, bad); !errors.Is(err, permission.ErrInvalidLevel) {
				t.Fatalf("UpsertEntry: expected ErrInvalidLevel, got %v", err)
			}

			good := &permission.Entry{ModuleCode: "qlcp", FieldCode: "voucherNo", RoleCode: "accountant", Level: permission.Read}
			badCopy := *bad
			if err := s.UpsertEntries(ctx, []*permission.Entry{good, &badCopy}); !errors.Is(err, permission.ErrInvalidLevel) {
				t.Fatalf("UpsertEntries: expected ErrInvalidLevel, got %v", err)
			}
			if n, _ := s.CountEntries(ctx, nil); n != 0 {
				t.Fatalf("expected nothing written, got %d entries", n)
			}
		})
	}
}

func TestConcurrentUpsertsSameTriple(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lvl := permission.Read
			if i%2 == 0 {
				lvl = permission.Write
			}
			_ = s.UpsertEntry(ctx, &permission.Entry{ModuleCode: "qlns", FieldCode: "salary", RoleCode: "director", Level: lvl})
		}(i)
	}
	wg.Wait()

	count, _ := s.CountEntries(ctx, nil)
	if count != 1 {
		t.Fatalf("expected exactly one entry for the triple, got %d", count)
	}
}

func TestChangeLog(t *testing.T) {
	ctx := context.Background()
	s := New()
	batch := id.NewBatchID()
	old := time.Now().Add(-48 * time.Hour)

	entries := []*changelog.Entry{
		{ID: id.NewChangeID(), BatchID: batch, ModuleCode: "qlcp", FieldCode: "paymentStatus", RoleCode: "accountant", NewLevel: permission.Write, Actor: "u1", CreatedAt: old},
		{ID: id.NewChangeID(), BatchID: batch, ModuleCode: "qlcp", FieldCode: "amount", RoleCode: "accountant", OldLevel: permission.Write, NewLevel: permission.Read, Actor: "u1", CreatedAt: time.Now()},
	}
	if err := s.CreateChanges(ctx, entries); err != nil {
		t.Fatal(err)
	}

	list, _ := s.ListChanges(ctx, &changelog.QueryFilter{BatchID: batch.String()})
	if len(list) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(list))
	}
	if list[0].FieldCode != "amount" {
		t.Fatal("expected newest change first")
	}

	count, _ := s.CountChanges(ctx, &changelog.QueryFilter{FieldCode: "paymentStatus"})
	if count != 1 {
		t.Fatalf("expected 1 paymentStatus change, got %d", count)
	}

	purged, err := s.PurgeChanges(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged, got %d", purged)
	}
	count, _ = s.CountChanges(ctx, nil)
	if count != 1 {
		t.Fatalf("expected 1 remaining, got %d", count)
	}
}
