package fieldgate

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/xraph/fieldgate/changelog"
	"github.com/xraph/fieldgate/field"
	"github.com/xraph/fieldgate/id"
	"github.com/xraph/fieldgate/permission"
	"github.com/xraph/fieldgate/role"
	"github.com/xraph/fieldgate/store"
	"github.com/xraph/fieldgate/store/memory"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *memory.Store) {
	t.Helper()
	s := memory.New()
	eng, err := NewEngine(append([]Option{WithStore(s)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return eng, s
}

func addField(t *testing.T, s store.Store, module, code, group, groupLabel string, order int) {
	t.Helper()
	err := s.CreateField(context.Background(), &field.Field{
		ID:         id.NewFieldID(),
		ModuleCode: module,
		Code:       code,
		Label:      code,
		GroupCode:  group,
		GroupLabel: groupLabel,
		OrderIndex: order,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func addRole(t *testing.T, s store.Store, code string, active bool) {
	t.Helper()
	err := s.CreateRole(context.Background(), &role.Role{ID: id.NewRoleID(), Code: code, Name: code, Active: active})
	if err != nil {
		t.Fatal(err)
	}
}

func upsert(t *testing.T, s store.Store, module, fieldCode, roleCode string, l Level) {
	t.Helper()
	err := s.UpsertEntry(context.Background(), &permission.Entry{
		ModuleCode: module, FieldCode: fieldCode, RoleCode: roleCode, Level: l,
	})
	if err != nil {
		t.Fatal(err)
	}
}

// seedCostVouchers builds the qlcp catalog with accountant and director
// holding W and A on paymentStatus, and marketing_sales holding nothing.
func seedCostVouchers(t *testing.T, s store.Store) {
	t.Helper()
	addField(t, s, "qlcp", "voucherNo", "general", "General", 1)
	addField(t, s, "qlcp", "amount", "payment", "Payment", 2)
	addField(t, s, "qlcp", "paymentStatus", "payment", "Payment", 1)
	addRole(t, s, "accountant", true)
	addRole(t, s, "director", true)
	addRole(t, s, "marketing_sales", true)
	upsert(t, s, "qlcp", "paymentStatus", "accountant", LevelWrite)
	upsert(t, s, "qlcp", "paymentStatus", "director", LevelAdmin)
}

func TestNewEngine_RequiresStore(t *testing.T) {
	if _, err := NewEngine(); err == nil {
		t.Fatal("expected error when store is nil")
	}
}

func TestNewEngine_DefaultModules(t *testing.T) {
	eng, _ := newTestEngine(t)
	var codes []string
	for _, m := range eng.Modules() {
		codes = append(codes, m.Code)
	}
	want := []string{"qlkh", "qlcp", "qlns", "dashboard"}
	if !reflect.DeepEqual(codes, want) {
		t.Fatalf("got modules %v, want %v", codes, want)
	}
}

func TestResolveRolePermissions_CostVoucherScenario(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedCostVouchers(t, s)

	tests := []struct {
		role string
		want Level
	}{
		{"accountant", LevelWrite},
		{"director", LevelAdmin},
		{"marketing_sales", LevelRead},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			perms, err := eng.ResolveRolePermissions(ctx, "qlcp", tt.role)
			if err != nil {
				t.Fatal(err)
			}
			if got := perms["paymentStatus"]; got != tt.want {
				t.Fatalf("paymentStatus = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestResolveRolePermissions_DefaultsToRead(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedCostVouchers(t, s)

	perms, err := eng.ResolveRolePermissions(ctx, "qlcp", "unknown_role")
	if err != nil {
		t.Fatal(err)
	}
	if len(perms) != 3 {
		t.Fatalf("expected every catalog field, got %d", len(perms))
	}
	for code, l := range perms {
		if l != LevelRead {
			t.Fatalf("%s = %s, want R", code, l)
		}
	}
}

func TestResolveRolePermissions_UnknownModuleIsEmpty(t *testing.T) {
	eng, s := newTestEngine(t)
	seedCostVouchers(t, s)
	upsert(t, s, "payroll", "salary", "director", LevelAdmin)

	perms, err := eng.ResolveRolePermissions(context.Background(), "payroll", "director")
	if err != nil {
		t.Fatal(err)
	}
	if len(perms) != 0 {
		t.Fatalf("expected no fields for an ungoverned module, got %v", perms)
	}
}

func TestSaveMatrix_RevokesOneRoleOnly(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedCostVouchers(t, s)

	res, err := eng.SaveMatrix(ctx, []Edit{
		{Module: "qlcp", Field: "paymentStatus", Role: "accountant", Level: LevelHidden},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Applied != 1 || res.Changed != 1 {
		t.Fatalf("unexpected result %+v", res)
	}

	accountant, _ := eng.ResolveRolePermissions(ctx, "qlcp", "accountant")
	if accountant["paymentStatus"] != LevelHidden {
		t.Fatalf("accountant paymentStatus = %s, want N", accountant["paymentStatus"])
	}
	director, _ := eng.ResolveRolePermissions(ctx, "qlcp", "director")
	if director["paymentStatus"] != LevelAdmin {
		t.Fatalf("director paymentStatus = %s, want A", director["paymentStatus"])
	}
	sales, _ := eng.ResolveRolePermissions(ctx, "qlcp", "marketing_sales")
	if sales["paymentStatus"] != LevelRead {
		t.Fatalf("marketing_sales paymentStatus = %s, want R", sales["paymentStatus"])
	}
}

func TestSaveMatrix_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedCostVouchers(t, s)

	edit := []Edit{{Module: "qlkh", Field: "phone", Role: "marketing_sales", Level: LevelWrite}}
	for i := 0; i < 2; i++ {
		if _, err := eng.SaveMatrix(ctx, edit); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := eng.SaveMatrix(ctx, []Edit{{Module: "qlkh", Field: "phone", Role: "marketing_sales", Level: LevelHidden}}); err != nil {
		t.Fatal(err)
	}

	entries, err := s.ListEntries(ctx, &permission.ListFilter{ModuleCode: "qlkh", FieldCode: "phone", RoleCode: "marketing_sales"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(entries))
	}
	if entries[0].Level != LevelHidden {
		t.Fatalf("expected latest level N, got %s", entries[0].Level)
	}
}

func TestSaveMatrix_LastDuplicateWins(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedCostVouchers(t, s)

	res, err := eng.SaveMatrix(ctx, []Edit{
		{Module: "qlcp", Field: "amount", Role: "director", Level: LevelWrite},
		{Module: "qlcp", Field: "amount", Role: "director", Level: LevelHidden},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Applied != 1 {
		t.Fatalf("expected 1 applied triple, got %d", res.Applied)
	}
	got, err := s.GetEntry(ctx, "qlcp", "amount", "director")
	if err != nil {
		t.Fatal(err)
	}
	if got.Level != LevelHidden {
		t.Fatalf("expected N, got %s", got.Level)
	}
}

func TestSaveMatrix_InvalidLevelRejectsWholeBatch(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedCostVouchers(t, s)

	_, err := eng.SaveMatrix(ctx, []Edit{
		{Module: "qlcp", Field: "paymentStatus", Role: "accountant", Level: LevelHidden},
		{Module: "qlcp", Field: "amount", Role: "director", Level: Level(9)},
	})
	if !errors.Is(err, ErrInvalidLevel) {
		t.Fatalf("expected ErrInvalidLevel, got %v", err)
	}

	got, _ := s.GetEntry(ctx, "qlcp", "paymentStatus", "accountant")
	if got.Level != LevelWrite {
		t.Fatalf("batch was partially applied: accountant = %s", got.Level)
	}
	if _, err := s.GetEntry(ctx, "qlcp", "amount", "director"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected no entry, got %v", err)
	}
}

func TestSaveMatrix_RejectsIncompleteEdit(t *testing.T) {
	eng, _ := newTestEngine(t)
	_, err := eng.SaveMatrix(context.Background(), []Edit{{Module: "qlcp", Field: "", Role: "director", Level: LevelRead}})
	if !errors.Is(err, ErrInvalidEdit) {
		t.Fatalf("expected ErrInvalidEdit, got %v", err)
	}
}

func TestSaveMatrix_EmptyBatchIsNoop(t *testing.T) {
	eng, s := newTestEngine(t)
	res, err := eng.SaveMatrix(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Applied != 0 {
		t.Fatalf("expected nothing applied, got %d", res.Applied)
	}
	count, _ := s.CountEntries(context.Background(), nil)
	if count != 0 {
		t.Fatalf("expected no entries, got %d", count)
	}
}

func TestSaveMatrix_BatchLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBatchSize = 1
	eng, _ := newTestEngine(t, WithConfig(cfg))

	_, err := eng.SaveMatrix(context.Background(), []Edit{
		{Module: "qlcp", Field: "a", Role: "r", Level: LevelRead},
		{Module: "qlcp", Field: "b", Role: "r", Level: LevelRead},
	})
	if !errors.Is(err, ErrBatchTooLarge) {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}
}

func TestSaveMatrix_TolerantModeStoresOrphans(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedCostVouchers(t, s)

	if _, err := eng.SaveMatrix(ctx, []Edit{{Module: "qlcp", Field: "ghost", Role: "nobody", Level: LevelAdmin}}); err != nil {
		t.Fatalf("tolerant mode should accept unknown targets: %v", err)
	}
	if _, err := s.GetEntry(ctx, "qlcp", "ghost", "nobody"); err != nil {
		t.Fatalf("expected orphan entry to be stored: %v", err)
	}
	grid, _ := eng.ResolveModuleMatrix(ctx, "qlcp")
	if _, ok := grid["ghost"]; ok {
		t.Fatal("orphaned field must not appear in the matrix")
	}
}

func TestSaveMatrix_StrictModeValidatesTargets(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.StrictSave = true
	eng, s := newTestEngine(t, WithConfig(cfg))
	seedCostVouchers(t, s)

	tests := []struct {
		name string
		edit Edit
		want error
	}{
		{"unknown module", Edit{Module: "payroll", Field: "paymentStatus", Role: "director", Level: LevelRead}, ErrUnknownModule},
		{"unknown field", Edit{Module: "qlcp", Field: "ghost", Role: "director", Level: LevelRead}, ErrUnknownField},
		{"unknown role", Edit{Module: "qlcp", Field: "amount", Role: "nobody", Level: LevelRead}, ErrUnknownRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid := Edit{Module: "qlcp", Field: "amount", Role: "director", Level: LevelHidden}
			_, err := eng.SaveMatrix(ctx, []Edit{valid, tt.edit})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if _, err := s.GetEntry(ctx, "qlcp", "amount", "director"); !errors.Is(err, store.ErrNotFound) {
				t.Fatal("strict rejection must not write any edit of the batch")
			}
		})
	}

	if _, err := eng.SaveMatrix(ctx, []Edit{{Module: "qlcp", Field: "amount", Role: "director", Level: LevelHidden}}); err != nil {
		t.Fatalf("valid strict save failed: %v", err)
	}
}

func TestResolveModuleMatrix_IsDense(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedCostVouchers(t, s)
	// Entries for unknown fields and roles must not add cells.
	upsert(t, s, "qlcp", "ghost", "director", LevelHidden)
	upsert(t, s, "qlcp", "amount", "ghost_role", LevelHidden)

	grid, err := eng.ResolveModuleMatrix(ctx, "qlcp")
	if err != nil {
		t.Fatal(err)
	}
	fields, _ := eng.ListFields(ctx, "qlcp")
	roles, _ := eng.ListActiveRoles(ctx)

	if len(grid) != len(fields) {
		t.Fatalf("expected %d rows, got %d", len(fields), len(grid))
	}
	for _, f := range fields {
		row, ok := grid[f.Code]
		if !ok {
			t.Fatalf("missing row for %s", f.Code)
		}
		if len(row) != len(roles) {
			t.Fatalf("row %s has %d cells, want %d", f.Code, len(row), len(roles))
		}
		for _, r := range roles {
			if !row[r.Code].Valid() {
				t.Fatalf("cell %s/%s missing", f.Code, r.Code)
			}
		}
	}
	if grid.Level("paymentStatus", "director") != LevelAdmin {
		t.Fatal("stored level lost in matrix")
	}
	if grid.Level("voucherNo", "accountant") != LevelRead {
		t.Fatal("default level not applied in matrix")
	}
}

func TestInactiveRolesAreExcluded(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedCostVouchers(t, s)
	addRole(t, s, "intern", false)
	upsert(t, s, "qlcp", "amount", "intern", LevelWrite)

	roles, err := eng.ListActiveRoles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range roles {
		if r.Code == "intern" {
			t.Fatal("inactive role listed")
		}
	}

	grid, _ := eng.ResolveModuleMatrix(ctx, "qlcp")
	for fieldCode, row := range grid {
		if _, ok := row["intern"]; ok {
			t.Fatalf("inactive role column present on %s", fieldCode)
		}
	}

	// The stored entry survives and is still resolvable by direct lookup.
	perms, _ := eng.ResolveRolePermissions(ctx, "qlcp", "intern")
	if perms["amount"] != LevelWrite {
		t.Fatalf("inactive role entry lost: %s", perms["amount"])
	}
}

func TestListActiveRolesKeepsRegistryOrder(t *testing.T) {
	eng, s := newTestEngine(t)
	for _, c := range []string{"director", "accountant", "marketing_sales", "hr"} {
		addRole(t, s, c, true)
	}
	roles, err := eng.ListActiveRoles(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var codes []string
	for _, r := range roles {
		codes = append(codes, r.Code)
	}
	want := []string{"director", "accountant", "marketing_sales", "hr"}
	if !reflect.DeepEqual(codes, want) {
		t.Fatalf("got %v, want %v", codes, want)
	}
}

func TestListFieldsOrdering(t *testing.T) {
	eng, s := newTestEngine(t)
	addField(t, s, "qlkh", "email", "contact", "Contact", 2)
	addField(t, s, "qlkh", "name", "basic", "Basic", 1)
	addField(t, s, "qlkh", "phone", "contact", "Contact", 1)
	addField(t, s, "qlkh", "mobile", "contact", "Contact", 1)

	fields, err := eng.ListFields(context.Background(), "qlkh")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"name", "phone", "mobile", "email"}
	if got := field.Codes(fields); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	groups, _ := eng.FieldGroups(context.Background(), "qlkh")
	if len(groups) != 2 || groups[0].Code != "basic" || len(groups[1].Fields) != 3 {
		t.Fatalf("unexpected groups %+v", groups)
	}
}

func TestGetFullMatrix(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedCostVouchers(t, s)
	addField(t, s, "qlkh", "phone", "contact", "Contact", 1)

	m, err := eng.GetFullMatrix(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Modules) != 4 {
		t.Fatalf("expected 4 modules, got %d", len(m.Modules))
	}
	if len(m.Roles) != 3 || m.Roles[0].Code != "accountant" {
		t.Fatalf("unexpected roles %+v", m.Roles)
	}
	qlcp := m.Module("qlcp")
	if qlcp == nil {
		t.Fatal("qlcp missing from matrix")
	}
	if qlcp.Permissions.Level("paymentStatus", "director") != LevelAdmin {
		t.Fatal("director level lost")
	}
	if len(qlcp.Groups) != 2 || qlcp.Groups[0].Label != "General" {
		t.Fatalf("unexpected groups %+v", qlcp.Groups)
	}
	dash := m.Module("dashboard")
	if dash == nil || len(dash.Permissions) != 0 {
		t.Fatal("empty module should be present with no rows")
	}
	if m.Module("payroll") != nil {
		t.Fatal("ungoverned module present")
	}
}

func TestSaveMatrix_WritesChangeLog(t *testing.T) {
	ctx := WithActor(context.Background(), "admin-1")
	eng, s := newTestEngine(t)
	seedCostVouchers(t, s)

	res, err := eng.SaveMatrix(ctx, []Edit{
		{Module: "qlcp", Field: "paymentStatus", Role: "accountant", Level: LevelHidden},
		{Module: "qlcp", Field: "paymentStatus", Role: "director", Level: LevelAdmin}, // unchanged
		{Module: "qlcp", Field: "amount", Role: "director", Level: LevelWrite},       // new row
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Applied != 3 || res.Changed != 2 {
		t.Fatalf("unexpected result %+v", res)
	}

	changes, err := eng.ListChangeLog(ctx, &changelog.QueryFilter{BatchID: res.BatchID.String()})
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	for _, c := range changes {
		if c.Actor != "admin-1" {
			t.Fatalf("expected actor admin-1, got %q", c.Actor)
		}
		switch c.FieldCode {
		case "paymentStatus":
			if c.OldLevel != LevelWrite || c.NewLevel != LevelHidden {
				t.Fatalf("unexpected paymentStatus change %+v", c)
			}
		case "amount":
			if c.OldLevel.Valid() || c.NewLevel != LevelWrite {
				t.Fatalf("unexpected amount change %+v", c)
			}
		default:
			t.Fatalf("unexpected change for %s", c.FieldCode)
		}
	}
}

// failingStore fails every entry read or write.
type failingStore struct {
	*memory.Store
	err error
}

func (f *failingStore) ListEntries(context.Context, *permission.ListFilter) ([]*permission.Entry, error) {
	return nil, f.err
}

func (f *failingStore) UpsertEntries(context.Context, []*permission.Entry) error { return f.err }

func TestStoreErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")
	fs := &failingStore{Store: memory.New(), err: boom}
	seedCostVouchers(t, fs.Store)

	eng, err := NewEngine(WithStore(fs))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := eng.ResolveRolePermissions(ctx, "qlcp", "director"); !errors.Is(err, boom) {
		t.Fatalf("resolve: expected store error, got %v", err)
	}
	if _, err := eng.ResolveModuleMatrix(ctx, "qlcp"); !errors.Is(err, boom) {
		t.Fatalf("matrix: expected store error, got %v", err)
	}
	cfg := DefaultConfig()
	cfg.DisableChangeLog = true
	eng, _ = NewEngine(WithStore(fs), WithConfig(cfg))
	if _, err := eng.SaveMatrix(ctx, []Edit{{Module: "qlcp", Field: "amount", Role: "director", Level: LevelRead}}); !errors.Is(err, boom) {
		t.Fatalf("save: expected store error, got %v", err)
	}
}

// mapCache is a minimal Cache for exercising invalidation.
type mapCache struct {
	mu          sync.Mutex
	entries     map[string][]*permission.Entry
	gens        map[string]uint64
	hits        int
	invalidated []string
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]*permission.Entry), gens: make(map[string]uint64)}
}

func (c *mapCache) Generation(_ context.Context, m string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[m], true
}

func (c *mapCache) GetEntries(_ context.Context, m string) ([]*permission.Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[m]
	if ok {
		c.hits++
	}
	return e, ok
}

func (c *mapCache) SetEntries(_ context.Context, m string, gen uint64, e []*permission.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[m] == gen {
		c.entries[m] = e
	}
}

func (c *mapCache) InvalidateModule(_ context.Context, m string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, m)
	c.gens[m]++
	c.invalidated = append(c.invalidated, m)
}

func (c *mapCache) InvalidateAll(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]*permission.Entry)
	for m := range c.gens {
		c.gens[m]++
	}
}

func TestCacheInvalidatedOnSave(t *testing.T) {
	ctx := context.Background()
	c := newMapCache()
	eng, s := newTestEngine(t, WithCache(c))
	seedCostVouchers(t, s)

	if _, err := eng.ResolveRolePermissions(ctx, "qlcp", "accountant"); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.ResolveRolePermissions(ctx, "qlcp", "accountant"); err != nil {
		t.Fatal(err)
	}
	if c.hits != 1 {
		t.Fatalf("expected second resolution to hit the cache, hits=%d", c.hits)
	}

	if _, err := eng.SaveMatrix(ctx, []Edit{{Module: "qlcp", Field: "paymentStatus", Role: "accountant", Level: LevelHidden}}); err != nil {
		t.Fatal(err)
	}
	if len(c.invalidated) != 1 || c.invalidated[0] != "qlcp" {
		t.Fatalf("expected qlcp invalidated, got %v", c.invalidated)
	}

	perms, _ := eng.ResolveRolePermissions(ctx, "qlcp", "accountant")
	if perms["paymentStatus"] != LevelHidden {
		t.Fatalf("stale cache served %s after save", perms["paymentStatus"])
	}
}

// pausingCache holds the first fill until release is closed, after the
// entries it carries were read from the store.
type pausingCache struct {
	*mapCache
	filling chan struct{}
	release chan struct{}
}

func (c *pausingCache) SetEntries(ctx context.Context, m string, gen uint64, e []*permission.Entry) {
	select {
	case c.filling <- struct{}{}:
	default:
	}
	<-c.release
	c.mapCache.SetEntries(ctx, m, gen, e)
}

func TestCacheFillRacingSaveIsDiscarded(t *testing.T) {
	ctx := context.Background()
	c := &pausingCache{
		mapCache: newMapCache(),
		filling:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
	eng, s := newTestEngine(t, WithCache(c))
	seedCostVouchers(t, s)

	errc := make(chan error, 1)
	go func() {
		perms, err := eng.ResolveRolePermissions(ctx, "qlcp", "accountant")
		if err == nil && perms["paymentStatus"] != LevelWrite {
			err = errors.New("in-flight resolution should see the pre-save level")
		}
		errc <- err
	}()
	<-c.filling

	if _, err := eng.SaveMatrix(ctx, []Edit{{Module: "qlcp", Field: "paymentStatus", Role: "accountant", Level: LevelHidden}}); err != nil {
		t.Fatal(err)
	}
	close(c.release)
	if err := <-errc; err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		perms, err := eng.ResolveRolePermissions(ctx, "qlcp", "accountant")
		if err != nil {
			t.Fatal(err)
		}
		if perms["paymentStatus"] != LevelHidden {
			t.Fatalf("resolution %d after save: got %s, want N", i, perms["paymentStatus"])
		}
	}
}

// corruptStore serves one stored entry whose level is outside N/R/W/A.
type corruptStore struct {
	*memory.Store
}

func (c *corruptStore) ListEntries(ctx context.Context, f *permission.ListFilter) ([]*permission.Entry, error) {
	entries, err := c.Store.ListEntries(ctx, f)
	if err != nil {
		return nil, err
	}
	return append(entries, &permission.Entry{ModuleCode: "qlcp", FieldCode: "amount", RoleCode: "accountant", Level: Level(9)}), nil
}

func TestInvalidStoredLevelFailsResolution(t *testing.T) {
	ctx := context.Background()
	cs := &corruptStore{Store: memory.New()}
	seedCostVouchers(t, cs.Store)

	eng, err := NewEngine(WithStore(cs))
	if err != nil {
		t.Fatal(err)
	}

	if perms, err := eng.ResolveRolePermissions(ctx, "qlcp", "accountant"); !errors.Is(err, ErrInvalidLevel) {
		t.Fatalf("resolve: expected ErrInvalidLevel, got %v (perms %v)", err, perms)
	}
	if _, err := eng.ResolveModuleMatrix(ctx, "qlcp"); !errors.Is(err, ErrInvalidLevel) {
		t.Fatalf("matrix: expected ErrInvalidLevel, got %v", err)
	}

	// The memory store never accepts such a level in the first place.
	if err := cs.Store.UpsertEntry(ctx, &permission.Entry{ModuleCode: "qlcp", FieldCode: "amount", RoleCode: "accountant", Level: Level(9)}); !errors.Is(err, ErrInvalidLevel) {
		t.Fatalf("upsert: expected ErrInvalidLevel, got %v", err)
	}
}

func TestPruneOrphanEntries(t *testing.T) {
	ctx := context.Background()
	eng, s := newTestEngine(t)
	seedCostVouchers(t, s)
	addRole(t, s, "intern", false)
	upsert(t, s, "qlcp", "amount", "intern", LevelWrite)       // inactive role: kept
	upsert(t, s, "qlcp", "ghost", "director", LevelHidden)     // missing field
	upsert(t, s, "qlcp", "amount", "nobody", LevelHidden)      // missing role
	upsert(t, s, "payroll", "salary", "director", LevelHidden) // ungoverned module

	n, err := eng.PruneOrphanEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("expected 3 pruned, got %d", n)
	}
	count, _ := s.CountEntries(ctx, nil)
	if count != 3 {
		t.Fatalf("expected 3 entries left, got %d", count)
	}
	if _, err := s.GetEntry(ctx, "qlcp", "amount", "intern"); err != nil {
		t.Fatal("inactive role entry was pruned")
	}
}

func TestCurrentRole(t *testing.T) {
	eng, _ := newTestEngine(t)
	if _, err := eng.CurrentRole(context.Background()); !errors.Is(err, ErrNoRole) {
		t.Fatalf("expected ErrNoRole, got %v", err)
	}
	r, err := eng.CurrentRole(WithRole(context.Background(), "director"))
	if err != nil {
		t.Fatal(err)
	}
	if r != "director" {
		t.Fatalf("expected director, got %q", r)
	}
}

type recordingPlugin struct {
	saved   int
	changed int
}

func (p *recordingPlugin) Name() string { return "recording" }

func (p *recordingPlugin) OnMatrixSaved(_ context.Context, _ id.BatchID, entries []*permission.Entry, changed int) error {
	p.saved += len(entries)
	p.changed += changed
	return nil
}

func TestSaveMatrix_EmitsPluginHook(t *testing.T) {
	p := &recordingPlugin{}
	eng, s := newTestEngine(t, WithPlugin(p))
	seedCostVouchers(t, s)

	if _, err := eng.SaveMatrix(context.Background(), []Edit{
		{Module: "qlcp", Field: "amount", Role: "director", Level: LevelWrite},
	}); err != nil {
		t.Fatal(err)
	}
	if p.saved != 1 || p.changed != 1 {
		t.Fatalf("unexpected hook data saved=%d changed=%d", p.saved, p.changed)
	}
}
