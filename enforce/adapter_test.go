package enforce

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/xraph/fieldgate"
	"github.com/xraph/fieldgate/field"
	"github.com/xraph/fieldgate/id"
	"github.com/xraph/fieldgate/permission"
	"github.com/xraph/fieldgate/role"
	"github.com/xraph/fieldgate/store/memory"
)

// rejectPlugin records enforcement hooks.
type rejectPlugin struct {
	hidden   []string
	rejected []string
	denied   []string
}

func (p *rejectPlugin) Name() string { return "reject-recorder" }

func (p *rejectPlugin) OnFieldsHidden(_ context.Context, _, _ string, fields []string) error {
	p.hidden = append(p.hidden, fields...)
	return nil
}

func (p *rejectPlugin) OnWriteRejected(_ context.Context, _, _ string, fields []string) error {
	p.rejected = append(p.rejected, fields...)
	return nil
}

func (p *rejectPlugin) OnActionDenied(_ context.Context, _, fieldCode, _ string) error {
	p.denied = append(p.denied, fieldCode)
	return nil
}

// setup builds a qlkh catalog {a, b, c} where "clerk" holds a=N, b=R, c=W
// and "manager" holds c=A.
func setup(t *testing.T) (*Adapter, *rejectPlugin) {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	for i, code := range []string{"a", "b", "c"} {
		if err := s.CreateField(ctx, &field.Field{
			ID: id.NewFieldID(), ModuleCode: "qlkh", Code: code, Label: code, OrderIndex: i,
		}); err != nil {
			t.Fatal(err)
		}
	}
	for _, code := range []string{"clerk", "manager"} {
		if err := s.CreateRole(ctx, &role.Role{ID: id.NewRoleID(), Code: code, Name: code, Active: true}); err != nil {
			t.Fatal(err)
		}
	}
	err := s.UpsertEntries(ctx, []*permission.Entry{
		{ModuleCode: "qlkh", FieldCode: "a", RoleCode: "clerk", Level: permission.Hidden},
		{ModuleCode: "qlkh", FieldCode: "b", RoleCode: "clerk", Level: permission.Read},
		{ModuleCode: "qlkh", FieldCode: "c", RoleCode: "clerk", Level: permission.Write},
		{ModuleCode: "qlkh", FieldCode: "c", RoleCode: "manager", Level: permission.Admin},
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := &rejectPlugin{}
	eng, err := fieldgate.NewEngine(fieldgate.WithStore(s), fieldgate.WithPlugin(rec))
	if err != nil {
		t.Fatal(err)
	}
	return NewAdapter(eng), rec
}

func TestFilterRead_OmitsHiddenFields(t *testing.T) {
	a, rec := setup(t)
	ctx := fieldgate.WithRole(context.Background(), "clerk")

	out, err := a.FilterRead(ctx, "qlkh", Record{"a": 1, "b": 2, "c": 3, "id": "cust-1"})
	if err != nil {
		t.Fatal(err)
	}
	want := Record{"b": 2, "c": 3, "id": "cust-1"}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("got %v, want %v", out, want)
	}
	if _, ok := out["a"]; ok {
		t.Fatal("hidden field must be omitted, not nulled")
	}
	if !reflect.DeepEqual(rec.hidden, []string{"a"}) {
		t.Fatalf("expected FieldsHidden for [a], got %v", rec.hidden)
	}
}

func TestFilterWrite_KeepsOnlyWritableFields(t *testing.T) {
	a, rec := setup(t)
	ctx := fieldgate.WithRole(context.Background(), "clerk")

	out, err := a.FilterWrite(ctx, "qlkh", Record{"a": "x", "b": "y", "c": "z", "updated_by": "u1"})
	if err != nil {
		t.Fatal(err)
	}
	want := Record{"c": "z", "updated_by": "u1"}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("got %v, want %v", out, want)
	}
	if !reflect.DeepEqual(rec.rejected, []string{"a", "b"}) {
		t.Fatalf("expected WriteRejected for [a b], got %v", rec.rejected)
	}
}

func TestFilterReadAll(t *testing.T) {
	a, rec := setup(t)
	ctx := fieldgate.WithRole(context.Background(), "clerk")

	out, err := a.FilterReadAll(ctx, "qlkh", []Record{
		{"a": 1, "b": 2},
		{"a": 3, "c": 4},
		{"b": 5},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []Record{{"b": 2}, {"c": 4}, {"b": 5}}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("got %v, want %v", out, want)
	}
	if !reflect.DeepEqual(rec.hidden, []string{"a"}) {
		t.Fatalf("expected one FieldsHidden report for [a], got %v", rec.hidden)
	}
}

func TestRequireAction(t *testing.T) {
	a, rec := setup(t)

	tests := []struct {
		name    string
		role    string
		field   string
		allowed bool
	}{
		{"admin level allows", "manager", "c", true},
		{"write level is not enough", "clerk", "c", false},
		{"default read is not enough", "manager", "b", false},
		{"field outside catalog", "manager", "approvedAt", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := fieldgate.WithRole(context.Background(), tt.role)
			err := a.RequireAction(ctx, "qlkh", tt.field)
			if tt.allowed && err != nil {
				t.Fatalf("expected allowed, got %v", err)
			}
			if !tt.allowed && !errors.Is(err, fieldgate.ErrAccessDenied) {
				t.Fatalf("expected ErrAccessDenied, got %v", err)
			}
		})
	}
	if len(rec.denied) != 3 {
		t.Fatalf("expected 3 ActionDenied reports, got %v", rec.denied)
	}
}

func TestRequireLevel(t *testing.T) {
	a, _ := setup(t)
	ctx := fieldgate.WithRole(context.Background(), "clerk")

	if err := a.RequireLevel(ctx, "qlkh", "c", fieldgate.LevelWrite); err != nil {
		t.Fatalf("clerk holds W on c: %v", err)
	}
	if err := a.RequireLevel(ctx, "qlkh", "b", fieldgate.LevelWrite); !errors.Is(err, fieldgate.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for R on b, got %v", err)
	}
	if err := a.RequireLevel(ctx, "qlkh", "c", fieldgate.LevelAdmin); !errors.Is(err, fieldgate.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for A on c, got %v", err)
	}
}

func TestNoRoleInContext(t *testing.T) {
	a, _ := setup(t)
	if _, err := a.FilterRead(context.Background(), "qlkh", Record{"a": 1}); !errors.Is(err, fieldgate.ErrNoRole) {
		t.Fatalf("expected ErrNoRole, got %v", err)
	}
}

func TestPayloadCannotChooseRole(t *testing.T) {
	a, _ := setup(t)
	ctx := fieldgate.WithRole(context.Background(), "clerk")

	// The payload claims a role; only the session role counts.
	out, err := a.FilterWrite(ctx, "qlkh", Record{"role": "manager", "b": "y"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := out["b"]; ok {
		t.Fatal("b is read-only for the session role")
	}
}

func TestPermissions(t *testing.T) {
	a, _ := setup(t)
	ctx := fieldgate.WithRole(context.Background(), "clerk")

	perms, err := a.Permissions(ctx, "qlkh")
	if err != nil {
		t.Fatal(err)
	}
	want := fieldgate.Permissions{"a": fieldgate.LevelHidden, "b": fieldgate.LevelRead, "c": fieldgate.LevelWrite}
	if !reflect.DeepEqual(perms, want) {
		t.Fatalf("got %v, want %v", perms, want)
	}
}

func TestUngovernedModulePassesThrough(t *testing.T) {
	a, _ := setup(t)
	ctx := fieldgate.WithRole(context.Background(), "clerk")

	in := Record{"a": 1, "b": 2}
	out, err := a.FilterRead(ctx, "inventory", in)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("got %v, want %v", out, in)
	}
}

func TestApplyNilRecord(t *testing.T) {
	if out, hidden := ApplyRead(fieldgate.Permissions{}, nil); out != nil || hidden != nil {
		t.Fatal("nil record should stay nil")
	}
	if out, dropped := ApplyWrite(fieldgate.Permissions{}, nil); out != nil || dropped != nil {
		t.Fatal("nil payload should stay nil")
	}
}
