// Package enforce applies resolved field levels to records. Every
// data-bearing endpoint of a governed module runs its output through
// FilterRead and its input through FilterWrite, and guards state
// transitions with RequireAction.
//
// Keys that are not in the module's field catalog are bookkeeping fields
// and pass through unconditionally. The role always comes from the
// authenticated session (Engine.CurrentRole), never from the record.
package enforce

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/xraph/fieldgate"
)

// Record is one record or write payload keyed by field code.
type Record = map[string]any

// Adapter enforces field permissions for the caller in the context.
type Adapter struct {
	eng    *fieldgate.Engine
	logger *slog.Logger
}

// NewAdapter creates an adapter backed by the engine.
func NewAdapter(eng *fieldgate.Engine) *Adapter {
	return &Adapter{eng: eng, logger: eng.Logger()}
}

// Permissions returns the caller's level on every catalog field of a module.
func (a *Adapter) Permissions(ctx context.Context, moduleCode string) (fieldgate.Permissions, error) {
	_, perms, err := a.resolve(ctx, moduleCode)
	return perms, err
}

// FilterRead returns a copy of rec without the fields the caller cannot
// see. Hidden fields are omitted, never nulled out.
func (a *Adapter) FilterRead(ctx context.Context, moduleCode string, rec Record) (Record, error) {
	roleCode, perms, err := a.resolve(ctx, moduleCode)
	if err != nil {
		return nil, err
	}
	out, hidden := ApplyRead(perms, rec)
	a.reportHidden(ctx, moduleCode, roleCode, hidden)
	return out, nil
}

// FilterReadAll filters a slice of records with a single resolution.
func (a *Adapter) FilterReadAll(ctx context.Context, moduleCode string, recs []Record) ([]Record, error) {
	roleCode, perms, err := a.resolve(ctx, moduleCode)
	if err != nil {
		return nil, err
	}
	out := make([]Record, len(recs))
	seen := make(map[string]struct{})
	var hidden []string
	for i, rec := range recs {
		var h []string
		out[i], h = ApplyRead(perms, rec)
		for _, f := range h {
			if _, ok := seen[f]; !ok {
				seen[f] = struct{}{}
				hidden = append(hidden, f)
			}
		}
	}
	sort.Strings(hidden)
	a.reportHidden(ctx, moduleCode, roleCode, hidden)
	return out, nil
}

// FilterWrite returns a copy of payload holding only the catalog fields the
// caller may write (W or A) plus non-catalog keys. Other fields are dropped
// silently.
func (a *Adapter) FilterWrite(ctx context.Context, moduleCode string, payload Record) (Record, error) {
	roleCode, perms, err := a.resolve(ctx, moduleCode)
	if err != nil {
		return nil, err
	}
	out, dropped := ApplyWrite(perms, payload)
	if len(dropped) > 0 {
		a.logger.Debug("fieldgate: dropped unwritable fields",
			slog.String("module", moduleCode),
			slog.String("role", roleCode),
			slog.Any("fields", dropped),
		)
		a.eng.Plugins().EmitWriteRejected(ctx, moduleCode, roleCode, dropped)
	}
	return out, nil
}

// RequireAction returns nil when the caller holds A on the governing field
// of an elevated action, such as approving a cost voucher. W is not enough.
// A field outside the catalog never grants the action.
func (a *Adapter) RequireAction(ctx context.Context, moduleCode, fieldCode string) error {
	roleCode, perms, err := a.resolve(ctx, moduleCode)
	if err != nil {
		return err
	}
	if l, ok := perms.Lookup(fieldCode); ok && l.CanAdminister() {
		return nil
	}
	a.eng.Plugins().EmitActionDenied(ctx, moduleCode, fieldCode, roleCode)
	return fmt.Errorf("%w: %s needs A on %s.%s", fieldgate.ErrAccessDenied, roleCode, moduleCode, fieldCode)
}

// RequireLevel returns nil when the caller holds at least min on a field.
func (a *Adapter) RequireLevel(ctx context.Context, moduleCode, fieldCode string, minLevel fieldgate.Level) error {
	if minLevel == fieldgate.LevelAdmin {
		return a.RequireAction(ctx, moduleCode, fieldCode)
	}
	roleCode, perms, err := a.resolve(ctx, moduleCode)
	if err != nil {
		return err
	}
	if l, ok := perms.Lookup(fieldCode); ok && l.AtLeast(minLevel) {
		return nil
	}
	a.eng.Plugins().EmitActionDenied(ctx, moduleCode, fieldCode, roleCode)
	return fmt.Errorf("%w: %s needs %s on %s.%s", fieldgate.ErrAccessDenied, roleCode, minLevel, moduleCode, fieldCode)
}

func (a *Adapter) resolve(ctx context.Context, moduleCode string) (string, fieldgate.Permissions, error) {
	roleCode, err := a.eng.CurrentRole(ctx)
	if err != nil {
		return "", nil, err
	}
	perms, err := a.eng.ResolveRolePermissions(ctx, moduleCode, roleCode)
	if err != nil {
		return "", nil, err
	}
	return roleCode, perms, nil
}

func (a *Adapter) reportHidden(ctx context.Context, moduleCode, roleCode string, hidden []string) {
	if len(hidden) == 0 {
		return
	}
	a.eng.Plugins().EmitFieldsHidden(ctx, moduleCode, roleCode, hidden)
}

// ApplyRead copies rec without the catalog fields resolved to N. It also
// returns the omitted field codes, sorted.
func ApplyRead(perms fieldgate.Permissions, rec Record) (Record, []string) {
	if rec == nil {
		return nil, nil
	}
	out := make(Record, len(rec))
	var hidden []string
	for k, v := range rec {
		if l, ok := perms.Lookup(k); ok && !l.CanRead() {
			hidden = append(hidden, k)
			continue
		}
		out[k] = v
	}
	sort.Strings(hidden)
	return out, hidden
}

// ApplyWrite copies payload keeping catalog fields at W or A and every
// non-catalog key. It also returns the dropped field codes, sorted.
func ApplyWrite(perms fieldgate.Permissions, payload Record) (Record, []string) {
	if payload == nil {
		return nil, nil
	}
	out := make(Record, len(payload))
	var dropped []string
	for k, v := range payload {
		if l, ok := perms.Lookup(k); ok && !l.CanWrite() {
			dropped = append(dropped, k)
			continue
		}
		out[k] = v
	}
	sort.Strings(dropped)
	return out, dropped
}
