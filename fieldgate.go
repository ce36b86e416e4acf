// Package fieldgate provides field-level permissions for business records.
//
// Every field of a governed module carries, per role, one of four levels:
// hidden (N), read (R), write (W) or admin (A). The Engine resolves sparse
// stored entries into dense matrices where unset triples default to R, and
// persists matrix edits from the administration screen. The enforce package
// applies resolved levels to records on read and payloads on write.
//
//	eng, err := fieldgate.NewEngine(
//	    fieldgate.WithStore(memory.New()),
//	)
//	levels, err := eng.ResolveRolePermissions(ctx, "qlcp", "accountant")
//	if levels["paymentStatus"].CanWrite() {
//	    // accept edits to paymentStatus
//	}
package fieldgate

import "github.com/xraph/fieldgate/permission"

// Level is a field permission level.
type Level = permission.Level

// The four permission levels, lowest to highest.
const (
	LevelHidden = permission.Hidden
	LevelRead   = permission.Read
	LevelWrite  = permission.Write
	LevelAdmin  = permission.Admin
)

// DefaultLevel applies to every triple without a stored entry.
const DefaultLevel = permission.DefaultLevel

// ParseLevel parses a wire code (N, R, W or A).
func ParseLevel(s string) (Level, error) { return permission.ParseLevel(s) }

// Permissions maps field code to level for one role in one module.
type Permissions map[string]Level

// Lookup returns the level of a catalog field. ok is false when the field is
// not in the module's catalog.
func (p Permissions) Lookup(fieldCode string) (Level, bool) {
	l, ok := p[fieldCode]
	return l, ok
}

// LevelGrid maps field code to role code to level for one module.
type LevelGrid map[string]map[string]Level

// Level returns the level for a field and role, falling back to DefaultLevel.
func (g LevelGrid) Level(fieldCode, roleCode string) Level {
	if row, ok := g[fieldCode]; ok {
		if l, ok := row[roleCode]; ok {
			return l
		}
	}
	return DefaultLevel
}

// Role returns the column of the grid for one role.
func (g LevelGrid) Role(roleCode string) Permissions {
	out := make(Permissions, len(g))
	for fieldCode, row := range g {
		if l, ok := row[roleCode]; ok {
			out[fieldCode] = l
		}
	}
	return out
}
