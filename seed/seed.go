// Package seed provisions the field catalog, the role registry and initial
// permission entries from a YAML catalog. Applying a catalog is idempotent:
// existing fields and roles are left alone and stored levels are never
// overwritten.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/xraph/fieldgate"
	"github.com/xraph/fieldgate/field"
	"github.com/xraph/fieldgate/id"
	"github.com/xraph/fieldgate/role"
	"github.com/xraph/fieldgate/store"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Actor is recorded in the change log for entries written by Apply.
const Actor = "seed"

// Catalog is the parsed seed document.
type Catalog struct {
	Roles   []Role             `yaml:"roles"`
	Modules map[string][]Group `yaml:"modules"`
	Entries []Entry            `yaml:"entries"`
}

// Role is a seeded role. Roles are active unless Inactive is set.
type Role struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Inactive    bool   `yaml:"inactive"`
}

// Group is a display group of seeded fields. Field order within the group
// becomes the field's order index.
type Group struct {
	Code   string  `yaml:"group"`
	Label  string  `yaml:"label"`
	Fields []Field `yaml:"fields"`
}

// Field is a seeded catalog field.
type Field struct {
	Code  string `yaml:"code"`
	Label string `yaml:"label"`
}

// Entry is an initial permission level.
type Entry struct {
	Module string `yaml:"module"`
	Field  string `yaml:"field"`
	Role   string `yaml:"role"`
	Level  string `yaml:"level"`
}

// Result reports what Apply created.
type Result struct {
	Fields  int `json:"fields"`
	Roles   int `json:"roles"`
	Entries int `json:"entries"`
}

// Default returns the embedded catalog of the four governed modules.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse decodes a YAML catalog and checks every level code.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("seed: parse catalog: %w", err)
	}
	for i, e := range c.Entries {
		if _, err := fieldgate.ParseLevel(e.Level); err != nil {
			return nil, fmt.Errorf("seed: entry %d (%s.%s/%s): %w", i, e.Module, e.Field, e.Role, err)
		}
	}
	return &c, nil
}

// Apply provisions the catalog through the engine. Fields of modules the
// engine does not govern are skipped. Entries go through SaveMatrix so the
// cache is invalidated and the change log records them.
func Apply(ctx context.Context, eng *fieldgate.Engine, c *Catalog) (*Result, error) {
	s := eng.Store()
	logger := eng.Logger()
	res := &Result{}

	for _, r := range c.Roles {
		err := s.CreateRole(ctx, &role.Role{
			ID:          id.NewRoleID(),
			Code:        r.Code,
			Name:        r.Name,
			Description: r.Description,
			Active:      !r.Inactive,
		})
		switch {
		case err == nil:
			res.Roles++
			logger.Debug("seed: role created", slog.String("role", r.Code))
		case errors.Is(err, store.ErrDuplicate):
		default:
			return res, fmt.Errorf("seed: role %s: %w", r.Code, err)
		}
	}

	// Iterate in governed order so insertion order is stable.
	for _, m := range eng.Modules() {
		for _, g := range c.Modules[m.Code] {
			for i, f := range g.Fields {
				label := f.Label
				if label == "" {
					label = f.Code
				}
				err := s.CreateField(ctx, &field.Field{
					ID:         id.NewFieldID(),
					ModuleCode: m.Code,
					Code:       f.Code,
					Label:      label,
					GroupCode:  g.Code,
					GroupLabel: g.Label,
					OrderIndex: i,
				})
				switch {
				case err == nil:
					res.Fields++
				case errors.Is(err, store.ErrDuplicate):
				default:
					return res, fmt.Errorf("seed: field %s.%s: %w", m.Code, f.Code, err)
				}
			}
		}
	}
	for code := range c.Modules {
		if !eng.IsGoverned(code) {
			logger.Warn("seed: skipping ungoverned module", slog.String("module", code))
		}
	}

	var edits []fieldgate.Edit
	for _, e := range c.Entries {
		_, err := s.GetEntry(ctx, e.Module, e.Field, e.Role)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return res, fmt.Errorf("seed: entry %s.%s/%s: %w", e.Module, e.Field, e.Role, err)
		}
		l, err := fieldgate.ParseLevel(e.Level)
		if err != nil {
			return res, fmt.Errorf("seed: entry %s.%s/%s: %w", e.Module, e.Field, e.Role, err)
		}
		edits = append(edits, fieldgate.Edit{Module: e.Module, Field: e.Field, Role: e.Role, Level: l})
	}

	if len(edits) > 0 {
		saved, err := eng.SaveMatrix(fieldgate.WithActor(ctx, Actor), edits)
		if err != nil {
			return res, fmt.Errorf("seed: entries: %w", err)
		}
		res.Entries = saved.Applied
	}

	logger.Info("seed: catalog applied",
		slog.Int("fields", res.Fields),
		slog.Int("roles", res.Roles),
		slog.Int("entries", res.Entries),
	)
	return res, nil
}

// ApplyDefault applies the embedded catalog.
func ApplyDefault(ctx context.Context, eng *fieldgate.Engine) (*Result, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	return Apply(ctx, eng, c)
}
