package fieldgate

import (
	"github.com/xraph/fieldgate/field"
	"github.com/xraph/fieldgate/id"
	"github.com/xraph/fieldgate/role"
)

// Edit is one cell change of the permission matrix.
type Edit struct {
	Module string `json:"module"`
	Field  string `json:"field"`
	Role   string `json:"role"`
	Level  Level  `json:"level"`
}

// SaveResult reports the outcome of SaveMatrix.
type SaveResult struct {
	BatchID id.BatchID `json:"batch_id"`
	// Applied is the number of distinct triples written.
	Applied int `json:"applied"`
	// Changed is the number of triples whose stored level differed.
	Changed int `json:"changed"`
}

// FieldView is a catalog field as shown in the matrix editor.
type FieldView struct {
	Code       string `json:"code"`
	Label      string `json:"label"`
	OrderIndex int    `json:"order_index"`
}

// FieldGroup is a display group of the matrix editor.
type FieldGroup struct {
	Code   string      `json:"code"`
	Label  string      `json:"label"`
	Fields []FieldView `json:"fields"`
}

// RoleView is a matrix column.
type RoleView struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// ModuleMatrix is the dense matrix of one module.
type ModuleMatrix struct {
	Module      Module       `json:"module"`
	Groups      []FieldGroup `json:"groups"`
	Permissions LevelGrid    `json:"permissions"`
}

// Matrix is everything the matrix editor needs in one document.
type Matrix struct {
	Roles   []RoleView     `json:"roles"`
	Modules []ModuleMatrix `json:"modules"`
}

// Module returns the matrix of a module, or nil when it is not governed.
func (m *Matrix) Module(code string) *ModuleMatrix {
	for i := range m.Modules {
		if m.Modules[i].Module.Code == code {
			return &m.Modules[i]
		}
	}
	return nil
}

func groupViews(fields []*field.Field) []FieldGroup {
	groups := field.GroupFields(fields)
	out := make([]FieldGroup, len(groups))
	for i, g := range groups {
		views := make([]FieldView, len(g.Fields))
		for j, f := range g.Fields {
			views[j] = FieldView{Code: f.Code, Label: f.Label, OrderIndex: f.OrderIndex}
		}
		out[i] = FieldGroup{Code: g.Code, Label: g.Label, Fields: views}
	}
	return out
}

func roleViews(roles []*role.Role) []RoleView {
	out := make([]RoleView, len(roles))
	for i, r := range roles {
		out[i] = RoleView{Code: r.Code, Name: r.Name}
	}
	return out
}
