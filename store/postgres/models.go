package postgres

import (
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/fieldgate/changelog"
	"github.com/xraph/fieldgate/field"
	"github.com/xraph/fieldgate/id"
	"github.com/xraph/fieldgate/permission"
	"github.com/xraph/fieldgate/role"
)

// ──────────────────────────────────────────────────
// Field model
// ──────────────────────────────────────────────────

type fieldModel struct {
	grove.BaseModel `grove:"table:fieldgate_fields"`
	ID              string         `grove:"id,pk"`
	ModuleCode      string         `grove:"module_code,notnull"`
	Code            string         `grove:"code,notnull"`
	Label           string         `grove:"label,notnull"`
	GroupCode       string         `grove:"group_code,notnull"`
	GroupLabel      string         `grove:"group_label,notnull"`
	OrderIndex      int            `grove:"order_index,notnull"`
	Metadata        map[string]any `grove:"metadata,type:jsonb"`
	CreatedAt       time.Time      `grove:"created_at,notnull"`
	UpdatedAt       time.Time      `grove:"updated_at,notnull"`
}

func fieldToModel(f *field.Field) *fieldModel {
	return &fieldModel{
		ID:         f.ID.String(),
		ModuleCode: f.ModuleCode,
		Code:       f.Code,
		Label:      f.Label,
		GroupCode:  f.GroupCode,
		GroupLabel: f.GroupLabel,
		OrderIndex: f.OrderIndex,
		Metadata:   f.Metadata,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

func fieldFromModel(m *fieldModel) *field.Field {
	fid, _ := id.ParseFieldID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &field.Field{
		ID:         fid,
		ModuleCode: m.ModuleCode,
		Code:       m.Code,
		Label:      m.Label,
		GroupCode:  m.GroupCode,
		GroupLabel: m.GroupLabel,
		OrderIndex: m.OrderIndex,
		Metadata:   m.Metadata,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Role model
// ──────────────────────────────────────────────────

type roleModel struct {
	grove.BaseModel `grove:"table:fieldgate_roles"`
	ID              string         `grove:"id,pk"`
	Code            string         `grove:"code,notnull"`
	Name            string         `grove:"name,notnull"`
	Description     string         `grove:"description"`
	Active          bool           `grove:"active,notnull"`
	Metadata        map[string]any `grove:"metadata,type:jsonb"`
	CreatedAt       time.Time      `grove:"created_at,notnull"`
	UpdatedAt       time.Time      `grove:"updated_at,notnull"`
}

func roleToModel(r *role.Role) *roleModel {
	return &roleModel{
		ID:          r.ID.String(),
		Code:        r.Code,
		Name:        r.Name,
		Description: r.Description,
		Active:      r.Active,
		Metadata:    r.Metadata,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func roleFromModel(m *roleModel) *role.Role {
	rid, _ := id.ParseRoleID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &role.Role{
		ID:          rid,
		Code:        m.Code,
		Name:        m.Name,
		Description: m.Description,
		Active:      m.Active,
		Metadata:    m.Metadata,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Permission entry model
// ──────────────────────────────────────────────────

type entryModel struct {
	grove.BaseModel `grove:"table:fieldgate_permissions"`
	ID              string    `grove:"id,pk"`
	ModuleCode      string    `grove:"module_code,notnull"`
	FieldCode       string    `grove:"field_code,notnull"`
	RoleCode        string    `grove:"role_code,notnull"`
	Level           string    `grove:"level,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func entryToModel(e *permission.Entry) *entryModel {
	return &entryModel{
		ID:         e.ID.String(),
		ModuleCode: e.ModuleCode,
		FieldCode:  e.FieldCode,
		RoleCode:   e.RoleCode,
		Level:      e.Level.String(),
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

func entryFromModel(m *entryModel) (*permission.Entry, error) {
	eid, _ := id.ParseEntryID(m.ID) //nolint:errcheck // stored IDs are always valid
	lvl, err := permission.ParseLevel(m.Level)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", m.ID, err)
	}
	return &permission.Entry{
		ID:         eid,
		ModuleCode: m.ModuleCode,
		FieldCode:  m.FieldCode,
		RoleCode:   m.RoleCode,
		Level:      lvl,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}, nil
}

// ──────────────────────────────────────────────────
// Change log model
// ──────────────────────────────────────────────────

type changeModel struct {
	grove.BaseModel `grove:"table:fieldgate_permission_changes"`
	ID              string    `grove:"id,pk"`
	BatchID         string    `grove:"batch_id,notnull"`
	ModuleCode      string    `grove:"module_code,notnull"`
	FieldCode       string    `grove:"field_code,notnull"`
	RoleCode        string    `grove:"role_code,notnull"`
	OldLevel        string    `grove:"old_level"`
	NewLevel        string    `grove:"new_level,notnull"`
	Actor           string    `grove:"actor"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
}

func changeToModel(e *changelog.Entry) *changeModel {
	return &changeModel{
		ID:         e.ID.String(),
		BatchID:    e.BatchID.String(),
		ModuleCode: e.ModuleCode,
		FieldCode:  e.FieldCode,
		RoleCode:   e.RoleCode,
		OldLevel:   e.OldCode(),
		NewLevel:   e.NewLevel.String(),
		Actor:      e.Actor,
		CreatedAt:  e.CreatedAt,
	}
}

func changeFromModel(m *changeModel) *changelog.Entry {
	cid, _ := id.ParseChangeID(m.ID)     //nolint:errcheck // stored IDs are always valid
	bid, _ := id.ParseBatchID(m.BatchID) //nolint:errcheck // stored IDs are always valid
	e := &changelog.Entry{
		ID:         cid,
		BatchID:    bid,
		ModuleCode: m.ModuleCode,
		FieldCode:  m.FieldCode,
		RoleCode:   m.RoleCode,
		Actor:      m.Actor,
		CreatedAt:  m.CreatedAt,
	}
	// An empty old level means the triple had no entry before.
	if m.OldLevel != "" {
		e.OldLevel, _ = permission.ParseLevel(m.OldLevel) //nolint:errcheck // constrained column
	}
	e.NewLevel, _ = permission.ParseLevel(m.NewLevel) //nolint:errcheck // constrained column
	return e
}
