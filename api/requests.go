package api

// ──────────────────────────────────────────────────
// Matrix requests
// ──────────────────────────────────────────────────

// EditRequest is one cell change of the matrix.
type EditRequest struct {
	Module string `json:"module" description:"Module code"`
	Field  string `json:"field" description:"Field code"`
	Role   string `json:"role" description:"Role code"`
	Level  string `json:"level" description:"Permission level (N, R, W or A)"`
}

// SaveMatrixRequest is the body for saving matrix edits. Either form may be
// used; both may be combined.
type SaveMatrixRequest struct {
	Edits       []EditRequest                           `json:"edits,omitempty" description:"Cell edits"`
	Permissions map[string]map[string]map[string]string `json:"permissions,omitempty" description:"Nested module -> field -> role -> level edits"`
}

// ModuleRequest is the path parameter naming a module.
type ModuleRequest struct {
	Module string `path:"module" description:"Module code"`
}

// ──────────────────────────────────────────────────
// Field requests
// ──────────────────────────────────────────────────

// CreateFieldRequest is the body for adding a field to the catalog.
type CreateFieldRequest struct {
	Module     string         `json:"module" description:"Governed module code"`
	Code       string         `json:"code" description:"Field code, unique within the module"`
	Label      string         `json:"label" description:"Display label"`
	GroupCode  string         `json:"group_code,omitempty" description:"Display group code"`
	GroupLabel string         `json:"group_label,omitempty" description:"Display group label"`
	OrderIndex int            `json:"order_index,omitempty" description:"Order within the group"`
	Metadata   map[string]any `json:"metadata,omitempty" description:"Custom metadata"`
}

// UpdateFieldRequest is the body for updating a catalog field. The module
// and code are immutable because entries refer to them.
type UpdateFieldRequest struct {
	Label      string         `json:"label,omitempty" description:"Display label"`
	GroupCode  string         `json:"group_code,omitempty" description:"Display group code"`
	GroupLabel string         `json:"group_label,omitempty" description:"Display group label"`
	OrderIndex *int           `json:"order_index,omitempty" description:"Order within the group"`
	Metadata   map[string]any `json:"metadata,omitempty" description:"Custom metadata"`
}

// GetFieldRequest is the path parameter for a field.
type GetFieldRequest struct {
	FieldID string `path:"fieldId" description:"Field ID"`
}

// ListFieldsRequest holds query parameters for listing fields.
type ListFieldsRequest struct {
	Module string `query:"module" description:"Filter by module"`
	Group  string `query:"group" description:"Filter by group code"`
	Search string `query:"search" description:"Search label or code"`
	Limit  int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Role requests
// ──────────────────────────────────────────────────

// CreateRoleRequest is the body for creating a role.
type CreateRoleRequest struct {
	Code        string         `json:"code" description:"Role code referenced by permission entries"`
	Name        string         `json:"name" description:"Role name"`
	Description string         `json:"description,omitempty" description:"Human-readable description"`
	Active      *bool          `json:"active,omitempty" description:"Active flag (default: true)"`
	Metadata    map[string]any `json:"metadata,omitempty" description:"Custom metadata"`
}

// UpdateRoleRequest is the body for updating a role. The code is immutable.
type UpdateRoleRequest struct {
	Name        string         `json:"name,omitempty" description:"Role name"`
	Description string         `json:"description,omitempty" description:"Human-readable description"`
	Active      *bool          `json:"active,omitempty" description:"Active flag"`
	Metadata    map[string]any `json:"metadata,omitempty" description:"Custom metadata"`
}

// GetRoleRequest is the path parameter for getting a role.
type GetRoleRequest struct {
	RoleID string `path:"roleId" description:"Role ID"`
}

// ListRolesRequest holds query parameters for listing roles.
type ListRolesRequest struct {
	Active string `query:"active" description:"Filter by active flag (true/false)"`
	Search string `query:"search" description:"Search by name or code"`
	Limit  int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Change log requests
// ──────────────────────────────────────────────────

// ListChangesRequest holds query parameters for the change log.
type ListChangesRequest struct {
	Module  string `query:"module" description:"Filter by module"`
	Field   string `query:"field" description:"Filter by field"`
	Role    string `query:"role" description:"Filter by role"`
	Actor   string `query:"actor" description:"Filter by actor"`
	BatchID string `query:"batch_id" description:"Filter by save batch"`
	After   string `query:"after" description:"Only changes at or after (RFC3339)"`
	Before  string `query:"before" description:"Only changes at or before (RFC3339)"`
	Limit   int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset  int    `query:"offset" description:"Results to skip"`
}
