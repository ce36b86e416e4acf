// Package field defines the catalog Field entity and its store interface.
//
// A field is one attribute of one governed module (for example the payment
// status of a cost voucher). Fields are grouped for display and ordered
// within their group.
package field

import (
	"time"

	"github.com/xraph/fieldgate/id"
)

// Field is a governed attribute of a module's records.
// (ModuleCode, Code) is unique.
type Field struct {
	ID         id.FieldID     `json:"id" db:"id"`
	ModuleCode string         `json:"module" db:"module_code"`
	Code       string         `json:"code" db:"code"`
	Label      string         `json:"label" db:"label"`
	GroupCode  string         `json:"group_code" db:"group_code"`
	GroupLabel string         `json:"group_label" db:"group_label"`
	OrderIndex int            `json:"order_index" db:"order_index"`
	Metadata   map[string]any `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}

// ListFilter contains filters for listing fields.
type ListFilter struct {
	ModuleCode string `json:"module,omitempty"`
	GroupCode  string `json:"group_code,omitempty"`
	Search     string `json:"search,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}
