// Package role defines the Role entity and its store interface.
package role

import (
	"time"

	"github.com/xraph/fieldgate/id"
)

// Role is a named class of user. Code is unique and is the key permission
// entries refer to. Inactive roles keep their stored entries but are left
// out of resolved matrices.
type Role struct {
	ID          id.RoleID      `json:"id" db:"id"`
	Code        string         `json:"code" db:"code"`
	Name        string         `json:"name" db:"name"`
	Description string         `json:"description,omitempty" db:"description"`
	Active      bool           `json:"active" db:"active"`
	Metadata    map[string]any `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// ListFilter contains filters for listing roles.
type ListFilter struct {
	Active *bool  `json:"active,omitempty"`
	Search string `json:"search,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}
