// Package changelog defines the audit record written for every permission
// level changed through a matrix save.
package changelog

import (
	"time"

	"github.com/xraph/fieldgate/id"
	"github.com/xraph/fieldgate/permission"
)

// Entry records one level change. OldLevel is the zero Level when the
// triple had no stored entry before the save.
type Entry struct {
	ID         id.ChangeID      `json:"id" db:"id"`
	BatchID    id.BatchID       `json:"batch_id" db:"batch_id"`
	ModuleCode string           `json:"module" db:"module_code"`
	FieldCode  string           `json:"field" db:"field_code"`
	RoleCode   string           `json:"role" db:"role_code"`
	OldLevel   permission.Level `json:"-" db:"old_level"`
	NewLevel   permission.Level `json:"new_level" db:"new_level"`
	Actor      string           `json:"actor,omitempty" db:"actor"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
}

// OldCode returns the wire code of the previous level, or "" when the triple
// was previously unset.
func (e *Entry) OldCode() string { return e.OldLevel.String() }

// QueryFilter contains filters for querying the change log.
type QueryFilter struct {
	ModuleCode string     `json:"module,omitempty"`
	FieldCode  string     `json:"field,omitempty"`
	RoleCode   string     `json:"role,omitempty"`
	Actor      string     `json:"actor,omitempty"`
	BatchID    string     `json:"batch_id,omitempty"`
	After      *time.Time `json:"after,omitempty"`
	Before     *time.Time `json:"before,omitempty"`
	Limit      int        `json:"limit,omitempty"`
	Offset     int        `json:"offset,omitempty"`
}
