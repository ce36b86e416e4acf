// Package permission defines permission levels, the stored permission Entry
// and the store interface that persists entries.
//
// An entry records the level one role holds on one field of one module.
// Triples without an entry resolve to DefaultLevel.
package permission

import (
	"fmt"
	"time"

	"github.com/xraph/fieldgate/id"
)

// Entry is the persisted level for a (module, field, role) triple.
// The triple is unique; writing it again replaces the level.
type Entry struct {
	ID         id.EntryID `json:"id" db:"id"`
	ModuleCode string     `json:"module" db:"module_code"`
	FieldCode  string     `json:"field" db:"field_code"`
	RoleCode   string     `json:"role" db:"role_code"`
	Level      Level      `json:"level" db:"level"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// Key identifies an entry by its triple.
type Key struct {
	ModuleCode string `json:"module"`
	FieldCode  string `json:"field"`
	RoleCode   string `json:"role"`
}

// Key returns the entry's triple.
func (e *Entry) Key() Key {
	return Key{ModuleCode: e.ModuleCode, FieldCode: e.FieldCode, RoleCode: e.RoleCode}
}

// Validate rejects an entry whose level is not one of N, R, W, A. Stores
// call it before writing so an unknown level never reaches resolution.
func (e *Entry) Validate() error {
	if !e.Level.Valid() {
		return fmt.Errorf("%w: %d on %s.%s for %s", ErrInvalidLevel, uint8(e.Level), e.ModuleCode, e.FieldCode, e.RoleCode)
	}
	return nil
}

// ListFilter contains filters for listing entries. Empty fields match all.
type ListFilter struct {
	ModuleCode string `json:"module,omitempty"`
	FieldCode  string `json:"field,omitempty"`
	RoleCode   string `json:"role,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}
