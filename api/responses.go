package api

import (
	"time"

	"github.com/xraph/fieldgate"
	"github.com/xraph/fieldgate/changelog"
)

// MyPermissionsResponse is the caller's view of one module.
type MyPermissionsResponse struct {
	Module      string                `json:"module" description:"Module code"`
	Role        string                `json:"role" description:"Role derived from the session"`
	Permissions fieldgate.Permissions `json:"permissions" description:"Field code to level"`
}

// ModuleMatrixResponse is the dense matrix of one module.
type ModuleMatrixResponse struct {
	Module      string              `json:"module" description:"Module code"`
	Permissions fieldgate.LevelGrid `json:"permissions" description:"Field code to role code to level"`
}

// PruneResponse reports how many orphaned entries were deleted.
type PruneResponse struct {
	Pruned int `json:"pruned" description:"Number of entries deleted"`
}

// ChangeResponse is one change log row. OldLevel is empty when the triple
// had no stored entry before.
type ChangeResponse struct {
	ID        string    `json:"id" description:"Change ID"`
	BatchID   string    `json:"batch_id" description:"Save batch ID"`
	Module    string    `json:"module" description:"Module code"`
	Field     string    `json:"field" description:"Field code"`
	Role      string    `json:"role" description:"Role code"`
	OldLevel  string    `json:"old_level" description:"Previous level, empty when unset"`
	NewLevel  string    `json:"new_level" description:"New level"`
	Actor     string    `json:"actor,omitempty" description:"Who saved the change"`
	CreatedAt time.Time `json:"created_at" description:"When the change was saved"`
}

func changeResponse(e *changelog.Entry) ChangeResponse {
	return ChangeResponse{
		ID:        e.ID.String(),
		BatchID:   e.BatchID.String(),
		Module:    e.ModuleCode,
		Field:     e.FieldCode,
		Role:      e.RoleCode,
		OldLevel:  e.OldCode(),
		NewLevel:  e.NewLevel.String(),
		Actor:     e.Actor,
		CreatedAt: e.CreatedAt,
	}
}

// ListResponse wraps a list of items with pagination metadata.
type ListResponse[T any] struct {
	Items  []T   `json:"items" description:"List of items"`
	Total  int64 `json:"total" description:"Total count"`
	Limit  int   `json:"limit" description:"Page size"`
	Offset int   `json:"offset" description:"Page offset"`
}
