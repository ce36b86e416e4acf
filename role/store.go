package role

import (
	"context"

	"github.com/xraph/fieldgate/id"
)

// Store defines persistence operations for roles.
type Store interface {
	// CreateRole persists a new role. A duplicate code returns an error
	// wrapping store.ErrDuplicate.
	CreateRole(ctx context.Context, r *Role) error

	// GetRole retrieves a role by ID.
	GetRole(ctx context.Context, roleID id.RoleID) (*Role, error)

	// GetRoleByCode retrieves a role by code.
	GetRoleByCode(ctx context.Context, code string) (*Role, error)

	// UpdateRole persists changes to a role.
	UpdateRole(ctx context.Context, r *Role) error

	// DeleteRole removes a role by ID.
	DeleteRole(ctx context.Context, roleID id.RoleID) error

	// ListRoles returns roles matching the filter in insertion order.
	ListRoles(ctx context.Context, filter *ListFilter) ([]*Role, error)

	// CountRoles returns the number of roles matching the filter.
	CountRoles(ctx context.Context, filter *ListFilter) (int64, error)
}
