package fieldgate

import (
	"errors"

	"github.com/xraph/fieldgate/permission"
)

var (
	// ErrAccessDenied is returned when the caller's level on a field does not
	// allow the requested action.
	ErrAccessDenied = errors.New("fieldgate: access denied")

	// ErrNoRole is returned when no role can be derived from the
	// authenticated session.
	ErrNoRole = errors.New("fieldgate: no role in context")

	// ErrInvalidLevel is returned when a value is not one of N, R, W, A.
	ErrInvalidLevel = permission.ErrInvalidLevel

	// ErrInvalidEdit is returned when a matrix edit is missing its module,
	// field or role.
	ErrInvalidEdit = errors.New("fieldgate: invalid matrix edit")

	// ErrBatchTooLarge is returned when a matrix save exceeds Config.MaxBatchSize.
	ErrBatchTooLarge = errors.New("fieldgate: matrix save batch too large")

	// ErrUnknownModule is returned in strict mode for edits to a module that
	// is not governed.
	ErrUnknownModule = errors.New("fieldgate: unknown module")

	// ErrUnknownField is returned in strict mode for edits to a field that is
	// not in the catalog.
	ErrUnknownField = errors.New("fieldgate: unknown field")

	// ErrUnknownRole is returned in strict mode for edits to a role that is
	// not registered.
	ErrUnknownRole = errors.New("fieldgate: unknown role")
)
