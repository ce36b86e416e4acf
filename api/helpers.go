package api

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/xraph/forge"

	"github.com/xraph/fieldgate"
	"github.com/xraph/fieldgate/store"
)

// mapError maps domain errors to Forge HTTP errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return forge.NotFound(err.Error())
	}
	if errors.Is(err, store.ErrDuplicate) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, fieldgate.ErrInvalidLevel) || errors.Is(err, fieldgate.ErrInvalidEdit) ||
		errors.Is(err, fieldgate.ErrBatchTooLarge) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, fieldgate.ErrUnknownModule) || errors.Is(err, fieldgate.ErrUnknownField) ||
		errors.Is(err, fieldgate.ErrUnknownRole) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, fieldgate.ErrNoRole) {
		return forge.Unauthorized(err.Error())
	}
	if errors.Is(err, fieldgate.ErrAccessDenied) {
		return forge.Forbidden(err.Error())
	}
	return err
}

// requireAdmin checks the session role against the configured admin roles.
// A caller without a role is always rejected; without admin roles any role
// is accepted.
func (a *API) requireAdmin(ctx context.Context) error {
	roleCode, err := a.eng.CurrentRole(ctx)
	if err != nil {
		return mapError(err)
	}
	if a.adminRoles == nil {
		return nil
	}
	if _, ok := a.adminRoles[roleCode]; !ok {
		return forge.Forbidden(fmt.Sprintf("role %q may not administer permissions", roleCode))
	}
	return nil
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

// editsFromRequest turns a save request into typed edits. The nested form is
// flattened in sorted key order and comes before the explicit edits, so an
// explicit edit of the same triple wins. Any unparsable level fails the
// whole request.
func editsFromRequest(req *SaveMatrixRequest) ([]fieldgate.Edit, error) {
	var edits []fieldgate.Edit
	for _, moduleCode := range sortedKeys(req.Permissions) {
		fields := req.Permissions[moduleCode]
		for _, fieldCode := range sortedKeys(fields) {
			roles := fields[fieldCode]
			for _, roleCode := range sortedKeys(roles) {
				l, err := fieldgate.ParseLevel(roles[roleCode])
				if err != nil {
					return nil, fmt.Errorf("%s.%s/%s: %w", moduleCode, fieldCode, roleCode, err)
				}
				edits = append(edits, fieldgate.Edit{Module: moduleCode, Field: fieldCode, Role: roleCode, Level: l})
			}
		}
	}
	for i, e := range req.Edits {
		l, err := fieldgate.ParseLevel(e.Level)
		if err != nil {
			return nil, fmt.Errorf("edit %d: %w", i, err)
		}
		edits = append(edits, fieldgate.Edit{Module: e.Module, Field: e.Field, Role: e.Role, Level: l})
	}
	return edits, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
