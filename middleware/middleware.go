// Package middleware provides forge middleware that applies field levels
// to routes: elevated actions and the admin-only matrix screens.
package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/fieldgate"
	"github.com/xraph/fieldgate/enforce"
)

// RequireLevel allows the request when the caller's role holds at least
// minLevel on a field of a module. With fieldgate.LevelAdmin it guards
// elevated actions such as approving a cost voucher.
func RequireLevel(eng *fieldgate.Engine, moduleCode, fieldCode string, minLevel fieldgate.Level) forge.Middleware {
	adapter := enforce.NewAdapter(eng)
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			if err := adapter.RequireLevel(ctx.Context(), moduleCode, fieldCode, minLevel); err != nil {
				return denyResponse(ctx, err)
			}
			return next(ctx)
		}
	}
}

// RequireRole allows the request only when the caller's role is one of
// roleCodes.
func RequireRole(eng *fieldgate.Engine, roleCodes ...string) forge.Middleware {
	allowed := make(map[string]struct{}, len(roleCodes))
	for _, r := range roleCodes {
		allowed[r] = struct{}{}
	}
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			roleCode, err := eng.CurrentRole(ctx.Context())
			if err != nil {
				return denyResponse(ctx, err)
			}
			if _, ok := allowed[roleCode]; !ok {
				return denyResponse(ctx, fieldgate.ErrAccessDenied)
			}
			return next(ctx)
		}
	}
}

// denyResponse writes 401 when the session carries no role and 403 otherwise.
func denyResponse(ctx forge.Context, err error) error {
	status := http.StatusForbidden
	msg := "access denied"
	if errors.Is(err, fieldgate.ErrNoRole) {
		status = http.StatusUnauthorized
		msg = "no role for session"
	}
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(status)
	return json.NewEncoder(ctx.Response()).Encode(map[string]string{"error": msg})
}
