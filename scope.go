package fieldgate

import (
	"context"
	"fmt"

	"github.com/xraph/forge"
)

// RoleResolver maps an authenticated user to a role code. It is the bridge
// to whatever session or token system authenticated the request.
type RoleResolver interface {
	ResolveRole(ctx context.Context, userID string) (string, error)
}

// RoleResolverFunc adapts a function to RoleResolver.
type RoleResolverFunc func(ctx context.Context, userID string) (string, error)

// ResolveRole calls f.
func (f RoleResolverFunc) ResolveRole(ctx context.Context, userID string) (string, error) {
	return f(ctx, userID)
}

// CurrentRole returns the caller's role. An explicit WithRole value wins;
// otherwise the Forge user ID is mapped through the configured RoleResolver.
// Roles named by request payloads are never consulted.
func (e *Engine) CurrentRole(ctx context.Context) (string, error) {
	if r := roleFromContext(ctx); r != "" {
		return r, nil
	}
	userID := forge.UserIDFromContext(ctx)
	if userID == "" || e.roles == nil {
		return "", ErrNoRole
	}
	r, err := e.roles.ResolveRole(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("fieldgate: resolve role for %s: %w", userID, err)
	}
	if r == "" {
		return "", ErrNoRole
	}
	return r, nil
}

// actorOf returns who is acting: the Forge user ID, or the standalone actor.
func actorOf(ctx context.Context) string {
	if userID := forge.UserIDFromContext(ctx); userID != "" {
		return userID
	}
	return actorFromContext(ctx)
}
