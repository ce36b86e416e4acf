// Package api provides the forge HTTP handlers of the fieldgate admin API:
// the permission matrix, the field catalog, the role registry and the
// change log.
package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/fieldgate"
)

// API wires all fieldgate HTTP handlers together.
type API struct {
	eng        *fieldgate.Engine
	router     forge.Router
	adminRoles map[string]struct{}
}

// Option configures the API.
type Option func(*API)

// WithAdminRoles restricts the matrix, catalog and registry write routes to
// the given role codes. Without it any caller with a role may use them;
// callers without a role are rejected either way.
func WithAdminRoles(roleCodes ...string) Option {
	return func(a *API) {
		a.adminRoles = make(map[string]struct{}, len(roleCodes))
		for _, r := range roleCodes {
			a.adminRoles[r] = struct{}{}
		}
	}
}

// New creates an API from an Engine and a Forge router.
func New(eng *fieldgate.Engine, router forge.Router, opts ...Option) *API {
	a := &API{eng: eng, router: router}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	if a.router == nil {
		a.router = forge.NewRouter()
	}
	if err := a.RegisterRoutes(a.router); err != nil {
		panic("fieldgate: register routes: " + err.Error())
	}
	return a.router.Handler()
}

// RegisterRoutes registers all API routes into the given Forge router.
func (a *API) RegisterRoutes(router forge.Router) error {
	registerers := []func(forge.Router) error{
		a.registerMatrixRoutes,
		a.registerFieldRoutes,
		a.registerRoleRoutes,
		a.registerChangeLogRoutes,
	}
	for _, fn := range registerers {
		if err := fn(router); err != nil {
			return err
		}
	}
	return nil
}
