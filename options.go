package fieldgate

import (
	"log/slog"

	"github.com/xraph/fieldgate/plugin"
	"github.com/xraph/fieldgate/store"
)

// Option is a functional option for the Engine.
type Option func(*Engine)

// WithStore sets the composite store.
func WithStore(s store.Store) Option { return func(e *Engine) { e.store = s } }

// WithCache sets the module entry cache. Without one every resolution reads
// the store.
func WithCache(c Cache) Option { return func(e *Engine) { e.cache = c } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithConfig sets the engine configuration.
func WithConfig(c Config) Option { return func(e *Engine) { e.config = c } }

// WithModules replaces the governed modules.
func WithModules(modules ...Module) Option {
	return func(e *Engine) { e.config.Modules = modules }
}

// WithRoleResolver sets how an authenticated user ID maps to a role code.
func WithRoleResolver(r RoleResolver) Option { return func(e *Engine) { e.roles = r } }

// WithPlugin registers a plugin with the engine.
func WithPlugin(x plugin.Plugin) Option {
	return func(e *Engine) {
		if e.plugins == nil {
			e.plugins = plugin.NewRegistry(e.logger)
		}
		e.plugins.Register(x)
	}
}
