package extension

import (
	"log/slog"

	"github.com/xraph/fieldgate"
	"github.com/xraph/fieldgate/plugin"
	"github.com/xraph/fieldgate/store"
)

// ExtOption configures the fieldgate Forge extension.
type ExtOption func(*Extension)

// WithStore sets the persistence backend.
func WithStore(s store.Store) ExtOption {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, fieldgate.WithStore(s))
	}
}

// WithConfig sets the extension configuration.
func WithConfig(cfg Config) ExtOption {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithEngineOptions adds engine-level options.
func WithEngineOptions(opts ...fieldgate.Option) ExtOption {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opts...)
	}
}

// WithRoleResolver sets how the Forge user ID maps to a role code.
func WithRoleResolver(r fieldgate.RoleResolver) ExtOption {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, fieldgate.WithRoleResolver(r))
	}
}

// WithPlugin registers a lifecycle hook plugin.
func WithPlugin(x plugin.Plugin) ExtOption {
	return func(e *Extension) {
		e.plugins = append(e.plugins, x)
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ExtOption {
	return func(e *Extension) {
		e.logger = l
	}
}

// WithDisableRoutes disables the registration of HTTP routes.
func WithDisableRoutes() ExtOption {
	return func(e *Extension) {
		e.config.DisableRoutes = true
	}
}

// WithDisableMigrate disables auto-migration on start.
func WithDisableMigrate() ExtOption {
	return func(e *Extension) {
		e.config.DisableMigrate = true
	}
}

// WithSeed applies the default catalog on start.
func WithSeed() ExtOption {
	return func(e *Extension) {
		e.config.Seed = true
	}
}
