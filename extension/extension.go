// Package extension provides a Forge extension entry point for fieldgate.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/fieldgate"
	"github.com/xraph/fieldgate/api"
	"github.com/xraph/fieldgate/cache"
	"github.com/xraph/fieldgate/plugin"
	"github.com/xraph/fieldgate/seed"
	"github.com/xraph/fieldgate/store"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "fieldgate"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Field-level permission matrix and enforcement"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts fieldgate as a Forge extension.
type Extension struct {
	config     Config
	eng        *fieldgate.Engine
	apiHandler *api.API
	logger     *slog.Logger
	engineOpts []fieldgate.Option
	plugins    []plugin.Plugin
}

// New creates a fieldgate Forge extension with the given options.
func New(opts ...ExtOption) *Extension {
	e := &Extension{config: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the extension name.
func (e *Extension) Name() string { return ExtensionName }

// Description returns the extension description.
func (e *Extension) Description() string { return ExtensionDescription }

// Version returns the extension version.
func (e *Extension) Version() string { return ExtensionVersion }

// Dependencies returns the list of extension names this extension depends on.
func (e *Extension) Dependencies() []string { return []string{} }

// Engine returns the underlying engine.
func (e *Extension) Engine() *fieldgate.Engine { return e.eng }

// API returns the API handler.
func (e *Extension) API() *api.API { return e.apiHandler }

// Register implements [forge.Extension]. It initializes the engine,
// registers it in the DI container, and optionally registers HTTP routes.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.init(fapp); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*fieldgate.Engine, error) {
		return e.eng, nil
	}); err != nil {
		return fmt.Errorf("fieldgate: register engine in container: %w", err)
	}

	return nil
}

func (e *Extension) init(fapp forge.App) error {
	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := fieldgate.DefaultConfig()
	cfg.StrictSave = e.config.StrictSave

	opts := make([]fieldgate.Option, 0, len(e.engineOpts)+len(e.plugins)+4)
	opts = append(opts, fieldgate.WithLogger(logger), fieldgate.WithConfig(cfg))

	// Try to resolve store from DI container, fall back to option-provided store.
	if s, err := forge.Inject[store.Store](fapp.Container()); err == nil {
		opts = append(opts, fieldgate.WithStore(s))
	}

	if e.config.CacheTTL > 0 {
		opts = append(opts, fieldgate.WithCache(cache.NewMemory(cache.WithTTL(e.config.CacheTTL))))
	}

	// Append user-provided options (may override store and cache).
	opts = append(opts, e.engineOpts...)

	for _, x := range e.plugins {
		opts = append(opts, fieldgate.WithPlugin(x))
	}

	eng, err := fieldgate.NewEngine(opts...)
	if err != nil {
		return fmt.Errorf("fieldgate: create engine: %w", err)
	}
	e.eng = eng

	e.apiHandler = api.New(eng, fapp.Router(), e.apiOptions(logger)...)

	if !e.config.DisableRoutes {
		if err := e.apiHandler.RegisterRoutes(fapp.Router()); err != nil {
			return fmt.Errorf("fieldgate: register routes: %w", err)
		}
	}

	return nil
}

// Start runs migrations and the seed if enabled, then starts the engine.
func (e *Extension) Start(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("fieldgate: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.eng.Store().Migrate(ctx); err != nil {
			return fmt.Errorf("fieldgate: migration failed: %w", err)
		}
	}

	if e.config.Seed {
		if _, err := seed.ApplyDefault(ctx, e.eng); err != nil {
			return fmt.Errorf("fieldgate: seed failed: %w", err)
		}
	}

	return e.eng.Start(ctx)
}

// Stop gracefully shuts down the engine.
func (e *Extension) Stop(ctx context.Context) error {
	if e.eng == nil {
		return nil
	}
	return e.eng.Stop(ctx)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.eng == nil {
		return errors.New("fieldgate: extension not initialized")
	}
	return e.eng.Store().Ping(ctx)
}

// Handler returns the HTTP handler for all API routes.
func (e *Extension) Handler() http.Handler {
	if e.apiHandler == nil {
		return http.NotFoundHandler()
	}
	return e.apiHandler.Handler()
}

// RegisterRoutes registers all fieldgate API routes into a Forge router.
func (e *Extension) RegisterRoutes(router forge.Router) error {
	if e.apiHandler != nil {
		return e.apiHandler.RegisterRoutes(router)
	}
	return nil
}

// apiOptions restricts the admin routes to the configured admin roles. An
// empty list leaves them to any caller with a role, which is logged.
func (e *Extension) apiOptions(logger *slog.Logger) []api.Option {
	if len(e.config.AdminRoles) == 0 {
		logger.Warn("fieldgate: no admin roles configured; matrix, catalog and registry writes are open to every role")
		return nil
	}
	return []api.Option{api.WithAdminRoles(e.config.AdminRoles...)}
}
