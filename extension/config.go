package extension

import "time"

// Config holds the fieldgate extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.fieldgate" or "fieldgate" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Seed applies the embedded default catalog on start. Existing fields,
	// roles and stored levels are left untouched.
	Seed bool `json:"seed" mapstructure:"seed" yaml:"seed"`

	// StrictSave rejects matrix edits naming unknown modules, fields or roles.
	StrictSave bool `json:"strict_save" mapstructure:"strict_save" yaml:"strict_save"`

	// CacheTTL enables the in-process entry cache when positive.
	CacheTTL time.Duration `json:"cache_ttl" mapstructure:"cache_ttl" yaml:"cache_ttl"`

	// AdminRoles lists the role codes allowed to use the admin routes
	// (default: ["admin"]).
	AdminRoles []string `json:"admin_roles" mapstructure:"admin_roles" yaml:"admin_roles"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		AdminRoles: []string{"admin"},
	}
}
