package fieldgate

// Config holds configuration for the fieldgate engine.
type Config struct {
	// Modules is the closed set of governed modules, in display order.
	// Defaults to DefaultModules().
	Modules []Module `json:"modules,omitempty"`

	// StrictSave rejects matrix edits whose module, field or role is
	// unknown. When false such edits are stored and simply never resolved.
	StrictSave bool `json:"strict_save,omitempty"`

	// MaxBatchSize caps the number of edits in one matrix save.
	// Zero means no limit. Defaults to 10000.
	MaxBatchSize int `json:"max_batch_size,omitempty"`

	// DisableChangeLog turns off the audit trail written by matrix saves.
	DisableChangeLog bool `json:"disable_change_log,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Modules:      DefaultModules(),
		MaxBatchSize: 10000,
	}
}
