package api

import (
	domainconfig "github.com/felixgeelhaar/decision-ledger/domain/config"
	infraconfig "github.com/felixgeelhaar/decision-ledger/infrastructure/config"
)

// Re-export configuration types.
type (
	// LedgerConfig represents the complete service configuration.
	LedgerConfig = domainconfig.LedgerConfig
	// ConfigDuration is a time.Duration that supports JSON/YAML string representation.
	ConfigDuration = domainconfig.Duration
	// ValidationErrors is a collection of validation errors.
	ValidationErrors = domainconfig.ValidationErrors
	// ConfigLoader loads configuration from files.
	ConfigLoader = infraconfig.Loader
	// ConfigLoaderOption configures the loader.
	ConfigLoaderOption = infraconfig.LoaderOption
)

// Configuration errors.
var (
	// ErrConfigNotFound indicates the configuration file was not found.
	ErrConfigNotFound = domainconfig.ErrConfigNotFound
	// ErrValidationFailed indicates configuration validation failed.
	ErrValidationFailed = domainconfig.ErrValidationFailed
	// ErrMissingEnvVar indicates a required environment variable is not set.
	ErrMissingEnvVar = domainconfig.ErrMissingEnvVar
)

// NewConfigLoader creates a new configuration loader with default settings.
func NewConfigLoader(opts ...ConfigLoaderOption) *ConfigLoader {
	return infraconfig.NewLoaderWithOptions(opts...)
}

// LoadConfig reads a YAML or JSON file. An empty path yields DefaultConfig.
func LoadConfig(path string) (*LedgerConfig, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	return infraconfig.NewLoader().LoadFile(path)
}

// DefaultConfig returns a configuration that runs fully in memory.
func DefaultConfig() *LedgerConfig {
	return domainconfig.Default()
}

// ExpandEnv expands environment variables in a string.
// Supported patterns: ${VAR}, ${VAR:-default}, ${VAR:?error}
func ExpandEnv(input string) string {
	return infraconfig.ExpandEnv(input)
}
