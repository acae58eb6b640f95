package config

import "errors"

// Errors returned while loading and validating ledger configuration.
var (
	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("ledger config not found")

	// ErrInvalidFormat indicates the file could not be decoded.
	ErrInvalidFormat = errors.New("ledger config malformed")

	// ErrUnsupportedFormat indicates an extension other than yaml, yml or json.
	ErrUnsupportedFormat = errors.New("ledger config format unsupported")

	// ErrValidationFailed indicates the decoded configuration is not usable.
	ErrValidationFailed = errors.New("ledger config invalid")

	// ErrMissingEnvVar indicates a ${VAR:?msg} reference had no value.
	ErrMissingEnvVar = errors.New("ledger config references unset environment variable")
)
