package config

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/decision-ledger/domain/actor"
	"github.com/felixgeelhaar/decision-ledger/domain/approval"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	// Path is the JSON path to the invalid field.
	Path string
	// Message describes the validation error.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates ledger configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *LedgerConfig) ValidationErrors {
	v.errors = nil

	v.validateStorage(config)
	v.validateAudit(config)
	v.validateApproval(config)
	v.validateDirectory(config)
	v.validateNotification(config)
	v.validateLogging(config)
	v.validateTelemetry(config)

	return v.errors
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) validateStorage(config *LedgerConfig) {
	switch config.Storage.Backend {
	case BackendMemory:
	case BackendSQLite:
		if config.Storage.SQLite.DSN == "" {
			v.addError("storage.sqlite.dsn", "dsn is required for the sqlite backend")
		}
	case BackendPostgres:
		if config.Storage.Postgres.DSN == "" {
			v.addError("storage.postgres.dsn", "dsn is required for the postgres backend")
		}
		if config.Storage.Postgres.MaxConns < 0 {
			v.addError("storage.postgres.max_conns", "max_conns must be non-negative")
		}
	default:
		v.addError("storage.backend", fmt.Sprintf("invalid backend: %q", config.Storage.Backend))
	}
}

func (v *Validator) validateAudit(config *LedgerConfig) {
	switch config.Audit.FailurePolicy {
	case "", FailureRollback, FailureLogAndContinue:
	default:
		v.addError("audit.failure_policy", fmt.Sprintf("invalid failure policy: %s", config.Audit.FailurePolicy))
	}
}

func (v *Validator) validateApproval(config *LedgerConfig) {
	if config.Approval.DefaultExpirationHours < 0 {
		v.addError("approval.default_expiration_hours", "default_expiration_hours must be non-negative")
	}
	if config.Approval.ExpiryWarningWindow < 0 {
		v.addError("approval.expiry_warning_window", "expiry_warning_window must be non-negative")
	}
	for category, roles := range config.Approval.Rules {
		path := fmt.Sprintf("approval.rules.%s", category)
		if !approval.Category(category).Valid() {
			v.addError(path, fmt.Sprintf("unknown category: %s", category))
		}
		if len(roles) == 0 {
			v.addError(path, "at least one role is required")
		}
		for _, role := range roles {
			if !actor.Role(role).Valid() {
				v.addError(path, fmt.Sprintf("unknown role: %s", role))
			}
		}
	}
}

func (v *Validator) validateDirectory(config *LedgerConfig) {
	seen := make(map[string]bool)
	for i, a := range config.Directory.Actors {
		path := fmt.Sprintf("directory.actors[%d]", i)
		if a.ID == "" {
			v.addError(path+".id", "actor id is required")
		} else if seen[a.ID] {
			v.addError(path+".id", fmt.Sprintf("duplicate actor id: %s", a.ID))
		}
		seen[a.ID] = true
		if !actor.Role(a.Role).Valid() {
			v.addError(path+".role", fmt.Sprintf("invalid role: %s", a.Role))
		}
	}

	if config.Directory.Redis.Enabled && config.Directory.Redis.Addr == "" {
		v.addError("directory.redis.addr", "addr is required when the cache is enabled")
	}
}

func (v *Validator) validateNotification(config *LedgerConfig) {
	if !config.Notification.Enabled {
		return
	}

	for i, ep := range config.Notification.Endpoints {
		path := fmt.Sprintf("notification.endpoints[%d]", i)
		if ep.URL == "" {
			v.addError(path+".url", "URL is required")
		}
	}

	if config.Notification.Retry.MaxAttempts < 0 {
		v.addError("notification.retry.max_attempts", "max_attempts must be non-negative")
	}
	if config.Notification.Retry.MaxAttempts > 0 && config.Notification.Retry.Multiplier < 1 {
		v.addError("notification.retry.multiplier", "multiplier must be >= 1")
	}
}

func (v *Validator) validateLogging(config *LedgerConfig) {
	switch config.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		v.addError("logging.level", fmt.Sprintf("invalid level: %s", config.Logging.Level))
	}
	switch config.Logging.Format {
	case "", "json", "console":
	default:
		v.addError("logging.format", fmt.Sprintf("invalid format: %s", config.Logging.Format))
	}
}

func (v *Validator) validateTelemetry(config *LedgerConfig) {
	if !config.Telemetry.Enabled {
		return
	}
	switch config.Telemetry.Exporter {
	case "", "stdout", "noop":
	case "otlp":
		if config.Telemetry.Endpoint == "" {
			v.addError("telemetry.endpoint", "endpoint is required for the otlp exporter")
		}
	default:
		v.addError("telemetry.exporter", fmt.Sprintf("invalid exporter: %s", config.Telemetry.Exporter))
	}
}
