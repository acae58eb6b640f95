// Package config provides domain models for ledger configuration.
package config

import "time"

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Audit failure policies.
const (
	// FailureRollback fails the operation when its audit entry cannot be written.
	FailureRollback = "rollback"
	// FailureLogAndContinue logs and counts audit failures but lets the operation succeed.
	FailureLogAndContinue = "log_and_continue"
)

// LedgerConfig represents the complete service configuration.
type LedgerConfig struct {
	// Name is a human-readable name for this deployment.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Storage selects and configures the persistence backend.
	Storage StorageConfig `json:"storage" yaml:"storage"`
	// Audit configures the audit sinks and failure policy.
	Audit AuditConfig `json:"audit,omitempty" yaml:"audit,omitempty"`
	// Approval configures the approval workflow.
	Approval ApprovalConfig `json:"approval,omitempty" yaml:"approval,omitempty"`
	// Resources configures existence checking.
	Resources ResourcesConfig `json:"resources,omitempty" yaml:"resources,omitempty"`
	// Directory configures actor lookup.
	Directory DirectoryConfig `json:"directory,omitempty" yaml:"directory,omitempty"`
	// Notification configures outbound notifications.
	Notification NotificationConfig `json:"notification,omitempty" yaml:"notification,omitempty"`
	// Resilience bounds calls to external collaborators.
	Resilience ResilienceConfig `json:"resilience,omitempty" yaml:"resilience,omitempty"`
	// Logging configures the process logger.
	Logging LoggingConfig `json:"logging,omitempty" yaml:"logging,omitempty"`
	// Telemetry configures tracing and metrics.
	Telemetry TelemetryConfig `json:"telemetry,omitempty" yaml:"telemetry,omitempty"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is memory, sqlite or postgres.
	Backend string `json:"backend" yaml:"backend"`
	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	// Postgres configures the postgres backend.
	Postgres PostgresConfig `json:"postgres,omitempty" yaml:"postgres,omitempty"`
}

// SQLiteConfig configures the sqlite backend.
type SQLiteConfig struct {
	// DSN is the database file path or URI.
	DSN string `json:"dsn" yaml:"dsn"`
}

// PostgresConfig configures the postgres backend.
type PostgresConfig struct {
	// DSN is the connection string.
	DSN string `json:"dsn" yaml:"dsn"`
	// Schema is the schema holding the ledger tables.
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
	// MaxConns caps the pool size.
	MaxConns int32 `json:"max_conns,omitempty" yaml:"max_conns,omitempty"`
}

// AuditConfig configures audit sinks.
type AuditConfig struct {
	// FailurePolicy is rollback or log_and_continue.
	FailurePolicy string `json:"failure_policy,omitempty" yaml:"failure_policy,omitempty"`
	// File appends JSON lines to this path when set.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
	// BadgerDir stores entries in a badger database when set.
	BadgerDir string `json:"badger_dir,omitempty" yaml:"badger_dir,omitempty"`
}

// ApprovalConfig configures the approval workflow.
type ApprovalConfig struct {
	// DefaultExpirationHours is used when a request gives no expiration.
	DefaultExpirationHours int `json:"default_expiration_hours,omitempty" yaml:"default_expiration_hours,omitempty"`
	// ExpiryWarningWindow is how far ahead the sweep looks for expiring requests.
	ExpiryWarningWindow Duration `json:"expiry_warning_window,omitempty" yaml:"expiry_warning_window,omitempty"`
	// Rules overrides the approver roles per category.
	Rules map[string][]string `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// ResourcesConfig configures existence checking.
type ResourcesConfig struct {
	// Strict rejects resource types that have no registered checker.
	Strict bool `json:"strict,omitempty" yaml:"strict,omitempty"`
}

// DirectoryConfig configures actor lookup.
type DirectoryConfig struct {
	// Actors is the static actor list.
	Actors []ActorConfig `json:"actors,omitempty" yaml:"actors,omitempty"`
	// Redis enables a cache in front of the directory.
	Redis RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// ActorConfig describes one actor.
type ActorConfig struct {
	ID    string `json:"id" yaml:"id"`
	Role  string `json:"role" yaml:"role"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
}

// RedisConfig configures the directory cache.
type RedisConfig struct {
	// Enabled turns the cache on.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Addr is host:port.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
	// Password authenticates the connection.
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	// DB selects the database number.
	DB int `json:"db,omitempty" yaml:"db,omitempty"`
	// KeyPrefix namespaces cache keys.
	KeyPrefix string `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`
	// TTL is how long an actor stays cached.
	TTL Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// NotificationConfig contains notification settings.
type NotificationConfig struct {
	// Enabled enables webhook delivery. Notifications are logged otherwise.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Endpoints is the list of webhook endpoints.
	Endpoints []EndpointConfig `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
	// Retry configures delivery retries.
	Retry RetryConfig `json:"retry,omitempty" yaml:"retry,omitempty"`
}

// EndpointConfig configures a webhook endpoint.
type EndpointConfig struct {
	// Name is a human-readable name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// URL is the webhook URL.
	URL string `json:"url" yaml:"url"`
	// Enabled enables the endpoint.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Secret is the HMAC signing secret.
	Secret string `json:"secret,omitempty" yaml:"secret,omitempty"`
	// Headers are additional HTTP headers.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	// EventFilter limits the notification types sent to this endpoint.
	EventFilter []string `json:"event_filter,omitempty" yaml:"event_filter,omitempty"`
}

// ResilienceConfig bounds external calls.
type ResilienceConfig struct {
	// Timeout caps each call.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// CircuitBreaker configures circuit breaker behavior.
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker,omitempty" yaml:"circuit_breaker,omitempty"`
}

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum delivery attempts.
	MaxAttempts int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
	// InitialDelay is the first retry delay.
	InitialDelay Duration `json:"initial_delay,omitempty" yaml:"initial_delay,omitempty"`
	// Multiplier is the backoff multiplier.
	Multiplier float64 `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
}

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	// Threshold is consecutive failures before opening.
	Threshold int `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	// Timeout is how long the circuit stays open.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// TelemetryConfig configures tracing and metrics.
type TelemetryConfig struct {
	// Enabled turns span export on.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// ServiceName is reported on every span.
	ServiceName string `json:"service_name,omitempty" yaml:"service_name,omitempty"`
	// Exporter is stdout, otlp or noop.
	Exporter string `json:"exporter,omitempty" yaml:"exporter,omitempty"`
	// Endpoint is the OTLP gRPC endpoint.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	// Insecure disables TLS towards the OTLP endpoint.
	Insecure bool `json:"insecure,omitempty" yaml:"insecure,omitempty"`
}

// Default returns a configuration that runs fully in memory.
func Default() *LedgerConfig {
	return &LedgerConfig{
		Name:    "decision-ledger",
		Storage: StorageConfig{Backend: BackendMemory},
		Audit:   AuditConfig{FailurePolicy: FailureRollback},
		Approval: ApprovalConfig{
			DefaultExpirationHours: 72,
			ExpiryWarningWindow:    Duration(24 * time.Hour),
		},
		Directory: DirectoryConfig{
			Redis: RedisConfig{KeyPrefix: "ledger:actor:", TTL: Duration(5 * time.Minute)},
		},
		Notification: NotificationConfig{
			Retry: RetryConfig{MaxAttempts: 3, InitialDelay: Duration(200 * time.Millisecond), Multiplier: 2},
		},
		Resilience: ResilienceConfig{
			Timeout:        Duration(5 * time.Second),
			CircuitBreaker: CircuitBreakerConfig{Threshold: 5, Timeout: Duration(30 * time.Second)},
		},
		Logging:   LoggingConfig{Level: "info", Format: "console"},
		Telemetry: TelemetryConfig{ServiceName: "decision-ledger", Exporter: "stdout"},
	}
}

// Duration is a time.Duration that supports JSON/YAML string representation.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	// Handle null
	if string(b) == "null" {
		return nil
	}

	// Remove quotes
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	// Parse duration
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
