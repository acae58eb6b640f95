package api_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	infraconfig "github.com/felixgeelhaar/decision-ledger/infrastructure/config"
	api "github.com/felixgeelhaar/decision-ledger/interfaces/api"
)

func TestNewConfigLoader(t *testing.T) {
	t.Parallel()
	loader := api.NewConfigLoader(
		infraconfig.WithEnvExpansion(true),
		infraconfig.WithStrictEnv(false),
		infraconfig.WithValidation(true),
	)
	if loader == nil {
		t.Fatal("NewConfigLoader() returned nil")
	}
}

func TestLoadConfig_EmptyPathUsesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := api.LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig(\"\") error = %v", err)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Storage.Backend = %q, want memory", cfg.Storage.Backend)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := api.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, api.ErrConfigNotFound) {
		t.Errorf("LoadConfig() error = %v, want ErrConfigNotFound", err)
	}
}

func TestLoadConfig_MergesOntoDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	content := `
name: governance
approval:
  default_expiration_hours: 12
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := api.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Name != "governance" {
		t.Errorf("Name = %q, want governance", cfg.Name)
	}
	if cfg.Approval.DefaultExpirationHours != 12 {
		t.Errorf("DefaultExpirationHours = %d, want 12", cfg.Approval.DefaultExpirationHours)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Storage.Backend = %q, want default memory", cfg.Storage.Backend)
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := api.DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}
	if cfg.Audit.FailurePolicy == "" {
		t.Error("expected a default audit failure policy")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_LEDGER_VAR", "hello")

	tests := []struct {
		input string
		want  string
	}{
		{"${TEST_LEDGER_VAR}", "hello"},
		{"${TEST_LEDGER_UNSET_VAR:-fallback}", "fallback"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := api.ExpandEnv(tt.input); got != tt.want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
