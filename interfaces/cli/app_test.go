package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	domainconfig "github.com/felixgeelhaar/decision-ledger/domain/config"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/logging"
	infranotify "github.com/felixgeelhaar/decision-ledger/infrastructure/notification"
	"github.com/felixgeelhaar/decision-ledger/interfaces/api"
)

func TestApp_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	app := New().WithOutput(&stdout, &stderr)

	err := app.ExecuteWithArgs(context.Background(), []string{"version"})
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "decision-ledger version") {
		t.Errorf("version output missing 'decision-ledger version', got: %s", output)
	}
}

func TestApp_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	app := New().WithOutput(&stdout, &stderr)

	err := app.ExecuteWithArgs(context.Background(), []string{"--help"})
	if err != nil {
		t.Fatalf("help command failed: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "immutable once locked") {
		t.Errorf("help output missing description, got: %s", output)
	}
	for _, name := range []string{"decision", "approval", "session", "validate", "serve-mcp"} {
		if !strings.Contains(output, name) {
			t.Errorf("help output missing %q command, got: %s", name, output)
		}
	}
}

func TestApp_Validate(t *testing.T) {
	content := `
name: governance
storage:
  backend: memory
directory:
  actors:
    - id: alice
      role: DEVELOPER
    - id: bob
      role: ADMIN
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	var stdout, stderr bytes.Buffer
	app := New().WithOutput(&stdout, &stderr)

	err := app.ExecuteWithArgs(context.Background(), []string{"validate", "-c", configPath})
	if err != nil {
		t.Fatalf("validate command failed: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "valid") {
		t.Errorf("validate output missing 'valid', got: %s", output)
	}
	if !strings.Contains(output, "Actors: 2") {
		t.Errorf("validate output missing actor count, got: %s", output)
	}
}

func TestApp_ValidateInvalid(t *testing.T) {
	content := `
storage:
  backend: mongo
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	var stdout, stderr bytes.Buffer
	app := New().WithOutput(&stdout, &stderr)

	err := app.ExecuteWithArgs(context.Background(), []string{"validate", "-c", configPath})
	if err == nil {
		t.Error("expected validation error for unknown backend")
	}
}

func TestApp_ValidateMissingPath(t *testing.T) {
	var stdout, stderr bytes.Buffer
	app := New().WithOutput(&stdout, &stderr)

	err := app.ExecuteWithArgs(context.Background(), []string{"validate"})
	if err == nil {
		t.Error("expected error without -c")
	}
}

func newTestSystem(t *testing.T) *api.System {
	t.Helper()
	cfg := api.DefaultConfig()
	cfg.Directory.Actors = []domainconfig.ActorConfig{
		{ID: "alice", Role: "DEVELOPER"},
		{ID: "bob", Role: "ADMIN"},
	}
	sys, err := api.New(context.Background(), cfg,
		api.WithLogger(logging.New(logging.DiscardConfig())),
		api.WithNotifier(infranotify.NewMemoryDispatcher()),
	)
	if err != nil {
		t.Fatalf("api.New() error = %v", err)
	}
	t.Cleanup(func() { _ = sys.Close(context.Background()) })
	return sys
}

// run executes one command against sys and decodes its JSON output.
func run(t *testing.T, sys *api.System, out any, args ...string) error {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := New().WithOutput(&stdout, &stderr).WithSystem(sys).ExecuteWithArgs(context.Background(), args)
	if err == nil && out != nil {
		if derr := json.Unmarshal(stdout.Bytes(), out); derr != nil {
			t.Fatalf("decode %v output: %v\n%s", args, derr, stdout.String())
		}
	}
	return err
}

func TestApp_DecisionApprovalFlow(t *testing.T) {
	sys := newTestSystem(t)

	if err := run(t, sys, nil, "session", "register", "s1"); err != nil {
		t.Fatalf("session register: %v", err)
	}

	var d struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := run(t, sys, &d, "decision", "create", "--session", "s1", "--statement", "Adopt Go", "--owner", "alice"); err != nil {
		t.Fatalf("decision create: %v", err)
	}
	if d.ID == "" || d.Status != "DRAFT" {
		t.Fatalf("created decision = %+v, want DRAFT with ID", d)
	}

	var req struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	err := run(t, sys, &req, "approval", "request",
		"--category", "HIGH_RISK_DECISION",
		"--resource-type", "DecisionLog",
		"--resource-id", d.ID,
		"--reason", "wide impact",
		"--requester", "alice")
	if err != nil {
		t.Fatalf("approval request: %v", err)
	}
	if req.Status != "PENDING" {
		t.Fatalf("request status = %s, want PENDING", req.Status)
	}

	if err := run(t, sys, nil, "approval", "respond", req.ID, "--approver", "alice", "--approve"); err == nil {
		t.Fatal("expected self-approval to fail")
	}

	var pending []json.RawMessage
	if err := run(t, sys, &pending, "approval", "pending", "--user", "bob"); err != nil {
		t.Fatalf("approval pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending for bob = %d, want 1", len(pending))
	}

	if err := run(t, sys, &req, "approval", "respond", req.ID, "--approver", "bob", "--approve"); err != nil {
		t.Fatalf("approval respond: %v", err)
	}
	if req.Status != "APPROVED" {
		t.Errorf("request status = %s, want APPROVED", req.Status)
	}

	if err := run(t, sys, &d, "decision", "get", d.ID); err != nil {
		t.Fatalf("decision get: %v", err)
	}
	if d.Status != "LOCKED" {
		t.Errorf("decision status = %s, want LOCKED after approval", d.Status)
	}

	var check struct {
		HasPending  bool `json:"has_pending"`
		HasApproved bool `json:"has_approved"`
	}
	if err := run(t, sys, &check, "approval", "check", "--resource-type", "DecisionLog", "--resource-id", d.ID); err != nil {
		t.Fatalf("approval check: %v", err)
	}
	if !check.HasApproved || check.HasPending {
		t.Errorf("check = %+v, want approved only", check)
	}

	var next struct {
		ID           string `json:"id"`
		SupersedesID string `json:"supersedes_id"`
	}
	if err := run(t, sys, &next, "decision", "supersede", d.ID, "--statement", "Adopt Go 1.25", "--owner", "alice"); err != nil {
		t.Fatalf("decision supersede: %v", err)
	}
	if next.SupersedesID != d.ID {
		t.Errorf("SupersedesID = %s, want %s", next.SupersedesID, d.ID)
	}

	var chain []json.RawMessage
	if err := run(t, sys, &chain, "decision", "chain", next.ID); err != nil {
		t.Fatalf("decision chain: %v", err)
	}
	if len(chain) != 2 {
		t.Errorf("chain length = %d, want 2", len(chain))
	}
}

func TestApp_RespondNeedsOneVerdict(t *testing.T) {
	sys := newTestSystem(t)

	err := run(t, sys, nil, "approval", "respond", "some-id", "--approver", "bob")
	if err == nil || !strings.Contains(err.Error(), "--approve or --reject") {
		t.Errorf("error = %v, want verdict flag error", err)
	}
}

func TestApp_LockedDecisionCannotBeDeleted(t *testing.T) {
	sys := newTestSystem(t)

	if err := run(t, sys, nil, "session", "register", "s1"); err != nil {
		t.Fatalf("session register: %v", err)
	}
	var d struct {
		ID string `json:"id"`
	}
	if err := run(t, sys, &d, "decision", "create", "--session", "s1", "--statement", "x", "--owner", "alice"); err != nil {
		t.Fatalf("decision create: %v", err)
	}
	if err := run(t, sys, nil, "decision", "lock", d.ID, "--actor", "alice"); err != nil {
		t.Fatalf("decision lock: %v", err)
	}
	if err := run(t, sys, nil, "decision", "delete", d.ID, "--actor", "alice"); err == nil {
		t.Error("expected delete of locked decision to fail")
	}
}
