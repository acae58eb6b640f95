// Package cli provides the ledger command-line interface.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	decisionledger "github.com/felixgeelhaar/decision-ledger"
	"github.com/felixgeelhaar/decision-ledger/interfaces/api"
)

// Version information set at build time.
var (
	Version   = decisionledger.Version
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// App represents the CLI application.
type App struct {
	root       *cobra.Command
	stdout     io.Writer
	stderr     io.Writer
	configPath string

	// system, when set, is used instead of building one per command.
	system *api.System
}

// New creates a new CLI application.
func New() *App {
	app := &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	app.root = &cobra.Command{
		Use:   "ledger",
		Short: "Append-only decision ledger with two-person approvals",
		Long: `ledger records governance decisions that become immutable once locked
and can only be replaced through an explicit supersession chain. Sensitive
mutations are gated by approval from a second, appropriately privileged actor.

State lives in the configured storage backend. The memory backend only
persists for the lifetime of one process, so use sqlite or postgres with
the one-shot commands and memory with serve-mcp.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	app.root.PersistentFlags().StringVarP(&app.configPath, "config", "c", "", "Path to configuration file")

	app.root.AddCommand(
		app.newVersionCmd(),
		app.newValidateCmd(),
		app.newSessionCmd(),
		app.newDecisionCmd(),
		app.newApprovalCmd(),
		app.newServeMCPCmd(),
	)

	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// WithSystem makes every command use sys. The caller keeps ownership.
func (a *App) WithSystem(sys *api.System) *App {
	a.system = sys
	return a
}

// Execute runs the CLI application.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments (useful for testing).
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

// withSystem runs fn against the injected system or one built from --config.
func (a *App) withSystem(ctx context.Context, fn func(sys *api.System) error) error {
	if a.system != nil {
		return fn(a.system)
	}

	cfg, err := api.LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	sys, err := api.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sys.Close(context.WithoutCancel(ctx)); cerr != nil {
			fmt.Fprintf(a.stderr, "warning: shutdown: %v\n", cerr)
		}
	}()
	return fn(sys)
}

// printJSON writes v as indented JSON.
func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newVersionCmd creates the version command.
func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "decision-ledger version %s\n", Version)
			fmt.Fprintf(a.stdout, "  Git commit: %s\n", GitCommit)
			fmt.Fprintf(a.stdout, "  Build date: %s\n", BuildDate)
		},
	}
}
