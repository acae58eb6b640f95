package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	infraconfig "github.com/felixgeelhaar/decision-ledger/infrastructure/config"
	"github.com/felixgeelhaar/decision-ledger/interfaces/api"
)

// newValidateCmd creates the validate command.
func (a *App) newValidateCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Validate a ledger configuration file for correctness.

This command checks:
  - File format (YAML or JSON)
  - Storage backend settings
  - Approval rules (known categories and roles)
  - Actor directory entries and notification endpoints
  - Environment variable references (in strict mode)

Examples:
  ledger validate -c ledger.yaml
  ledger validate -c ledger.yaml --strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.validateConfig(strict)
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on missing environment variables")
	return cmd
}

func (a *App) validateConfig(strict bool) error {
	if a.configPath == "" {
		return fmt.Errorf("configuration file path is required (-c flag)")
	}

	loader := api.NewConfigLoader(infraconfig.WithValidation(true), infraconfig.WithStrictEnv(strict))
	config, err := loader.LoadFile(a.configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	built, err := infraconfig.NewBuilder(config).Build()
	if err != nil {
		return fmt.Errorf("configuration build failed: %w", err)
	}

	fmt.Fprintf(a.stdout, "✓ Configuration is valid\n")
	fmt.Fprintf(a.stdout, "  Name: %s\n", config.Name)
	fmt.Fprintf(a.stdout, "\nConfiguration summary:\n")
	fmt.Fprintf(a.stdout, "  Storage: %s\n", config.Storage.Backend)
	fmt.Fprintf(a.stdout, "  Audit failure policy: %s\n", config.Audit.FailurePolicy)
	fmt.Fprintf(a.stdout, "  Default expiration: %s\n", built.DefaultExpiration)
	fmt.Fprintf(a.stdout, "  Actors: %d\n", len(built.Actors))
	if config.Directory.Redis.Enabled {
		fmt.Fprintf(a.stdout, "  Actor cache: redis at %s\n", config.Directory.Redis.Addr)
	}
	if config.Notification.Enabled {
		fmt.Fprintf(a.stdout, "  Notifications: enabled (%d endpoints)\n", len(built.Endpoints))
	}
	return nil
}
