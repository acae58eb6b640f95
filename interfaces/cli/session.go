package cli

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/decision-ledger/interfaces/api"
)

func (a *App) newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage sessions decisions are filed under",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "register <session-id>",
		Short: "Register a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSystem(cmd.Context(), func(sys *api.System) error {
				if err := sys.RegisterSession(cmd.Context(), args[0]); err != nil {
					return err
				}
				return a.printJSON(map[string]string{"session_id": args[0]})
			})
		},
	})
	return cmd
}
