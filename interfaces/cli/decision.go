package cli

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/decision-ledger/domain/decision"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/ledger"
	"github.com/felixgeelhaar/decision-ledger/interfaces/api"
)

type contentFlags struct {
	statement   string
	assumptions string
	references  string
	owner       string
}

func (f *contentFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.statement, "statement", "", "Decision statement")
	cmd.Flags().StringVar(&f.assumptions, "assumptions", "", "Assumptions the decision rests on")
	cmd.Flags().StringVar(&f.references, "references", "", "Supporting references")
	cmd.Flags().StringVar(&f.owner, "owner", "", "Owner actor ID")
	_ = cmd.MarkFlagRequired("statement")
	_ = cmd.MarkFlagRequired("owner")
}

func (a *App) newDecisionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "decision",
		Aliases: []string{"d"},
		Short:   "Record, lock and supersede decisions",
	}

	cmd.AddCommand(
		a.newDecisionCreateCmd(),
		a.newDecisionLockCmd(),
		a.newDecisionSupersedeCmd(),
		a.newDecisionGetCmd(),
		a.newDecisionListCmd(),
		a.newDecisionChainCmd(),
		a.newDecisionExportCmd(),
		a.newDecisionDeleteCmd(),
	)
	return cmd
}

func (a *App) newDecisionCreateCmd() *cobra.Command {
	var (
		session string
		content contentFlags
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Record a draft decision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSystem(cmd.Context(), func(sys *api.System) error {
				d, err := sys.Ledger.Create(cmd.Context(), ledger.CreateInput{
					SessionID:   session,
					Statement:   content.statement,
					Assumptions: content.assumptions,
					References:  content.references,
					OwnerID:     content.owner,
				})
				if err != nil {
					return err
				}
				return a.printJSON(d)
			})
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "Session ID")
	_ = cmd.MarkFlagRequired("session")
	content.bind(cmd)
	return cmd
}

func (a *App) newDecisionLockCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "lock <decision-id>",
		Short: "Lock a draft decision, making it immutable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSystem(cmd.Context(), func(sys *api.System) error {
				d, err := sys.Ledger.Lock(cmd.Context(), args[0], actorID)
				if err != nil {
					return err
				}
				return a.printJSON(d)
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "Acting user ID")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func (a *App) newDecisionSupersedeCmd() *cobra.Command {
	var content contentFlags
	cmd := &cobra.Command{
		Use:   "supersede <decision-id>",
		Short: "Replace a locked decision with a new locked successor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSystem(cmd.Context(), func(sys *api.System) error {
				d, err := sys.Ledger.Supersede(cmd.Context(), ledger.SupersedeInput{
					OriginalID:  args[0],
					Statement:   content.statement,
					Assumptions: content.assumptions,
					References:  content.references,
					OwnerID:     content.owner,
				})
				if err != nil {
					return err
				}
				return a.printJSON(d)
			})
		},
	}
	content.bind(cmd)
	return cmd
}

func (a *App) newDecisionGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <decision-id>",
		Short: "Show a decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSystem(cmd.Context(), func(sys *api.System) error {
				d, err := sys.Ledger.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printJSON(d)
			})
		},
	}
}

func (a *App) newDecisionListCmd() *cobra.Command {
	var filter struct {
		session, owner, status string
		desc                   bool
	}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List decisions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSystem(cmd.Context(), func(sys *api.System) error {
				list, err := sys.Ledger.List(cmd.Context(), decision.ListFilter{
					SessionID:  filter.session,
					OwnerID:    filter.owner,
					Status:     decision.Status(filter.status),
					Descending: filter.desc,
				})
				if err != nil {
					return err
				}
				return a.printJSON(list)
			})
		},
	}
	cmd.Flags().StringVar(&filter.session, "session", "", "Filter by session")
	cmd.Flags().StringVar(&filter.owner, "owner", "", "Filter by owner")
	cmd.Flags().StringVar(&filter.status, "status", "", "Filter by status (DRAFT, LOCKED, SUPERSEDED)")
	cmd.Flags().BoolVar(&filter.desc, "desc", false, "Newest first")
	return cmd
}

func (a *App) newDecisionChainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chain <decision-id>",
		Short: "Show the supersession chain ending at a decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSystem(cmd.Context(), func(sys *api.System) error {
				chain, err := sys.Ledger.Chain(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printJSON(chain)
			})
		},
	}
}

func (a *App) newDecisionExportCmd() *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a session's decisions with their supersession map",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSystem(cmd.Context(), func(sys *api.System) error {
				export, err := sys.Ledger.ExportForAudit(cmd.Context(), session)
				if err != nil {
					return err
				}
				return a.printJSON(export)
			})
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "Session ID")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func (a *App) newDecisionDeleteCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "delete <decision-id>",
		Short: "Delete a draft decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSystem(cmd.Context(), func(sys *api.System) error {
				if err := sys.Ledger.DeleteDraft(cmd.Context(), args[0], actorID); err != nil {
					return err
				}
				return a.printJSON(map[string]string{"deleted": args[0]})
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "Acting user ID")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}
