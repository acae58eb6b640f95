package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/decision-ledger/domain/approval"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/workflow"
	"github.com/felixgeelhaar/decision-ledger/interfaces/api"
)

func (a *App) newApprovalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "approval",
		Aliases: []string{"a"},
		Short:   "Request and resolve two-person approvals",
	}

	cmd.AddCommand(
		a.newApprovalRequestCmd(),
		a.newApprovalRespondCmd(),
		a.newApprovalGetCmd(),
		a.newApprovalPendingCmd(),
		a.newApprovalMineCmd(),
		a.newApprovalCheckCmd(),
		a.newApprovalSweepCmd(),
	)
	return cmd
}

func (a *App) newApprovalRequestCmd() *cobra.Command {
	var (
		in       workflow.CreateRequestInput
		category string
		hours    int
	)
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Request approval for a gated action",
		Long: `Request approval for a gated action.

Categories: POLICY_LOCK, ADR_APPROVAL, HIGH_RISK_DECISION,
SECURITY_EXCEPTION, DATA_ACCESS. An approved HIGH_RISK_DECISION request
locks the decision named by --resource-id.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Category = approval.Category(category)
			if cmd.Flags().Changed("expires-in") {
				in.ExpirationHours = &hours
			}
			return a.withSystem(cmd.Context(), func(sys *api.System) error {
				req, err := sys.Workflow.CreateRequest(cmd.Context(), in)
				if err != nil {
					return err
				}
				return a.printJSON(req)
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Approval category")
	cmd.Flags().StringVar(&in.ResourceType, "resource-type", "", "Type of the gated resource")
	cmd.Flags().StringVar(&in.ResourceID, "resource-id", "", "ID of the gated resource")
	cmd.Flags().StringVar(&in.Reason, "reason", "", "Why the action is needed")
	cmd.Flags().StringVar(&in.RequesterID, "requester", "", "Requesting actor ID")
	cmd.Flags().IntVar(&hours, "expires-in", 0, "Lifetime in hours (defaults to the configured expiration)")
	for _, name := range []string{"category", "resource-type", "resource-id", "reason", "requester"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (a *App) newApprovalRespondCmd() *cobra.Command {
	var (
		approverID string
		comments   string
		approve    bool
		reject     bool
	)
	cmd := &cobra.Command{
		Use:   "respond <approval-id>",
		Short: "Approve or reject a pending request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if approve == reject {
				return fmt.Errorf("exactly one of --approve or --reject is required")
			}
			return a.withSystem(cmd.Context(), func(sys *api.System) error {
				req, err := sys.Workflow.Respond(cmd.Context(), workflow.RespondInput{
					ApprovalID: args[0],
					ApproverID: approverID,
					Approved:   approve,
					Comments:   comments,
				})
				if err != nil {
					return err
				}
				return a.printJSON(req)
			})
		},
	}
	cmd.Flags().StringVar(&approverID, "approver", "", "Approving actor ID")
	cmd.Flags().StringVar(&comments, "comments", "", "Comments for the requester")
	cmd.Flags().BoolVar(&approve, "approve", false, "Approve the request")
	cmd.Flags().BoolVar(&reject, "reject", false, "Reject the request")
	_ = cmd.MarkFlagRequired("approver")
	return cmd
}

func (a *App) newApprovalGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <approval-id>",
		Short: "Show an approval request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSystem(cmd.Context(), func(sys *api.System) error {
				req, err := sys.Workflow.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printJSON(req)
			})
		},
	}
}

func (a *App) newApprovalPendingCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List pending requests the user could review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSystem(cmd.Context(), func(sys *api.System) error {
				list, err := sys.Workflow.ListPending(cmd.Context(), userID)
				if err != nil {
					return err
				}
				return a.printJSON(list)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Reviewing actor ID")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *App) newApprovalMineCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "List requests the user submitted, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSystem(cmd.Context(), func(sys *api.System) error {
				list, err := sys.Workflow.ListMine(cmd.Context(), userID)
				if err != nil {
					return err
				}
				return a.printJSON(list)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Requesting actor ID")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *App) newApprovalCheckCmd() *cobra.Command {
	var resourceType, resourceID, category string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report whether a resource has a pending or approved request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSystem(cmd.Context(), func(sys *api.System) error {
				sum, err := sys.Workflow.HasApproval(cmd.Context(), resourceType, resourceID, approval.Category(category))
				if err != nil {
					return err
				}
				return a.printJSON(sum)
			})
		},
	}
	cmd.Flags().StringVar(&resourceType, "resource-type", "", "Type of the gated resource")
	cmd.Flags().StringVar(&resourceID, "resource-id", "", "ID of the gated resource")
	cmd.Flags().StringVar(&category, "category", "", "Restrict to one category")
	_ = cmd.MarkFlagRequired("resource-type")
	_ = cmd.MarkFlagRequired("resource-id")
	return cmd
}

func (a *App) newApprovalSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Warn requesters whose pending requests expire soon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSystem(cmd.Context(), func(sys *api.System) error {
				n, err := sys.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				return a.printJSON(map[string]int{"warned": n})
			})
		},
	}
}
