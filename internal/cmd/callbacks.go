package cmd

import (
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/agentmitra/portalctl/internal/api"
	"github.com/agentmitra/portalctl/internal/authz"
	"github.com/agentmitra/portalctl/internal/ux"
)

var callbackStatuses = []string{"pending", "assigned", "in_progress", "completed", "cancelled"}

func newCallbacksCmd(a *App) *cobra.Command {
	callbacksCmd := &cobra.Command{
		Use:     "callbacks",
		Aliases: []string{"callback"},
		Short:   "Work the callback request queue",
		Long: `Callback requests raised by policyholders, highest priority first.

Examples:
  portalctl callbacks list --status pending --priority high
  portalctl callbacks assign cb-12 agent-3
  portalctl callbacks status cb-12 in_progress`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pre := a.requireRoute(authz.RouteCallbacks)

	var filters api.CallbackFilters
	listCmd := &cobra.Command{
		Use:     "list",
		Short:   "List callback requests",
		Args:    cobra.NoArgs,
		PreRunE: pre,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := a.Client.Callbacks.List(cmd.Context(), filters)
			if err != nil {
				return err
			}
			t := &ux.Table{
				Headers: []string{"ID", "CUSTOMER", "PHONE", "TYPE", "PRIORITY", "SCORE", "STATUS", "DUE"},
				Empty:   "No callback requests.",
			}
			for _, c := range page.Data {
				t.Rows = append(t.Rows, []string{
					c.CallbackRequestID, c.CustomerName, c.CustomerPhone, c.RequestType, c.Priority,
					strconv.FormatFloat(c.PriorityScore, 'f', 0, 64), c.Status, orDash(c.DueAt),
				})
			}
			return a.render(cmd, ux.Document{Data: page, Text: t})
		},
	}
	listCmd.Flags().StringVar(&filters.Status, "status", "", "request status")
	listCmd.Flags().StringVar(&filters.Priority, "priority", "", "high, medium or low")
	listCmd.Flags().IntVar(&filters.Limit, "limit", 0, "maximum number of requests")
	listCmd.Flags().IntVar(&filters.Offset, "offset", 0, "requests to skip")

	getCmd := &cobra.Command{
		Use:     "get <id>",
		Short:   "Show one callback request",
		Args:    cobra.ExactArgs(1),
		PreRunE: pre,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.Client.Callbacks.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.render(cmd, ux.Document{Data: c, Text: ux.Fields{
				{"ID", c.CallbackRequestID},
				{"Customer", c.CustomerName},
				{"Phone", c.CustomerPhone},
				{"Email", orDash(c.CustomerEmail)},
				{"Type", c.RequestType},
				{"Priority", c.Priority},
				{"Status", c.Status},
				{"Agent", orDash(c.AgentID)},
				{"Due", orDash(c.DueAt)},
				{"Description", c.Description},
			}})
		},
	}

	assignCmd := &cobra.Command{
		Use:     "assign <id> <agent-id>",
		Short:   "Assign a callback request to an agent",
		Args:    cobra.ExactArgs(2),
		PreRunE: pre,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.Client.Callbacks.Assign(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return a.render(cmd, ux.Document{
				Data: map[string]string{"id": args[0], "agent_id": args[1]},
				Text: ux.Text("Assigned " + args[0] + " to " + args[1]),
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:       "status <id> <status>",
		Short:     "Move a callback request to a new status",
		Args:      cobra.ExactArgs(2),
		ValidArgs: callbackStatuses,
		PreRunE:   pre,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(callbackStatuses, args[1]) {
				return usageError("unknown callback status: "+args[1], "Valid statuses: pending, assigned, in_progress, completed, cancelled")
			}
			if err := a.Client.Callbacks.UpdateStatus(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return a.render(cmd, ux.Document{
				Data: map[string]string{"id": args[0], "status": args[1]},
				Text: ux.Text(args[0] + " is now " + args[1]),
			})
		},
	}

	var completion api.CallbackCompletion
	var rating int
	completeCmd := &cobra.Command{
		Use:     "complete <id>",
		Short:   "Close a callback request",
		Args:    cobra.ExactArgs(1),
		PreRunE: pre,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("rating") {
				if rating < 1 || rating > 5 {
					return usageError("--rating must be between 1 and 5")
				}
				completion.SatisfactionRating = &rating
			}
			if err := a.Client.Callbacks.Complete(cmd.Context(), args[0], completion); err != nil {
				return err
			}
			return a.render(cmd, ux.Document{
				Data: map[string]string{"id": args[0], "status": "completed"},
				Text: ux.Text("Completed " + args[0]),
			})
		},
	}
	completeCmd.Flags().StringVar(&completion.Resolution, "resolution", "", "what was done")
	completeCmd.Flags().StringVar(&completion.ResolutionCategory, "category", "", "resolution category")
	completeCmd.Flags().IntVar(&rating, "rating", 0, "customer satisfaction, 1 to 5")

	callbacksCmd.AddCommand(listCmd, getCmd, assignCmd, statusCmd, completeCmd)
	return callbacksCmd
}
