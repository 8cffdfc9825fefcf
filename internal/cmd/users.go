package cmd

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentmitra/portalctl/internal/api"
	"github.com/agentmitra/portalctl/internal/authz"
	"github.com/agentmitra/portalctl/internal/ux"
)

func newUsersCmd(a *App) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Browse portal users and their activity",
		Long: `User management. Requires the users.read permission.

Examples:
  portalctl users list --role junior_agent
  portalctl users get u-7
  portalctl users activity u-7
  portalctl users roles`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pre := a.requireRoute(authz.RouteUsers)

	var (
		filters api.UserFilters
		paging  api.ListOptions
		active  string
	)
	listCmd := &cobra.Command{
		Use:     "list",
		Short:   "List users",
		Args:    cobra.NoArgs,
		PreRunE: pre,
		RunE: func(cmd *cobra.Command, args []string) error {
			if active != "" {
				b, err := strconv.ParseBool(active)
				if err != nil {
					return usageError("--active must be true or false")
				}
				filters.IsActive = &b
			}
			page, err := a.Client.Users.List(cmd.Context(), paging, filters)
			if err != nil {
				return err
			}
			t := &ux.Table{
				Headers: []string{"ID", "NAME", "EMAIL", "ROLE", "ACTIVE", "LAST LOGIN"},
				Empty:   "No users found.",
			}
			for _, u := range page.Data {
				t.Rows = append(t.Rows, []string{
					u.ID, strings.TrimSpace(u.FirstName + " " + u.LastName), u.Email, u.Role, yesNo(u.IsActive), orDash(u.LastLoginAt),
				})
			}
			return a.render(cmd, ux.Document{Data: page, Text: ux.Sections{t, pageFooter(page.Page, page.TotalPages, page.Total)}})
		},
	}
	listCmd.Flags().StringVar(&filters.Search, "search", "", "search name or email")
	listCmd.Flags().StringVar(&filters.Role, "role", "", "only users with this role")
	listCmd.Flags().StringVar(&filters.AgentCode, "agent-code", "", "agent code")
	listCmd.Flags().StringVar(&active, "active", "", "true or false")
	addPaging(listCmd, &paging)

	getCmd := &cobra.Command{
		Use:     "get <id>",
		Short:   "Show one user",
		Args:    cobra.ExactArgs(1),
		PreRunE: pre,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.Client.Users.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			perms := make([]string, 0, len(u.Permissions))
			for _, p := range u.Permissions {
				perms = append(perms, p.String())
			}
			return a.render(cmd, ux.Document{Data: u, Text: ux.Fields{
				{"ID", u.ID},
				{"Name", strings.TrimSpace(u.FirstName + " " + u.LastName)},
				{"Email", u.Email},
				{"Phone", orDash(u.Phone)},
				{"Role", u.Role},
				{"Agent code", orDash(u.AgentCode)},
				{"Active", yesNo(u.IsActive)},
				{"Last login", orDash(u.LastLoginAt)},
				{"Permissions", orDash(strings.Join(perms, ", "))},
			}})
		},
	}

	rolesCmd := &cobra.Command{
		Use:     "roles",
		Short:   "List assignable roles",
		Args:    cobra.NoArgs,
		PreRunE: pre,
		RunE: func(cmd *cobra.Command, args []string) error {
			roles, err := a.Client.Users.Roles(cmd.Context())
			if err != nil {
				return err
			}
			t := &ux.Table{Headers: []string{"ROLE", "NAME", "DESCRIPTION"}}
			for _, r := range roles {
				t.Rows = append(t.Rows, []string{r.Role, r.Name, r.Description})
			}
			return a.render(cmd, ux.Document{Data: roles, Text: t})
		},
	}

	var activityPaging api.ListOptions
	activityCmd := &cobra.Command{
		Use:     "activity <id>",
		Short:   "Show a user's activity log",
		Args:    cobra.ExactArgs(1),
		PreRunE: pre,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := a.Client.Users.ActivityLogs(cmd.Context(), args[0], activityPaging)
			if err != nil {
				return err
			}
			t := &ux.Table{
				Headers: []string{"TIME", "ACTION", "RESOURCE", "FROM"},
				Empty:   "No activity recorded.",
			}
			for _, l := range page.Data {
				res := l.Resource
				if l.ResourceID != "" {
					res += "/" + l.ResourceID
				}
				t.Rows = append(t.Rows, []string{l.Timestamp, l.Action, res, orDash(l.IPAddress)})
			}
			return a.render(cmd, ux.Document{Data: page, Text: ux.Sections{t, pageFooter(page.Page, page.TotalPages, page.Total)}})
		},
	}
	addPaging(activityCmd, &activityPaging)

	usersCmd.AddCommand(listCmd, getCmd, rolesCmd, activityCmd)
	return usersCmd
}
