package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentmitra/portalctl/internal/authz"
	"github.com/agentmitra/portalctl/internal/errors"
	"github.com/agentmitra/portalctl/internal/guard"
	"github.com/agentmitra/portalctl/internal/ux"
)

// rbacAdmins are the roles allowed to administer roles and feature flags.
var rbacAdmins = guard.Requirements{Roles: []string{authz.RoleSuperAdmin, authz.RoleProviderAdmin}}

func newRBACCmd(a *App) *cobra.Command {
	rbacCmd := &cobra.Command{
		Use:   "rbac",
		Short: "Administer roles, permissions and feature flags",
		Long: `Role and permission administration on the backend. Restricted to
super_admin and insurance_provider_admin.

Examples:
  portalctl rbac roles
  portalctl rbac permissions --role junior_agent
  portalctl rbac check users.delete
  portalctl rbac assign u-7 senior_agent`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	admin := guard.Require(a.GuardFunc(), "/rbac", rbacAdmins)
	signedIn := guard.Require(a.GuardFunc(), "/rbac", guard.Requirements{})

	rolesCmd := &cobra.Command{
		Use:     "roles",
		Short:   "List role definitions",
		Args:    cobra.NoArgs,
		PreRunE: admin,
		RunE: func(cmd *cobra.Command, args []string) error {
			roles, err := a.Client.RBAC.Roles(cmd.Context())
			if err != nil {
				return err
			}
			t := &ux.Table{Headers: []string{"ID", "ROLE", "SYSTEM", "DESCRIPTION"}}
			for _, r := range roles {
				t.Rows = append(t.Rows, []string{r.RoleID, r.RoleName, yesNo(r.IsSystemRole), orDash(r.Description)})
			}
			return a.render(cmd, ux.Document{Data: roles, Text: t})
		},
	}

	var role string
	permissionsCmd := &cobra.Command{
		Use:     "permissions",
		Short:   "List every permission, or those granted to --role",
		Args:    cobra.NoArgs,
		PreRunE: admin,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				perms []string
				err   error
			)
			if role != "" {
				perms, err = a.Client.RBAC.RolePermissions(cmd.Context(), role)
			} else {
				perms, err = a.Client.RBAC.Permissions(cmd.Context())
			}
			if err != nil {
				return err
			}
			t := &ux.Table{Headers: []string{"PERMISSION"}, Empty: "No permissions."}
			for _, p := range perms {
				t.Rows = append(t.Rows, []string{p})
			}
			return a.render(cmd, ux.Document{Data: perms, Text: t})
		},
	}
	permissionsCmd.Flags().StringVar(&role, "role", "", "only permissions granted to this role")

	flagsCmd := &cobra.Command{
		Use:     "feature-flags",
		Aliases: []string{"flags"},
		Short:   "List feature flags",
		Args:    cobra.NoArgs,
		PreRunE: admin,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, err := a.Client.RBAC.FeatureFlags(cmd.Context())
			if err != nil {
				return err
			}
			t := &ux.Table{Headers: []string{"ID", "FLAG", "ENABLED", "TENANT"}, Empty: "No feature flags."}
			for _, f := range flags {
				t.Rows = append(t.Rows, []string{f.FlagID, f.FlagName, yesNo(f.IsEnabled), orDash(f.TenantID)})
			}
			return a.render(cmd, ux.Document{Data: flags, Text: t})
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check <resource.action>",
		Short: "Ask the backend whether you hold a permission",
		Long: `Ask the backend rather than the local token. The answer reflects
server-side grants made since the token was issued.`,
		Args:    cobra.ExactArgs(1),
		PreRunE: signedIn,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := authz.ParseRequirement(args[0])
			if err != nil {
				return usageError(err.Error(), "Permissions look like users.read or data_import.create")
			}
			ok, err := a.Client.RBAC.CheckPermission(cmd.Context(), req.Resource, req.Action)
			if err != nil {
				return err
			}
			local := a.RBAC.HasPermission(req.Resource, req.Action)
			view := map[string]any{"permission": args[0], "server": ok, "token": local}
			text := ux.Fields{{"Permission", req.String()}, {"Server", yesNo(ok)}, {"Token", yesNo(local)}}
			if err := a.render(cmd, ux.Document{Data: view, Text: text}); err != nil {
				return err
			}
			if !ok {
				return errors.NewForbiddenError(args[0], nil)
			}
			return nil
		},
	}

	assignCmd := &cobra.Command{
		Use:     "assign <user-id> <role>",
		Short:   "Grant a role to a user",
		Args:    cobra.ExactArgs(2),
		PreRunE: admin,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.Client.RBAC.AssignRole(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return a.render(cmd, ux.Document{
				Data: map[string]string{"user_id": args[0], "assigned": args[1]},
				Text: ux.Text("Assigned " + args[1] + " to " + args[0]),
			})
		},
	}

	removeCmd := &cobra.Command{
		Use:     "remove <user-id> <role>",
		Short:   "Revoke a role from a user",
		Args:    cobra.ExactArgs(2),
		PreRunE: admin,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.Client.RBAC.RemoveRole(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return a.render(cmd, ux.Document{
				Data: map[string]string{"user_id": args[0], "removed": args[1]},
				Text: ux.Text("Removed " + args[1] + " from " + args[0]),
			})
		},
	}

	mineCmd := &cobra.Command{
		Use:     "mine",
		Short:   "List your effective permissions as the server sees them",
		Args:    cobra.NoArgs,
		PreRunE: signedIn,
		RunE: func(cmd *cobra.Command, args []string) error {
			perms, err := a.Client.RBAC.UserPermissions(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(cmd, ux.Document{Data: perms, Text: ux.Text(orDash(strings.Join(perms, "\n")))})
		},
	}

	rbacCmd.AddCommand(rolesCmd, permissionsCmd, flagsCmd, checkCmd, assignCmd, removeCmd, mineCmd)
	return rbacCmd
}
