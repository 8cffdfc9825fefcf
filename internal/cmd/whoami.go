package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentmitra/portalctl/internal/authz"
	"github.com/agentmitra/portalctl/internal/errors"
	"github.com/agentmitra/portalctl/internal/guard"
	"github.com/agentmitra/portalctl/internal/ux"
)

// WhoamiView describes the signed-in user and what they may open.
type WhoamiView struct {
	SessionView `yaml:",inline"`
	Permissions []string        `json:"permissions" yaml:"permissions"`
	Navigation  []string        `json:"navigation" yaml:"navigation"`
	Routes      []string        `json:"accessible_routes" yaml:"accessible_routes"`
	Features    map[string]bool `json:"features,omitempty" yaml:"features,omitempty"`
	// Catalogue is the backend's role and permission metadata.
	AvailableRoles       []string `json:"available_roles,omitempty" yaml:"available_roles,omitempty"`
	AvailablePermissions []string `json:"available_permissions,omitempty" yaml:"available_permissions,omitempty"`
}

func newWhoamiCmd(a *App) *cobra.Command {
	var features, catalogue bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user, roles and permissions",
		Long: `Show the signed-in user, the permissions decoded from the access token
and the portal pages they may open.

Examples:
  portalctl whoami
  portalctl whoami --features
  portalctl whoami --catalogue --format json`,
		Args:    cobra.NoArgs,
		PreRunE: guard.Require(a.GuardFunc(), "whoami", guard.Requirements{}),
		RunE: func(cmd *cobra.Command, args []string) error {
			u := a.RBAC.User()
			v := WhoamiView{
				SessionView: sessionView(u, time.Now()),
				Routes:      a.RBAC.AccessibleRoutes(),
			}
			for _, p := range u.Permissions {
				v.Permissions = append(v.Permissions, p.String())
			}
			for _, r := range guard.NavigationItems(a.RBAC) {
				v.Navigation = append(v.Navigation, r.Path)
			}
			if features {
				v.Features = make(map[string]bool)
				for _, f := range authz.FeaturePaths() {
					v.Features[f] = a.RBAC.CanAccessFeature(f)
				}
			}
			if catalogue {
				a.RBAC.RefreshMetadata(cmd.Context())
				v.AvailableRoles = a.RBAC.AvailableRoles()
				v.AvailablePermissions = a.RBAC.AvailablePermissions()
			}
			return a.render(cmd, ux.Document{Data: v, Text: whoamiText(v)})
		},
	}

	cmd.Flags().BoolVar(&features, "features", false, "list every feature and whether it is available")
	cmd.Flags().BoolVar(&catalogue, "catalogue", false, "also fetch the backend's role and permission catalogue")
	return cmd
}

func whoamiText(v WhoamiView) fmt.Stringer {
	sections := ux.Sections{
		ux.Fields{
			{"User", v.Name},
			{"User ID", v.UserID},
			{"Roles", strings.Join(v.Roles, ", ")},
			{"Permissions", orDash(strings.Join(v.Permissions, ", "))},
			{"Pages", strings.Join(v.Navigation, " ")},
		},
	}
	if len(v.Features) > 0 {
		t := &ux.Table{Headers: []string{"FEATURE", "AVAILABLE"}}
		for _, f := range authz.FeaturePaths() {
			t.Rows = append(t.Rows, []string{f, yesNo(v.Features[f])})
		}
		sections = append(sections, t)
	}
	if v.AvailableRoles != nil || v.AvailablePermissions != nil {
		sections = append(sections, ux.Fields{
			{"Available roles", orDash(strings.Join(v.AvailableRoles, ", "))},
			{"Available permissions", orDash(strings.Join(v.AvailablePermissions, ", "))},
		})
	}
	return sections
}

// CanResult is the answer for one permission or page.
type CanResult struct {
	Check   string `json:"check" yaml:"check"`
	Allowed bool   `json:"allowed" yaml:"allowed"`
}

func newCanCmd(a *App) *cobra.Command {
	var pages bool

	cmd := &cobra.Command{
		Use:   "can <resource.action|page>...",
		Short: "Check permissions or pages for the signed-in user",
		Long: `Check whether the signed-in user holds every given permission, or may
open every given page with --page. Exits with status 3 when any check fails.

Examples:
  portalctl can users.read data_import.create
  portalctl can --page /users /reporting`,
		Args:    cobra.MinimumNArgs(1),
		PreRunE: guard.Require(a.GuardFunc(), "can", guard.Requirements{}),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([]CanResult, 0, len(args))
			var denied []string
			for _, arg := range args {
				var ok bool
				if pages {
					ok = a.RBAC.CanAccessPage(arg)
				} else {
					req, err := authz.ParseRequirement(arg)
					if err != nil {
						return usageError(err.Error(), "Permissions look like users.read or data_import.create")
					}
					ok = a.RBAC.HasPermission(req.Resource, req.Action)
				}
				results = append(results, CanResult{Check: arg, Allowed: ok})
				if !ok {
					denied = append(denied, arg)
				}
			}

			t := &ux.Table{Headers: []string{"CHECK", "ALLOWED"}}
			for _, r := range results {
				t.Rows = append(t.Rows, []string{r.Check, yesNo(r.Allowed)})
			}
			if err := a.render(cmd, ux.Document{Data: results, Text: t}); err != nil {
				return err
			}
			if len(denied) > 0 {
				return errors.NewForbiddenError(strings.Join(denied, ", "), nil)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&pages, "page", false, "arguments are portal pages such as /users")
	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
