package guard

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmitra/portalctl/internal/authz"
	"github.com/agentmitra/portalctl/internal/errors"
	"github.com/agentmitra/portalctl/internal/exitcode"
	"github.com/agentmitra/portalctl/internal/log"
)

type fakeSubject struct {
	loading bool
	user    *authz.User
}

func (f fakeSubject) IsLoading() bool       { return f.loading }
func (f fakeSubject) IsAuthenticated() bool { return f.user != nil }
func (f fakeSubject) User() *authz.User     { return f.user }

func userWith(roles []string, perms ...authz.Permission) *authz.User {
	u := &authz.User{UserID: "u-1", Roles: roles, Permissions: perms}
	u.Normalize()
	return u
}

func TestEvaluate(t *testing.T) {
	agent := userWith([]string{authz.RoleJuniorAgent},
		authz.StringPermission("data_import.create"),
		authz.StructuredPermission("users", "read"))

	tests := []struct {
		name    string
		subject fakeSubject
		req     Requirements
		want    State
	}{
		{"loading", fakeSubject{loading: true, user: agent}, Requirements{}, StateChecking},
		{"signed out", fakeSubject{}, Requirements{}, StateDeniedUnauthenticated},
		{"authenticated only", fakeSubject{user: agent}, Requirements{}, StateAllowed},
		{"any role matches", fakeSubject{user: agent}, Requirements{Roles: []string{authz.RoleSuperAdmin, authz.RoleJuniorAgent}}, StateAllowed},
		{"no role matches", fakeSubject{user: agent}, Requirements{Roles: []string{authz.RoleSuperAdmin}}, StateDeniedForbidden},
		{"all permissions held", fakeSubject{user: agent}, Perms("data_import.create", "users.read"), StateAllowed},
		{"one permission missing", fakeSubject{user: agent}, Perms("data_import.create", "users.delete"), StateDeniedForbidden},
		{"super admin bypasses permissions", fakeSubject{user: userWith([]string{authz.RoleSuperAdmin})}, Perms("anything.at_all"), StateAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.subject, "/x", tt.req)
			assert.Equal(t, tt.want, d.State, d.State.String())
		})
	}
}

func TestEvaluate_UnauthenticatedRedirectsToLogin(t *testing.T) {
	d := Evaluate(fakeSubject{}, "/users", Perms("users.read"))
	assert.Equal(t, LoginRoute, d.RedirectTo)
	assert.Equal(t, errors.ErrCodeAuthRequired, errors.CodeOf(d.Err()))
}

func TestEvaluate_RoleDenialPanel(t *testing.T) {
	u := userWith([]string{authz.RoleJuniorAgent})
	d := Evaluate(fakeSubject{user: u}, "/users", Requirements{Roles: []string{authz.RoleSuperAdmin, authz.RoleProviderAdmin}})

	require.True(t, d.RoleDenied())
	assert.Equal(t, []string{
		"Access Denied",
		"You don't have the required role to access this page.",
		"Required roles: super_admin, insurance_provider_admin",
		"Your roles: junior_agent",
	}, d.Lines())
}

func TestEvaluate_PermissionDenialListsEveryRequirement(t *testing.T) {
	u := userWith([]string{authz.RoleJuniorAgent}, authz.StringPermission("reports.read"))
	d := Evaluate(fakeSubject{user: u}, "/reporting", Perms("reports.read", "reports.generate"))

	require.Equal(t, StateDeniedForbidden, d.State)
	assert.Equal(t, []authz.Requirement{{Resource: "reports", Action: "generate"}}, d.Missing)
	assert.Equal(t, []string{
		"Access Denied",
		"You don't have the required permissions to access this page.",
		"Required permissions:",
		"  - reports: read",
		"  - reports: generate",
	}, d.Lines())

	err := d.Err()
	assert.Equal(t, errors.ErrCodeAccessForbidden, errors.CodeOf(err))
	assert.Contains(t, err.Error(), "reports: generate")
	assert.Equal(t, exitcode.Forbidden, exitcode.DetermineExitCode(err))
}

func TestEvaluate_RolesCheckedBeforePermissions(t *testing.T) {
	u := userWith([]string{authz.RoleJuniorAgent})
	d := Evaluate(fakeSubject{user: u}, "/x", Requirements{
		Roles:       []string{authz.RoleRegionalManager},
		Permissions: []authz.Requirement{{Resource: "users", Action: "read"}},
	})
	assert.True(t, d.RoleDenied())
	assert.Empty(t, d.Missing)
}

func TestAllowedDecisionHasNoError(t *testing.T) {
	d := Evaluate(fakeSubject{user: userWith(nil)}, "/dashboard", Requirements{})
	assert.True(t, d.Allowed())
	assert.NoError(t, d.Err())
	assert.Nil(t, d.Lines())
}

func TestNavigationItems(t *testing.T) {
	paths := func(rs []Route) []string {
		var out []string
		for _, r := range rs {
			out = append(out, r.Path)
		}
		return out
	}

	assert.Nil(t, NavigationItems(fakeSubject{}))
	assert.Nil(t, NavigationItems(fakeSubject{loading: true, user: userWith(nil)}))

	basic := userWith([]string{authz.RoleSupportStaff})
	assert.Equal(t, []string{"/dashboard", "/settings"}, paths(NavigationItems(fakeSubject{user: basic})))

	agent := userWith([]string{authz.RoleSeniorAgent},
		authz.StructuredPermission("agents", "read"),
		authz.StringPermission("templates.read"))
	assert.Equal(t,
		[]string{"/dashboard", "/customers", "/callbacks", "/excel-template", "/settings"},
		paths(NavigationItems(fakeSubject{user: agent})))

	admin := userWith([]string{authz.RoleSuperAdmin})
	assert.Len(t, NavigationItems(fakeSubject{user: admin}), len(Routes))
}

func TestLookup(t *testing.T) {
	r, ok := Lookup("/data-import")
	require.True(t, ok)
	assert.Equal(t, Perms("data_import.create"), r.Requirements)

	r, ok = Lookup("/nowhere")
	assert.False(t, ok)
	assert.True(t, r.Requirements.Empty())
}

func TestPermsPanicsOnMalformedSpec(t *testing.T) {
	assert.Panics(t, func() { Perms("users") })
}

func TestGuard_Observer(t *testing.T) {
	var seen []Decision
	g := New(fakeSubject{user: userWith(nil)}, WithLogger(log.Discard()), WithObserver(func(d Decision) { seen = append(seen, d) }))

	g.CheckRoute("/users")
	g.CheckRoute("/dashboard")

	require.Len(t, seen, 2)
	assert.Equal(t, StateDeniedForbidden, seen[0].State)
	assert.Equal(t, StateAllowed, seen[1].State)
}

func TestRequire(t *testing.T) {
	u := userWith([]string{authz.RoleJuniorAgent}, authz.StringPermission("agents.read"))
	g := New(fakeSubject{user: u}, WithLogger(log.Discard()))
	guardFn := func() *Guard { return g }

	var stderr bytes.Buffer
	cmd := &cobra.Command{Use: "users"}
	cmd.SetErr(&stderr)

	err := Require(guardFn, "/users", Perms("users.read"))(cmd, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAccessForbidden, errors.CodeOf(err))
	assert.Contains(t, stderr.String(), "  - users: read")

	stderr.Reset()
	require.NoError(t, Require(guardFn, "/customers", Perms("agents.read"))(cmd, nil))
	assert.Empty(t, stderr.String())

	signedOut := New(fakeSubject{}, WithLogger(log.Discard()))
	err = Require(func() *Guard { return signedOut }, "/customers", Perms("agents.read"))(cmd, nil)
	assert.Equal(t, exitcode.AuthError, exitcode.DetermineExitCode(err))
}
