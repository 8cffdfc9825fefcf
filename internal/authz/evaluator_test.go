package authz

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func agent(perms ...Permission) *User {
	u := &User{UserID: "u-1", Role: RoleJuniorAgent, Permissions: perms, ExpiresAt: time.Now().Add(time.Hour)}
	u.Normalize()
	return u
}

func TestHasRole(t *testing.T) {
	u := &User{UserID: "u-1", Role: RoleSeniorAgent, Roles: []string{RoleSupportStaff, RoleSeniorAgent}}
	u.Normalize()

	assert.Equal(t, []string{RoleSeniorAgent, RoleSupportStaff}, u.Roles)
	assert.True(t, HasRole(u, RoleSupportStaff))
	assert.False(t, HasRole(u, RoleSuperAdmin))
	assert.False(t, HasRole(nil, RoleSupportStaff))
}

func TestHasAnyRole(t *testing.T) {
	u := agent()

	assert.True(t, HasAnyRole(u, []string{RoleSuperAdmin, RoleJuniorAgent}))
	assert.False(t, HasAnyRole(u, []string{RoleSuperAdmin}))
	assert.False(t, HasAnyRole(u, nil))
	assert.False(t, HasAnyRole(nil, []string{RoleJuniorAgent}))
}

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name     string
		user     *User
		resource string
		action   string
		want     bool
	}{
		{"nil user", nil, "users", "read", false},
		{"exact string", agent(StringPermission("users.read")), "users", "read", true},
		{"other action", agent(StringPermission("users.read")), "users", "delete", false},
		{"wildcard string", agent(StringPermission("*")), "reports", "export", true},
		{"structured match", agent(StructuredPermission("customers", "read", "update")), "customers", "update", true},
		{"structured wrong resource", agent(StructuredPermission("customers", "read")), "users", "read", false},
		{"structured wildcard is literal", agent(StructuredPermission("*", "read")), "users", "read", false},
		{
			"mixed list",
			agent(StringPermission("reports.generate"), StructuredPermission("data_import", "create")),
			"data_import", "create", true,
		},
		{
			"super admin bypass",
			func() *User { u := &User{Roles: []string{RoleSuperAdmin}}; u.Normalize(); return u }(),
			"anything", "at_all", true,
		},
		{"no permissions", agent(), "users", "read", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPermission(tt.user, tt.resource, tt.action))
		})
	}
}

func TestMissingPermissions(t *testing.T) {
	u := agent(StringPermission("users.read"))
	reqs := []Requirement{{"users", "read"}, {"users", "update"}, {"audit", "read"}}

	missing := MissingPermissions(u, reqs)
	assert.Equal(t, []Requirement{{"users", "update"}, {"audit", "read"}}, missing)
	assert.False(t, HasAllPermissions(u, reqs))
	assert.True(t, HasAnyPermission(u, reqs))
	assert.True(t, HasAllPermissions(u, nil))
}

func TestCanAccessFeature(t *testing.T) {
	tests := []struct {
		name    string
		user    *User
		feature string
		want    bool
	}{
		{"nil user", nil, FeatureUserManagement, false},
		{"any of list grants", agent(StringPermission("users.update")), FeatureUserManagement, true},
		{"structured entry", agent(StructuredPermission("campaigns", "create")), FeatureMarketingCampaigns, true},
		{"missing", agent(StringPermission("users.read")), FeatureGenerateReports, false},
		{"wildcard", agent(StringPermission("*")), "administration.auditCompliance", true},
		{"unmapped path", agent(StringPermission("*")), "administration.unknown", false},
		{
			"unmapped path for super admin",
			func() *User { u := &User{Role: RoleSuperAdmin}; u.Normalize(); return u }(),
			"nope.nothing", false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAccessFeature(tt.user, tt.feature))
		})
	}
}

func TestFeaturePaths(t *testing.T) {
	paths := FeaturePaths()
	assert.Len(t, paths, 27)
	assert.Contains(t, paths, FeatureExcelImport)
	assert.IsIncreasing(t, paths)
	assert.Equal(t, []string{"data_import.create"}, FeaturePermissions(FeatureExcelImport))
	assert.Nil(t, FeaturePermissions("missing"))
}

func TestAccessibleRoutes(t *testing.T) {
	assert.Equal(t, []string{RouteLogin}, AccessibleRoutes(nil))

	importer := agent(StringPermission("data_import.create"))
	assert.Equal(t,
		[]string{RouteDashboard, RouteDataImport, RouteExcelTemplate, RouteSettings},
		AccessibleRoutes(importer))

	manager := agent(StringPermission("agents.read"), StringPermission("campaigns.read"))
	assert.Equal(t,
		[]string{RouteDashboard, RouteCustomers, RouteCampaigns, RouteCallbacks, RouteSettings},
		AccessibleRoutes(manager))

	assert.True(t, CanAccessPage(importer, RouteDataImport))
	assert.False(t, CanAccessPage(importer, RouteUsers))
	assert.False(t, CanAccessPage(nil, RouteLogin))
}

func TestPermissionJSON(t *testing.T) {
	raw := `{"user_id":"u-9","roles":["junior_agent"],"permissions":["users.read",{"resource":"customers","actions":["read","update"]}]}`

	var u User
	require.NoError(t, json.Unmarshal([]byte(raw), &u))
	require.Len(t, u.Permissions, 2)
	assert.Equal(t, KindString, u.Permissions[0].Kind)
	assert.Equal(t, KindStructured, u.Permissions[1].Kind)
	assert.True(t, HasPermission(&u, "customers", "update"))

	out, err := json.Marshal(u.Permissions)
	require.NoError(t, err)
	assert.JSONEq(t, `["users.read",{"resource":"customers","actions":["read","update"]}]`, string(out))

	var bad Permission
	assert.Error(t, json.Unmarshal([]byte(`42`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`{"actions":["read"]}`), &bad))
}

func TestParsePermissions(t *testing.T) {
	perms := ParsePermissions([]any{
		"reports.generate",
		map[string]any{"resource": "users", "actions": []any{"read", 7}},
		map[string]any{"actions": []any{"read"}},
		3.14,
		nil,
		"",
		[]any{"nested.list"},
	})

	require.Len(t, perms, 2)
	assert.Equal(t, StringPermission("reports.generate"), perms[0])
	assert.Equal(t, StructuredPermission("users", "read"), perms[1])
	assert.Nil(t, ParsePermissions("not a list"))
}

func TestParseRequirement(t *testing.T) {
	req, err := ParseRequirement("data_import.create")
	require.NoError(t, err)
	assert.Equal(t, Requirement{"data_import", "create"}, req)
	assert.Equal(t, "data_import: create", req.String())

	for _, bad := range []string{"users", ".read", "users.", ""} {
		_, err := ParseRequirement(bad)
		assert.Error(t, err, bad)
	}
}

func TestUserExpiredAndName(t *testing.T) {
	now := time.Now()
	u := &User{UserID: "u-1", FirstName: "Asha", LastName: "Rao", ExpiresAt: now.Add(-time.Second)}

	assert.True(t, u.Expired(now))
	assert.True(t, (&User{}).Expired(now))
	assert.True(t, (*User)(nil).Expired(now))
	u.ExpiresAt = now.Add(time.Minute)
	assert.False(t, u.Expired(now))

	assert.Equal(t, "Asha Rao", u.Name())
	u.DisplayName = "Asha"
	assert.Equal(t, "Asha", u.Name())
	assert.Equal(t, "u-2", (&User{UserID: "u-2"}).Name())
}
