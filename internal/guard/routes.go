package guard

import (
	"github.com/agentmitra/portalctl/internal/authz"
)

// Route is one entry of the portal navigation.
type Route struct {
	Path         string
	Title        string
	Requirements Requirements
}

// Routes is the portal navigation in display order.
var Routes = []Route{
	{Path: authz.RouteDashboard, Title: "Dashboard"},
	{Path: authz.RouteDataImport, Title: "Data Import", Requirements: Perms("data_import.create")},
	{Path: authz.RouteCustomers, Title: "Customer Management", Requirements: Perms("agents.read")},
	{Path: authz.RouteReporting, Title: "Reporting", Requirements: Perms("reports.generate")},
	{Path: authz.RouteUsers, Title: "User Management", Requirements: Perms("users.read")},
	{Path: authz.RouteCampaigns, Title: "Campaigns", Requirements: Perms("campaigns.read")},
	{Path: authz.RouteCallbacks, Title: "Callbacks", Requirements: Perms("agents.read")},
	{Path: authz.RouteExcelTemplate, Title: "Excel Template", Requirements: Perms("templates.read")},
	{Path: authz.RouteSettings, Title: "Settings"},
}

// Lookup finds the route for path.
func Lookup(path string) (Route, bool) {
	for _, r := range Routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{Path: path}, false
}

// NavigationItems lists the routes to show in navigation. Unlike the guard,
// navigation shows an item when the user holds any one of its permissions.
// Routes without requirements are shown to every authenticated user, and
// nothing is shown while loading or signed out.
func NavigationItems(s Subject) []Route {
	if s.IsLoading() || !s.IsAuthenticated() {
		return nil
	}
	u := s.User()
	var items []Route
	for _, r := range Routes {
		if len(r.Requirements.Permissions) == 0 || authz.HasAnyPermission(u, r.Requirements.Permissions) {
			items = append(items, r)
		}
	}
	return items
}
