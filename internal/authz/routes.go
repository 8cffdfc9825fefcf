package authz

import "slices"

// Portal routes.
const (
	RouteLogin         = "/login"
	RouteDashboard     = "/dashboard"
	RouteDataImport    = "/data-import"
	RouteExcelTemplate = "/excel-template"
	RouteCustomers     = "/customers"
	RouteReporting     = "/reporting"
	RouteUsers         = "/users"
	RouteCampaigns     = "/campaigns"
	RouteCallbacks     = "/callbacks"
	RouteSettings      = "/settings"
)

// AccessibleRoutes lists the pages the user may open, derived from feature
// access. Anonymous users only get the login page.
func AccessibleRoutes(u *User) []string {
	if u == nil {
		return []string{RouteLogin}
	}

	routes := []string{RouteDashboard}
	if CanAccessFeature(u, FeatureExcelImport) {
		routes = append(routes, RouteDataImport, RouteExcelTemplate)
	}
	if CanAccessFeature(u, FeatureCustomerManagement) {
		routes = append(routes, RouteCustomers)
	}
	if CanAccessFeature(u, FeatureGenerateReports) {
		routes = append(routes, RouteReporting)
	}
	if CanAccessFeature(u, FeatureUserManagement) {
		routes = append(routes, RouteUsers)
	}
	if CanAccessFeature(u, FeatureMarketingCampaigns) {
		routes = append(routes, RouteCampaigns)
	}
	if CanAccessFeature(u, FeatureCustomerManagement) {
		routes = append(routes, RouteCallbacks)
	}
	return append(routes, RouteSettings)
}

// CanAccessPage reports whether page is among the user's accessible routes.
func CanAccessPage(u *User, page string) bool {
	if u == nil {
		return false
	}
	return slices.Contains(AccessibleRoutes(u), page)
}
