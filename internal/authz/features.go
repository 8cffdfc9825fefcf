package authz

import (
	"maps"
	"slices"
)

// Feature paths gate coarse areas of the portal. A user may use a feature
// when they hold ANY of the listed permissions.
var featurePermissions = map[string][]string{
	"customerPortal.dashboard":          {"profile.read"},
	"customerPortal.policyManagement":   {"policies.read", "policies.update"},
	"customerPortal.premiumPayments":    {"policies.update"},
	"customerPortal.documentAccess":     {"policies.read"},
	"customerPortal.communicationTools": {"profile.read"},
	"customerPortal.learningCenter":     {"profile.read"},
	"customerPortal.profileManagement":  {"profile.update"},

	"agentPortal.customerManagement": {"agents.read", "agents.update"},
	"agentPortal.marketingCampaigns": {"campaigns.read", "campaigns.create"},
	"agentPortal.contentManagement":  {"content.read", "content.create"},
	"agentPortal.roiAnalytics":       {"analytics.read"},
	"agentPortal.commissionTracking": {"analytics.read"},
	"agentPortal.leadManagement":     {"leads.read", "leads.update"},

	"administration.userManagement":         {"users.read", "users.create", "users.update"},
	"administration.featureFlagControl":     {"feature_flags.update"},
	"administration.systemConfiguration":    {"system.config"},
	"administration.auditCompliance":        {"audit.read"},
	"administration.financialManagement":    {"financial.read"},
	"administration.tenantManagement":       {"tenants.read", "tenants.update"},
	"administration.providerAdministration": {"providers.read", "providers.update"},

	"dataImport.excelImport":        {"data_import.create"},
	"dataImport.licApiSync":         {"lic_api.sync"},
	"dataImport.bulkUpdate":         {"data_import.update"},
	"dataImport.templateManagement": {"templates.read", "templates.create"},

	"reporting.generateReports":  {"reports.generate"},
	"reporting.scheduledReports": {"reports.schedule"},
	"reporting.exportData":       {"reports.export"},
}

// Well-known feature paths referenced from code.
const (
	FeatureExcelImport        = "dataImport.excelImport"
	FeatureCustomerManagement = "agentPortal.customerManagement"
	FeatureMarketingCampaigns = "agentPortal.marketingCampaigns"
	FeatureUserManagement     = "administration.userManagement"
	FeatureGenerateReports    = "reporting.generateReports"
)

// CanAccessFeature reports whether the user may use the feature at path.
// Unknown paths are never accessible, not even to super admins.
func CanAccessFeature(u *User, path string) bool {
	if u == nil {
		return false
	}
	required, ok := featurePermissions[path]
	if !ok {
		return false
	}
	if u.IsSuperAdmin() {
		return true
	}
	for _, name := range required {
		req, err := ParseRequirement(name)
		if err != nil {
			continue
		}
		if HasPermission(u, req.Resource, req.Action) {
			return true
		}
	}
	return false
}

// FeaturePermissions returns the permissions a feature accepts, or nil.
func FeaturePermissions(path string) []string {
	return slices.Clone(featurePermissions[path])
}

// FeaturePaths lists every known feature path in sorted order.
func FeaturePaths() []string {
	return slices.Sorted(maps.Keys(featurePermissions))
}
