package authz

import (
	"slices"
	"strings"
	"time"
)

// RoleSuperAdmin bypasses every permission check.
const RoleSuperAdmin = "super_admin"

// Built-in portal roles. The backend may define more; these are the ones the
// client refers to by name.
const (
	RoleProviderAdmin   = "insurance_provider_admin"
	RoleRegionalManager = "regional_manager"
	RoleSeniorAgent     = "senior_agent"
	RoleJuniorAgent     = "junior_agent"
	RoleSupportStaff    = "support_staff"
)

// User is the identity decoded from an access token. It is derived on every
// read and never mutated after decoding.
type User struct {
	UserID       string         `json:"user_id"`
	PhoneNumber  string         `json:"phone_number,omitempty"`
	Email        string         `json:"email,omitempty"`
	FirstName    string         `json:"first_name,omitempty"`
	LastName     string         `json:"last_name,omitempty"`
	DisplayName  string         `json:"display_name,omitempty"`
	Role         string         `json:"role,omitempty"`
	Roles        []string       `json:"roles"`
	Permissions  []Permission   `json:"permissions"`
	TenantID     string         `json:"tenant_id,omitempty"`
	AgentCode    string         `json:"agent_code,omitempty"`
	IsActive     bool           `json:"is_active"`
	LastLoginAt  string         `json:"last_login_at,omitempty"`
	FeatureFlags map[string]any `json:"feature_flags,omitempty"`
	ExpiresAt    time.Time      `json:"expires_at,omitempty"`
}

// Normalize folds the primary role into Roles and removes duplicates so
// role checks only need to look at one list.
func (u *User) Normalize() {
	if u == nil {
		return
	}
	roles := make([]string, 0, len(u.Roles)+1)
	if u.Role != "" {
		roles = append(roles, u.Role)
	}
	for _, r := range u.Roles {
		if r != "" && !slices.Contains(roles, r) {
			roles = append(roles, r)
		}
	}
	u.Roles = roles
	if u.Role == "" && len(roles) > 0 {
		u.Role = roles[0]
	}
}

// Expired reports whether the token's expiry has passed at now.
// A zero expiry counts as expired.
func (u *User) Expired(now time.Time) bool {
	return u == nil || u.ExpiresAt.IsZero() || !u.ExpiresAt.After(now)
}

// Name returns the best human-readable label for the user.
func (u *User) Name() string {
	if u == nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if full := strings.TrimSpace(u.FirstName + " " + u.LastName); full != "" {
		return full
	}
	if u.Email != "" {
		return u.Email
	}
	if u.PhoneNumber != "" {
		return u.PhoneNumber
	}
	return u.UserID
}

// IsSuperAdmin reports whether the user holds the bypass role.
func (u *User) IsSuperAdmin() bool {
	return HasRole(u, RoleSuperAdmin)
}
