package authz

import "slices"

// HasRole reports whether role is one of the user's roles.
func HasRole(u *User, role string) bool {
	if u == nil {
		return false
	}
	return slices.Contains(u.Roles, role)
}

// HasAnyRole reports whether the user holds at least one of roles.
func HasAnyRole(u *User, roles []string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if slices.Contains(roles, r) {
			return true
		}
	}
	return false
}

// HasPermission reports whether the user may perform action on resource.
// Super admins are always allowed; otherwise any held entry that grants the
// pair is enough.
func HasPermission(u *User, resource, action string) bool {
	if u == nil {
		return false
	}
	if u.IsSuperAdmin() {
		return true
	}
	for _, p := range u.Permissions {
		if p.Grants(resource, action) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every requirement is granted.
// An empty list is trivially satisfied.
func HasAllPermissions(u *User, reqs []Requirement) bool {
	return len(MissingPermissions(u, reqs)) == 0
}

// MissingPermissions returns the requirements the user does not satisfy,
// in the order given.
func MissingPermissions(u *User, reqs []Requirement) []Requirement {
	var missing []Requirement
	for _, r := range reqs {
		if !HasPermission(u, r.Resource, r.Action) {
			missing = append(missing, r)
		}
	}
	return missing
}

// HasAnyPermission reports whether at least one requirement is granted.
func HasAnyPermission(u *User, reqs []Requirement) bool {
	for _, r := range reqs {
		if HasPermission(u, r.Resource, r.Action) {
			return true
		}
	}
	return false
}
