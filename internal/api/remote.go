package api

import (
	"context"

	"github.com/agentmitra/portalctl/internal/auth"
)

// Remote adapts the client to what the RBAC context needs.
type Remote struct{ c *Client }

var _ auth.Remote = (*Remote)(nil)

// NewRemote wraps c.
func NewRemote(c *Client) *Remote {
	return &Remote{c: c}
}

// Logout ends the session server-side.
func (r *Remote) Logout(ctx context.Context) error {
	return r.c.Auth.Logout(ctx)
}

// RoleNames lists the names of the backend's roles.
func (r *Remote) RoleNames(ctx context.Context) ([]string, error) {
	roles, err := r.c.RBAC.Roles(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.RoleName)
	}
	return names, nil
}

// PermissionNames lists the backend's permissions.
func (r *Remote) PermissionNames(ctx context.Context) ([]string, error) {
	perms, err := r.c.RBAC.Permissions(ctx)
	if err != nil {
		return nil, err
	}
	if perms == nil {
		perms = []string{}
	}
	return perms, nil
}
