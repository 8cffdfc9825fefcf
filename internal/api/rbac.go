package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/agentmitra/portalctl/internal/errors"
)

// RoleDefinition is a role known to the backend.
type RoleDefinition struct {
	RoleID       string `json:"role_id"`
	RoleName     string `json:"role_name"`
	Description  string `json:"description,omitempty"`
	IsSystemRole bool   `json:"is_system_role"`
}

// FeatureFlag toggles a feature per tenant.
type FeatureFlag struct {
	FlagID    string `json:"flag_id,omitempty"`
	FlagName  string `json:"flag_name"`
	IsEnabled bool   `json:"is_enabled"`
	TenantID  string `json:"tenant_id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// RBACService reads and edits role metadata. The backend is the authority
// for enforcement; these calls only describe what exists.
type RBACService struct{ c *Client }

// Roles lists defined roles.
func (s *RBACService) Roles(ctx context.Context) ([]RoleDefinition, error) {
	return getData[[]RoleDefinition](ctx, s.c, endpoint(http.MethodGet, "/rbac/roles"))
}

// RolePermissions lists the permissions granted to a role.
func (s *RBACService) RolePermissions(ctx context.Context, role string) ([]string, error) {
	return getData[[]string](ctx, s.c, endpoint(http.MethodGet, "/rbac/roles/{name}/permissions", role))
}

// Permissions lists every defined permission.
func (s *RBACService) Permissions(ctx context.Context) ([]string, error) {
	return getData[[]string](ctx, s.c, endpoint(http.MethodGet, "/rbac/permissions"))
}

// CreateRole defines a role.
func (s *RBACService) CreateRole(ctx context.Context, in *RoleDefinition) (*RoleDefinition, error) {
	r, err := endpoint(http.MethodPost, "/rbac/roles").withJSON(in)
	if err != nil {
		return nil, err
	}
	return getData[*RoleDefinition](ctx, s.c, r)
}

// UpdateRole changes a role.
func (s *RBACService) UpdateRole(ctx context.Context, id string, in *RoleDefinition) (*RoleDefinition, error) {
	r, err := endpoint(http.MethodPut, "/rbac/roles/{id}", id).withJSON(in)
	if err != nil {
		return nil, err
	}
	return getData[*RoleDefinition](ctx, s.c, r)
}

// DeleteRole removes a role.
func (s *RBACService) DeleteRole(ctx context.Context, id string) error {
	return exec(ctx, s.c, endpoint(http.MethodDelete, "/rbac/roles/{id}", id))
}

// AssignRole grants role to a user.
func (s *RBACService) AssignRole(ctx context.Context, userID, role string) error {
	r, err := endpoint(http.MethodPost, "/rbac/users/assign-role").withJSON(map[string]string{"user_id": userID, "role_name": role})
	if err != nil {
		return err
	}
	return exec(ctx, s.c, r)
}

// RemoveRole revokes role from a user.
func (s *RBACService) RemoveRole(ctx context.Context, userID, role string) error {
	r, err := endpoint(http.MethodPost, "/rbac/users/remove-role").withJSON(map[string]string{"user_id": userID, "role_name": role})
	if err != nil {
		return err
	}
	return exec(ctx, s.c, r)
}

// FeatureFlags lists feature flags.
func (s *RBACService) FeatureFlags(ctx context.Context) ([]FeatureFlag, error) {
	return getData[[]FeatureFlag](ctx, s.c, endpoint(http.MethodGet, "/rbac/feature-flags"))
}

// CreateFeatureFlag adds a feature flag.
func (s *RBACService) CreateFeatureFlag(ctx context.Context, in *FeatureFlag) (*FeatureFlag, error) {
	r, err := endpoint(http.MethodPost, "/rbac/feature-flags").withJSON(in)
	if err != nil {
		return nil, err
	}
	return getData[*FeatureFlag](ctx, s.c, r)
}

// UpdateFeatureFlag changes a feature flag.
func (s *RBACService) UpdateFeatureFlag(ctx context.Context, id string, in *FeatureFlag) (*FeatureFlag, error) {
	r, err := endpoint(http.MethodPut, "/rbac/feature-flags/{id}", id).withJSON(in)
	if err != nil {
		return nil, err
	}
	return getData[*FeatureFlag](ctx, s.c, r)
}

// DeleteFeatureFlag removes a feature flag.
func (s *RBACService) DeleteFeatureFlag(ctx context.Context, id string) error {
	return exec(ctx, s.c, endpoint(http.MethodDelete, "/rbac/feature-flags/{id}", id))
}

// CheckPermission asks the backend whether the caller holds resource.action.
// Unlike the local evaluator this reflects server-side grants.
func (s *RBACService) CheckPermission(ctx context.Context, resource, action string) (bool, error) {
	r, err := endpoint(http.MethodPost, "/rbac/check-permission").withJSON(map[string]string{"resource": resource, "action": action})
	if err != nil {
		return false, err
	}
	var out struct {
		HasPermission bool `json:"hasPermission"`
	}
	if err := topLevel(ctx, s.c, r, &out); err != nil {
		return false, err
	}
	return out.HasPermission, nil
}

// UserPermissions lists the caller's effective permissions.
func (s *RBACService) UserPermissions(ctx context.Context) ([]string, error) {
	var out struct {
		Permissions []string `json:"permissions"`
	}
	if err := topLevel(ctx, s.c, endpoint(http.MethodGet, "/rbac/user-permissions"), &out); err != nil {
		return nil, err
	}
	if out.Permissions == nil {
		return []string{}, nil
	}
	return out.Permissions, nil
}

// topLevel decodes fields that sit beside the envelope rather than in data.
func topLevel(ctx context.Context, c *Client, r request, v any) error {
	resp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	status := resp.StatusCode
	body, err := readBody(resp)
	if err != nil {
		return err
	}
	if _, err := unwrap(status, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrap(errors.ErrCodeAPIDecode, "failed to decode response", err)
	}
	return nil
}
