package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/agentmitra/portalctl/internal/authz"
)

// User is a portal account as managed by administrators.
type User struct {
	ID          string             `json:"id"`
	Email       string             `json:"email"`
	FirstName   string             `json:"firstName"`
	LastName    string             `json:"lastName"`
	Phone       string             `json:"phone,omitempty"`
	Role        string             `json:"role"`
	AgentCode   string             `json:"agentCode,omitempty"`
	IsActive    bool               `json:"isActive"`
	LastLoginAt string             `json:"lastLoginAt,omitempty"`
	CreatedAt   string             `json:"createdAt,omitempty"`
	UpdatedAt   string             `json:"updatedAt,omitempty"`
	Permissions []authz.Permission `json:"permissions,omitempty"`
}

// NewUser is a user plus its initial password.
type NewUser struct {
	User
	Password string `json:"password"`
}

// UserFilters narrow a user listing.
type UserFilters struct {
	Search    string
	Role      string
	IsActive  *bool
	AgentCode string
}

func (f UserFilters) values() url.Values {
	q := url.Values{}
	setIf(q, "search", f.Search)
	setIf(q, "role", f.Role)
	setIf(q, "agentCode", f.AgentCode)
	if f.IsActive != nil {
		q.Set("isActive", strconv.FormatBool(*f.IsActive))
	}
	return q
}

// UserActivityLog is one audited action.
type UserActivityLog struct {
	ID         string         `json:"id"`
	UserID     string         `json:"userId"`
	UserName   string         `json:"userName"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resourceId,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	IPAddress  string         `json:"ipAddress,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

// RoleInfo describes an assignable role.
type RoleInfo struct {
	Role        string `json:"role"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UserService manages portal users.
type UserService struct{ c *Client }

// List returns one page of users.
func (s *UserService) List(ctx context.Context, opts ListOptions, f UserFilters) (*Page[User], error) {
	q := f.values()
	opts.apply(q)
	return getPage[User](ctx, s.c, endpoint(http.MethodGet, "/users").withQuery(q))
}

// Get returns one user.
func (s *UserService) Get(ctx context.Context, id string) (*User, error) {
	return getData[*User](ctx, s.c, endpoint(http.MethodGet, "/users/{id}", id))
}

// Create adds a user.
func (s *UserService) Create(ctx context.Context, in *NewUser) (*User, error) {
	r, err := endpoint(http.MethodPost, "/users").withJSON(in)
	if err != nil {
		return nil, err
	}
	return getData[*User](ctx, s.c, r)
}

// Update applies fields to a user.
func (s *UserService) Update(ctx context.Context, id string, fields map[string]any) (*User, error) {
	r, err := endpoint(http.MethodPut, "/users/{id}", id).withJSON(fields)
	if err != nil {
		return nil, err
	}
	return getData[*User](ctx, s.c, r)
}

// Delete removes a user.
func (s *UserService) Delete(ctx context.Context, id string) error {
	return exec(ctx, s.c, endpoint(http.MethodDelete, "/users/{id}", id))
}

// UpdatePermissions replaces a user's direct permissions.
func (s *UserService) UpdatePermissions(ctx context.Context, id string, perms []authz.Permission) (*User, error) {
	r, err := endpoint(http.MethodPut, "/users/{id}/permissions", id).withJSON(map[string]any{"permissions": perms})
	if err != nil {
		return nil, err
	}
	return getData[*User](ctx, s.c, r)
}

// ActivityLogs pages through audit entries, for one user when userID is set.
func (s *UserService) ActivityLogs(ctx context.Context, userID string, opts ListOptions) (*Page[UserActivityLog], error) {
	q := url.Values{}
	setIf(q, "userId", userID)
	opts.apply(q)
	return getPage[UserActivityLog](ctx, s.c, endpoint(http.MethodGet, "/users/activity-logs").withQuery(q))
}

// Roles lists the roles that can be assigned to users.
func (s *UserService) Roles(ctx context.Context) ([]RoleInfo, error) {
	return getData[[]RoleInfo](ctx, s.c, endpoint(http.MethodGet, "/users/roles"))
}

// ResetPassword sets a new password for a user.
func (s *UserService) ResetPassword(ctx context.Context, id, password string) error {
	r, err := endpoint(http.MethodPost, "/users/{id}/reset-password", id).withJSON(map[string]string{"password": password})
	if err != nil {
		return err
	}
	return exec(ctx, s.c, r)
}
