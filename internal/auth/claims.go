package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agentmitra/portalctl/internal/authz"
	"github.com/agentmitra/portalctl/internal/errors"
)

// AccessClaims are the claims the portal API puts in access tokens.
type AccessClaims struct {
	jwt.RegisteredClaims

	UserID      string   `json:"user_id"`
	PhoneNumber string   `json:"phone_number,omitempty"`
	Email       string   `json:"email,omitempty"`
	FirstName   string   `json:"first_name,omitempty"`
	LastName    string   `json:"last_name,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	Role        string   `json:"role,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	// Permissions stays raw so one malformed entry drops only itself.
	Permissions  any            `json:"permissions,omitempty"`
	TenantID     string         `json:"tenant_id,omitempty"`
	AgentCode    string         `json:"agent_code,omitempty"`
	FeatureFlags map[string]any `json:"feature_flags,omitempty"`
}

// DecodeAccessToken extracts the user from an access token without verifying
// its signature. The server verifies tokens; the client only needs the claims
// to decide what to show.
//
// Permission entries are normalized here, so callers only ever see
// authz.Permission values. Entries of an unknown shape are skipped.
func DecodeAccessToken(token string) (*authz.User, error) {
	if token == "" {
		return nil, errors.New(errors.ErrCodeAuthInvalidToken, "empty access token")
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, &AccessClaims{})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeAuthInvalidToken, "failed to parse access token", err)
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok {
		return nil, errors.New(errors.ErrCodeAuthInvalidToken, "invalid access token claims")
	}

	u := &authz.User{
		UserID:       claims.UserID,
		PhoneNumber:  claims.PhoneNumber,
		Email:        claims.Email,
		FirstName:    claims.FirstName,
		LastName:     claims.LastName,
		DisplayName:  claims.DisplayName,
		Role:         claims.Role,
		Roles:        claims.Roles,
		Permissions:  authz.ParsePermissions(claims.Permissions),
		TenantID:     claims.TenantID,
		AgentCode:    claims.AgentCode,
		FeatureFlags: claims.FeatureFlags,
		IsActive:     true,
	}
	if u.UserID == "" {
		u.UserID = claims.Subject
	}
	if claims.ExpiresAt != nil {
		u.ExpiresAt = claims.ExpiresAt.Time
	}
	u.Normalize()
	return u, nil
}

// UserFromSession decodes the stored access token and returns the user only
// if the token has not expired at now. Any other outcome yields nil.
func UserFromSession(s *Session, now time.Time) *authz.User {
	if s.Empty() {
		return nil
	}
	u, err := DecodeAccessToken(s.AccessToken)
	if err != nil || u.Expired(now) {
		return nil
	}
	return u
}
