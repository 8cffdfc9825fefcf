package health

import (
	"context"
	"time"

	"github.com/agentmitra/portalctl/internal/auth"
	"github.com/agentmitra/portalctl/internal/errors"
)

// APIChecker pings the portal API.
type APIChecker struct {
	baseURL string
	ping    func(context.Context) error
}

// NewAPIChecker checks baseURL with ping, typically api.Client.Ping.
func NewAPIChecker(baseURL string, ping func(context.Context) error) *APIChecker {
	return &APIChecker{baseURL: baseURL, ping: ping}
}

// Name implements Checker.
func (c *APIChecker) Name() string { return "portal-api" }

// Check implements Checker. An unreachable API is unhealthy; an API that
// answers with an error status is degraded.
func (c *APIChecker) Check(ctx context.Context) *Result {
	start := time.Now()
	err := c.ping(ctx)
	var r *Result
	switch {
	case err == nil:
		r = Healthy("API is reachable")
	case errors.HasCode(err, errors.ErrCodeAPIUnreachable) || ctx.Err() != nil:
		r = Unhealthy("API is unreachable").WithDetail("error", err.Error())
	default:
		r = Degraded("API answered with an error").WithDetail("error", err.Error())
	}
	r.Latency = time.Since(start)
	return r.WithDetail("base_url", c.baseURL)
}

// SessionChecker inspects the stored session without contacting the API.
type SessionChecker struct {
	store auth.SessionStore
	now   func() time.Time
}

// NewSessionChecker checks the session held by store.
func NewSessionChecker(store auth.SessionStore) *SessionChecker {
	return &SessionChecker{store: store, now: time.Now}
}

// Name implements Checker.
func (c *SessionChecker) Name() string { return "session" }

// Check implements Checker. No session or an expired one is degraded: the
// CLI still works for config and login. An unreadable store is unhealthy.
func (c *SessionChecker) Check(context.Context) *Result {
	s, err := c.store.Load()
	if err != nil {
		return Unhealthy("session store is unreadable").WithDetail("error", err.Error())
	}
	if s.Empty() {
		return Degraded("not logged in")
	}
	user, err := auth.DecodeAccessToken(s.AccessToken)
	if err != nil {
		return Degraded("stored access token cannot be decoded").WithDetail("error", err.Error())
	}
	r := Healthy("logged in as "+user.Name()).
		WithDetail("user_id", user.UserID).
		WithDetail("roles", user.Roles).
		WithDetail("expires_at", user.ExpiresAt)
	if user.Expired(c.now()) {
		r.Status = StatusDegraded
		r.Message = "access token expired"
		r.WithDetail("refreshable", s.RefreshToken != "")
	}
	return r
}
