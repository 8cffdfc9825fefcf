package health

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmitra/portalctl/internal/auth"
	"github.com/agentmitra/portalctl/internal/errors"
)

type staticChecker struct {
	name   string
	result *Result
	delay  time.Duration
}

func (c staticChecker) Name() string { return c.name }

func (c staticChecker) Check(ctx context.Context) *Result {
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return Unhealthy("timed out")
		}
	}
	return c.result
}

func TestManager_Check(t *testing.T) {
	m := NewManager().WithTimeout(50 * time.Millisecond)
	m.AddChecker(staticChecker{name: "a", result: Healthy("ok")})
	m.AddChecker(staticChecker{name: "slow", result: Healthy("ok"), delay: time.Second})
	m.AddChecker(staticChecker{name: "nil"})

	assert.Equal(t, []string{"a", "slow", "nil"}, m.CheckNames())

	results := m.Check(context.Background())
	require.Len(t, results, 3)
	assert.Equal(t, StatusHealthy, results["a"].Status)
	assert.Equal(t, "timed out", results["slow"].Message)
	assert.Equal(t, StatusUnhealthy, results["nil"].Status)
	assert.NotZero(t, results["a"].Latency)
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]*Result
		want    Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", map[string]*Result{"a": Healthy(""), "b": Healthy("")}, StatusHealthy},
		{"one degraded", map[string]*Result{"a": Healthy(""), "b": Degraded("")}, StatusDegraded},
		{"unhealthy wins", map[string]*Result{"a": Degraded(""), "b": Unhealthy("")}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OverallStatus(tt.results))
		})
	}
}

func TestProbes(t *testing.T) {
	p := NewProbes("1.2.3")
	p.AddChecker(staticChecker{name: "session", result: Degraded("not logged in")})

	assert.Equal(t, StatusHealthy, p.Liveness().Status)

	ready := p.Readiness(context.Background())
	assert.Equal(t, StatusDegraded, ready.Status)
	assert.Equal(t, "1.2.3", ready.Version)
	assert.Contains(t, ready.Checks, "session")

	p.MarkShutdown()
	assert.Equal(t, StatusDegraded, p.Liveness().Status)
	ready = p.Readiness(context.Background())
	assert.Equal(t, StatusUnhealthy, ready.Status)
	assert.Empty(t, ready.Checks)
}

func TestAPIChecker(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"reachable", nil, StatusHealthy},
		{"unreachable", errors.NewUnreachableError("http://api", fmt.Errorf("connection refused")), StatusUnhealthy},
		{"error status", errors.NewAPIError(503, "maintenance"), StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewAPIChecker("http://api", func(context.Context) error { return tt.err })
			r := c.Check(context.Background())
			assert.Equal(t, tt.want, r.Status)
			assert.Equal(t, "http://api", r.Details["base_url"])
		})
	}
}

func token(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "user-9",
		"role": "regional_manager",
		"exp":  exp.Unix(),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	return tok
}

func TestSessionChecker(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		session *auth.Session
		want    Status
		message string
	}{
		{"no session", nil, StatusDegraded, "not logged in"},
		{"garbage token", &auth.Session{AccessToken: "not-a-jwt"}, StatusDegraded, "stored access token cannot be decoded"},
		{"valid", &auth.Session{AccessToken: token(t, now.Add(time.Hour))}, StatusHealthy, "logged in as user-9"},
		{"expired", &auth.Session{AccessToken: token(t, now.Add(-time.Hour)), RefreshToken: "r"}, StatusDegraded, "access token expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := auth.NewMemoryStore(nil)
			if tt.session != nil {
				require.NoError(t, store.Save(tt.session))
			}
			c := NewSessionChecker(store)
			c.now = func() time.Time { return now }

			r := c.Check(context.Background())
			assert.Equal(t, tt.want, r.Status)
			assert.Equal(t, tt.message, r.Message)
		})
	}
}
