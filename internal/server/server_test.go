package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmitra/portalctl/internal/authz"
	"github.com/agentmitra/portalctl/internal/errors"
	"github.com/agentmitra/portalctl/internal/guard"
	"github.com/agentmitra/portalctl/internal/health"
	"github.com/agentmitra/portalctl/internal/metrics"
)

type fakeSubject struct {
	loading bool
	user    *authz.User
}

func (f fakeSubject) IsLoading() bool       { return f.loading }
func (f fakeSubject) IsAuthenticated() bool { return f.user != nil }
func (f fakeSubject) User() *authz.User     { return f.user }

type staticChecker struct {
	name   string
	result *health.Result
}

func (c staticChecker) Name() string                             { return c.name }
func (c staticChecker) Check(ctx context.Context) *health.Result { return c.result }

func agent() *authz.User {
	u := &authz.User{
		UserID:      "u-1",
		DisplayName: "Asha Rao",
		Roles:       []string{authz.RoleJuniorAgent},
		Permissions: []authz.Permission{authz.StringPermission("agents.read")},
	}
	u.Normalize()
	return u
}

func newTestServer(subject guard.Subject, deps Deps) *Server {
	deps.Guard = guard.New(subject)
	return NewServer(deps, Config{Address: "127.0.0.1:0"})
}

func get(t *testing.T, s *Server, path string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func TestNewServerDefaults(t *testing.T) {
	s := NewServer(Deps{Guard: guard.New(fakeSubject{})}, Config{Address: ":3000"})

	assert.Equal(t, 30*time.Second, s.shutdownTimeout)
	assert.Equal(t, 10*time.Second, s.httpServer.ReadTimeout)
	assert.Equal(t, 30*time.Second, s.httpServer.WriteTimeout)
	assert.Equal(t, 60*time.Second, s.httpServer.IdleTimeout)
	assert.NotNil(t, s.deps.Probes)
	assert.NotNil(t, s.deps.Logger)
}

func TestPage_Allowed(t *testing.T) {
	s := newTestServer(fakeSubject{user: agent()}, Deps{
		Pages: map[string]Loader{
			authz.RouteCustomers: func(r *http.Request) (any, error) {
				return []string{"c-1", "c-2"}, nil
			},
		},
	})

	rec := get(t, s, authz.RouteCustomers)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var p struct {
		Route      string    `json:"route"`
		Title      string    `json:"title"`
		User       string    `json:"user"`
		Navigation []NavItem `json:"navigation"`
		Data       []string  `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	assert.Equal(t, authz.RouteCustomers, p.Route)
	assert.Equal(t, "Customer Management", p.Title)
	assert.Equal(t, "Asha Rao", p.User)
	assert.Equal(t, []string{"c-1", "c-2"}, p.Data)

	var paths []string
	for _, item := range p.Navigation {
		paths = append(paths, item.Path)
	}
	assert.Equal(t, []string{authz.RouteDashboard, authz.RouteCustomers, authz.RouteCallbacks, authz.RouteSettings}, paths)
}

func TestPage_WithoutLoader(t *testing.T) {
	s := newTestServer(fakeSubject{user: agent()}, Deps{})

	rec := get(t, s, authz.RouteSettings)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"data"`)
}

func TestPage_Denials(t *testing.T) {
	tests := []struct {
		name       string
		subject    fakeSubject
		path       string
		wantStatus int
		wantBody   string
	}{
		{"signed out redirects", fakeSubject{}, authz.RouteDashboard, http.StatusFound, ""},
		{"loading", fakeSubject{loading: true}, authz.RouteDashboard, http.StatusServiceUnavailable, "Checking access"},
		{"missing permission", fakeSubject{user: agent()}, authz.RouteUsers, http.StatusForbidden, "users: read"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(tt.subject, Deps{})
			rec := get(t, s, tt.path, "Accept", "application/json")

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusFound {
				assert.Equal(t, authz.RouteLogin, rec.Header().Get("Location"))
			}
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestRootRedirectsToDashboard(t *testing.T) {
	s := newTestServer(fakeSubject{user: agent()}, Deps{})

	rec := get(t, s, "/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, authz.RouteDashboard, rec.Header().Get("Location"))
}

func TestPage_LoaderError(t *testing.T) {
	s := newTestServer(fakeSubject{user: agent()}, Deps{
		Pages: map[string]Loader{
			authz.RouteCustomers: func(r *http.Request) (any, error) {
				return nil, errors.NewAPIError(404, "Customer not found")
			},
		},
	})

	rec := get(t, s, authz.RouteCustomers)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "API-004", body.Error)
	assert.Equal(t, "Customer not found", body.Message)
}

func TestPage_SessionEndedDuringLoad(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"no session", errors.NewAuthRequiredError()},
		{"refresh failed", errors.NewSessionExpiredError(fmt.Errorf("refresh rejected"))},
		{"retry rejected", errors.New(errors.ErrCodeAuthInvalidToken, "request rejected after token refresh")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(fakeSubject{user: agent()}, Deps{
				Pages: map[string]Loader{
					authz.RouteCustomers: func(r *http.Request) (any, error) { return nil, tt.err },
				},
			})

			rec := get(t, s, authz.RouteCustomers, "Accept", "text/html")
			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, authz.RouteLogin, rec.Header().Get("Location"))

			rec = get(t, s, authz.RouteCustomers, "Accept", "application/json")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			var body ErrorBody
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, string(errors.CodeOf(tt.err)), body.Error)
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.NewAPIError(404, "gone"), http.StatusNotFound},
		{errors.NewAPIError(422, "bad"), http.StatusUnprocessableEntity},
		{errors.NewAPIError(500, "boom"), http.StatusBadGateway},
		{errors.NewAuthRequiredError(), http.StatusUnauthorized},
		{errors.NewSessionExpiredError(nil), http.StatusUnauthorized},
		{errors.NewUnreachableError("http://api", io.EOF), http.StatusBadGateway},
		{errors.New(errors.ErrCodeAuthLoginFailed, "bad password"), http.StatusUnauthorized},
		{errors.New(errors.ErrCodeUsage, "missing phone"), http.StatusBadRequest},
		{errors.NewForbiddenError("/users", nil), http.StatusForbidden},
		{fmt.Errorf("wrapped: %w", errors.NewAPIError(404, "gone")), http.StatusNotFound},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestLoginNotice(t *testing.T) {
	t.Run("signed out", func(t *testing.T) {
		rec := get(t, newTestServer(fakeSubject{}, Deps{}), authz.RouteLogin)
		require.Equal(t, http.StatusOK, rec.Code)

		var n LoginNotice
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&n))
		assert.False(t, n.Authenticated)
		assert.Contains(t, n.Message, "portalctl auth login")
	})

	t.Run("signed in", func(t *testing.T) {
		rec := get(t, newTestServer(fakeSubject{user: agent()}, Deps{}), authz.RouteLogin)

		var n LoginNotice
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&n))
		assert.True(t, n.Authenticated)
		assert.Equal(t, "Asha Rao", n.User)
	})
}

func TestLoginHandler(t *testing.T) {
	called := false
	s := newTestServer(fakeSubject{}, Deps{
		Login: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusNoContent)
		}),
	})

	req := httptest.NewRequest(http.MethodPost, authz.RouteLogin, strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestProbes(t *testing.T) {
	probes := health.NewProbes("1.2.3")
	probes.AddChecker(staticChecker{name: "portal-api", result: health.Unhealthy("down")})
	s := newTestServer(fakeSubject{}, Deps{Probes: probes})

	live := get(t, s, "/health/live")
	assert.Equal(t, http.StatusOK, live.Code)

	for _, path := range []string{"/healthz", "/health/ready"} {
		rec := get(t, s, path)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)

		var res health.ProbeResult
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
		assert.Equal(t, health.StatusUnhealthy, res.Status)
		assert.Equal(t, "1.2.3", res.Version)
		assert.Contains(t, res.Checks, "portal-api")
	}
}

func TestShutdown(t *testing.T) {
	probes := health.NewProbes("1.2.3")
	s := newTestServer(fakeSubject{}, Deps{Probes: probes})

	require.NoError(t, s.Shutdown(context.Background()))
	assert.True(t, s.IsShuttingDown())
	assert.True(t, probes.IsShuttingDown())

	live := get(t, s, "/health/live")
	assert.Equal(t, http.StatusOK, live.Code)
	assert.Contains(t, live.Body.String(), string(health.StatusDegraded))

	ready := get(t, s, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, ready.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg, m := metrics.NewRegistry()
	s := newTestServer(fakeSubject{user: agent()}, Deps{Gatherer: reg, Metrics: m})

	get(t, s, authz.RouteDashboard)
	rec := get(t, s, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `portalctl_server_requests_total{method="GET",route="/dashboard",status="200"} 1`)
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	s := newTestServer(fakeSubject{}, Deps{})

	rec := get(t, s, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
