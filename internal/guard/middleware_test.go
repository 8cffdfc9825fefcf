package guard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmitra/portalctl/internal/authz"
	"github.com/agentmitra/portalctl/internal/log"
)

func newRouter(s Subject) http.Handler {
	g := New(s, WithLogger(log.Discard()))
	r := chi.NewRouter()
	r.Use(RouteMiddleware(g, MiddlewareConfig{}))
	ok := func(w http.ResponseWriter, r *http.Request) {
		d, found := DecisionFromContext(r.Context())
		if !found || !d.Allowed() {
			http.Error(w, "no decision", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}
	r.Get("/dashboard", ok)
	r.Get("/users", ok)
	return r
}

func serve(h http.Handler, path, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_Allowed(t *testing.T) {
	u := userWith([]string{authz.RoleRegionalManager}, authz.StringPermission("users.read"))
	rec := serve(newRouter(fakeSubject{user: u}), "/users", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMiddleware_RedirectsToLogin(t *testing.T) {
	rec := serve(newRouter(fakeSubject{}), "/users", "")

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestMiddleware_Loading(t *testing.T) {
	rec := serve(newRouter(fakeSubject{loading: true}), "/dashboard", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Checking access")
	assert.NotContains(t, rec.Body.String(), "ok")
}

func TestMiddleware_ForbiddenHTML(t *testing.T) {
	u := userWith([]string{authz.RoleJuniorAgent})
	rec := serve(newRouter(fakeSubject{user: u}), "/users", "text/html")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<strong>Access Denied</strong>")
	assert.Contains(t, rec.Body.String(), "<li>users: read</li>")
}

func TestMiddleware_ForbiddenJSON(t *testing.T) {
	u := userWith([]string{authz.RoleJuniorAgent})
	rec := serve(newRouter(fakeSubject{user: u}), "/users", "application/json")

	require.Equal(t, http.StatusForbidden, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "forbidden", body.Error)
	assert.Equal(t, "Access Denied", body.Message)
	assert.Contains(t, body.Details, "  - users: read")
}

func TestMiddleware_CustomHandlers(t *testing.T) {
	g := New(fakeSubject{}, WithLogger(log.Discard()))
	h := Middleware(g, "/users", Perms("users.read"), MiddlewareConfig{
		UnauthenticatedHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}),
	})(http.NotFoundHandler())

	rec := serve(h, "/users", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	u := userWith([]string{authz.RoleJuniorAgent})
	var denied Decision
	h = Middleware(New(fakeSubject{user: u}, WithLogger(log.Discard())), "/users", Perms("users.read"), MiddlewareConfig{
		ForbiddenHandler: func(w http.ResponseWriter, r *http.Request, d Decision) {
			denied = d
			w.WriteHeader(http.StatusTeapot)
		},
	})(http.NotFoundHandler())

	rec = serve(h, "/users", "")
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "/users", denied.Route)
}
