// Package server serves the portal pages behind the route guard.
//
// Every navigation route is mounted under the guard middleware, so a page
// handler only runs for an authenticated user holding the route's
// permissions. The server also exposes health probes and Prometheus
// metrics, and drains connections on shutdown.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentmitra/portalctl/internal/authz"
	"github.com/agentmitra/portalctl/internal/errors"
	"github.com/agentmitra/portalctl/internal/guard"
	"github.com/agentmitra/portalctl/internal/health"
	"github.com/agentmitra/portalctl/internal/log"
	"github.com/agentmitra/portalctl/internal/metrics"
)

// Loader produces the data for one page. The request carries the guard
// decision, see guard.DecisionFromContext.
type Loader func(r *http.Request) (any, error)

// Config holds server configuration.
type Config struct {
	// Address is the listen address (e.g., "127.0.0.1:3000").
	Address string

	// ShutdownTimeout bounds connection draining. Defaults to 30 seconds.
	ShutdownTimeout time.Duration

	// ReadTimeout defaults to 10 seconds.
	ReadTimeout time.Duration

	// WriteTimeout defaults to 30 seconds.
	WriteTimeout time.Duration

	// IdleTimeout defaults to 60 seconds.
	IdleTimeout time.Duration
}

// Deps are the collaborators the server routes to.
type Deps struct {
	Guard  *guard.Guard
	Probes *health.Probes

	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Metrics
	Logger   *log.Logger

	// Pages maps a navigation path to its loader. Routes without a loader
	// answer with navigation only.
	Pages map[string]Loader

	// Login handles POST /login. Nil leaves only the GET notice.
	Login http.Handler
	// Logout handles POST /logout.
	Logout http.Handler
}

// Server is the portal HTTP server.
type Server struct {
	httpServer      *http.Server
	deps            Deps
	inShutdown      atomic.Bool
	shutdownTimeout time.Duration
}

// NewServer creates a server; call Start to listen.
func NewServer(deps Deps, cfg Config) *Server {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	if deps.Probes == nil {
		deps.Probes = health.NewProbes("")
	}

	s := &Server{
		deps:            deps,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleReadiness)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/health/live", s.handleLiveness)
	if s.deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.HandlerFor(s.deps.Gatherer))
	}

	r.Get(authz.RouteLogin, s.handleLoginNotice)
	if s.deps.Login != nil {
		r.Method(http.MethodPost, authz.RouteLogin, s.deps.Login)
	}
	if s.deps.Logout != nil {
		r.Method(http.MethodPost, "/logout", s.deps.Logout)
	}

	r.Group(func(r chi.Router) {
		r.Use(guard.RouteMiddleware(s.deps.Guard, guard.MiddlewareConfig{}))
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, authz.RouteDashboard, http.StatusFound)
		})
		for _, rt := range guard.Routes {
			r.Get(rt.Path, s.page(rt))
		}
	})
	return r
}

// Start listens until the server is shut down. It returns
// http.ErrServerClosed after a graceful shutdown.
func (s *Server) Start() error {
	s.deps.Logger.Info("portal server listening", "address", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown fails readiness first, then drains connections for at most
// the shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	s.deps.Probes.MarkShutdown()
	s.httpServer.SetKeepAlivesEnabled(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// IsShuttingDown returns whether the server is shutting down.
func (s *Server) IsShuttingDown() bool {
	return s.inShutdown.Load()
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if s.deps.Metrics != nil {
			s.deps.Metrics.ObserveServer(r.Method, route, status, elapsed)
		}
		s.deps.Logger.Debug("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"elapsed", elapsed,
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// NavItem is one entry of the navigation returned with every page.
type NavItem struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

// Page is the JSON body of a portal page.
type Page struct {
	Route      string    `json:"route"`
	Title      string    `json:"title"`
	User       string    `json:"user"`
	Roles      []string  `json:"roles,omitempty"`
	Navigation []NavItem `json:"navigation"`
	Data       any       `json:"data,omitempty"`
}

func (s *Server) page(rt guard.Route) http.HandlerFunc {
	load := s.deps.Pages[rt.Path]
	return func(w http.ResponseWriter, r *http.Request) {
		subject := s.deps.Guard.Subject()
		p := Page{
			Route: rt.Path,
			Title: rt.Title,
		}
		if u := subject.User(); u != nil {
			p.User = u.Name()
			p.Roles = u.Roles
		}
		for _, item := range guard.NavigationItems(subject) {
			p.Navigation = append(p.Navigation, NavItem{Path: item.Path, Title: item.Title})
		}

		if load != nil {
			data, err := load(r)
			if err != nil {
				if sessionLost(err) && !guard.WantsJSON(r) {
					s.deps.Logger.WithError(err).Info("session ended, redirecting to login", "path", r.URL.Path)
					http.Redirect(w, r, guard.LoginRoute, http.StatusFound)
					return
				}
				s.writeError(w, r, err)
				return
			}
			p.Data = data
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// sessionLost reports whether err means the API evicted the session.
func sessionLost(err error) bool {
	switch errors.CodeOf(err) {
	case errors.ErrCodeAuthRequired, errors.ErrCodeAuthSessionExpired, errors.ErrCodeAuthInvalidToken:
		return true
	}
	return false
}

// LoginNotice is the body of GET /login.
type LoginNotice struct {
	Authenticated bool   `json:"authenticated"`
	User          string `json:"user,omitempty"`
	Message       string `json:"message"`
}

func (s *Server) handleLoginNotice(w http.ResponseWriter, r *http.Request) {
	subject := s.deps.Guard.Subject()
	n := LoginNotice{Message: "Sign in with 'portalctl auth login' or POST credentials to /login"}
	if !subject.IsLoading() && subject.IsAuthenticated() {
		n.Authenticated = true
		n.User = subject.User().Name()
		n.Message = "Signed in"
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	// Liveness stays 200 during shutdown.
	writeProbe(w, s.deps.Probes.Liveness(), http.StatusOK)
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	writeProbe(w, s.deps.Probes.Readiness(r.Context()), http.StatusServiceUnavailable)
}

func writeProbe(w http.ResponseWriter, result *health.ProbeResult, unhealthyStatus int) {
	status := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		status = unhealthyStatus
	}
	writeJSON(w, status, result)
}

// ErrorBody is the JSON body of a failed page load.
type ErrorBody struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Hints   []string `json:"hints,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.deps.Logger.WithError(err).Warn("page load failed", "path", r.URL.Path)
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordError(err, "server")
	}
	WriteError(w, err)
}

// WriteError answers with err as an ErrorBody and the status StatusFor
// picks.
func WriteError(w http.ResponseWriter, err error) {
	body := ErrorBody{Error: "internal", Message: err.Error()}
	if pe := asPortalError(err); pe != nil {
		body.Error = string(pe.Code)
		body.Message = pe.Message
		body.Hints = pe.Suggestions
	}
	writeJSON(w, StatusFor(err), body)
}

// WriteJSON answers with v encoded as JSON.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, v)
}

// StatusFor maps an error to the HTTP status a page answers with.
func StatusFor(err error) int {
	switch code := errors.CodeOf(err); {
	case code == errors.ErrCodeAPINotFound:
		return http.StatusNotFound
	case code == errors.ErrCodeAccessForbidden:
		return http.StatusForbidden
	case code == errors.ErrCodeAuthRequired, code == errors.ErrCodeAuthSessionExpired, code == errors.ErrCodeAuthInvalidToken,
		code == errors.ErrCodeAuthLoginFailed, code == errors.ErrCodeAuthOTPFailed:
		return http.StatusUnauthorized
	case code == errors.ErrCodeUsage:
		return http.StatusBadRequest
	case code == errors.ErrCodeAPIUnreachable:
		return http.StatusBadGateway
	case code == errors.ErrCodeAPIRequest:
		if pe := asPortalError(err); pe != nil && pe.Status >= 400 && pe.Status < 500 {
			return pe.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func asPortalError(err error) *errors.PortalError {
	var pe *errors.PortalError
	if stderrors.As(err, &pe) {
		return pe
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
