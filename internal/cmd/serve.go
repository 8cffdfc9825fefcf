package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/agentmitra/portalctl/internal/api"
	"github.com/agentmitra/portalctl/internal/auth"
	"github.com/agentmitra/portalctl/internal/authz"
	"github.com/agentmitra/portalctl/internal/errors"
	"github.com/agentmitra/portalctl/internal/health"
	"github.com/agentmitra/portalctl/internal/server"
	"github.com/agentmitra/portalctl/internal/version"
)

type serveOptions struct {
	address         string
	shutdownTimeout time.Duration
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	noMetrics       bool
}

func newServeCmd(a *App) *cobra.Command {
	var o serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the portal pages and health endpoints over HTTP",
		Long: `Start a local HTTP server that answers every portal page as JSON, guarded
by the signed-in session exactly like the CLI commands.

Signing in or out with 'portalctl auth' in another terminal is picked up
without a restart.

Endpoints:
  /dashboard, /customers, ...  Portal pages
  POST /login, POST /logout    Session management
  /health/live                 Liveness probe
  /health/ready, /healthz      Readiness probe (checks the portal API)
  /metrics                     Prometheus metrics

The server drains connections on SIGINT or SIGTERM.

Examples:
  portalctl serve
  portalctl serve --addr 0.0.0.0:8080 --shutdown-timeout 60s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, a, o)
		},
	}

	cmd.Flags().StringVar(&o.address, "addr", "", "listen address (default: server_addr from config)")
	cmd.Flags().DurationVar(&o.shutdownTimeout, "shutdown-timeout", 30*time.Second, "maximum time to drain connections during shutdown")
	cmd.Flags().DurationVar(&o.readTimeout, "read-timeout", 10*time.Second, "maximum duration for reading a request")
	cmd.Flags().DurationVar(&o.writeTimeout, "write-timeout", 30*time.Second, "maximum duration for writing a response")
	cmd.Flags().DurationVar(&o.idleTimeout, "idle-timeout", 60*time.Second, "maximum time to wait for the next request")
	cmd.Flags().BoolVar(&o.noMetrics, "no-metrics", false, "do not expose /metrics")
	return cmd
}

func runServe(cmd *cobra.Command, a *App, o serveOptions) error {
	ctx := cmd.Context()
	info := version.GetInfo()

	addr := o.address
	if addr == "" {
		addr = a.Config.ServerAddr
	}

	sessionPath, err := a.Config.SessionPath()
	if err != nil {
		return err
	}
	watcher, err := auth.NewWatcher(sessionPath, a.Bus, a.Logger)
	if err != nil {
		return errors.Wrap(errors.ErrCodeDirectoryFailed, "cannot watch the session file", err)
	}
	defer watcher.Close()
	if err := watcher.Start(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeDirectoryFailed, "cannot watch the session file", err)
	}

	// The CLI defers the role catalogue; the server shows it on /settings.
	a.RBAC.RefreshMetadata(ctx)

	probes := health.NewProbes(info.Version)
	probes.AddChecker(health.NewAPIChecker(a.Client.BaseURL(), a.Client.Ping))
	probes.AddChecker(health.NewSessionChecker(a.Store))

	deps := server.Deps{
		Guard:   a.Guard,
		Probes:  probes,
		Metrics: a.Metrics,
		Logger:  a.Logger,
		Pages:   a.pageLoaders(),
		Login:   a.loginHandler(),
		Logout:  a.logoutHandler(),
	}
	if !o.noMetrics {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	srv := server.NewServer(deps, server.Config{
		Address:         addr,
		ShutdownTimeout: o.shutdownTimeout,
		ReadTimeout:     o.readTimeout,
		WriteTimeout:    o.writeTimeout,
		IdleTimeout:     o.idleTimeout,
	})

	if !a.Flags.Quiet {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "portalctl %s serving %s\n", info.Version, a.Config.APIURL)
		fmt.Fprintf(out, "Listening on:  http://%s\n", addr)
		fmt.Fprintf(out, "Readiness:     http://%s/health/ready\n", addr)
		if !o.noMetrics {
			fmt.Fprintf(out, "Metrics:       http://%s/metrics\n", addr)
		}
		fmt.Fprintf(out, "Press Ctrl+C to stop the server\n\n")
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		a.Logger.Info("shutting down portal server", "address", addr)

		// ctx is already cancelled; drain on a fresh one.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), o.shutdownTimeout+5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		if !a.Flags.Quiet {
			fmt.Fprintln(cmd.OutOrStdout(), "Server stopped gracefully")
		}
		return nil
	}
}

// pageLoaders fetches the data behind each portal page. Query parameters
// page and page_size page through listings; search and status filter them.
func (a *App) pageLoaders() map[string]server.Loader {
	return map[string]server.Loader{
		authz.RouteDashboard: func(r *http.Request) (any, error) {
			recent, err := a.Client.Import.History(r.Context(), api.ListOptions{Page: 1, PageSize: 5})
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"routes":         a.RBAC.AccessibleRoutes(),
				"recent_imports": recent.Data,
			}, nil
		},
		authz.RouteCustomers: func(r *http.Request) (any, error) {
			q := r.URL.Query()
			return a.Client.Customers.List(r.Context(), listOptions(r), api.CustomerFilters{
				Search:    q.Get("search"),
				Status:    q.Get("status"),
				AgentCode: q.Get("agent_code"),
				City:      q.Get("city"),
				State:     q.Get("state"),
			})
		},
		authz.RouteUsers: func(r *http.Request) (any, error) {
			q := r.URL.Query()
			return a.Client.Users.List(r.Context(), listOptions(r), api.UserFilters{
				Search: q.Get("search"),
				Role:   q.Get("role"),
			})
		},
		authz.RouteCampaigns: func(r *http.Request) (any, error) {
			q := r.URL.Query()
			return a.Client.Campaigns.List(r.Context(), api.CampaignFilters{Status: q.Get("status"), Type: q.Get("type")})
		},
		authz.RouteCallbacks: func(r *http.Request) (any, error) {
			q := r.URL.Query()
			return a.Client.Callbacks.List(r.Context(), api.CallbackFilters{Status: q.Get("status"), Priority: q.Get("priority")})
		},
		authz.RouteReporting: func(r *http.Request) (any, error) {
			return a.Client.Reports.History(r.Context(), listOptions(r))
		},
		authz.RouteDataImport: func(r *http.Request) (any, error) {
			return a.Client.Import.History(r.Context(), listOptions(r))
		},
		authz.RouteExcelTemplate: func(r *http.Request) (any, error) {
			return a.Client.Import.Templates(r.Context())
		},
		authz.RouteSettings: func(r *http.Request) (any, error) {
			return map[string]any{
				"api_url":               a.Config.APIURL,
				"available_roles":       a.RBAC.AvailableRoles(),
				"available_permissions": a.RBAC.AvailablePermissions(),
			}, nil
		},
	}
}

func listOptions(r *http.Request) api.ListOptions {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	return api.ListOptions{Page: max(page, 0), PageSize: max(size, 0)}
}

// loginHandler accepts JSON or form credentials, signs in against the
// portal API and makes the new user current for every page.
func (a *App) loginHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.LoginRequest
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				server.WriteError(w, usageError("malformed login body: "+err.Error()))
				return
			}
		} else {
			if err := r.ParseForm(); err != nil {
				server.WriteError(w, usageError("malformed login form: "+err.Error()))
				return
			}
			req = api.LoginRequest{
				PhoneNumber: r.PostForm.Get("phone_number"),
				Password:    r.PostForm.Get("password"),
				AgentCode:   r.PostForm.Get("agent_code"),
			}
		}
		if req.PhoneNumber == "" || (req.Password == "" && req.AgentCode == "") {
			server.WriteError(w, usageError("phone_number and password are required"))
			return
		}

		resp, err := a.Client.Auth.Login(r.Context(), req)
		if err != nil {
			server.WriteError(w, errors.Wrap(errors.ErrCodeAuthLoginFailed, "login failed", err))
			return
		}
		user, err := a.Client.Auth.Establish(resp)
		if err != nil {
			server.WriteError(w, errors.Wrap(errors.ErrCodeAuthInvalidToken, "the server returned an unusable access token", err))
			return
		}
		a.RBAC.Login(user)
		a.Logger.Info("signed in over http", "user_id", user.UserID)
		server.WriteJSON(w, http.StatusOK, sessionView(user, time.Now()))
	})
}

func (a *App) logoutHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.RBAC.Logout(r.Context()); err != nil {
			server.WriteError(w, errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to remove the session file", err))
			return
		}
		server.WriteJSON(w, http.StatusOK, SessionView{})
	})
}
