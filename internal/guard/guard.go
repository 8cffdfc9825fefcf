// Package guard decides whether the current user may open a portal route
// or run a command, and renders the denial when not.
package guard

import (
	"fmt"
	"strings"

	"github.com/agentmitra/portalctl/internal/authz"
	"github.com/agentmitra/portalctl/internal/errors"
	"github.com/agentmitra/portalctl/internal/log"
)

// LoginRoute is where unauthenticated users are sent.
const LoginRoute = authz.RouteLogin

// State is the outcome of a guard check.
type State int

const (
	// StateChecking means the session is still loading; nothing protected
	// may be shown yet.
	StateChecking State = iota
	StateDeniedUnauthenticated
	StateDeniedForbidden
	StateAllowed
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateDeniedUnauthenticated:
		return "denied_unauthenticated"
	case StateDeniedForbidden:
		return "denied_forbidden"
	case StateAllowed:
		return "allowed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Requirements gate a route. Roles are satisfied by any one of them;
// permissions must all be held. Empty means authenticated is enough.
type Requirements struct {
	Roles       []string            `yaml:"roles,omitempty"`
	Permissions []authz.Requirement `yaml:"permissions,omitempty"`
}

// Empty reports whether there is nothing beyond authentication to check.
func (r Requirements) Empty() bool {
	return len(r.Roles) == 0 && len(r.Permissions) == 0
}

// Perms builds requirements from "resource.action" strings. It panics on a
// malformed string; use it for static tables only.
func Perms(specs ...string) Requirements {
	reqs := make([]authz.Requirement, 0, len(specs))
	for _, s := range specs {
		r, err := authz.ParseRequirement(s)
		if err != nil {
			panic(err)
		}
		reqs = append(reqs, r)
	}
	return Requirements{Permissions: reqs}
}

// Subject is what the guard needs to know about the session. auth.Context
// implements it.
type Subject interface {
	IsLoading() bool
	IsAuthenticated() bool
	User() *authz.User
}

// Decision is the result of evaluating one route for one subject.
type Decision struct {
	Route string
	State State

	// RedirectTo is set for StateDeniedUnauthenticated.
	RedirectTo string

	// Set for a role denial.
	RequiredRoles []string
	UserRoles     []string

	// Set for a permission denial. RequiredPermissions is the full list the
	// route demands; Missing is the subset the user lacks.
	RequiredPermissions []authz.Requirement
	Missing             []authz.Requirement
}

// Allowed reports whether protected content may be shown.
func (d Decision) Allowed() bool {
	return d.State == StateAllowed
}

// RoleDenied reports whether the denial came from the role check.
func (d Decision) RoleDenied() bool {
	return d.State == StateDeniedForbidden && len(d.RequiredRoles) > 0
}

// Evaluate runs the guard state machine. Checks run in order: loading,
// authentication, roles (any), permissions (all).
func Evaluate(s Subject, route string, req Requirements) Decision {
	d := Decision{Route: route}

	if s.IsLoading() {
		d.State = StateChecking
		return d
	}

	u := s.User()
	if !s.IsAuthenticated() || u == nil {
		d.State = StateDeniedUnauthenticated
		d.RedirectTo = LoginRoute
		return d
	}

	if len(req.Roles) > 0 && !authz.HasAnyRole(u, req.Roles) {
		d.State = StateDeniedForbidden
		d.RequiredRoles = req.Roles
		d.UserRoles = u.Roles
		return d
	}

	if len(req.Permissions) > 0 {
		if missing := authz.MissingPermissions(u, req.Permissions); len(missing) > 0 {
			d.State = StateDeniedForbidden
			d.RequiredPermissions = req.Permissions
			d.Missing = missing
			return d
		}
	}

	d.State = StateAllowed
	return d
}

// Lines renders the denial panel as text lines. Allowed decisions render
// nothing.
func (d Decision) Lines() []string {
	switch d.State {
	case StateChecking:
		return []string{"Checking access..."}
	case StateDeniedUnauthenticated:
		return []string{"Not signed in. Redirecting to " + d.RedirectTo + "."}
	case StateDeniedForbidden:
		if d.RoleDenied() {
			return []string{
				"Access Denied",
				"You don't have the required role to access this page.",
				"Required roles: " + strings.Join(d.RequiredRoles, ", "),
				"Your roles: " + strings.Join(d.UserRoles, ", "),
			}
		}
		lines := []string{
			"Access Denied",
			"You don't have the required permissions to access this page.",
			"Required permissions:",
		}
		for _, p := range d.RequiredPermissions {
			lines = append(lines, "  - "+p.String())
		}
		return lines
	}
	return nil
}

// Err converts a non-allowed decision into a coded error.
func (d Decision) Err() error {
	switch d.State {
	case StateChecking:
		return errors.New(errors.ErrCodeAccessLoading, "session is still loading")
	case StateDeniedUnauthenticated:
		return errors.NewAuthRequiredError()
	case StateDeniedForbidden:
		var missing []string
		if d.RoleDenied() {
			missing = append(missing, "one of roles "+strings.Join(d.RequiredRoles, ", "))
		}
		for _, p := range d.Missing {
			missing = append(missing, p.String())
		}
		return errors.NewForbiddenError(d.Route, missing)
	}
	return nil
}

// Observer receives every decision, typically for metrics.
type Observer func(Decision)

// Guard binds Evaluate to a subject and reports decisions.
type Guard struct {
	subject Subject
	logger  *log.Logger
	observe Observer
}

// Option customizes a Guard.
type Option func(*Guard)

// WithLogger sets the logger denials are recorded on.
func WithLogger(l *log.Logger) Option {
	return func(g *Guard) { g.logger = l }
}

// WithObserver registers a decision observer.
func WithObserver(fn Observer) Option {
	return func(g *Guard) { g.observe = fn }
}

// New creates a guard for subject.
func New(subject Subject, opts ...Option) *Guard {
	g := &Guard{subject: subject, logger: log.DefaultLogger()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Subject returns the guarded subject.
func (g *Guard) Subject() Subject {
	return g.subject
}

// Check evaluates req for route.
func (g *Guard) Check(route string, req Requirements) Decision {
	d := Evaluate(g.subject, route, req)
	if g.observe != nil {
		g.observe(d)
	}
	if d.State == StateDeniedForbidden {
		g.logger.Info("access denied",
			"route", route,
			"required_roles", d.RequiredRoles,
			"missing", requirementStrings(d.Missing))
	}
	return d
}

// CheckRoute evaluates a path from Routes. Unknown paths are checked as
// authenticated-only.
func (g *Guard) CheckRoute(path string) Decision {
	r, _ := Lookup(path)
	return g.Check(path, r.Requirements)
}

func requirementStrings(reqs []authz.Requirement) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.String()
	}
	return out
}
