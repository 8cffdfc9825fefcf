package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentmitra/portalctl/internal/authz"
	"github.com/agentmitra/portalctl/internal/log"
)

// Remote is the part of the portal API the RBAC context needs. It is
// satisfied by the api package; keeping it here avoids an import cycle.
type Remote interface {
	// Logout ends the session server-side.
	Logout(ctx context.Context) error

	// RoleNames lists the roles defined by the backend.
	RoleNames(ctx context.Context) ([]string, error)

	// PermissionNames lists the permissions defined by the backend.
	PermissionNames(ctx context.Context) ([]string, error)
}

// Context holds the authenticated user for the lifetime of a process and
// binds the permission predicates to that user. Create it with NewContext,
// call Init once, and Close when done.
type Context struct {
	store  SessionStore
	remote Remote
	bus    *Bus
	logger *log.Logger
	now    func() time.Time

	deferMetadata bool

	mu          sync.RWMutex
	user        *authz.User
	loading     bool
	roles       []string
	permissions []string

	unsubscribe func()
}

// ContextOption customizes a Context.
type ContextOption func(*Context)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) ContextOption {
	return func(c *Context) { c.now = now }
}

// WithDeferredMetadata makes Init skip the metadata fetch. Short-lived
// callers that never list roles call RefreshMetadata themselves.
func WithDeferredMetadata() ContextOption {
	return func(c *Context) { c.deferMetadata = true }
}

// NewContext creates a context in the loading state. remote and bus may be
// nil; without a remote, logout is local only and no metadata is fetched.
func NewContext(store SessionStore, remote Remote, bus *Bus, logger *log.Logger, opts ...ContextOption) *Context {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	c := &Context{
		store:   store,
		remote:  remote,
		bus:     bus,
		logger:  logger,
		now:     time.Now,
		loading: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init loads the persisted session and, once the user is known to be
// authenticated, fetches role and permission metadata. Metadata failures are
// logged and leave the lists empty; they never fail Init.
func (c *Context) Init(ctx context.Context) {
	c.mu.Lock()
	if c.unsubscribe == nil {
		c.unsubscribe = c.bus.Subscribe(c.onSessionEvent)
	}
	c.loading = true
	c.mu.Unlock()

	user := c.readUser()

	c.mu.Lock()
	c.user = user
	c.mu.Unlock()

	if user != nil && !c.deferMetadata {
		c.RefreshMetadata(ctx)
	}

	c.mu.Lock()
	c.loading = false
	c.mu.Unlock()
}

// Close stops listening for session events.
func (c *Context) Close() {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Login sets the current user. The caller has already stored the tokens
// from the auth response; no request is made.
func (c *Context) Login(user *authz.User) {
	if user != nil {
		user.Normalize()
	}
	c.mu.Lock()
	c.user = user
	c.mu.Unlock()
}

// Logout asks the server to end the session, then clears local state no
// matter what the server said.
func (c *Context) Logout(ctx context.Context) error {
	if c.remote != nil && c.IsAuthenticated() {
		if err := c.remote.Logout(ctx); err != nil {
			c.logger.WithError(err).Warn("remote logout failed, clearing local session anyway")
		}
	}

	err := c.store.Clear()
	c.clear()
	return err
}

// RefreshUser re-derives the user from the stored token without any
// network call and returns it.
func (c *Context) RefreshUser() *authz.User {
	user := c.readUser()
	c.mu.Lock()
	c.user = user
	if user == nil {
		c.roles, c.permissions = nil, nil
	}
	c.mu.Unlock()
	return user
}

// RefreshMetadata fetches the backend's role and permission catalogues in
// parallel. Either failing leaves both lists empty.
func (c *Context) RefreshMetadata(ctx context.Context) {
	if c.remote == nil || !c.IsAuthenticated() {
		return
	}

	var roles, perms []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		roles, err = c.remote.RoleNames(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		perms, err = c.remote.PermissionNames(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		c.logger.WithError(err).Warn("failed to load RBAC metadata")
		roles, perms = nil, nil
	}

	c.mu.Lock()
	c.roles, c.permissions = roles, perms
	c.mu.Unlock()
}

func (c *Context) readUser() *authz.User {
	s, err := c.store.Load()
	if err != nil {
		c.logger.WithError(err).Warn("failed to read session")
		return nil
	}
	return UserFromSession(s, c.now())
}

func (c *Context) clear() {
	c.mu.Lock()
	c.user = nil
	c.roles, c.permissions = nil, nil
	c.mu.Unlock()
}

func (c *Context) onSessionEvent(e Event) {
	if e.Key != KeyAccessToken {
		return
	}
	switch e.Kind {
	case EventCleared:
		c.clear()
	case EventSaved:
		if e.Origin == OriginExternal {
			c.RefreshUser()
		}
	}
}

// User returns the current user, or nil.
func (c *Context) User() *authz.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// IsAuthenticated reports whether a user is set.
func (c *Context) IsAuthenticated() bool {
	return c.User() != nil
}

// IsLoading reports whether Init has not finished yet.
func (c *Context) IsLoading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// AvailableRoles returns the backend's role names, possibly empty.
func (c *Context) AvailableRoles() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.roles...)
}

// AvailablePermissions returns the backend's permission names, possibly empty.
func (c *Context) AvailablePermissions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.permissions...)
}

func (c *Context) HasRole(role string) bool {
	return authz.HasRole(c.User(), role)
}

func (c *Context) HasAnyRole(roles []string) bool {
	return authz.HasAnyRole(c.User(), roles)
}

func (c *Context) HasPermission(resource, action string) bool {
	return authz.HasPermission(c.User(), resource, action)
}

func (c *Context) CanAccessFeature(path string) bool {
	return authz.CanAccessFeature(c.User(), path)
}

func (c *Context) AccessibleRoutes() []string {
	return authz.AccessibleRoutes(c.User())
}

func (c *Context) CanAccessPage(page string) bool {
	return authz.CanAccessPage(c.User(), page)
}
