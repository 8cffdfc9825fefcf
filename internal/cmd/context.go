package cmd

import (
	"context"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/agentmitra/portalctl/internal/api"
	"github.com/agentmitra/portalctl/internal/auth"
	"github.com/agentmitra/portalctl/internal/config"
	"github.com/agentmitra/portalctl/internal/errors"
	"github.com/agentmitra/portalctl/internal/guard"
	"github.com/agentmitra/portalctl/internal/log"
	"github.com/agentmitra/portalctl/internal/metrics"
)

// CommandContext holds the persistent flags of one invocation.
type CommandContext struct {
	ConfigPath  string
	APIURL      string
	SessionFile string
	LogLevel    string
	LogFormat   string
	Timeout     string

	Format  string
	Quiet   bool
	NoColor bool
}

// NewCommandContext extracts the persistent flags from cmd.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	f := cmd.Flags()
	cc := &CommandContext{}

	for _, s := range []struct {
		name string
		dst  *string
	}{
		{"config", &cc.ConfigPath},
		{"api-url", &cc.APIURL},
		{"session-file", &cc.SessionFile},
		{"log-level", &cc.LogLevel},
		{"log-format", &cc.LogFormat},
		{"timeout", &cc.Timeout},
		{"format", &cc.Format},
	} {
		v, err := f.GetString(s.name)
		if err != nil {
			return nil, err
		}
		*s.dst = v
	}

	var err error
	if cc.Quiet, err = f.GetBool("quiet"); err != nil {
		return nil, err
	}
	if cc.NoColor, err = f.GetBool("no-color"); err != nil {
		return nil, err
	}

	switch cc.Format {
	case "text", "json", "yaml":
	default:
		return nil, errors.New(errors.ErrCodeConfigInvalid, "unsupported output format: "+cc.Format).
			WithSuggestion("Use --format text, --format json or --format yaml")
	}
	return cc, nil
}

// App is everything a command needs once flags and config are resolved.
type App struct {
	Flags      *CommandContext
	Config     *config.Config
	ConfigPath string
	Logger     *log.Logger
	Metrics    *metrics.Metrics

	Bus    *auth.Bus
	Store  auth.SessionStore
	Client *api.Client
	RBAC   *auth.Context
	Guard  *guard.Guard
}

// GuardFunc returns the guard once setup has run; guard.Require calls it
// lazily because commands are built before flags are parsed.
func (a *App) GuardFunc() func() *guard.Guard {
	return func() *guard.Guard { return a.Guard }
}

// requireRoute guards a command like the portal page at path, plus any
// extra "resource.action" permissions the command needs.
func (a *App) requireRoute(path string, extra ...string) func(*cobra.Command, []string) error {
	rt, _ := guard.Lookup(path)
	req := guard.Requirements{
		Roles:       rt.Requirements.Roles,
		Permissions: slices.Concat(rt.Requirements.Permissions, guard.Perms(extra...).Permissions),
	}
	return guard.Require(a.GuardFunc(), rt.Path, req)
}

// setupLocal resolves flags, config and logging only.
func (a *App) setupLocal(cc *CommandContext) error {
	a.Flags = cc

	path := cc.ConfigPath
	if path == "" {
		var err error
		if path, err = config.Path(); err != nil {
			return err
		}
	}
	a.ConfigPath = path

	cfg, err := config.ReadFile(path)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(os.Getenv)
	applyFlags(cfg, cc)
	a.Config = cfg

	level, format := cfg.LogLevel, cfg.LogFormat
	if _, err := log.ParseLevel(level); err != nil {
		level = "warn"
	}
	if _, err := log.ParseFormat(format); err != nil {
		format = "text"
	}
	if a.Logger, err = log.Configure(level, format); err != nil {
		return err
	}
	a.Metrics = metrics.InitDefault()
	return nil
}

// setup builds the session store, API client, RBAC context and guard.
func (a *App) setup(ctx context.Context, cc *CommandContext) error {
	if err := a.setupLocal(cc); err != nil {
		return err
	}
	return a.connect(ctx)
}

// connect validates the config and builds everything that talks to the
// portal API.
func (a *App) connect(ctx context.Context) error {
	if err := a.Config.Validate(); err != nil {
		return err
	}

	sessionPath, err := a.Config.SessionPath()
	if err != nil {
		return err
	}
	timeout, err := a.Config.TimeoutDuration()
	if err != nil {
		return err
	}

	a.Bus = auth.NewBus()
	a.Store = auth.NewFileStore(sessionPath, a.Bus)
	a.Client = api.New(a.Config.APIURL, a.Store,
		api.WithTimeout(timeout),
		api.WithLogger(a.Logger),
		api.WithObserver(a.Metrics.ObserveRequest),
	)
	a.RBAC = auth.NewContext(a.Store, api.NewRemote(a.Client), a.Bus, a.Logger, auth.WithDeferredMetadata())
	a.Guard = guard.New(a.RBAC,
		guard.WithLogger(a.Logger),
		guard.WithObserver(a.Metrics.ObserveDecision),
	)

	if ctx == nil {
		ctx = context.Background()
	}
	a.RBAC.Init(ctx)
	return nil
}

// Close releases the RBAC context subscription.
func (a *App) Close() {
	if a.RBAC != nil {
		a.RBAC.Close()
	}
}

func applyFlags(cfg *config.Config, cc *CommandContext) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.APIURL, cc.APIURL)
	set(&cfg.SessionFile, cc.SessionFile)
	set(&cfg.LogLevel, cc.LogLevel)
	set(&cfg.LogFormat, cc.LogFormat)
	set(&cfg.Timeout, cc.Timeout)
}
