package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

// annotationNoSession marks commands that run without building the API
// client and RBAC context, so a broken config or session cannot block them.
const annotationNoSession = "portalctl/no-session"

// NewRootCommand builds the command tree. The returned App is populated by
// the root PersistentPreRunE and must be closed after execution.
func NewRootCommand() (*cobra.Command, *App) {
	app := &App{}

	root := &cobra.Command{
		Use:   "portalctl",
		Short: "Agent Mitra config portal client",
		Long: `portalctl administers the Agent Mitra insurance portal from the terminal.

It signs agents and administrators in, gates every command by the same roles
and permissions the portal uses, manages customers, users, campaigns and
callbacks, imports spreadsheets through a four-stage wizard and generates
reports.

Configuration is read from ~/.agentmitra/config.yaml and PORTAL_* environment
variables; flags override both.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			if cmd.Annotations[annotationNoSession] == "true" {
				return app.setupLocal(cc)
			}
			return app.setup(cmd.Context(), cc)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default ~/.agentmitra/config.yaml)")
	pf.String("api-url", "", "portal API base URL")
	pf.String("session-file", "", "session file (default ~/.agentmitra/session.json)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (text, json)")
	pf.String("timeout", "", "per-request timeout (e.g. 30s)")
	pf.String("format", "text", "output format (text, json, yaml)")
	pf.BoolP("quiet", "q", false, "suppress progress output")
	pf.Bool("no-color", false, "disable colored output")

	root.AddCommand(
		newAuthCmd(app),
		newWhoamiCmd(app),
		newCanCmd(app),
		newCustomersCmd(app),
		newUsersCmd(app),
		newCampaignsCmd(app),
		newCallbacksCmd(app),
		newReportsCmd(app),
		newImportCmd(app),
		newRBACCmd(app),
		newServeCmd(app),
		newDoctorCmd(app),
		newConfigCmd(app),
		newVersionCmd(),
	)
	return root, app
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, records the command in
// metrics and releases the session resources.
func ExecuteContext(ctx context.Context) error {
	root, app := NewRootCommand()
	defer app.Close()

	start := time.Now()
	c, err := root.ExecuteContextC(ctx)
	if app.Metrics != nil && c != nil {
		app.Metrics.RecordCommand(c.CommandPath(), time.Since(start), err)
		if err != nil {
			app.Metrics.RecordError(err, "cli")
		}
	}
	return err
}
