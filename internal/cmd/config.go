package cmd

import (
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentmitra/portalctl/internal/config"
	"github.com/agentmitra/portalctl/internal/errors"
	"github.com/agentmitra/portalctl/internal/ux"
)

func newConfigCmd(a *App) *cobra.Command {
	local := map[string]string{annotationNoSession: "true"}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "View or edit portalctl configuration",
		Long: `Manage the configuration stored at ~/.agentmitra/config.yaml.

Keys:
  api_url       Portal API base URL
  session_file  Where tokens are stored (default ~/.agentmitra/session.json)
  log_level     debug, info, warn or error
  log_format    text or json
  timeout       API request timeout, e.g. 30s
  server_addr   Listen address for 'portalctl serve'

PORTAL_API_URL, PORTAL_SESSION_FILE, PORTAL_LOG_LEVEL, PORTAL_LOG_FORMAT and
PORTAL_TIMEOUT override the file; command-line flags override both.

Examples:
  portalctl config view
  portalctl config set api_url https://portal.agentmitra.in/api/v1
  portalctl config get timeout
  portalctl config path`,
		Annotations: local,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var raw bool
	viewCmd := &cobra.Command{
		Use:         "view",
		Short:       "Show the effective configuration",
		Args:        cobra.NoArgs,
		Annotations: local,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.Config
			if raw {
				var err error
				if cfg, err = config.ReadFile(a.ConfigPath); err != nil {
					return err
				}
			}
			return a.render(cmd, ux.Document{Data: cfg, Text: configFields(cfg)})
		},
	}
	viewCmd.Flags().BoolVar(&raw, "raw", false, "show the file only, without environment and flag overrides")

	getCmd := &cobra.Command{
		Use:         "get <key>",
		Short:       "Print one effective configuration value",
		Args:        cobra.ExactArgs(1),
		ValidArgs:   config.Keys(),
		Annotations: local,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.Config.Get(args[0])
			if err != nil {
				return err
			}
			return a.render(cmd, ux.Document{Data: map[string]string{args[0]: v}, Text: ux.Text(v)})
		},
	}

	setCmd := &cobra.Command{
		Use:         "set <key> <value>",
		Short:       "Set a value in the configuration file",
		Args:        cobra.ExactArgs(2),
		ValidArgs:   config.Keys(),
		Annotations: local,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Edit the file as written, not the overridden view of it.
			cfg, err := config.ReadFile(a.ConfigPath)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := config.Save(cfg, a.ConfigPath); err != nil {
				return err
			}
			a.Logger.Debug("config updated", "key", args[0], "path", a.ConfigPath)
			return a.render(cmd, ux.Document{
				Data: map[string]string{args[0]: args[1]},
				Text: ux.Text("✓ Set " + args[0] + " = " + args[1]),
			})
		},
	}

	pathCmd := &cobra.Command{
		Use:         "path",
		Short:       "Show the configuration file path",
		Args:        cobra.NoArgs,
		Annotations: local,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.render(cmd, ux.Document{Data: map[string]string{"path": a.ConfigPath}, Text: ux.Text(a.ConfigPath)})
		},
	}

	editCmd := &cobra.Command{
		Use:         "edit",
		Short:       "Edit the configuration file in $EDITOR",
		Args:        cobra.NoArgs,
		Annotations: local,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(a.ConfigPath); os.IsNotExist(err) {
				if err := config.Save(config.Default(), a.ConfigPath); err != nil {
					return err
				}
			}

			editor := os.Getenv("EDITOR")
			if editor == "" {
				editor = "vi"
			}
			editorCmd := exec.Command(editor, a.ConfigPath)
			editorCmd.Stdin = os.Stdin
			editorCmd.Stdout = cmd.OutOrStdout()
			editorCmd.Stderr = cmd.ErrOrStderr()
			if err := editorCmd.Run(); err != nil {
				return errors.Wrap(errors.ErrCodeConfigInvalid, "failed to run "+editor, err).
					WithSuggestion("Set $EDITOR, or use 'portalctl config set'")
			}

			if _, err := config.Load(a.ConfigPath); err != nil {
				return err
			}
			return a.render(cmd, ux.Document{Text: ux.Text("✓ Configuration updated")})
		},
	}

	configCmd.AddCommand(viewCmd, getCmd, setCmd, pathCmd, editCmd)
	return configCmd
}

func configFields(cfg *config.Config) ux.Fields {
	fields := make(ux.Fields, 0, len(config.Keys()))
	for _, k := range config.Keys() {
		v, _ := cfg.Get(k)
		fields = append(fields, [2]string{k, orDash(strings.TrimSpace(v))})
	}
	return fields
}
