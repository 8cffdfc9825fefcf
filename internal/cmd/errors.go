package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentmitra/portalctl/internal/errors"
	"github.com/agentmitra/portalctl/internal/tui"
	"github.com/agentmitra/portalctl/internal/ux"
)

// usageError reports a missing or malformed flag or argument.
func usageError(msg string, suggestions ...string) error {
	return errors.New(errors.ErrCodeUsage, msg).WithSuggestions(suggestions...)
}

// missingFlagsError reports flags that must be given when no prompt can be
// shown.
func missingFlagsError(flags ...string) error {
	quoted := make([]string, len(flags))
	for i, f := range flags {
		quoted[i] = "--" + f
	}
	return errors.New(errors.ErrCodeNotInteractive,
		fmt.Sprintf("%s required when not running interactively", strings.Join(quoted, ", "))).
		WithSuggestion("Pass the flags explicitly, or run from a terminal to be prompted")
}

// canPrompt reports whether interactive prompts may be shown.
func canPrompt(a *App) bool {
	return !a.Flags.Quiet && a.Flags.Format == "text" && tui.ShouldPrompt()
}

// render writes doc in the selected output format.
func (a *App) render(cmd *cobra.Command, doc ux.Document) error {
	f, err := ux.NewFormatter(a.Flags.Format, &ux.FormatterOptions{
		Writer:  cmd.OutOrStdout(),
		NoColor: a.Flags.NoColor,
	})
	if err != nil {
		return usageError(err.Error())
	}
	return f.Format(doc)
}

// parseKeyValues splits "key=value" arguments.
func parseKeyValues(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, usageError(fmt.Sprintf("expected key=value, got %q", p))
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
