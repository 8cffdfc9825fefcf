package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentmitra/portalctl/internal/health"
	"github.com/agentmitra/portalctl/internal/ux"
)

// DoctorReport is the outcome of all diagnostics.
type DoctorReport struct {
	Config    string        `json:"config" yaml:"config"`
	Status    health.Status `json:"status" yaml:"status"`
	Checks    []DoctorCheck `json:"checks" yaml:"checks"`
	NextSteps []string      `json:"next_steps,omitempty" yaml:"next_steps,omitempty"`
}

// DoctorCheck is one diagnostic.
type DoctorCheck struct {
	Name    string         `json:"name" yaml:"name"`
	Status  health.Status  `json:"status" yaml:"status"`
	Message string         `json:"message" yaml:"message"`
	Latency string         `json:"latency,omitempty" yaml:"latency,omitempty"`
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
}

func newDoctorCmd(a *App) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the configuration, session and portal API",
		Long: `Run diagnostics: the configuration is valid, the session file is readable
and holds a current token, and the portal API answers.

Exits with status 1 when any check is unhealthy.

Examples:
  portalctl doctor
  portalctl doctor --format json`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoSession: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			report := DoctorReport{Config: a.ConfigPath}

			configCheck := DoctorCheck{Name: "config", Status: health.StatusHealthy, Message: "configuration is valid"}
			if err := a.connect(cmd.Context()); err != nil {
				configCheck.Status = health.StatusUnhealthy
				configCheck.Message = err.Error()
				report.NextSteps = append(report.NextSteps, "Fix the configuration with 'portalctl config set <key> <value>'")
			}
			report.Checks = append(report.Checks, configCheck)

			if configCheck.Status == health.StatusHealthy {
				m := health.NewManager().WithTimeout(timeout)
				m.AddChecker(health.NewSessionChecker(a.Store))
				m.AddChecker(health.NewAPIChecker(a.Client.BaseURL(), a.Client.Ping))

				results := m.Check(cmd.Context())
				names := make([]string, 0, len(results))
				for name := range results {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					r := results[name]
					report.Checks = append(report.Checks, DoctorCheck{
						Name:    name,
						Status:  r.Status,
						Message: r.Message,
						Latency: r.Latency.Round(time.Millisecond).String(),
						Details: r.Details,
					})
				}
				if s := results["session"]; s != nil && s.Status != health.StatusHealthy {
					report.NextSteps = append(report.NextSteps, "Sign in with 'portalctl auth login'")
				}
				if r := results["portal-api"]; r != nil && r.Status == health.StatusUnhealthy {
					report.NextSteps = append(report.NextSteps, "Check api_url with 'portalctl config get api_url'")
				}
			}

			report.Status = worst(report.Checks)
			if err := a.render(cmd, ux.Document{Data: report, Text: doctorText(report)}); err != nil {
				return err
			}
			if report.Status == health.StatusUnhealthy {
				return fmt.Errorf("%s is unhealthy", unhealthyNames(report.Checks))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "check-timeout", 5*time.Second, "time limit for each check")
	return cmd
}

func unhealthyNames(checks []DoctorCheck) string {
	var names []string
	for _, c := range checks {
		if c.Status == health.StatusUnhealthy {
			names = append(names, c.Name)
		}
	}
	return strings.Join(names, ", ")
}

func worst(checks []DoctorCheck) health.Status {
	results := make(map[string]*health.Result, len(checks))
	for _, c := range checks {
		results[c.Name] = &health.Result{Status: c.Status}
	}
	return health.OverallStatus(results)
}

func doctorText(r DoctorReport) fmt.Stringer {
	t := &ux.Table{Headers: []string{"CHECK", "STATUS", "MESSAGE", "LATENCY"}}
	for _, c := range r.Checks {
		t.Rows = append(t.Rows, []string{c.Name, statusMark(c.Status), c.Message, orDash(c.Latency)})
	}
	sections := ux.Sections{t, ux.Text("Overall: " + string(r.Status))}
	if len(r.NextSteps) > 0 {
		steps := "Next steps:"
		for _, s := range r.NextSteps {
			steps += "\n  " + s
		}
		sections = append(sections, ux.Text(steps))
	}
	return sections
}

func statusMark(s health.Status) string {
	switch s {
	case health.StatusHealthy:
		return "✓ healthy"
	case health.StatusDegraded:
		return "! degraded"
	default:
		return "✗ unhealthy"
	}
}
