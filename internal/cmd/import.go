package cmd

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/agentmitra/portalctl/internal/api"
	"github.com/agentmitra/portalctl/internal/authz"
	"github.com/agentmitra/portalctl/internal/dataimport"
	"github.com/agentmitra/portalctl/internal/errors"
	"github.com/agentmitra/portalctl/internal/progress"
	"github.com/agentmitra/portalctl/internal/tui"
	"github.com/agentmitra/portalctl/internal/ux"
)

// parseOpts collects the file parsing flags shared by run and wizard.
type parseOpts struct {
	template  string
	sheet     string
	delimiter string
	skipRows  int
	noHeaders bool
	cellRange string
}

func (p *parseOpts) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.template, "template", "", "import template id (prompted for when omitted)")
	cmd.Flags().StringVar(&p.sheet, "sheet", "", "spreadsheet sheet name (default: first sheet)")
	cmd.Flags().StringVar(&p.delimiter, "delimiter", ",", "CSV delimiter: comma, semicolon, tab or pipe")
	cmd.Flags().IntVar(&p.skipRows, "skip-rows", 0, "rows to skip before the header")
	cmd.Flags().BoolVar(&p.noHeaders, "no-headers", false, "the first row is data, not headers")
	cmd.Flags().StringVar(&p.cellRange, "range", "", "spreadsheet cell range such as A1:F200")
}

func (p *parseOpts) options() (dataimport.Options, error) {
	opts := dataimport.DefaultOptions()
	d, err := dataimport.ParseDelimiter(p.delimiter)
	if err != nil {
		return opts, usageError(err.Error(), "Use comma, semicolon, tab or pipe")
	}
	if p.skipRows < 0 {
		return opts, usageError("--skip-rows cannot be negative")
	}
	opts.Delimiter = d
	opts.HasHeaders = !p.noHeaders
	opts.SkipRows = p.skipRows
	opts.SheetName = p.sheet
	opts.Range = p.cellRange
	return opts, nil
}

func newImportCmd(a *App) *cobra.Command {
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import customers, policies and agents from CSV or Excel",
		Long: `Bulk data import. A file goes through four steps: upload, template
selection, validation and import. Rows that fail validation block the import.

Examples:
  portalctl import run customers.xlsx --template tpl-customers
  portalctl import run agents.csv --delimiter semicolon --dry-run
  portalctl import wizard policies.xlsx
  portalctl import sample customers -o customers.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	importCmd.AddCommand(
		newImportRunCmd(a),
		newImportWizardCmd(a),
		newImportTemplatesCmd(a),
		newImportHistoryCmd(a),
		newImportSampleCmd(a),
		newImportDownloadTemplateCmd(a),
	)
	return importCmd
}

// chooseTemplate resolves --template, prompting when allowed. A nil template
// means the file is validated without rules.
func (a *App) chooseTemplate(cmd *cobra.Command, id string) (*dataimport.ImportTemplate, error) {
	if id == "" && !canPrompt(a) {
		return nil, nil
	}
	templates, err := a.Client.Import.Templates(cmd.Context())
	if err != nil {
		return nil, err
	}
	if id == "" {
		return tui.PromptTemplate(templates)
	}
	t := tui.FindTemplate(templates, id)
	if t == nil {
		return nil, usageError("unknown import template: "+id, "List templates with 'portalctl import templates'")
	}
	return t, nil
}

// ImportRun is the outcome of 'import run'.
type ImportRun struct {
	File       string                   `json:"file" yaml:"file"`
	Template   string                   `json:"template,omitempty" yaml:"template,omitempty"`
	DryRun     bool                     `json:"dry_run" yaml:"dry_run"`
	Validation *dataimport.ImportResult `json:"validation" yaml:"validation"`
	Result     *dataimport.ImportResult `json:"result,omitempty" yaml:"result,omitempty"`
}

func newImportRunCmd(a *App) *cobra.Command {
	var (
		p      parseOpts
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Validate and import a file without the interactive wizard",
		Long: `Parse a CSV or Excel file, validate it against a template and import it.
Exits with status 4 when rows fail validation; nothing is imported then.`,
		Args:    cobra.ExactArgs(1),
		PreRunE: a.requireRoute(authz.RouteDataImport),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := p.options()
			if err != nil {
				return err
			}
			tmpl, err := a.chooseTemplate(cmd, p.template)
			if err != nil {
				return err
			}

			ind := progress.NewIndicator(progress.Config{
				Writer:      cmd.ErrOrStderr(),
				ShowSpinner: !a.Flags.Quiet && a.Flags.Format == "text" && tui.IsInteractive(),
				IsCI:        !tui.IsInteractive(),
			})
			w := dataimport.NewWizard(dataimport.NewProcessor(a.Logger), a.Client.Import, a.Logger)
			w.OnProgress(func(pr dataimport.Progress) {
				a.Metrics.ObserveProgress(pr)
				if !a.Flags.Quiet {
					ind.Update(pr)
				}
			})
			ind.Start()
			defer ind.Stop()

			run := ImportRun{File: args[0], DryRun: dryRun}
			if _, err := w.LoadFile(args[0], opts); err != nil {
				return err
			}
			if err := w.SelectTemplate(tmpl); err != nil {
				return err
			}
			if tmpl != nil {
				run.Template = tmpl.ID
			}
			if run.Validation, err = w.Validate(); err != nil {
				return err
			}
			if dryRun || run.Validation.InvalidRows > 0 {
				ind.Stop()
				if err := a.renderImport(cmd, ind, run, run.Validation); err != nil {
					return err
				}
				if run.Validation.InvalidRows > 0 {
					err := errors.New(errors.ErrCodeImportBlocked,
						fmt.Sprintf("%d of %d rows failed validation", run.Validation.InvalidRows, run.Validation.TotalRows)).
						WithSuggestion("Fix the listed rows and run the import again")
					a.Metrics.ObserveImport(nil, err)
					return err
				}
				return nil
			}

			run.Result, err = w.Import(cmd.Context())
			a.Metrics.ObserveImport(run.Result, err)
			ind.Stop()
			if err != nil {
				return err
			}
			return a.renderImport(cmd, ind, run, run.Result)
		},
	}

	p.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate only, do not import")
	return cmd
}

// renderImport prints the summary box for text output and the full run
// otherwise.
func (a *App) renderImport(cmd *cobra.Command, ind *progress.Indicator, run ImportRun, res *dataimport.ImportResult) error {
	if a.Flags.Format == "text" {
		if !a.Flags.Quiet {
			ind.PrintSummary(res)
		}
		msg := fmt.Sprintf("Validated %d rows of %s", res.TotalRows, run.File)
		if run.Result != nil {
			msg = fmt.Sprintf("Imported %d of %d rows from %s", res.ImportedRows, res.TotalRows, run.File)
		}
		return a.render(cmd, ux.Document{Text: ux.Text(msg)})
	}
	return a.render(cmd, ux.Document{Data: run})
}

func newImportWizardCmd(a *App) *cobra.Command {
	var p parseOpts

	cmd := &cobra.Command{
		Use:   "wizard <file>",
		Short: "Walk through an import interactively",
		Long: `Open the full-screen import wizard: preview the file, pick a template,
review validation errors and confirm the import.`,
		Args:    cobra.ExactArgs(1),
		PreRunE: a.requireRoute(authz.RouteDataImport),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !tui.IsInteractive() {
				return errors.New(errors.ErrCodeNotInteractive, "the import wizard needs a terminal").
					WithSuggestion("Use 'portalctl import run " + args[0] + "' instead")
			}
			opts, err := p.options()
			if err != nil {
				return err
			}
			templates, err := a.Client.Import.Templates(cmd.Context())
			if err != nil {
				return err
			}

			w := dataimport.NewWizard(dataimport.NewProcessor(a.Logger), a.Client.Import, a.Logger)
			model := tui.NewWizardModel(cmd.Context(), w, args[0], opts, templates, a.Metrics.ObserveProgress)
			final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			if err != nil {
				return errors.Wrap(errors.ErrCodeImportInvalidState, "import wizard failed", err)
			}

			m := final.(tui.WizardModel)
			res, werr := m.Result()
			if !m.Completed() {
				if werr != nil {
					return werr
				}
				return a.render(cmd, ux.Document{Data: map[string]bool{"completed": false}, Text: ux.Text("Import cancelled")})
			}
			a.Metrics.ObserveImport(res, nil)
			return a.render(cmd, ux.Document{
				Data: res,
				Text: ux.Text(fmt.Sprintf("Imported %d of %d rows", res.ImportedRows, res.TotalRows)),
			})
		},
	}

	p.register(cmd)
	return cmd
}

func newImportTemplatesCmd(a *App) *cobra.Command {
	var entity string

	cmd := &cobra.Command{
		Use:     "templates",
		Short:   "List import templates",
		Args:    cobra.NoArgs,
		PreRunE: a.requireRoute(authz.RouteExcelTemplate),
		RunE: func(cmd *cobra.Command, args []string) error {
			templates, err := a.Client.Import.Templates(cmd.Context())
			if err != nil {
				return err
			}
			if entity != "" {
				kept := templates[:0]
				for _, t := range templates {
					if string(t.EntityType) == entity {
						kept = append(kept, t)
					}
				}
				templates = kept
			}
			t := &ux.Table{
				Headers: []string{"ID", "NAME", "ENTITY", "COLUMNS", "RULES"},
				Empty:   "No import templates.",
			}
			for _, tpl := range templates {
				t.Rows = append(t.Rows, []string{
					tpl.ID, tpl.Name, string(tpl.EntityType),
					strconv.Itoa(len(tpl.ColumnMappings)), strconv.Itoa(len(tpl.ValidationRules)),
				})
			}
			return a.render(cmd, ux.Document{Data: templates, Text: t})
		},
	}

	cmd.Flags().StringVar(&entity, "entity", "", "only templates for customers, policies, agents or claims")
	return cmd
}

func newImportHistoryCmd(a *App) *cobra.Command {
	var paging api.ListOptions

	cmd := &cobra.Command{
		Use:     "history",
		Short:   "List past imports",
		Args:    cobra.NoArgs,
		PreRunE: a.requireRoute(authz.RouteDataImport),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := a.Client.Import.History(cmd.Context(), paging)
			if err != nil {
				return err
			}
			t := &ux.Table{
				Headers: []string{"ID", "FILE", "ENTITY", "STATUS", "ROWS", "IMPORTED", "ERRORS", "STARTED", "BY"},
				Empty:   "No imports yet.",
			}
			for _, h := range page.Data {
				t.Rows = append(t.Rows, []string{
					h.ID, h.FileName, string(h.EntityType), string(h.Status),
					strconv.Itoa(h.TotalRows), strconv.Itoa(h.ImportedRows), strconv.Itoa(h.ErrorCount),
					h.StartTime.Local().Format("2006-01-02 15:04"), orDash(h.UploadedBy),
				})
			}
			return a.render(cmd, ux.Document{Data: page, Text: ux.Sections{t, pageFooter(page.Page, page.TotalPages, page.Total)}})
		},
	}

	addPaging(cmd, &paging)
	return cmd
}

func parseEntity(s string) (dataimport.EntityType, error) {
	switch e := dataimport.EntityType(strings.ToLower(s)); e {
	case dataimport.EntityCustomers, dataimport.EntityPolicies, dataimport.EntityAgents, dataimport.EntityClaims:
		return e, nil
	}
	return "", usageError("unknown entity: "+s, "Use customers, policies, agents or claims")
}

func newImportSampleCmd(a *App) *cobra.Command {
	var (
		output string
		remote bool
	)

	cmd := &cobra.Command{
		Use:   "sample <entity>",
		Short: "Write a sample sheet for an entity",
		Long: `Write example rows for customers, policies or agents. The file type
follows the --output extension: .csv or .xlsx. Without --output the rows are
printed as CSV. --remote asks the server for its sample rows instead.`,
		Args:    cobra.ExactArgs(1),
		PreRunE: a.requireRoute(authz.RouteExcelTemplate),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := parseEntity(args[0])
			if err != nil {
				return err
			}
			headers := dataimport.SampleHeaders(entity)
			rows := dataimport.GenerateSampleData(entity)
			if remote {
				if rows, err = a.Client.Import.SampleData(cmd.Context(), entity); err != nil {
					return err
				}
			}
			if len(headers) == 0 && len(rows) == 0 {
				return usageError("no sample data for " + string(entity))
			}

			var buf bytes.Buffer
			switch ext := strings.ToLower(filepath.Ext(output)); ext {
			case ".xlsx":
				err = dataimport.ExportXLSX(&buf, headers, rows)
			case "", ".csv":
				err = dataimport.ExportCSV(&buf, headers, rows)
			default:
				return usageError("unsupported sample file type: "+ext, "Use a .csv or .xlsx output file")
			}
			if err != nil {
				return err
			}

			if output == "" {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			return a.saveDownload(cmd, &api.Download{Filename: output, Data: buf.Bytes()}, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, .csv or .xlsx")
	cmd.Flags().BoolVar(&remote, "remote", false, "use the server's sample rows")
	return cmd
}

func newImportDownloadTemplateCmd(a *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:     "download-template <entity>",
		Short:   "Download the server's Excel template for an entity",
		Args:    cobra.ExactArgs(1),
		PreRunE: a.requireRoute(authz.RouteExcelTemplate),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := parseEntity(args[0])
			if err != nil {
				return err
			}
			d, err := a.Client.Import.DownloadTemplate(cmd.Context(), entity)
			if err != nil {
				return err
			}
			return a.saveDownload(cmd, d, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: name from the server)")
	return cmd
}
