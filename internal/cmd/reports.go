package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/agentmitra/portalctl/internal/api"
	"github.com/agentmitra/portalctl/internal/authz"
	"github.com/agentmitra/portalctl/internal/ux"
)

func newReportsCmd(a *App) *cobra.Command {
	reportsCmd := &cobra.Command{
		Use:     "reports",
		Aliases: []string{"report"},
		Short:   "Generate and download reports",
		Long: `Reporting. Requires the reports.generate permission.

Examples:
  portalctl reports types
  portalctl reports generate customer_summary --file-format excel --filter city=Pune
  portalctl reports history
  portalctl reports download r-19 -o summary.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pre := a.requireRoute(authz.RouteReporting)

	typesCmd := &cobra.Command{
		Use:     "types",
		Short:   "List the available report types",
		Args:    cobra.NoArgs,
		PreRunE: pre,
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := a.Client.Reports.Types(cmd.Context())
			if err != nil {
				return err
			}
			t := &ux.Table{Headers: []string{"TYPE", "NAME", "DESCRIPTION"}}
			for _, rt := range types {
				t.Rows = append(t.Rows, []string{string(rt.Type), rt.Name, rt.Description})
			}
			return a.render(cmd, ux.Document{Data: types, Text: t})
		},
	}

	var (
		genFormat  string
		genFilters []string
	)
	generateCmd := &cobra.Command{
		Use:     "generate <type>",
		Short:   "Start generating a report",
		Args:    cobra.ExactArgs(1),
		PreRunE: pre,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := api.ReportFormat(genFormat)
			switch format {
			case api.FormatPDF, api.FormatExcel, api.FormatCSV:
			default:
				return usageError("unsupported report format: "+genFormat, "Use --file-format pdf, excel or csv")
			}
			kv, err := parseKeyValues(genFilters)
			if err != nil {
				return err
			}
			filters := make(api.ReportFilters, len(kv))
			for k, v := range kv {
				filters[k] = v
			}

			r, err := a.Client.Reports.Generate(cmd.Context(), api.ReportType(args[0]), filters, format)
			if err != nil {
				return err
			}
			return a.render(cmd, ux.Document{Data: r, Text: ux.Fields{
				{"Report", r.ID},
				{"Type", string(r.Type)},
				{"Status", r.Status},
				{"Next", "portalctl reports download " + r.ID},
			}})
		},
	}
	generateCmd.Flags().StringVar(&genFormat, "file-format", string(api.FormatPDF), "pdf, excel or csv")
	generateCmd.Flags().StringArrayVar(&genFilters, "filter", nil, "report filter as key=value (repeatable)")

	var paging api.ListOptions
	historyCmd := &cobra.Command{
		Use:     "history",
		Short:   "List previously generated reports",
		Args:    cobra.NoArgs,
		PreRunE: pre,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := a.Client.Reports.History(cmd.Context(), paging)
			if err != nil {
				return err
			}
			t := &ux.Table{
				Headers: []string{"ID", "NAME", "TYPE", "FORMAT", "STATUS", "CREATED"},
				Empty:   "No reports generated yet.",
			}
			for _, r := range page.Data {
				t.Rows = append(t.Rows, []string{r.ID, r.Name, string(r.Type), string(r.Format), r.Status, r.CreatedAt})
			}
			return a.render(cmd, ux.Document{Data: page, Text: ux.Sections{t, pageFooter(page.Page, page.TotalPages, page.Total)}})
		},
	}
	addPaging(historyCmd, &paging)

	var output string
	downloadCmd := &cobra.Command{
		Use:     "download <id>",
		Short:   "Download a completed report",
		Args:    cobra.ExactArgs(1),
		PreRunE: pre,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.Client.Reports.Download(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.saveDownload(cmd, d, output)
		},
	}
	downloadCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: name from the server)")

	scheduledCmd := &cobra.Command{
		Use:     "scheduled",
		Short:   "List scheduled reports",
		Args:    cobra.NoArgs,
		PreRunE: a.requireRoute(authz.RouteReporting, "reports.schedule"),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.Client.Reports.Scheduled(cmd.Context())
			if err != nil {
				return err
			}
			t := &ux.Table{
				Headers: []string{"ID", "NAME", "TYPE", "FREQUENCY", "TIME", "ACTIVE", "RECIPIENTS", "NEXT RUN"},
				Empty:   "No scheduled reports.",
			}
			for _, s := range list {
				t.Rows = append(t.Rows, []string{
					s.ID, s.Name, string(s.ReportType), s.Schedule.Frequency, s.Schedule.Time,
					yesNo(s.IsActive), strconv.Itoa(len(s.Recipients)), orDash(s.NextRun),
				})
			}
			return a.render(cmd, ux.Document{Data: list, Text: t})
		},
	}

	reportsCmd.AddCommand(typesCmd, generateCmd, historyCmd, downloadCmd, scheduledCmd)
	return reportsCmd
}
