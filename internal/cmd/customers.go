package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/agentmitra/portalctl/internal/api"
	"github.com/agentmitra/portalctl/internal/authz"
	"github.com/agentmitra/portalctl/internal/errors"
	"github.com/agentmitra/portalctl/internal/ux"
)

func newCustomersCmd(a *App) *cobra.Command {
	customersCmd := &cobra.Command{
		Use:     "customers",
		Aliases: []string{"customer"},
		Short:   "List, inspect and export customers",
		Long: `Customer management. Requires the agents.read permission, like the
Customer Management page.

Examples:
  portalctl customers list --search ravi --status active
  portalctl customers get c-1042
  portalctl customers export --file-format excel -o customers.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pre := a.requireRoute(authz.RouteCustomers)

	var (
		filters api.CustomerFilters
		paging  api.ListOptions
	)
	listCmd := &cobra.Command{
		Use:     "list",
		Short:   "List customers",
		Args:    cobra.NoArgs,
		PreRunE: pre,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := a.Client.Customers.List(cmd.Context(), paging, filters)
			if err != nil {
				return err
			}
			t := &ux.Table{
				Headers: []string{"ID", "NAME", "PHONE", "EMAIL", "CITY", "STATUS"},
				Empty:   "No customers found.",
			}
			for _, c := range page.Data {
				t.Rows = append(t.Rows, []string{c.ID, c.FullName, c.Phone, orDash(c.Email), orDash(c.City), c.Status})
			}
			return a.render(cmd, ux.Document{Data: page, Text: ux.Sections{t, pageFooter(page.Page, page.TotalPages, page.Total)}})
		},
	}
	addCustomerFilters(listCmd, &filters)
	addPaging(listCmd, &paging)

	getCmd := &cobra.Command{
		Use:     "get <id>",
		Short:   "Show one customer",
		Args:    cobra.ExactArgs(1),
		PreRunE: pre,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.Client.Customers.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fields := ux.Fields{
				{"ID", c.ID},
				{"Name", c.FullName},
				{"Phone", c.Phone},
				{"Email", orDash(c.Email)},
				{"Status", c.Status},
				{"Agent", orDash(c.AgentCode)},
				{"City", orDash(c.City)},
				{"State", orDash(c.State)},
			}
			if c.AnnualIncome > 0 {
				fields = append(fields, [2]string{"Annual income", strconv.FormatFloat(c.AnnualIncome, 'f', 2, 64)})
			}
			return a.render(cmd, ux.Document{Data: c, Text: fields})
		},
	}

	deleteCmd := &cobra.Command{
		Use:     "delete <id>...",
		Short:   "Delete one or more customers",
		Long:    `Delete customers. Several ids are sent as one bulk request.`,
		Args:    cobra.MinimumNArgs(1),
		PreRunE: a.requireRoute(authz.RouteCustomers, "agents.delete"),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if len(args) == 1 {
				err = a.Client.Customers.Delete(cmd.Context(), args[0])
			} else {
				err = a.Client.Customers.BulkDelete(cmd.Context(), args)
			}
			if err != nil {
				return err
			}
			return a.render(cmd, ux.Document{
				Data: map[string]any{"deleted": args},
				Text: ux.Text(fmt.Sprintf("Deleted %d customer(s)", len(args))),
			})
		},
	}

	var (
		exportFilters api.CustomerFilters
		exportFormat  string
		exportOutput  string
	)
	exportCmd := &cobra.Command{
		Use:     "export",
		Short:   "Download the filtered customer list",
		Args:    cobra.NoArgs,
		PreRunE: pre,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := api.ExportFormat(exportFormat)
			switch format {
			case api.ExportCSV, api.ExportExcel, api.ExportPDF:
			default:
				return usageError("unsupported export format: "+exportFormat, "Use --file-format csv, excel or pdf")
			}
			d, err := a.Client.Customers.Export(cmd.Context(), format, exportFilters)
			if err != nil {
				return err
			}
			return a.saveDownload(cmd, d, exportOutput)
		},
	}
	addCustomerFilters(exportCmd, &exportFilters)
	exportCmd.Flags().StringVar(&exportFormat, "file-format", string(api.ExportCSV), "csv, excel or pdf")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: name from the server)")

	customersCmd.AddCommand(listCmd, getCmd, deleteCmd, exportCmd)
	return customersCmd
}

func addCustomerFilters(cmd *cobra.Command, f *api.CustomerFilters) {
	cmd.Flags().StringVar(&f.Search, "search", "", "search name, phone or email")
	cmd.Flags().StringVar(&f.Status, "status", "", "customer status")
	cmd.Flags().StringVar(&f.AgentCode, "agent-code", "", "assigned agent code")
	cmd.Flags().StringVar(&f.City, "city", "", "city")
	cmd.Flags().StringVar(&f.State, "state", "", "state")
	cmd.Flags().StringVar(&f.DateFrom, "from", "", "created on or after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.DateTo, "to", "", "created on or before (YYYY-MM-DD)")
}

func addPaging(cmd *cobra.Command, o *api.ListOptions) {
	cmd.Flags().IntVar(&o.Page, "page", 0, "page number, starting at 1")
	cmd.Flags().IntVar(&o.PageSize, "page-size", 0, "rows per page")
}

func pageFooter(page, pages, total int) fmt.Stringer {
	if pages <= 1 {
		return ux.Text(fmt.Sprintf("%d total", total))
	}
	return ux.Text(fmt.Sprintf("Page %d of %d, %d total", page, pages, total))
}

// DownloadResult reports where a downloaded file went.
type DownloadResult struct {
	Path  string `json:"path" yaml:"path"`
	Bytes int    `json:"bytes" yaml:"bytes"`
}

// saveDownload writes d to output, or to the server-suggested name in the
// working directory.
func (a *App) saveDownload(cmd *cobra.Command, d *api.Download, output string) error {
	path := output
	if path == "" {
		path = filepath.Base(d.Filename)
	}
	if err := os.WriteFile(path, d.Data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to save "+path, err)
	}
	return a.render(cmd, ux.Document{
		Data: DownloadResult{Path: path, Bytes: len(d.Data)},
		Text: ux.Text(fmt.Sprintf("Saved %s (%d bytes)", path, len(d.Data))),
	})
}
