package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/agentmitra/portalctl/internal/api"
	"github.com/agentmitra/portalctl/internal/authz"
	"github.com/agentmitra/portalctl/internal/ux"
)

func newCampaignsCmd(a *App) *cobra.Command {
	campaignsCmd := &cobra.Command{
		Use:     "campaigns",
		Aliases: []string{"campaign"},
		Short:   "List and launch marketing campaigns",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pre := a.requireRoute(authz.RouteCampaigns)

	var filters api.CampaignFilters
	listCmd := &cobra.Command{
		Use:     "list",
		Short:   "List campaigns",
		Args:    cobra.NoArgs,
		PreRunE: pre,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := a.Client.Campaigns.List(cmd.Context(), filters)
			if err != nil {
				return err
			}
			t := &ux.Table{
				Headers: []string{"ID", "NAME", "TYPE", "STATUS", "SENT", "CONVERTED", "ROI %"},
				Empty:   "No campaigns found.",
			}
			for _, c := range page.Data {
				t.Rows = append(t.Rows, []string{
					c.CampaignID, c.CampaignName, c.CampaignType, c.Status,
					strconv.Itoa(c.TotalSent), strconv.Itoa(c.TotalConverted),
					strconv.FormatFloat(c.ROIPercentage, 'f', 1, 64),
				})
			}
			return a.render(cmd, ux.Document{Data: page, Text: t})
		},
	}
	listCmd.Flags().StringVar(&filters.Status, "status", "", "draft, active, paused or completed")
	listCmd.Flags().StringVar(&filters.Type, "type", "", "campaign type")
	listCmd.Flags().IntVar(&filters.Limit, "limit", 0, "maximum number of campaigns")
	listCmd.Flags().IntVar(&filters.Offset, "offset", 0, "campaigns to skip")

	getCmd := &cobra.Command{
		Use:     "get <id>",
		Short:   "Show one campaign and its funnel",
		Args:    cobra.ExactArgs(1),
		PreRunE: pre,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.Client.Campaigns.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.render(cmd, ux.Document{Data: c, Text: ux.Fields{
				{"ID", c.CampaignID},
				{"Name", c.CampaignName},
				{"Type", c.CampaignType},
				{"Goal", orDash(c.CampaignGoal)},
				{"Status", c.Status},
				{"Funnel", fmt.Sprintf("%d sent, %d delivered, %d opened, %d clicked, %d converted",
					c.TotalSent, c.TotalDelivered, c.TotalOpened, c.TotalClicked, c.TotalConverted)},
				{"Revenue", strconv.FormatFloat(c.TotalRevenue, 'f', 2, 64)},
				{"ROI", strconv.FormatFloat(c.ROIPercentage, 'f', 1, 64) + "%"},
			}})
		},
	}

	launchCmd := &cobra.Command{
		Use:     "launch <id>",
		Short:   "Launch a draft campaign",
		Args:    cobra.ExactArgs(1),
		PreRunE: a.requireRoute(authz.RouteCampaigns, "campaigns.update"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.Client.Campaigns.Launch(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.render(cmd, ux.Document{
				Data: map[string]string{"launched": args[0]},
				Text: ux.Text("Launched campaign " + args[0]),
			})
		},
	}

	campaignsCmd.AddCommand(listCmd, getCmd, launchCmd)
	return campaignsCmd
}
