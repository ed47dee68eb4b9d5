package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/hamed0406/healthwatch/internal/history"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show global uptime figures and every website's status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		gs, err := svc.Monitor.GlobalStats(ctx)
		if err != nil {
			return err
		}
		fmt.Println(styleCard.Render(lipgloss.JoinVertical(lipgloss.Left,
			styleTitle.Render("healthwatch"),
			row("Websites", fmt.Sprintf("%d online / %d offline", gs.OnlineWebsites, gs.OfflineWebsites)),
			row("Internal apps", fmt.Sprintf("%d online / %d offline", gs.OnlineInternalApps, gs.OfflineInternalApps)),
			row("Overall uptime", fmt.Sprintf("%.2f%%", gs.OverallUptime)),
		)))

		ws, err := svc.Monitor.Overview(ctx)
		if err != nil {
			return err
		}
		for _, w := range ws {
			fmt.Println(summaryLine(w.Website.Name, w.Stats))
			for _, a := range w.Apps {
				fmt.Println(summaryLine("  "+a.App.Name, a.Stats))
			}
		}
		return nil
	},
}

func summaryLine(name string, st history.TargetStats) string {
	mark := styleDim.Render("○")
	switch st.Status {
	case history.StatusOnline:
		mark = dot(true)
	case history.StatusOffline:
		mark = dot(false)
	}
	return fmt.Sprintf("%s %-28s %6.2f%%  %s", mark, name, st.UptimePercentage,
		styleDim.Render(fmt.Sprintf("%d checks, avg %.3fs", st.TotalChecks, st.AvgResponseTime)))
}
