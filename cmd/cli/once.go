package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var onceForce bool

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run exactly one check cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		run := svc.Monitor.RunCycle
		if onceForce {
			run = svc.Monitor.RunCycleForced
		}
		rep, err := run(cmd.Context())
		if err != nil {
			return err
		}
		if rep.Skipped {
			fmt.Println(styleWarning.Render("monitoring is disabled; use --force to run anyway"))
			return nil
		}
		fmt.Println(styleCard.Render(lipgloss.JoinVertical(lipgloss.Left,
			styleTitle.Render("Cycle complete"),
			row("Targets", rep.Targets),
			row("Online", styleOnline.Render(fmt.Sprint(rep.Online))),
			row("Offline", styleFailed.Render(fmt.Sprint(rep.Offline))),
			row("Alerts sent", rep.Alerts),
			row("Pipeline failures", rep.Failures),
			row("Duration", rep.Duration.Round(time.Millisecond)),
		)))
		return nil
	},
}

func init() {
	onceCmd.Flags().BoolVar(&onceForce, "force", false, "run even when monitoring is switched off")
}
