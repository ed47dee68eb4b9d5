package main

import (
	"github.com/spf13/cobra"

	"github.com/hamed0406/healthwatch/internal/scheduler"
)

var cronSchedule string

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Run check cycles on a cron schedule until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		spec := cronSchedule
		if spec == "" {
			spec = svc.Config.CronSchedule
		}
		c, err := scheduler.NewCron(logger, svc.Monitor, spec)
		if err != nil {
			return err
		}
		c.Run(cmd.Context())
		return nil
	},
}

func init() {
	cronCmd.Flags().StringVar(&cronSchedule, "schedule", "", `cron expression or descriptor, e.g. "*/5 * * * *" or "@every 5m" (default CRON_SCHEDULE)`)
}
