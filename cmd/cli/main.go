package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/app"
	"github.com/hamed0406/healthwatch/internal/config"
	"github.com/hamed0406/healthwatch/internal/logging"
)

var (
	envFile string
	svc     *app.App
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "healthwatch",
	Short: "Run uptime checks from the terminal",
	Long: `healthwatch probes websites and their internal apps, keeps a short
history per target and mails an alert when something goes down.

The CLI runs against the same store as the API server.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var files []string
		if envFile != "" {
			files = append(files, envFile)
		}
		cfg := config.Load(files...)
		l, err := logging.NewLogger(logging.Options{Dir: cfg.LogDir, Level: cfg.LogLevel})
		if err != nil {
			return err
		}
		logger = l
		svc, err = app.New(cmd.Context(), cfg, logger)
		return err
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "dotenv file to load before the environment")
	rootCmd.AddCommand(onceCmd, checkCmd, statsCmd, cronCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	if svc != nil {
		if cerr := svc.Close(); cerr != nil {
			logger.Warn("close_failed", zap.Error(cerr))
		}
	}
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, styleFailed.Render("✖ "+err.Error()))
		os.Exit(1)
	}
}
