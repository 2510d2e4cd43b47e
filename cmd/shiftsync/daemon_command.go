package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"shiftsync/internal/logging"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run scheduled refreshes, backups, and display updates in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(runCtx, cfg, logger)
			if err != nil {
				logging.ErrorWithContext(logger, "daemon bootstrap failed", "daemon_bootstrap_failed", logging.Error(err))
				return err
			}
			defer a.Close()

			d, err := a.newDaemon()
			if err != nil {
				return err
			}
			if err := d.Run(runCtx); err != nil {
				return err
			}
			logger.Info("shiftsync daemon shutting down")
			return nil
		},
	}
}
