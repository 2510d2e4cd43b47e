package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shiftsync/internal/export"
)

func newDupesCommand(ctx *commandContext) *cobra.Command {
	dupesCmd := &cobra.Command{
		Use:   "dupes",
		Short: "Inspect or remove duplicate roster rows",
	}

	dupesCmd.AddCommand(&cobra.Command{
		Use:   "count",
		Short: "Count rows that share a date, label, time, and role",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				count, err := a.reconciler.CountDuplicates(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]int{"duplicates": count})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Duplicate rows: %d\n", count)
				return nil
			})
		},
	})

	dupesCmd.AddCommand(&cobra.Command{
		Use:   "clean",
		Short: "Keep the most recently updated row in each slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				removed, err := a.reconciler.RemoveDuplicates(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]int{"removed": removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d duplicate row(s)\n", removed)
				return nil
			})
		},
	})

	return dupesCmd
}

func newAlertsCommand(ctx *commandContext) *cobra.Command {
	alertsCmd := &cobra.Command{
		Use:   "alerts",
		Short: "Manage delivered change markers",
	}

	var days int
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Forget delivered changes older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				keep := a.cfg.Refresh.AlertRetentionDays
				if cmd.Flags().Changed("days") {
					keep = days
				}
				removed, err := a.reconciler.PruneAlertedChanges(cmd.Context(), keep)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]int{"removed": removed, "days_to_keep": keep})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d alert marker(s) older than %d day(s)\n", removed, keep)
				return nil
			})
		},
	}
	pruneCmd.Flags().IntVar(&days, "days", 0, "Days of markers to keep (default: refresh.alert_retention_days)")
	alertsCmd.AddCommand(pruneCmd)

	return alertsCmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	var backup bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored snapshot as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				if backup {
					path, rows, err := export.Backup(cmd.Context(), a.store, a.cfg.BackupDir(), time.Now().In(a.loc))
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Backed up %d row(s) to %s\n", rows, path)
					return nil
				}

				records, err := a.store.Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				target := strings.TrimSpace(outPath)
				if target == "" || target == "-" {
					return export.WriteCSV(cmd.OutOrStdout(), records)
				}
				if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
					return fmt.Errorf("create export directory: %w", err)
				}
				file, err := os.Create(target)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				if err := export.WriteCSV(file, records); err != nil {
					_ = file.Close()
					return err
				}
				if err := file.Close(); err != nil {
					return fmt.Errorf("close export file: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d row(s) to %s\n", len(records), target)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Destination file (default: stdout)")
	cmd.Flags().BoolVar(&backup, "backup", false, "Write a dated backup into the data directory instead")
	return cmd
}
