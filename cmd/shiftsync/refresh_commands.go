package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"shiftsync/internal/refresh"
	"shiftsync/internal/shift"
)

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Collect the roster, reconcile it, and send change alerts now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				status, err := a.runner.Run(cmd.Context(), refresh.TriggerManual)
				if ctx.jsonOutput() {
					if encErr := writeJSON(cmd, status); encErr != nil {
						return encErr
					}
					return err
				}
				printRefreshStatus(cmd, status)
				return err
			})
		},
	}
}

func printRefreshStatus(cmd *cobra.Command, status refresh.Status) {
	out := cmd.OutOrStdout()
	rows := [][]string{
		{"Cycle", status.CycleID},
		{"Attempts", strconv.Itoa(status.Attempts)},
		{"Records", strconv.Itoa(status.Records)},
		{"Accepted", strconv.Itoa(status.Accepted)},
		{"Rejected", strconv.Itoa(status.Rejected)},
		{"Duplicates", strconv.Itoa(status.Duplicates)},
		{"Changes", strconv.Itoa(status.Changes)},
		{"Delivered", strconv.Itoa(status.Delivered)},
		{"Duration", status.Duration().Round(time.Millisecond).String()},
	}
	if status.Err != "" {
		rows = append(rows, []string{"Error", status.Err})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Refresh", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
	for _, key := range status.NewNames.Physicians {
		fmt.Fprintf(out, "New physician: %s\n", key)
	}
	for _, key := range status.NewNames.MLPs {
		fmt.Fprintf(out, "New MLP: %s\n", key)
	}
}

func newChangesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "changes",
		Short: "Show pending scribe changes without committing or alerting",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				changes, err := a.runner.Preview(cmd.Context())
				if err != nil {
					return err
				}
				return printChanges(cmd, ctx, changes)
			})
		},
	}
}

func printChanges(cmd *cobra.Command, ctx *commandContext, changes []shift.Change) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, changes)
	}
	out := cmd.OutOrStdout()
	if len(changes) == 0 {
		fmt.Fprintln(out, "No pending changes")
		return nil
	}
	rows := make([][]string, 0, len(changes))
	for _, c := range changes {
		cur := c.Current()
		rows = append(rows, []string{string(c.Type), cur.Date, cur.Label, shift.DisplayTime(cur.Time), c.OldPerson(), c.NewPerson(), cur.Site})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Change", "Date", "Label", "Time", "Old", "New", "Site"}, rows, nil))
	return nil
}
