package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"shiftsync/internal/names"
)

func newLegendCommand(ctx *commandContext) *cobra.Command {
	legendCmd := &cobra.Command{
		Use:   "legend",
		Short: "Inspect and edit provider display names",
	}

	var class string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List legend entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				entries := filterEntries(a.names.Legend().Entries(), class)
				return printEntries(cmd, ctx, entries, "Legend is empty")
			})
		},
	}
	listCmd.Flags().StringVar(&class, "class", "", "Only list physician or mlp entries")

	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "List providers still shown with a generated placeholder name",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				return printEntries(cmd, ctx, a.names.Legend().Placeholders(), "No placeholder names")
			})
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <physician|mlp> <roster name> <display name>",
		Short: "Set the display name for a provider",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			display := strings.TrimSpace(strings.Join(args[2:], " "))
			if display == "" {
				return errors.New("display name must not be empty")
			}
			return ctx.withApp(cmd.Context(), func(a *app) error {
				// A running cycle saves learned names under this lock.
				lock := flock.New(a.cfg.CycleLockPath())
				ok, err := lock.TryLockContext(cmd.Context(), 100*time.Millisecond)
				if err != nil || !ok {
					return fmt.Errorf("wait for refresh cycle: %w", errors.Join(err, cmd.Context().Err()))
				}
				defer func() { _ = lock.Unlock() }()
				if err := a.names.Reload(cmd.Context()); err != nil {
					return err
				}
				legend := a.names.Legend()
				if !legend.Set(args[0], args[1], display) {
					return fmt.Errorf("unknown legend class %q (want %s or %s)", args[0], names.ClassPhysician, names.ClassMLP)
				}
				if err := a.store.SaveLegend(cmd.Context(), legend); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s -> %s\n", strings.ToLower(args[0]), names.Key(args[1]), display)
				return nil
			})
		},
	}

	legendCmd.AddCommand(listCmd, pendingCmd, setCmd)
	return legendCmd
}

func filterEntries(entries []names.Entry, class string) []names.Entry {
	class = strings.ToLower(strings.TrimSpace(class))
	if class == "" {
		return entries
	}
	class = strings.TrimSuffix(class, "s")
	out := entries[:0]
	for _, e := range entries {
		if e.Class == class {
			out = append(out, e)
		}
	}
	return out
}

func printEntries(cmd *cobra.Command, ctx *commandContext, entries []names.Entry, empty string) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, entries)
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, empty)
		return nil
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Class, e.Key, e.Display})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Class", "Roster Name", "Display Name"}, rows, nil))
	return nil
}
