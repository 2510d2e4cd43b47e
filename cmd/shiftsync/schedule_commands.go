package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shiftsync/internal/display"
	"shiftsync/internal/pairing"
	"shiftsync/internal/shift"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var by string
	var asTable bool

	cmd := &cobra.Command{
		Use:   "show [date]",
		Short: "Show the paired schedule for a date (default: the relevant day)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			grouping, err := display.ParseGrouping(by)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd.Context(), func(a *app) error {
				date := a.relevantDate()
				if len(args) == 1 {
					if date, err = resolveDate(args[0], time.Now().In(a.loc)); err != nil {
						return err
					}
				}
				view, err := display.BuildView(cmd.Context(), a.store, a.pairer, date, grouping, time.Time{})
				if err != nil {
					return err
				}
				switch {
				case ctx.jsonOutput():
					return writeJSON(cmd, view)
				case asTable:
					printViewTable(cmd, view)
					return nil
				default:
					return display.WriteText(cmd.OutOrStdout(), view)
				}
			})
		},
	}
	cmd.Flags().StringVar(&by, "by", "zone", "Group entries by zone or period")
	cmd.Flags().BoolVar(&asTable, "table", false, "Render one row per scribe shift")
	return cmd
}

func printViewTable(cmd *cobra.Command, view display.View) {
	out := cmd.OutOrStdout()
	if len(view.Groups) == 0 {
		fmt.Fprintf(out, "No shifts scheduled for %s\n", view.Date)
		return
	}
	var rows [][]string
	for _, group := range view.Groups {
		for _, p := range group.Entries {
			companion := ""
			if p.Companion != nil {
				companion = p.Companion.Person
			}
			rows = append(rows, []string{group.Name, p.Label, p.Time, p.Scribe.Person, companion})
		}
	}
	fmt.Fprintln(out, renderTable(out, []string{"Group", "Label", "Time", "Scribe", "Provider"}, rows, nil))
}

func newNowCommand(ctx *commandContext) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "now",
		Short: "Show who is on duty right now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				now := time.Now().In(a.loc)
				if strings.TrimSpace(at) != "" {
					clock, err := time.ParseInLocation("15:04", at, a.loc)
					if err != nil {
						return fmt.Errorf("--at must be HH:MM: %w", err)
					}
					now = time.Date(now.Year(), now.Month(), now.Day(), clock.Hour(), clock.Minute(), 0, 0, a.loc)
				}
				date := now.Format(shift.DateLayout)
				minute := pairing.MinuteOfDay(now)

				records, err := a.store.ShiftsForDate(cmd.Context(), date)
				if err != nil {
					return err
				}
				scribes := pairing.ActivePairs(a.pairer.Pair(records), minute)
				var providers []shift.Record
				for _, rec := range pairing.OnDuty(records, minute) {
					if rec.Role != shift.RoleScribe {
						providers = append(providers, rec)
					}
				}

				if ctx.jsonOutput() {
					return writeJSON(cmd, struct {
						Date      string
						Time      string
						Scribes   []pairing.Paired
						Providers []shift.Record
					}{date, now.Format("15:04"), scribes, providers})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "On duty %s at %s\n", date, now.Format("15:04"))
				if len(scribes) == 0 && len(providers) == 0 {
					fmt.Fprintln(out, "Nobody is scheduled right now")
					return nil
				}
				if len(scribes) > 0 {
					rows := make([][]string, 0, len(scribes))
					for _, p := range scribes {
						rows = append(rows, []string{p.Label, p.Time, p.Text})
					}
					fmt.Fprintln(out, renderTable(out, []string{"Label", "Time", "Scribe"}, rows, nil))
				}
				if len(providers) > 0 {
					rows := make([][]string, 0, len(providers))
					for _, rec := range providers {
						rows = append(rows, []string{rec.Label, shift.DisplayTime(rec.Time), rec.Person, string(rec.Role)})
					}
					fmt.Fprintln(out, renderTable(out, []string{"Label", "Time", "Provider", "Role"}, rows, nil))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Clock time to check instead of now (HH:MM)")
	return cmd
}

// resolveDate accepts YYYY-MM-DD, MM/DD/YYYY, today, or tomorrow.
func resolveDate(value string, now time.Time) (string, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "today":
		return now.Format(shift.DateLayout), nil
	case "tomorrow":
		return now.AddDate(0, 0, 1).Format(shift.DateLayout), nil
	}
	for _, layout := range []string{shift.DateLayout, "01/02/2006", "1/2/2006"} {
		if t, err := time.Parse(layout, strings.TrimSpace(value)); err == nil {
			return t.Format(shift.DateLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognised date %q (use YYYY-MM-DD, MM/DD/YYYY, today, or tomorrow)", value)
}
