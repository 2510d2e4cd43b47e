package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"shiftsync/internal/config"
	"shiftsync/internal/preflight"
	"shiftsync/internal/store"
)

type statusReport struct {
	DaemonRunning bool
	LockPath      string
	Store         store.Stats
	Health        preflight.Result
	Schedule      string
	NextRefresh   time.Time
	Targets       []string
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, snapshot, and schedule status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app) error {
				stats, err := a.store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				report := statusReport{
					DaemonRunning: daemonRunning(a.cfg.LockPath()),
					LockPath:      a.cfg.LockPath(),
					Store:         stats,
					Health:        preflight.CheckStoreHealth(cmd.Context(), a.store),
					Schedule:      a.cfg.Refresh.Schedule,
					Targets:       a.cfg.Display.Targets,
				}
				if sched, err := config.ScheduleParser().Parse(a.cfg.Refresh.Schedule); err == nil {
					report.NextRefresh = sched.Next(time.Now().In(a.loc))
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, report)
				}
				printStatus(cmd, report, a.loc)
				return nil
			})
		},
	}
}

// daemonRunning probes the instance lock. A lock we can take means no
// daemon holds it.
func daemonRunning(lockPath string) bool {
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return false
	}
	if ok {
		_ = lock.Unlock()
		return false
	}
	return true
}

func printStatus(cmd *cobra.Command, report statusReport, loc *time.Location) {
	out := cmd.OutOrStdout()
	formatTime := func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.In(loc).Format("2006-01-02 15:04 MST")
	}
	dateRange := "-"
	if report.Store.EarliestDate != "" {
		dateRange = report.Store.EarliestDate + " .. " + report.Store.LatestDate
	}
	targets := "none"
	if len(report.Targets) > 0 {
		targets = strings.Join(report.Targets, ", ")
	}

	rows := [][]string{
		{"Daemon running", yesNo(report.DaemonRunning)},
		{"Storage", report.Store.Driver + " " + report.Store.Path},
		{"Store healthy", yesNo(report.Health.Passed)},
		{"Records", strconv.Itoa(report.Store.Records)},
		{"Dates", dateRange},
		{"Last refresh", formatTime(report.Store.LastRefresh)},
		{"Alerted changes", strconv.Itoa(report.Store.AlertedChanges)},
		{"Refresh schedule", report.Schedule},
		{"Next refresh", formatTime(report.NextRefresh)},
		{"Display targets", targets},
	}
	if !report.Health.Passed {
		rows = append(rows, []string{"Store detail", report.Health.Detail})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Status", "Value"}, rows, nil))
}
