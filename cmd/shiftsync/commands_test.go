package main

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"shiftsync/internal/notifications"
	"shiftsync/internal/testsupport"
)

func TestConfigValidateReportsPath(t *testing.T) {
	env := setupCLITestEnv(t)
	out := env.mustRun(t, "config", "validate")
	requireContains(t, out, env.configPath)
	requireContains(t, out, "Configuration valid")
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, target)

	_, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected already exists error, got %v", err)
	}
}

func TestParseFragment(t *testing.T) {
	env := setupCLITestEnv(t)
	out := env.mustRun(t, "parse", "SJH", "B", "1100-1930:", "KIM")
	requireContains(t, out, "1100-1930")
	requireContains(t, out, "KIM")
	requireContains(t, out, "510")
}

func TestParseCalendarFile(t *testing.T) {
	env := setupCLITestEnv(t)
	page := filepath.Join(env.cfg.Source.Dir, env.cfg.Source.Sites[0].Path)
	out := env.mustRun(t, "parse", "--file", page)
	requireContains(t, out, "2025-03-01")
	requireContains(t, out, "March 2025: 1 cell(s), 1 fragment(s), 0 skipped")
}

func TestRefreshThenShowPairsScribes(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.mustRun(t, "refresh")
	requireContains(t, out, "Accepted")
	requireContains(t, out, "New MLP: NEWPA")

	out = env.mustRun(t, "show", "2025-03-01")
	requireContains(t, out, "Schedule for Saturday, March 1, 2025")
	requireContains(t, out, "Zone 2")
	requireContains(t, out, "A  07:00-15:00 • Molly with Dr. Merjanian")

	out = env.mustRun(t, "show", "03/01/2025", "--by", "period", "--table")
	requireContains(t, out, "Morning")
	requireContains(t, out, "Dr. Merjanian")

	out = env.mustRun(t, "show", "2025-03-02")
	requireContains(t, out, "No shifts scheduled for this date")

	if _, err := env.run(t, "show", "--by", "weekday"); err == nil {
		t.Fatal("expected unknown grouping to fail")
	}
}

func TestChangesPreviewsWithoutCommitting(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "refresh")

	env.writeRoster(t, "nora", "NEWPA")
	out := env.mustRun(t, "changes")
	requireContains(t, out, "modified")
	requireContains(t, out, "Nora")

	out = env.mustRun(t, "show", "2025-03-01")
	requireContains(t, out, "Molly")
	requireNotContains(t, out, "Nora")

	env.writeRoster(t, "molly", "NEWPA")
	out = env.mustRun(t, "changes")
	requireContains(t, out, "No pending changes")
}

func TestMaintenanceCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "refresh")

	out := env.mustRun(t, "dupes", "count")
	requireContains(t, out, "Duplicate rows: 0")

	out = env.mustRun(t, "dupes", "clean")
	requireContains(t, out, "Removed 0 duplicate row(s)")

	out = env.mustRun(t, "alerts", "prune", "--days", "0")
	requireContains(t, out, "older than 0 day(s)")

	if _, err := env.run(t, "alerts", "prune", "--days=-1"); err == nil {
		t.Fatal("expected negative retention to fail")
	}

	out = env.mustRun(t, "export")
	requireContains(t, out, "date,label,time,person,role,site")
	requireContains(t, out, "2025-03-01,A,0700-1500,Molly,Scribe,St Joseph Scribe")

	out = env.mustRun(t, "export", "--backup")
	requireContains(t, out, "Backed up 3 row(s)")
	requireContains(t, out, env.cfg.BackupDir())
}

func TestLegendCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "refresh")

	out := env.mustRun(t, "legend", "pending")
	requireContains(t, out, "NEWPA")
	requireContains(t, out, "Newpa, PA-C")

	out = env.mustRun(t, "legend", "set", "mlp", "newpa", "Nina", "Ewpa")
	requireContains(t, out, "mlp NEWPA -> Nina Ewpa")

	out = env.mustRun(t, "legend", "list", "--class", "mlp")
	requireContains(t, out, "Nina Ewpa")
	requireNotContains(t, out, "MERJANIAN")

	out = env.mustRun(t, "legend", "pending")
	requireNotContains(t, out, "NEWPA")

	if _, err := env.run(t, "legend", "set", "scribe", "x", "X"); err == nil {
		t.Fatal("expected unknown class to fail")
	}
}

func TestStatusReportsDaemonLock(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "refresh")

	out := env.mustRun(t, "status")
	requireContains(t, out, "Daemon running")
	requireContains(t, out, "Records")
	requireContains(t, out, "2025-03-01 .. 2025-03-01")

	lock := flock.New(env.cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("take lock: ok=%v err=%v", ok, err)
	}
	defer lock.Unlock()
	if !daemonRunning(env.cfg.LockPath()) {
		t.Fatal("expected held lock to report a running daemon")
	}
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "test-notify")
	if !errors.Is(err, notifications.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	requireContains(t, out, "Notifications are disabled")
}

func TestResolveDate(t *testing.T) {
	now := time.Date(2025, 3, 1, 22, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want string
	}{
		{"today", "2025-03-01"},
		{"Tomorrow", "2025-03-02"},
		{"2025-04-05", "2025-04-05"},
		{"04/05/2025", "2025-04-05"},
		{"4/5/2025", "2025-04-05"},
	}
	for _, tt := range tests {
		got, err := resolveDate(tt.in, now)
		if err != nil {
			t.Fatalf("resolveDate(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("resolveDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if _, err := resolveDate("next week", now); err == nil {
		t.Fatal("expected unrecognised date to fail")
	}
}

func TestLogsCommandFiltersLines(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(env.cfg.Paths.LogDir, "shiftsync.log")
	testsupport.WriteFile(t, path, "INFO refresh cycle=abc started\nINFO unrelated\nINFO refresh cycle=abc finished\n")

	out := env.mustRun(t, "logs", "--match", "cycle=abc", "-n", "1")
	requireContains(t, out, "finished")
	requireNotContains(t, out, "started")
}
