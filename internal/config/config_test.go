package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shiftsync/internal/config"
)

func TestLoadDefaultsExpandPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	chdir(t, t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(tempHome, ".config", "shiftsync", "config.toml"); resolved != want {
		t.Fatalf("resolved = %q, want %q", resolved, want)
	}
	if want := filepath.Join(tempHome, ".local", "share", "shiftsync"); cfg.Paths.DataDir != want {
		t.Fatalf("data dir = %q, want %q", cfg.Paths.DataDir, want)
	}
	if cfg.Storage.Driver != config.DriverSQLite {
		t.Fatalf("driver = %q", cfg.Storage.Driver)
	}
	if len(cfg.Source.Sites) != 3 {
		t.Fatalf("expected three default sites, got %d", len(cfg.Source.Sites))
	}
	if got := cfg.DatabasePath(); got != filepath.Join(cfg.Paths.DataDir, "shiftsync.db") {
		t.Fatalf("database path = %q", got)
	}
	if got := cfg.Backoff(); len(got) != 3 || got[2].Seconds() != 120 {
		t.Fatalf("backoff = %v", got)
	}
}

func TestLoadEnvFallbacks(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvNtfyTopic, "https://ntfy.example/topic")
	t.Setenv(config.EnvSourceCookie, "session=abc")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.example/topic" {
		t.Fatalf("ntfy topic = %q", cfg.Notifications.NtfyTopic)
	}
	if cfg.Source.Cookie != "session=abc" {
		t.Fatalf("cookie = %q", cfg.Source.Cookie)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[storage]
driver = "FILE"

[source]
kind = "http"
base_url = "https://schedules.example.com/"

[[source.sites]]
name = "Scribe"
path = "/scribe"

[display]
targets = ["~/board.txt"]

[logging]
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved=%q exists=%v", resolved, exists)
	}
	if cfg.Storage.Driver != config.DriverFile {
		t.Fatalf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.Source.BaseURL != "https://schedules.example.com" {
		t.Fatalf("base url not trimmed: %q", cfg.Source.BaseURL)
	}
	if len(cfg.Source.Sites) != 1 || cfg.Source.Sites[0].Path != "scribe" {
		t.Fatalf("sites = %+v", cfg.Source.Sites)
	}
	if want := filepath.Join(home, "board.txt"); len(cfg.Display.Targets) != 1 || cfg.Display.Targets[0] != want {
		t.Fatalf("targets = %v", cfg.Display.Targets)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[refresh]\nschedul = \"@hourly\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "schedul") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"defaults", func(*config.Config) {}, ""},
		{"bad driver", func(c *config.Config) { c.Storage.Driver = "postgres" }, "storage.driver"},
		{"http without url", func(c *config.Config) { c.Source.Kind = "http"; c.Source.BaseURL = "" }, "source.base_url"},
		{"relative url", func(c *config.Config) { c.Source.Kind = "http"; c.Source.BaseURL = "schedules" }, "absolute URL"},
		{"no sites", func(c *config.Config) { c.Source.Sites = nil }, "source.sites"},
		{"duplicate site", func(c *config.Config) {
			c.Source.Sites = append(c.Source.Sites, c.Source.Sites[0])
		}, "duplicated"},
		{"bad schedule", func(c *config.Config) { c.Refresh.Schedule = "every so often" }, "refresh.schedule"},
		{"descriptor schedule", func(c *config.Config) { c.Refresh.Schedule = "@every 15m" }, ""},
		{"zero attempts", func(c *config.Config) { c.Refresh.MaxAttempts = 0 }, "refresh.max_attempts"},
		{"bad timezone", func(c *config.Config) { c.Display.Timezone = "Mars/Olympus" }, "display.timezone"},
		{"cutoff out of range", func(c *config.Config) { c.Display.TomorrowAfterHour = 25 }, "tomorrow_after_hour"},
		{"no directions", func(c *config.Config) { c.Parser.Directions = nil }, "parser.directions"},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"zero batch", func(c *config.Config) { c.Notifications.MaxChangesPerMessage = 0 }, "max_changes_per_message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Source.Dir = t.TempDir()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate returned error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Refresh.BackupSchedule == "" || len(cfg.Source.Sites) != 3 {
		t.Fatalf("unexpected sample values: %+v", cfg.Refresh)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Source.Dir = filepath.Join(base, "pages")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.BackupDir(), cfg.Source.Dir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore cwd: %v", err)
		}
	})
}
