package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shiftsync/internal/config"
	"shiftsync/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	t.Setenv("HOME", testsupport.BaseDir(cfg))
	t.Setenv(config.EnvNtfyTopic, "")

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	env := &cliTestEnv{cfg: cfg, configPath: configPath}
	env.writeRoster(t, "molly", "NEWPA")
	return env
}

// writeRoster saves one month of pages: a scribe in A on March 1 paired with
// MERJANIAN, and a PA shift for mlp.
func (e *cliTestEnv) writeRoster(t *testing.T, scribe, mlp string) {
	t.Helper()
	sites := e.cfg.Source.Sites
	pages := [][]string{
		{"A 0700-1500: " + scribe},
		{"SJH A 0700-1500: MERJANIAN"},
		{"CHOC PA 1000-2000: " + mlp},
	}
	for i, site := range sites {
		testsupport.WriteFile(t, filepath.Join(e.cfg.Source.Dir, site.Path),
			testsupport.CalendarPage(site.Name, "March 2025", map[int][]string{1: pages[i]}))
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout, _, err := runCLI(t, args, e.configPath)
	return stdout, err
}

func (e *cliTestEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("shiftsync %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[source]
kind = "dir"
dir = %q
site_delay_seconds = 0

[refresh]
max_attempts = 1
backoff_seconds = [0]
`, cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Source.Dir)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q not to contain %q", output, substr)
	}
}
