package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"shiftsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Sources default to a pages directory, notifications are disabled, and
// retry backoff is collapsed so cycles finish immediately.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Source.Kind = config.SourceDir
	cfgVal.Source.Dir = filepath.Join(base, "pages")
	cfgVal.Source.SiteDelaySeconds = 0
	cfgVal.Refresh.BackoffSeconds = []int{0}
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	if err := os.MkdirAll(builder.cfg.Source.Dir, 0o755); err != nil {
		t.Fatalf("mkdir pages dir: %v", err)
	}
	return builder.cfg
}

// WithStorageDriver selects the snapshot backend.
func WithStorageDriver(driver string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.Driver = driver
	}
}

// WithNtfyTopic points notifications at the given endpoint.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithMaxAttempts overrides the refresh attempt budget.
func WithMaxAttempts(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Refresh.MaxAttempts = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
