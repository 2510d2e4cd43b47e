package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Storage selects the snapshot backend.
type Storage struct {
	Driver string `toml:"driver"`
}

// Site is one schedule source page.
type Site struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
	Path string `toml:"path"`
}

// Source describes where calendar pages are fetched from.
type Source struct {
	Kind             string `toml:"kind"`
	BaseURL          string `toml:"base_url"`
	Dir              string `toml:"dir"`
	Cookie           string `toml:"cookie"`
	RequestTimeout   int    `toml:"request_timeout"`
	SiteDelaySeconds int    `toml:"site_delay_seconds"`
	Sites            []Site `toml:"sites"`
}

// Parser holds the shift-text vocabulary.
type Parser struct {
	PrimaryPrefix   string   `toml:"primary_prefix"`
	SecondaryPrefix string   `toml:"secondary_prefix"`
	Directions      []string `toml:"directions"`
}

// Refresh controls the ingestion cycle and its maintenance jobs.
type Refresh struct {
	Schedule           string `toml:"schedule"`
	MaxAttempts        int    `toml:"max_attempts"`
	BackoffSeconds     []int  `toml:"backoff_seconds"`
	AutoDedupe         bool   `toml:"auto_dedupe"`
	AlertRetentionDays int    `toml:"alert_retention_days"`
	BackupSchedule     string `toml:"backup_schedule"`
}

// Display controls the presentation views.
type Display struct {
	Timezone               string   `toml:"timezone"`
	TomorrowAfterHour      int      `toml:"tomorrow_after_hour"`
	PAToleranceMinutes     int      `toml:"pa_tolerance_minutes"`
	RefreshIntervalSeconds int      `toml:"refresh_interval_seconds"`
	Targets                []string `toml:"targets"`
}

// Notifications contains configuration for ntfy change alerts.
type Notifications struct {
	NtfyTopic            string `toml:"ntfy_topic"`
	RequestTimeout       int    `toml:"request_timeout"`
	MaxChangesPerMessage int    `toml:"max_changes_per_message"`
	RatePerMinute        int    `toml:"rate_per_minute"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for shiftsync.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Storage       Storage       `toml:"storage"`
	Source        Source        `toml:"source"`
	Parser        Parser        `toml:"parser"`
	Refresh       Refresh       `toml:"refresh"`
	Display       Display       `toml:"display"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, normalizes, and validates a configuration file. A
// missing file is not an error: defaults are used and exists reports false.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		// Lists in the file replace the defaults rather than merging with
		// them; empty lists are refilled by normalize.
		cfg.Source.Sites = nil
		cfg.Parser.Directions = nil
		cfg.Refresh.BackoffSeconds = nil

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("shiftsync.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir, c.BackupDir()}
	if c.Source.Kind == SourceDir {
		// Best effort: the pages directory is usually populated by another tool.
		_ = os.MkdirAll(c.Source.Dir, 0o755)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath is the sqlite database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "shiftsync.db")
}

// BackupDir holds CSV snapshot backups.
func (c *Config) BackupDir() string {
	return filepath.Join(c.Paths.DataDir, "backups")
}

// LockPath is the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "shiftsync.lock")
}

// CycleLockPath serializes refresh commits across processes.
func (c *Config) CycleLockPath() string {
	return filepath.Join(c.Paths.DataDir, "cycle.lock")
}

// Location returns the display time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Display.Timezone)
}

// Backoff returns the delays between refresh attempts.
func (c *Config) Backoff() []time.Duration {
	out := make([]time.Duration, 0, len(c.Refresh.BackoffSeconds))
	for _, s := range c.Refresh.BackoffSeconds {
		out = append(out, time.Duration(s)*time.Second)
	}
	return out
}

// SiteDelay is the minimum pause between fetching consecutive sites.
func (c *Config) SiteDelay() time.Duration {
	return time.Duration(c.Source.SiteDelaySeconds) * time.Second
}

// SourceTimeout bounds one page fetch.
func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.Source.RequestTimeout) * time.Second
}

// NotificationTimeout bounds one ntfy request.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

// DisplayInterval is the presentation refresh period.
func (c *Config) DisplayInterval() time.Duration {
	return time.Duration(c.Display.RefreshIntervalSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
