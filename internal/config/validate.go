package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
)

// scheduleParser accepts an optional leading seconds field and descriptors
// such as @hourly.
var scheduleParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ScheduleParser returns the cron parser used for refresh schedules.
func ScheduleParser() cron.Parser {
	return scheduleParser
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateStorage,
		c.validateSource,
		c.validateParser,
		c.validateRefresh,
		c.validateDisplay,
		c.validateNotifications,
		c.validateLogging,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverFile:
		return nil
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", DriverSQLite, DriverFile, c.Storage.Driver)
	}
}

func (c *Config) validateSource() error {
	switch c.Source.Kind {
	case SourceHTTP:
		if c.Source.BaseURL == "" {
			return errors.New("source.base_url must be set when source.kind is http")
		}
		parsed, err := url.Parse(c.Source.BaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("source.base_url %q is not an absolute URL", c.Source.BaseURL)
		}
	case SourceDir:
		if c.Source.Dir == "" {
			return errors.New("source.dir must be set when source.kind is dir")
		}
	default:
		return fmt.Errorf("source.kind must be %q or %q, got %q", SourceHTTP, SourceDir, c.Source.Kind)
	}
	if len(c.Source.Sites) == 0 {
		return errors.New("source.sites must list at least one site")
	}
	seen := map[string]struct{}{}
	for i, site := range c.Source.Sites {
		if site.Name == "" {
			return fmt.Errorf("source.sites[%d].name must be set", i)
		}
		if site.Path == "" {
			return fmt.Errorf("source.sites[%d].path must be set", i)
		}
		if _, dup := seen[site.Name]; dup {
			return fmt.Errorf("source.sites[%d].name %q is duplicated", i, site.Name)
		}
		seen[site.Name] = struct{}{}
	}
	if c.Source.SiteDelaySeconds < 0 {
		return errors.New("source.site_delay_seconds must be >= 0")
	}
	return ensurePositiveMap(map[string]int{
		"source.request_timeout": c.Source.RequestTimeout,
	})
}

func (c *Config) validateParser() error {
	if c.Parser.PrimaryPrefix == "" {
		return errors.New("parser.primary_prefix must be set")
	}
	if c.Parser.SecondaryPrefix == "" {
		return errors.New("parser.secondary_prefix must be set")
	}
	if len(c.Parser.Directions) == 0 {
		return errors.New("parser.directions must list at least one direction")
	}
	return nil
}

func (c *Config) validateRefresh() error {
	if err := ensurePositiveMap(map[string]int{
		"refresh.max_attempts":         c.Refresh.MaxAttempts,
		"refresh.alert_retention_days": c.Refresh.AlertRetentionDays,
	}); err != nil {
		return err
	}
	for i, s := range c.Refresh.BackoffSeconds {
		if s < 0 {
			return fmt.Errorf("refresh.backoff_seconds[%d] must be >= 0", i)
		}
	}
	if _, err := scheduleParser.Parse(c.Refresh.Schedule); err != nil {
		return fmt.Errorf("refresh.schedule %q: %w", c.Refresh.Schedule, err)
	}
	if c.Refresh.BackupSchedule != "" {
		if _, err := scheduleParser.Parse(c.Refresh.BackupSchedule); err != nil {
			return fmt.Errorf("refresh.backup_schedule %q: %w", c.Refresh.BackupSchedule, err)
		}
	}
	return nil
}

func (c *Config) validateDisplay() error {
	if _, err := time.LoadLocation(c.Display.Timezone); err != nil {
		return fmt.Errorf("display.timezone %q: %w", c.Display.Timezone, err)
	}
	if c.Display.TomorrowAfterHour < 0 || c.Display.TomorrowAfterHour > 24 {
		return errors.New("display.tomorrow_after_hour must be between 0 and 24")
	}
	if c.Display.PAToleranceMinutes < 0 {
		return errors.New("display.pa_tolerance_minutes must be >= 0")
	}
	return ensurePositiveMap(map[string]int{
		"display.refresh_interval_seconds": c.Display.RefreshIntervalSeconds,
	})
}

func (c *Config) validateNotifications() error {
	return ensurePositiveMap(map[string]int{
		"notifications.request_timeout":         c.Notifications.RequestTimeout,
		"notifications.max_changes_per_message": c.Notifications.MaxChangesPerMessage,
		"notifications.rate_per_minute":         c.Notifications.RatePerMinute,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

// ensurePositiveMap reports the first non-positive value in key order.
func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
