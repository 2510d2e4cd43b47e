package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSource(); err != nil {
		return err
	}
	c.normalizeParser()
	if err := c.normalizeDisplay(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverSQLite
	}
	if len(c.Refresh.BackoffSeconds) == 0 {
		c.Refresh.BackoffSeconds = append([]int(nil), defaultBackoffSeconds...)
	}
	c.Refresh.Schedule = strings.TrimSpace(c.Refresh.Schedule)
	c.Refresh.BackupSchedule = strings.TrimSpace(c.Refresh.BackupSchedule)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSource() error {
	c.Source.Kind = strings.ToLower(strings.TrimSpace(c.Source.Kind))
	c.Source.BaseURL = strings.TrimRight(strings.TrimSpace(c.Source.BaseURL), "/")
	if c.Source.Cookie == "" {
		if value, ok := os.LookupEnv(EnvSourceCookie); ok {
			c.Source.Cookie = strings.TrimSpace(value)
		}
	}
	if c.Source.Dir != "" {
		var err error
		if c.Source.Dir, err = expandPath(c.Source.Dir); err != nil {
			return fmt.Errorf("source.dir: %w", err)
		}
	}
	if len(c.Source.Sites) == 0 {
		c.Source.Sites = DefaultSites()
	}
	for i := range c.Source.Sites {
		site := &c.Source.Sites[i]
		site.ID = strings.TrimSpace(site.ID)
		site.Name = strings.TrimSpace(site.Name)
		site.Path = strings.TrimLeft(strings.TrimSpace(site.Path), "/")
	}
	return nil
}

func (c *Config) normalizeParser() {
	c.Parser.PrimaryPrefix = strings.TrimSpace(c.Parser.PrimaryPrefix)
	c.Parser.SecondaryPrefix = strings.TrimSpace(c.Parser.SecondaryPrefix)
	directions := c.Parser.Directions[:0]
	for _, d := range c.Parser.Directions {
		if d = strings.TrimSpace(d); d != "" {
			directions = append(directions, d)
		}
	}
	if len(directions) == 0 {
		directions = append(directions, defaultDirections...)
	}
	c.Parser.Directions = directions
}

func (c *Config) normalizeDisplay() error {
	c.Display.Timezone = strings.TrimSpace(c.Display.Timezone)
	if c.Display.Timezone == "" {
		c.Display.Timezone = defaultTimezone
	}
	targets := make([]string, 0, len(c.Display.Targets))
	for _, target := range c.Display.Targets {
		if strings.TrimSpace(target) == "" {
			continue
		}
		expanded, err := expandPath(strings.TrimSpace(target))
		if err != nil {
			return fmt.Errorf("display.targets: %w", err)
		}
		targets = append(targets, expanded)
	}
	c.Display.Targets = targets
	return nil
}

func (c *Config) normalizeNotifications() {
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv(EnvNtfyTopic); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
