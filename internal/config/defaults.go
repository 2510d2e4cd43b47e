package config

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
)

// Source kinds.
const (
	SourceHTTP = "http"
	SourceDir  = "dir"
)

const (
	defaultConfigPath           = "~/.config/shiftsync/config.toml"
	defaultDataDir              = "~/.local/share/shiftsync"
	defaultLogDir               = "~/.local/share/shiftsync/logs"
	defaultPagesDir             = "~/.local/share/shiftsync/pages"
	defaultBaseURL              = "https://legacy.shiftgen.com"
	defaultSourceTimeout        = 30
	defaultSiteDelaySeconds     = 2
	defaultRefreshSchedule      = "0 */30 * * * *"
	defaultBackupSchedule       = "0 0 3 * * *"
	defaultMaxAttempts          = 3
	defaultAlertRetentionDays   = 30
	defaultTimezone             = "America/Los_Angeles"
	defaultTomorrowAfterHour    = 20
	defaultPAToleranceMinutes   = 60
	defaultDisplayRefresh       = 300
	defaultNotifyTimeout        = 10
	defaultMaxChangesPerMessage = 20
	defaultNotifyRatePerMinute  = 30
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
)

var (
	defaultDirections     = []string{"North", "South", "East", "West", "RED"}
	defaultBackoffSeconds = []int{30, 60, 120}
)

// Environment fallbacks for secrets that should not live in the file.
const (
	EnvNtfyTopic    = "SHIFTSYNC_NTFY_TOPIC"
	EnvSourceCookie = "SHIFTSYNC_SOURCE_COOKIE"
)

// DefaultSites are the three roster sites of the emergency department group.
func DefaultSites() []Site {
	return []Site{
		{ID: "82", Name: "St Joseph Scribe", Path: "scribe.html"},
		{ID: "80", Name: "St Joseph/CHOC Physician", Path: "physician.html"},
		{ID: "84", Name: "St Joseph/CHOC MLP", Path: "mlp.html"},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Storage: Storage{Driver: DriverSQLite},
		Source: Source{
			Kind:             SourceDir,
			BaseURL:          defaultBaseURL,
			Dir:              defaultPagesDir,
			RequestTimeout:   defaultSourceTimeout,
			SiteDelaySeconds: defaultSiteDelaySeconds,
			Sites:            DefaultSites(),
		},
		Parser: Parser{
			PrimaryPrefix:   "SJH",
			SecondaryPrefix: "CHOC",
			Directions:      append([]string(nil), defaultDirections...),
		},
		Refresh: Refresh{
			Schedule:           defaultRefreshSchedule,
			MaxAttempts:        defaultMaxAttempts,
			BackoffSeconds:     append([]int(nil), defaultBackoffSeconds...),
			AutoDedupe:         true,
			AlertRetentionDays: defaultAlertRetentionDays,
			BackupSchedule:     defaultBackupSchedule,
		},
		Display: Display{
			Timezone:               defaultTimezone,
			TomorrowAfterHour:      defaultTomorrowAfterHour,
			PAToleranceMinutes:     defaultPAToleranceMinutes,
			RefreshIntervalSeconds: defaultDisplayRefresh,
		},
		Notifications: Notifications{
			RequestTimeout:       defaultNotifyTimeout,
			MaxChangesPerMessage: defaultMaxChangesPerMessage,
			RatePerMinute:        defaultNotifyRatePerMinute,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
