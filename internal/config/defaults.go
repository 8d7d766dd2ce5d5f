package config

const (
	defaultBaseURL            = "http://127.0.0.1:8000"
	defaultRequestTimeout     = 30
	defaultStateDir           = "~/.local/share/herdscreen"
	defaultDownloadDir        = "~/.local/share/herdscreen/downloads"
	defaultProbeInterval      = 1000
	defaultProbeTimeout       = 3000
	defaultProbeReadyGrace    = 500
	defaultPollInterval       = 1000
	defaultMonitorStartDelay  = 500
	defaultSilentRetries      = 3
	defaultPollTimeout        = 5000
	defaultLifecycleEnabled   = true
	defaultHiddenGrace        = 3000
	defaultMaxFileMB          = 100
	defaultMinMatchMonths     = 3
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	baseURLEnvVar             = "HERDSCREEN_URL"
	maxReasonableSilentRetry  = 100
	minReasonablePollInterval = 100
)

var (
	defaultAllowedExtensions = []string{".zip", ".xlsx"}
	defaultDisplayFields     = []string{"farm_id", "management_id", "parity", "protein_pct"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			BaseURL:        defaultBaseURL,
			RequestTimeout: defaultRequestTimeout,
		},
		Paths: Paths{
			StateDir:    defaultStateDir,
			DownloadDir: defaultDownloadDir,
		},
		Probe: Probe{
			IntervalMillis:   defaultProbeInterval,
			TimeoutMillis:    defaultProbeTimeout,
			ReadyGraceMillis: defaultProbeReadyGrace,
		},
		Progress: Progress{
			PollIntervalMillis: defaultPollInterval,
			StartDelayMillis:   defaultMonitorStartDelay,
			SilentRetries:      defaultSilentRetries,
			PollTimeoutMillis:  defaultPollTimeout,
		},
		Lifecycle: Lifecycle{
			Enabled:          defaultLifecycleEnabled,
			HiddenGraceMilli: defaultHiddenGrace,
		},
		Upload: Upload{
			MaxFileMB:         defaultMaxFileMB,
			AllowedExtensions: append([]string(nil), defaultAllowedExtensions...),
		},
		Filter: Filter{
			DisplayFields:  append([]string(nil), defaultDisplayFields...),
			MinMatchMonths: defaultMinMatchMonths,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
