package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeServer()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTimings()
	c.normalizeUpload()
	c.normalizeFilter()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeServer() {
	if value, ok := os.LookupEnv(baseURLEnvVar); ok && strings.TrimSpace(value) != "" {
		c.Server.BaseURL = value
	}
	c.Server.BaseURL = strings.TrimRight(strings.TrimSpace(c.Server.BaseURL), "/")
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = defaultBaseURL
	}
	if !strings.Contains(c.Server.BaseURL, "://") {
		c.Server.BaseURL = "http://" + c.Server.BaseURL
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTimings() {
	if c.Probe.IntervalMillis <= 0 {
		c.Probe.IntervalMillis = defaultProbeInterval
	}
	if c.Probe.TimeoutMillis <= 0 {
		c.Probe.TimeoutMillis = defaultProbeTimeout
	}
	if c.Probe.ReadyGraceMillis < 0 {
		c.Probe.ReadyGraceMillis = defaultProbeReadyGrace
	}
	if c.Progress.PollIntervalMillis <= 0 {
		c.Progress.PollIntervalMillis = defaultPollInterval
	}
	if c.Progress.StartDelayMillis < 0 {
		c.Progress.StartDelayMillis = defaultMonitorStartDelay
	}
	if c.Progress.SilentRetries < 0 {
		c.Progress.SilentRetries = defaultSilentRetries
	}
	if c.Progress.PollTimeoutMillis <= 0 {
		c.Progress.PollTimeoutMillis = defaultPollTimeout
	}
	if c.Lifecycle.HiddenGraceMilli <= 0 {
		c.Lifecycle.HiddenGraceMilli = defaultHiddenGrace
	}
}

func (c *Config) normalizeUpload() {
	if c.Upload.MaxFileMB <= 0 {
		c.Upload.MaxFileMB = defaultMaxFileMB
	}
	exts := make([]string, 0, len(c.Upload.AllowedExtensions))
	seen := make(map[string]struct{}, len(c.Upload.AllowedExtensions))
	for _, ext := range c.Upload.AllowedExtensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultAllowedExtensions...)
	}
	c.Upload.AllowedExtensions = exts
}

func (c *Config) normalizeFilter() {
	fields := make([]string, 0, len(c.Filter.DisplayFields))
	for _, field := range c.Filter.DisplayFields {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			fields = append(fields, trimmed)
		}
	}
	if len(fields) == 0 {
		fields = append(fields, defaultDisplayFields...)
	}
	c.Filter.DisplayFields = fields
	if c.Filter.MinMatchMonths <= 0 {
		c.Filter.MinMatchMonths = defaultMinMatchMonths
	}
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
