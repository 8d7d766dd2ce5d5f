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

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains connection settings for the screening backend.
type Server struct {
	BaseURL        string `toml:"base_url"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Paths contains local directories used by the CLI.
type Paths struct {
	StateDir    string `toml:"state_dir"`
	DownloadDir string `toml:"download_dir"`
}

// Probe controls the startup liveness probe.
type Probe struct {
	IntervalMillis   int `toml:"interval_ms"`
	TimeoutMillis    int `toml:"timeout_ms"`
	ReadyGraceMillis int `toml:"ready_grace_ms"`
}

// Progress controls polling of the processing-progress endpoint.
type Progress struct {
	PollIntervalMillis int `toml:"poll_interval_ms"`
	StartDelayMillis   int `toml:"start_delay_ms"`
	SilentRetries      int `toml:"silent_retries"`
	PollTimeoutMillis  int `toml:"poll_timeout_ms"`
}

// Lifecycle controls the close notification sent when the session goes away.
type Lifecycle struct {
	Enabled          bool `toml:"enabled"`
	HiddenGraceMilli int  `toml:"hidden_grace_ms"`
}

// Upload contains client-side upload checks.
type Upload struct {
	MaxFileMB         int      `toml:"max_file_mb"`
	AllowedExtensions []string `toml:"allowed_extensions"`
}

// Filter contains defaults for batch filter submissions.
type Filter struct {
	DisplayFields  []string `toml:"display_fields"`
	MinMatchMonths int      `toml:"min_match_months"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for herdscreen.
//
// Configuration sections by subsystem:
//   - Server: backend base URL and request timeout
//   - Paths: state (journal, lock, logs) and download directories
//   - Probe: startup health probe cadence
//   - Progress: progress polling cadence and failure tolerance
//   - Lifecycle: close notification debounce
//   - Upload: allowed file types and size limit
//   - Filter: default display fields and match months
//   - Logging: log format and level
type Config struct {
	Server    Server    `toml:"server"`
	Paths     Paths     `toml:"paths"`
	Probe     Probe     `toml:"probe"`
	Progress  Progress  `toml:"progress"`
	Lifecycle Lifecycle `toml:"lifecycle"`
	Upload    Upload    `toml:"upload"`
	Filter    Filter    `toml:"filter"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/herdscreen/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
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

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
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
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("herdscreen.toml")
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

// EnsureDirectories creates the state directory. The download directory is
// created lazily by the download command.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.StateDir, err)
	}
	return nil
}

// JournalPath returns the SQLite journal location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.StateDir, "journal.db")
}

// LockPath returns the lock file guarding batch submissions.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "submit.lock")
}

// LogPath returns the CLI log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.StateDir, "herdscreen.log")
}

// RequestTimeout returns the timeout applied to short API calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeout) * time.Second
}

// ProbeInterval returns the delay between liveness probes.
func (c *Config) ProbeInterval() time.Duration {
	return millis(c.Probe.IntervalMillis)
}

// ProbeTimeout returns the per-probe request timeout.
func (c *Config) ProbeTimeout() time.Duration {
	return millis(c.Probe.TimeoutMillis)
}

// ProbeReadyGrace returns the pause between "ready" and session start.
func (c *Config) ProbeReadyGrace() time.Duration {
	return millis(c.Probe.ReadyGraceMillis)
}

// PollInterval returns the progress poll cadence.
func (c *Config) PollInterval() time.Duration {
	return millis(c.Progress.PollIntervalMillis)
}

// MonitorStartDelay returns the delay between submission and the first poll.
func (c *Config) MonitorStartDelay() time.Duration {
	return millis(c.Progress.StartDelayMillis)
}

// PollTimeout returns the per-poll request timeout.
func (c *Config) PollTimeout() time.Duration {
	return millis(c.Progress.PollTimeoutMillis)
}

// HiddenGrace returns how long a session may stay hidden before the close signal fires.
func (c *Config) HiddenGrace() time.Duration {
	return millis(c.Lifecycle.HiddenGraceMilli)
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Upload.MaxFileMB) * 1024 * 1024
}

func millis(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
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
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// ErrConfigExists is returned by CreateSample when the target exists and
// overwrite is false.
var ErrConfigExists = errors.New("config file already exists")

// CreateSample writes the annotated sample configuration to path.
func CreateSample(path string, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w at %s (use --overwrite to replace it)", ErrConfigExists, path)
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.WriteString(sampleConfig); err != nil {
		_ = f.Close()
		return fmt.Errorf("write sample config: %w", err)
	}
	return f.Close()
}
