package testsupport

import (
	"path/filepath"
	"testing"

	"herdscreen/internal/config"
)

// ConfigOption adjusts a generated test configuration.
type ConfigOption func(testing.TB, *config.Config)

// NewConfig returns the default configuration rooted in a fresh temp
// directory, with debug logging, then applies opts in order.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(root, "state")
	cfg.Paths.DownloadDir = filepath.Join(root, "downloads")
	cfg.Logging.Level = "debug"
	for _, opt := range opts {
		opt(t, &cfg)
	}
	return &cfg
}

// WithBaseURL points the config at a test backend.
func WithBaseURL(url string) ConfigOption {
	return func(_ testing.TB, cfg *config.Config) {
		cfg.Server.BaseURL = url
	}
}

// WithEnsuredDirs creates the state directory up front.
func WithEnsuredDirs() ConfigOption {
	return func(t testing.TB, cfg *config.Config) {
		t.Helper()
		if err := cfg.EnsureDirectories(); err != nil {
			t.Fatalf("ensure directories: %v", err)
		}
	}
}
