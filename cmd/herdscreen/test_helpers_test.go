package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"herdscreen/internal/testsupport"
)

type cliTestEnv struct {
	backend     *testsupport.Backend
	configPath  string
	stateDir    string
	downloadDir string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	t.Setenv("HERDSCREEN_URL", "")

	env := &cliTestEnv{
		backend:     testsupport.NewBackend(t),
		configPath:  filepath.Join(base, "config.toml"),
		stateDir:    filepath.Join(base, "state"),
		downloadDir: filepath.Join(base, "downloads"),
	}
	writeTestConfig(t, env)
	return env
}

func writeTestConfig(t *testing.T, env *cliTestEnv) {
	t.Helper()
	content := fmt.Sprintf(`[server]
base_url = %q
request_timeout = 5

[paths]
state_dir = %q
download_dir = %q

[probe]
interval_ms = 100
timeout_ms = 1000
ready_grace_ms = 10

[progress]
poll_interval_ms = 100
start_delay_ms = 500

[lifecycle]
enabled = false

[logging]
level = "error"
`, env.backend.URL(), env.stateDir, env.downloadDir)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
