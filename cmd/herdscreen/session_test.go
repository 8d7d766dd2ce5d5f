package main

import (
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"

	"herdscreen/internal/api"
	"herdscreen/internal/lifecycle"
	"herdscreen/internal/testsupport"
)

func TestFilterWaitsForHealthyBackend(t *testing.T) {
	env := setupCLITestEnv(t)
	seedFilterBackend(env)

	var health atomic.Int32
	env.backend.Handle(testsupport.RouteHealth, func(w http.ResponseWriter, _ *http.Request) {
		if health.Add(1) <= 2 {
			testsupport.WriteError(w, http.StatusServiceUnavailable, "starting")
			return
		}
		testsupport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	var submittedEarly atomic.Bool
	env.backend.Handle(testsupport.RouteFilterBatch, func(w http.ResponseWriter, _ *http.Request) {
		if health.Load() < 3 {
			submittedEarly.Store(true)
		}
		testsupport.WriteJSON(w, http.StatusOK, api.NewCurrentResult(10, 8, 4, "40", ""))
	})

	_, stderr, err := runCLI(t, env, "filter", "--file", "f1")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if got := health.Load(); got < 3 {
		t.Fatalf("expected at least three health checks, got %d", got)
	}
	if submittedEarly.Load() {
		t.Fatal("batch was submitted before the backend was ready")
	}
	requireContains(t, stderr, "status 503")
	requireContains(t, stderr, "backend ready")
	if n := len(env.backend.Requests(testsupport.RouteFilterBatch)); n != 1 {
		t.Fatalf("expected one batch request, got %d", n)
	}
}

func TestHealthyBackendSkipsStatusLines(t *testing.T) {
	env := setupCLITestEnv(t)
	_, stderr, err := runCLI(t, env, "farm-ids")
	if err != nil {
		t.Fatalf("farm-ids: %v", err)
	}
	if strings.Contains(stderr, "Backend:") {
		t.Fatalf("no status expected when the first check succeeds, got %q", stderr)
	}
	if n := len(env.backend.Requests(testsupport.RouteHealth)); n != 1 {
		t.Fatalf("expected one health check, got %d", n)
	}
}

func TestNoWaitSkipsHealthCheck(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.Handle(testsupport.RouteHealth, func(w http.ResponseWriter, _ *http.Request) {
		testsupport.WriteError(w, http.StatusServiceUnavailable, "starting")
	})

	if _, _, err := runCLI(t, env, "--no-wait", "farm-ids"); err != nil {
		t.Fatalf("farm-ids --no-wait: %v", err)
	}
	if n := len(env.backend.Requests(testsupport.RouteHealth)); n != 0 {
		t.Fatalf("expected no health checks, got %d", n)
	}
}

func TestLongJobsSendCloseSignal(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.xlsx")
	b := filepath.Join(dir, "b.xlsx")
	testsupport.WriteFile(t, a, 32)
	testsupport.WriteFile(t, b, 32)

	tests := []struct {
		name  string
		route string
		event lifecycle.Event
		reply any
		args  []string
	}{
		{
			name:  "batch filter interrupted",
			route: testsupport.RouteFilterBatch,
			event: lifecycle.BeforeUnload,
			reply: api.NewCurrentResult(10, 8, 4, "40", ""),
			args:  []string{"filter", "--file", "f1", "--no-defaults"},
		},
		{
			name:  "batch upload terminated",
			route: testsupport.RouteUploadBatch,
			event: lifecycle.Unload,
			reply: api.BatchUploadResponse{Success: true, SuccessFiles: []api.UploadedFile{{Filename: "a.xlsx"}, {Filename: "b.xlsx"}}},
			args:  []string{"upload", a, b},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupCLITestEnv(t)
			enableLifecycle(t, env)
			src := useManualLifecycle(t)

			env.backend.Handle(tt.route, func(w http.ResponseWriter, _ *http.Request) {
				src.Emit(tt.event)
				testsupport.WriteJSON(w, http.StatusOK, tt.reply)
			})

			if _, _, err := runCLI(t, env, tt.args...); err != nil {
				t.Fatalf("%s: %v", tt.args[0], err)
			}
			if n := len(env.backend.Requests(testsupport.RouteCloseSignal)); n != 1 {
				t.Fatalf("expected one close signal, got %d", n)
			}
			if src.Subscribers() != 0 {
				t.Fatalf("lifecycle still attached after the command: %d", src.Subscribers())
			}
		})
	}
}

func TestShutdownSignalsIncludeHangup(t *testing.T) {
	for _, sig := range []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP} {
		if !slices.Contains(shutdownSignals, sig) {
			t.Fatalf("%v does not cancel the command", sig)
		}
	}
}

func enableLifecycle(t *testing.T, env *cliTestEnv) {
	t.Helper()
	data, err := os.ReadFile(env.configPath)
	if err != nil {
		t.Fatal(err)
	}
	updated := strings.Replace(string(data), "[lifecycle]\nenabled = false", "[lifecycle]\nenabled = true", 1)
	if err := os.WriteFile(env.configPath, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}
}

func useManualLifecycle(t *testing.T) *lifecycle.ManualSource {
	t.Helper()
	src := lifecycle.NewManualSource()
	previous := lifecycleSource
	lifecycleSource = func() lifecycle.Source { return src }
	t.Cleanup(func() { lifecycleSource = previous })
	return src
}
