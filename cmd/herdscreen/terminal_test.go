package main

import (
	"bytes"
	"strings"
	"testing"

	"herdscreen/internal/progress"
)

func TestTerminalStatusPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	status := newTerminalStatus(&buf, true)

	status.SetStatus(progress.Status{Step: "ignored while hidden"})
	status.Show("Filtering...")
	status.SetStatus(progress.Status{Step: "Reading - a.xlsx", Time: "Elapsed: 3s"})
	status.SetStatus(progress.Status{Step: "Reading - a.xlsx", Time: "Elapsed: 3s"})
	status.Hide()
	status.Hide()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{"Filtering...", "Filtering...  Reading - a.xlsx  Elapsed: 3s"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
	if got := status.Status().Step; got != "Reading - a.xlsx" {
		t.Fatalf("Status() = %q", got)
	}
}

func TestTerminalStatusDisabled(t *testing.T) {
	var buf bytes.Buffer
	status := newTerminalStatus(&buf, false)
	status.Show("Uploading")
	status.SetStatus(progress.FallbackStatus())
	status.Hide()
	if buf.Len() != 0 {
		t.Fatalf("disabled status wrote %q", buf.String())
	}
	if !status.Status().IsFallback() {
		t.Fatal("status should still be tracked when output is disabled")
	}
}
