package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"herdscreen/internal/progress"
)

// terminalStatus is the busy indicator and progress display of a command.
// On a terminal it redraws one line in place; otherwise it prints a line
// per change.
type terminalStatus struct {
	mu       sync.Mutex
	out      io.Writer
	enabled  bool
	inPlace  bool
	label    string
	status   progress.Status
	visible  bool
	lastLine string
	width    int
}

func newTerminalStatus(out io.Writer, enabled bool) *terminalStatus {
	return &terminalStatus{
		out:     out,
		enabled: enabled,
		inPlace: enabled && shouldColorize(out),
		status:  progress.Status{Step: progress.DefaultStep},
	}
}

func (t *terminalStatus) Show(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.label = strings.TrimSpace(label)
	t.visible = true
	t.draw(t.label)
}

func (t *terminalStatus) Hide() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.visible {
		return
	}
	t.visible = false
	if t.enabled && t.inPlace && t.width > 0 {
		fmt.Fprint(t.out, "\r"+strings.Repeat(" ", t.width)+"\r")
	}
	t.width = 0
	t.lastLine = ""
}

func (t *terminalStatus) SetStatus(s progress.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = s
	if !t.visible {
		return
	}
	t.draw(statusLine(t.label, s))
}

func (t *terminalStatus) Status() progress.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func statusLine(label string, s progress.Status) string {
	parts := make([]string, 0, 3)
	if label != "" {
		parts = append(parts, label)
	}
	if s.Step != "" {
		parts = append(parts, s.Step)
	}
	if s.Time != "" {
		parts = append(parts, s.Time)
	}
	return strings.Join(parts, "  ")
}

func (t *terminalStatus) draw(line string) {
	if !t.enabled || line == t.lastLine {
		return
	}
	t.lastLine = line
	if !t.inPlace {
		fmt.Fprintln(t.out, line)
		return
	}
	pad := ""
	if n := t.width - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	fmt.Fprint(t.out, "\r"+line+pad)
	t.width = len(line)
}
