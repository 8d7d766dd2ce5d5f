package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset = "\x1b[0m"
	ansiBlue  = "\x1b[34m"
)

type statusTone struct {
	tag   string
	color string
}

var statusTones = map[statusKind]statusTone{
	statusInfo:  {tag: "INFO", color: ansiBlue},
	statusOK:    {tag: "OK", color: "\x1b[32m"},
	statusWarn:  {tag: "WARN", color: "\x1b[33m"},
	statusError: {tag: "ERROR", color: "\x1b[31m"},
}

const statusLabelWidth = 16

// renderStatusLine prints "label: [TAG] message" with the label padded so
// consecutive lines align.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	tone, ok := statusTones[kind]
	if !ok {
		tone = statusTones[statusInfo]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-*s [%s]", statusLabelWidth, label+":", tone.tag)
	if message = strings.TrimSpace(message); message != "" {
		b.WriteByte(' ')
		b.WriteString(message)
	}
	return paint(b.String(), tone.color, colorize)
}

func renderSectionHeader(title string, colorize bool) string {
	return paint("== "+strings.TrimSpace(title)+" ==", ansiBlue, colorize)
}

func paint(text, color string, colorize bool) string {
	if !colorize || color == "" {
		return text
	}
	return color + text + ansiReset
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
