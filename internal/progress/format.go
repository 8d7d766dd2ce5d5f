package progress

import (
	"strconv"
	"strings"

	"herdscreen/internal/api"
)

const (
	// DefaultStep is shown when the server reports no step name.
	DefaultStep = "Initializing"
	// FallbackStep replaces the step text after the silent retries run out.
	FallbackStep = "Processing, fetching progress..."
	// FallbackTime replaces the time line alongside FallbackStep.
	FallbackTime = "Connecting to backend..."

	fallbackMarker = "fetching progress"
	timeSeparator  = " | "
)

// Status is the two-line text the monitor renders.
type Status struct {
	Step string
	Time string
}

// IsFallback reports whether the status already shows the degraded message.
func (s Status) IsFallback() bool {
	return strings.Contains(s.Step, fallbackMarker)
}

// FallbackStatus is rendered once polling has failed past the silent window.
func FallbackStatus() Status {
	return Status{Step: FallbackStep, Time: FallbackTime}
}

// StepText joins the step name and the current file.
func StepText(snap api.ProgressSnapshot) string {
	step := strings.TrimSpace(snap.CurrentStep)
	if step == "" {
		step = DefaultStep
	}
	if file := strings.TrimSpace(snap.CurrentFile); file != "" {
		step += " - " + file
	}
	return step
}

// TimeText joins whichever of elapsed, remaining and percentage are present.
func TimeText(snap api.ProgressSnapshot) string {
	parts := make([]string, 0, 3)
	if v := strings.TrimSpace(snap.ElapsedTimeFormatted); v != "" {
		parts = append(parts, "Elapsed: "+v)
	}
	if v := strings.TrimSpace(snap.RemainingTimeFormatted); v != "" {
		parts = append(parts, "Remaining: "+v)
	}
	if snap.ProgressPercentage != nil {
		parts = append(parts, "Progress: "+FormatPercent(*snap.ProgressPercentage)+"%")
	}
	return strings.Join(parts, timeSeparator)
}

// FormatPercent prints the server value without rounding or padding.
func FormatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Render builds the status for a processing snapshot.
func Render(snap api.ProgressSnapshot) Status {
	return Status{Step: StepText(snap), Time: TimeText(snap)}
}
