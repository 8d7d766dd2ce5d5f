package progress

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"pgregory.net/rapid"

	"herdscreen/internal/api"
)

type reply struct {
	snap api.ProgressSnapshot
	err  error
}

// scriptedFetcher hands control of every poll to the test: calls signals that
// a fetch began, replies supplies its answer.
type scriptedFetcher struct {
	calls   chan struct{}
	replies chan reply
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{calls: make(chan struct{}), replies: make(chan reply)}
}

func (f *scriptedFetcher) ProcessingProgress(ctx context.Context) (api.ProgressSnapshot, error) {
	select {
	case f.calls <- struct{}{}:
	case <-ctx.Done():
		return api.ProgressSnapshot{}, ctx.Err()
	}
	select {
	case r := <-f.replies:
		return r.snap, r.err
	case <-ctx.Done():
		return api.ProgressSnapshot{}, ctx.Err()
	}
}

type harness struct {
	t       *testing.T
	clock   interface{ Advance(time.Duration) }
	fetcher *scriptedFetcher
	display *MemoryDisplay
	monitor *Monitor
}

func newHarness(t *testing.T, initial Status) *harness {
	t.Helper()
	clock := clockwork.NewFakeClock()
	f := newScriptedFetcher()
	d := NewMemoryDisplay(initial)
	m := New(f, d, Options{Clock: clock, Interval: time.Second, SilentRetries: 3})
	t.Cleanup(m.Stop)
	return &harness{t: t, clock: clock, fetcher: f, display: d, monitor: m}
}

// answer waits for the next fetch and completes it.
func (h *harness) answer(r reply) {
	h.t.Helper()
	select {
	case <-h.fetcher.calls:
	case <-time.After(2 * time.Second):
		h.t.Fatal("timed out waiting for poll")
	}
	h.fetcher.replies <- r
}

// settle advances to the next tick and waits for the following fetch to
// begin, which means the previous poll has been fully applied.
func (h *harness) settle() {
	h.t.Helper()
	h.clock.Advance(time.Second)
	select {
	case <-h.fetcher.calls:
	case <-time.After(2 * time.Second):
		h.t.Fatal("timed out waiting for next poll")
	}
}

func processing(step, file string, percent float64) reply {
	return reply{snap: api.ProgressSnapshot{
		IsProcessing:         true,
		CurrentStep:          step,
		CurrentFile:          file,
		ProgressPercentage:   &percent,
		ElapsedTimeFormatted: "5s",
	}}
}

var errPoll = errors.New("connection refused")

func TestStartPollsImmediatelyAndRenders(t *testing.T) {
	h := newHarness(t, Status{Step: "Submitting"})
	h.monitor.Start()
	h.answer(processing("Filtering", "jan.xlsx", 12.5))
	h.settle()

	got := h.display.Status()
	want := Status{Step: "Filtering - jan.xlsx", Time: "Elapsed: 5s | Progress: 12.5%"}
	if got != want {
		t.Fatalf("status = %+v, want %+v", got, want)
	}
	if !h.monitor.Running() {
		t.Fatal("monitor should be running")
	}
}

func TestNotProcessingStopsAndKeepsLastText(t *testing.T) {
	h := newHarness(t, Status{})
	h.monitor.Start()
	done := h.monitor.Done()

	h.answer(processing("Merging", "", 90))
	h.settle()
	last := h.display.Status()
	renders := h.display.Renders()

	h.fetcher.replies <- reply{snap: api.ProgressSnapshot{IsProcessing: false}}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop itself")
	}
	if h.monitor.Running() {
		t.Fatal("monitor should report stopped")
	}
	if h.display.Status() != last || h.display.Renders() != renders {
		t.Fatalf("display changed after completion: %+v", h.display.Status())
	}
	h.monitor.Stop()
}

func TestSilentRetriesThenFallbackOnce(t *testing.T) {
	h := newHarness(t, Status{})
	h.monitor.Start()
	h.answer(processing("Filtering", "a.xlsx", 50))
	h.settle()
	before := h.display.Status()
	renders := h.display.Renders()

	for i := 1; i <= 3; i++ {
		h.fetcher.replies <- reply{err: errPoll}
		h.settle()
		if h.display.Status() != before || h.display.Renders() != renders {
			t.Fatalf("failure %d changed the display to %+v", i, h.display.Status())
		}
	}

	h.fetcher.replies <- reply{err: errPoll}
	h.settle()
	if h.display.Status() != FallbackStatus() {
		t.Fatalf("fourth failure should show fallback, got %+v", h.display.Status())
	}
	if h.display.Renders() != renders+1 {
		t.Fatalf("expected exactly one fallback render, got %d", h.display.Renders()-renders)
	}

	for i := 0; i < 3; i++ {
		h.fetcher.replies <- reply{err: errPoll}
		h.settle()
	}
	if h.display.Renders() != renders+1 {
		t.Fatalf("fallback re-rendered on later failures: %d renders", h.display.Renders()-renders)
	}
	if h.monitor.Failures() != 7 {
		t.Fatalf("failures = %d, want 7", h.monitor.Failures())
	}
}

func TestSuccessResetsFailureCounter(t *testing.T) {
	h := newHarness(t, Status{})
	h.monitor.Start()
	h.answer(reply{err: errPoll})
	h.settle()
	h.fetcher.replies <- reply{err: errPoll}
	h.settle()
	h.fetcher.replies <- processing("Filtering", "", 10)
	h.settle()
	if h.monitor.Failures() != 0 {
		t.Fatalf("failures = %d, want 0", h.monitor.Failures())
	}
}

func TestStopDiscardsInFlightPoll(t *testing.T) {
	h := newHarness(t, Status{Step: "Submitting"})
	h.monitor.Start()
	<-h.fetcher.calls

	h.monitor.Stop()
	if h.monitor.Running() {
		t.Fatal("monitor should be stopped")
	}
	if h.display.Renders() != 0 || h.display.Status().Step != "Submitting" {
		t.Fatalf("stop must not touch the display, got %+v", h.display.Status())
	}
	h.monitor.Stop()
}

func TestRestartResetsFailures(t *testing.T) {
	h := newHarness(t, Status{})
	h.monitor.Start()
	h.answer(reply{err: errPoll})
	h.settle()

	h.monitor.Start()
	if h.monitor.Failures() != 0 {
		t.Fatalf("restart should reset failures, got %d", h.monitor.Failures())
	}
	h.answer(processing("Reading", "", 1))
	h.settle()
	if got := h.display.Status().Step; got != "Reading" {
		t.Fatalf("unexpected step %q", got)
	}
}

type countingFetcher struct {
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *countingFetcher) ProcessingProgress(ctx context.Context) (api.ProgressSnapshot, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	p := 50.0
	return api.ProgressSnapshot{IsProcessing: true, CurrentStep: "Filtering", ProgressPercentage: &p}, nil
}

func TestStartStopSequencesKeepOneLoop(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		clock := clockwork.NewFakeClock()
		f := &countingFetcher{}
		m := New(f, NewMemoryDisplay(Status{}), Options{Clock: clock, SilentRetries: 3})
		defer m.Stop()

		ops := rapid.SliceOfN(rapid.SampledFrom([]string{"start", "stop", "tick"}), 1, 40).Draw(rt, "ops")
		for _, op := range ops {
			switch op {
			case "start":
				m.Start()
				if !m.Running() {
					rt.Fatalf("monitor not running after Start")
				}
			case "stop":
				m.Stop()
				if n := m.loops.Load(); n != 0 {
					rt.Fatalf("%d loops alive after Stop", n)
				}
			case "tick":
				clock.Advance(time.Second)
			}
			if n := m.loops.Load(); n > 1 {
				rt.Fatalf("%d loops alive after %s", n, op)
			}
		}
		m.Stop()
		if f.maxInFlight.Load() > 1 {
			rt.Fatalf("polls overlapped: %d in flight", f.maxInFlight.Load())
		}
	})
}
