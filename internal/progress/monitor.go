package progress

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"herdscreen/internal/api"
	"herdscreen/internal/logging"
)

const (
	DefaultInterval      = time.Second
	DefaultSilentRetries = 3
)

// Fetcher returns the shared processing-progress snapshot.
type Fetcher interface {
	ProcessingProgress(ctx context.Context) (api.ProgressSnapshot, error)
}

// Options tune a Monitor. A zero Interval takes DefaultInterval and a negative
// SilentRetries takes DefaultSilentRetries.
type Options struct {
	Clock         clockwork.Clock
	Interval      time.Duration
	PollTimeout   time.Duration
	SilentRetries int
	Logger        *slog.Logger
}

// Monitor owns one recurring poll loop. Start and Stop are idempotent and
// safe to call from any goroutine.
type Monitor struct {
	fetcher       Fetcher
	display       Display
	clock         clockwork.Clock
	interval      time.Duration
	pollTimeout   time.Duration
	silentRetries int
	logger        *slog.Logger
	sampler       *logging.ProgressSampler

	// ctl serializes Start and Stop. The loop never takes it.
	ctl sync.Mutex

	mu         sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	generation uint64
	failures   int

	loops atomic.Int32
}

// New builds a stopped monitor.
func New(fetcher Fetcher, display Display, opts Options) *Monitor {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.SilentRetries < 0 {
		opts.SilentRetries = DefaultSilentRetries
	}
	return &Monitor{
		fetcher:       fetcher,
		display:       display,
		clock:         opts.Clock,
		interval:      opts.Interval,
		pollTimeout:   opts.PollTimeout,
		silentRetries: opts.SilentRetries,
		logger:        logging.NewComponentLogger(opts.Logger, "progress"),
		sampler:       logging.NewProgressSampler(10),
	}
}

// Start tears down any running loop, resets the failure counter, polls once
// right away and then on every interval tick.
func (m *Monitor) Start() {
	m.ctl.Lock()
	defer m.ctl.Unlock()

	m.teardown()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.cancel = cancel
	m.done = done
	m.failures = 0
	m.mu.Unlock()

	m.sampler.Reset()
	m.logger.Debug("progress monitor started", logging.Duration("interval", m.interval))
	m.loops.Add(1)
	go m.run(ctx, gen, done)
}

// Stop cancels the loop and any in-flight poll and waits for the loop to
// exit. The last rendered status is left in place.
func (m *Monitor) Stop() {
	m.ctl.Lock()
	defer m.ctl.Unlock()
	if m.teardown() {
		m.logger.Debug("progress monitor stopped")
	}
}

// Running reports whether a poll loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// Done returns a channel closed when the current loop exits. It is already
// closed when no loop runs.
func (m *Monitor) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return m.done
}

// Failures returns the current consecutive failure count.
func (m *Monitor) Failures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

// teardown stops the active loop, if any. Callers hold ctl.
func (m *Monitor) teardown() bool {
	m.mu.Lock()
	m.generation++
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

func (m *Monitor) run(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)
	defer m.loops.Add(-1)
	defer m.release(gen)

	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if !m.poll(ctx, gen) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
	}
}

// release clears the loop handles when the loop ends on its own.
func (m *Monitor) release(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		return
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.cancel, m.done = nil, nil
}

// poll runs one fetch and render. It returns false when the loop should end.
func (m *Monitor) poll(ctx context.Context, gen uint64) bool {
	pollCtx, cancel := ctx, context.CancelFunc(func() {})
	if m.pollTimeout > 0 {
		pollCtx, cancel = context.WithTimeout(ctx, m.pollTimeout)
	}
	snap, err := m.fetcher.ProcessingProgress(pollCtx)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation || ctx.Err() != nil {
		return false
	}

	if err != nil {
		m.failures++
		if m.failures <= m.silentRetries {
			m.logger.Debug("progress poll failed; keeping current display",
				logging.Int("attempt", m.failures),
				logging.Error(err),
			)
			return true
		}
		if !m.display.Status().IsFallback() {
			m.display.SetStatus(FallbackStatus())
			logging.WarnWithImpact(m.logger, "progress unavailable", "progress_poll_failed",
				"progress display shows a generic message until polling recovers",
				logging.Int("attempt", m.failures),
				logging.Error(err),
			)
		}
		return true
	}

	if !snap.IsProcessing {
		m.logger.Debug("backend reports no active job; stopping monitor")
		return false
	}

	m.failures = 0
	status := Render(snap)
	m.display.SetStatus(status)

	percent := -1.0
	if snap.ProgressPercentage != nil {
		percent = *snap.ProgressPercentage
	}
	if m.sampler.ShouldLog(snap.CurrentStep, snap.CurrentFile, percent) {
		m.logger.Info("processing",
			logging.String("step", status.Step),
			logging.String("time", status.Time),
		)
	}
	return true
}
