package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"herdscreen/internal/client"
	"herdscreen/internal/logging"
)

const (
	DefaultInterval   = time.Second
	DefaultTimeout    = 3 * time.Second
	DefaultReadyGrace = 500 * time.Millisecond

	StatusReady    = "backend ready"
	StatusTimedOut = "connection timed out, retrying"
	StatusWaiting  = "waiting for backend to start"
)

// Checker performs one liveness request.
type Checker interface {
	Health(ctx context.Context) error
}

// StatusFunc receives human-readable probe progress.
type StatusFunc func(text string)

// Options tune a Probe. Zero values take the defaults.
type Options struct {
	Clock      clockwork.Clock
	Interval   time.Duration
	Timeout    time.Duration
	ReadyGrace time.Duration
	Status     StatusFunc
	Logger     *slog.Logger
}

// Probe waits for the backend to answer GET /health. It never gives up on
// its own; only the caller's context ends it.
type Probe struct {
	checker  Checker
	clock    clockwork.Clock
	interval time.Duration
	timeout  time.Duration
	grace    time.Duration
	status   StatusFunc
	logger   *slog.Logger

	ready    atomic.Bool
	attempts atomic.Int64
}

func New(checker Checker, opts Options) *Probe {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ReadyGrace <= 0 {
		opts.ReadyGrace = DefaultReadyGrace
	}
	if opts.Status == nil {
		opts.Status = func(string) {}
	}
	return &Probe{
		checker:  checker,
		clock:    opts.Clock,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		grace:    opts.ReadyGrace,
		status:   opts.Status,
		logger:   logging.NewComponentLogger(opts.Logger, "probe"),
	}
}

// Ready reports whether a liveness check has succeeded.
func (p *Probe) Ready() bool {
	return p.ready.Load()
}

// Attempts returns how many liveness requests were made.
func (p *Probe) Attempts() int64 {
	return p.attempts.Load()
}

// Check performs one liveness request bounded by the probe timeout. The
// request is cancelled when the timeout elapses.
func (p *Probe) Check(ctx context.Context) bool {
	if err := p.attempt(ctx); err != nil {
		p.status(Describe(err))
		return false
	}
	p.status(StatusReady)
	return true
}

func (p *Probe) attempt(ctx context.Context) error {
	p.attempts.Add(1)
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.checker.Health(checkCtx)
	if err != nil {
		p.logger.Debug("backend not ready",
			logging.Int64("attempt", p.attempts.Load()),
			logging.Error(err),
		)
		return err
	}
	p.ready.Store(true)
	return nil
}

// Run checks immediately and then on every interval until the backend
// answers. On success it reports StatusReady, waits the ready grace delay and
// calls onReady. It returns ctx.Err() if ctx ends first.
func (p *Probe) Run(ctx context.Context, onReady func()) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		err := p.attempt(ctx)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.status(Describe(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
	}

	ticker.Stop()
	grace := p.clock.NewTimer(p.grace)
	defer grace.Stop()
	p.status(StatusReady)
	p.logger.Info("backend ready", logging.Int64("attempts", p.attempts.Load()))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-grace.Chan():
	}
	if onReady != nil {
		onReady()
	}
	return nil
}

// Describe turns a failed check into the status text shown to the user.
func Describe(err error) string {
	if err == nil {
		return StatusReady
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimedOut
	}
	var statusErr *client.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("backend responded with status %d", statusErr.StatusCode)
	}
	return StatusWaiting
}
