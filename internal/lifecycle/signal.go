package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"herdscreen/internal/logging"
)

const (
	DefaultHiddenGrace   = 3 * time.Second
	defaultNotifyTimeout = 2 * time.Second
)

// Notifier sends the advisory close notification.
type Notifier interface {
	SendCloseSignal(ctx context.Context) error
}

// Options tune a Signal. Zero values take the defaults.
type Options struct {
	Clock         clockwork.Clock
	HiddenGrace   time.Duration
	NotifyTimeout time.Duration
	Logger        *slog.Logger
}

// Signal turns lifecycle events into best-effort close notifications. A
// hidden session notifies once it has stayed hidden for HiddenGrace; unload
// events notify right away. Notifications are never retried and their
// failures are only logged.
type Signal struct {
	notifier      Notifier
	clock         clockwork.Clock
	grace         time.Duration
	notifyTimeout time.Duration
	logger        *slog.Logger

	mu      sync.Mutex
	hidden  bool
	timer   clockwork.Timer
	detach  []func()
	closed  bool
	pending sync.WaitGroup
	sent    atomic.Int64
}

func New(notifier Notifier, opts Options) *Signal {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.HiddenGrace <= 0 {
		opts.HiddenGrace = DefaultHiddenGrace
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = defaultNotifyTimeout
	}
	return &Signal{
		notifier:      notifier,
		clock:         opts.Clock,
		grace:         opts.HiddenGrace,
		notifyTimeout: opts.NotifyTimeout,
		logger:        logging.NewComponentLogger(opts.Logger, "lifecycle"),
	}
}

// Attach subscribes to src. The returned function unsubscribes.
func (s *Signal) Attach(src Source) func() {
	unsubscribe := src.Subscribe(s.Handle)
	s.mu.Lock()
	s.detach = append(s.detach, unsubscribe)
	s.mu.Unlock()
	return unsubscribe
}

// Handle applies one event. For Suspend it returns only after the
// notification has been attempted, since no timer can run while the process
// is stopped.
func (s *Signal) Handle(ev Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	flush := false
	switch ev {
	case Hidden:
		s.hidden = true
		s.disarmLocked()
		s.timer = s.clock.AfterFunc(s.grace, s.hiddenElapsed)
	case Visible:
		s.hidden = false
		s.disarmLocked()
	case Suspend:
		s.hidden = true
		s.disarmLocked()
		s.notifyLocked(ev)
		flush = true
	case BeforeUnload, Unload:
		s.notifyLocked(ev)
	}
	s.mu.Unlock()

	if flush {
		s.pending.Wait()
	}
}

func (s *Signal) disarmLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// hiddenElapsed re-reads visibility at fire time.
func (s *Signal) hiddenElapsed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timer = nil
	if s.closed || !s.hidden {
		return
	}
	s.notifyLocked(Hidden)
}

func (s *Signal) notifyLocked(reason Event) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		if err := s.notifier.SendCloseSignal(ctx); err != nil {
			s.logger.Debug("close signal failed", logging.String("reason", reason.String()), logging.Error(err))
			return
		}
		s.sent.Add(1)
		s.logger.Debug("close signal sent", logging.String("reason", reason.String()))
	}()
}

// Sent returns how many notifications the backend accepted.
func (s *Signal) Sent() int64 {
	return s.sent.Load()
}

// Wait blocks until every notification already started has finished.
func (s *Signal) Wait() {
	s.pending.Wait()
}

// Close unsubscribes from all sources, drops a pending hidden timer and waits
// for in-flight notifications. Events a source still delivers while
// unsubscribing are handled before the signal closes.
func (s *Signal) Close() {
	s.mu.Lock()
	detach := s.detach
	s.detach = nil
	s.mu.Unlock()

	for _, fn := range detach {
		fn()
	}

	s.mu.Lock()
	s.closed = true
	s.disarmLocked()
	s.mu.Unlock()
	s.pending.Wait()
}
