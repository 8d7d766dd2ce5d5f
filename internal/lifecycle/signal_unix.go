//go:build unix

package lifecycle

import (
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"
)

// SignalSource maps terminal job-control and termination signals onto
// lifecycle events: SIGTSTP is Suspend, SIGCONT is Visible, SIGINT is
// BeforeUnload, SIGTERM and SIGHUP are Unload. Once every handler has
// returned from Suspend the process stops itself so shell job control keeps
// working.
type SignalSource struct {
	subs     subscribers
	stopSelf func()

	mu   sync.Mutex
	ch   chan os.Signal
	stop chan struct{}
	done chan struct{}
}

func NewSignalSource() *SignalSource {
	return &SignalSource{stopSelf: func() { _ = unix.Kill(unix.Getpid(), unix.SIGSTOP) }}
}

func (s *SignalSource) Subscribe(handler func(Event)) func() {
	id, first := s.subs.add(handler)
	if first {
		s.listen()
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			// The last handler stays registered while shutdown drains queued
			// signals so none of them is lost.
			last := s.subs.count() == 1
			if last {
				s.shutdown()
			}
			if empty := s.subs.remove(id); last && !empty {
				s.listen()
			}
		})
	}
}

func (s *SignalSource) listen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch != nil {
		return
	}
	s.ch = make(chan os.Signal, 4)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	signal.Notify(s.ch, unix.SIGTSTP, unix.SIGCONT, unix.SIGINT, unix.SIGTERM, unix.SIGHUP)
	go s.loop(s.ch, s.stop, s.done)
}

func (s *SignalSource) shutdown() {
	s.mu.Lock()
	ch, stop, done := s.ch, s.stop, s.done
	s.ch, s.stop, s.done = nil, nil, nil
	s.mu.Unlock()
	if ch == nil {
		return
	}

	signal.Stop(ch)
	close(stop)
	<-done
	for {
		select {
		case sig := <-ch:
			s.deliver(sig)
		default:
			return
		}
	}
}

func (s *SignalSource) loop(ch <-chan os.Signal, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case sig := <-ch:
			s.deliver(sig)
		}
	}
}

func (s *SignalSource) deliver(sig os.Signal) {
	ev, ok := eventForSignal(sig)
	if !ok {
		return
	}
	s.subs.emit(ev)
	if ev == Suspend {
		s.stopSelf()
	}
}

func eventForSignal(sig os.Signal) (Event, bool) {
	switch sig {
	case unix.SIGTSTP:
		return Suspend, true
	case unix.SIGCONT:
		return Visible, true
	case unix.SIGINT:
		return BeforeUnload, true
	case unix.SIGTERM, unix.SIGHUP:
		return Unload, true
	default:
		return 0, false
	}
}
