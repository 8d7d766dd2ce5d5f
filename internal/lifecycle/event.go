package lifecycle

import "sync"

// Event is a session visibility or termination transition.
type Event int

const (
	Hidden Event = iota + 1
	Visible
	BeforeUnload
	Unload
	// Suspend means the session is about to stop running for an unknown time.
	// Handlers must finish their work before returning.
	Suspend
)

func (e Event) String() string {
	switch e {
	case Hidden:
		return "hidden"
	case Visible:
		return "visible"
	case BeforeUnload:
		return "before_unload"
	case Unload:
		return "unload"
	case Suspend:
		return "suspend"
	default:
		return "unknown"
	}
}

// Source delivers lifecycle events. Subscribe returns a function that removes
// the handler; calling it more than once is a no-op.
type Source interface {
	Subscribe(handler func(Event)) (unsubscribe func())
}

// subscribers is the handler registry shared by the sources.
type subscribers struct {
	mu       sync.Mutex
	next     int
	handlers map[int]func(Event)
}

func (s *subscribers) add(handler func(Event)) (id int, first bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers == nil {
		s.handlers = map[int]func(Event){}
	}
	s.next++
	s.handlers[s.next] = handler
	return s.next, len(s.handlers) == 1
}

func (s *subscribers) remove(id int) (last bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handlers[id]; !ok {
		return false
	}
	delete(s.handlers, id)
	return len(s.handlers) == 0
}

func (s *subscribers) emit(ev Event) {
	s.mu.Lock()
	handlers := make([]func(Event), 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (s *subscribers) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

// ManualSource emits events on demand. Tests and non-interactive sessions
// use it.
type ManualSource struct {
	subs subscribers
}

func NewManualSource() *ManualSource {
	return &ManualSource{}
}

func (m *ManualSource) Subscribe(handler func(Event)) func() {
	id, _ := m.subs.add(handler)
	var once sync.Once
	return func() {
		once.Do(func() { m.subs.remove(id) })
	}
}

// Emit delivers ev to every current subscriber synchronously.
func (m *ManualSource) Emit(ev Event) {
	m.subs.emit(ev)
}

// Subscribers returns the number of registered handlers.
func (m *ManualSource) Subscribers() int {
	return m.subs.count()
}
