package progress

import "sync"

// Display receives rendered progress. Implementations must not call back
// into the Monitor.
type Display interface {
	SetStatus(Status)
	Status() Status
}

// MemoryDisplay keeps the last status in memory and counts renders.
type MemoryDisplay struct {
	mu      sync.Mutex
	status  Status
	renders int
}

// NewMemoryDisplay returns a display seeded with an initial status.
func NewMemoryDisplay(initial Status) *MemoryDisplay {
	return &MemoryDisplay{status: initial}
}

func (d *MemoryDisplay) SetStatus(s Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = s
	d.renders++
}

func (d *MemoryDisplay) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Renders returns how many times SetStatus was called.
func (d *MemoryDisplay) Renders() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.renders
}
