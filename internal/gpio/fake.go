package gpio

import (
	"errors"
	"sync"
)

// FakeOutputPin is a test double holding a level in memory.
type FakeOutputPin struct {
	mu sync.Mutex

	high bool

	// Sets counts SetLevel calls.
	Sets int

	// Reads counts Level calls.
	Reads int

	// ReadError, if set, will be returned by Level().
	ReadError error

	// SetError, if set, will be returned by SetLevel().
	SetError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeOutputPin creates a FakeOutputPin at the given level.
func NewFakeOutputPin(high bool) *FakeOutputPin {
	return &FakeOutputPin{high: high}
}

// Level returns the stored level.
func (f *FakeOutputPin) Level() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads++
	if f.ReadError != nil {
		return false, f.ReadError
	}
	return f.high, nil
}

// SetLevel stores the level.
func (f *FakeOutputPin) SetLevel(high bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sets++
	if f.SetError != nil {
		return f.SetError
	}
	f.high = high
	return nil
}

// Force changes the level behind the driver's back, as external hardware would.
func (f *FakeOutputPin) Force(high bool) {
	f.mu.Lock()
	f.high = high
	f.mu.Unlock()
}

// Snapshot returns the level and call counts without counting as a read.
func (f *FakeOutputPin) Snapshot() (high bool, reads, sets int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.high, f.Reads, f.Sets
}

// Close marks the pin as closed.
func (f *FakeOutputPin) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// FakeEdge is a test double for an edge-triggered input.
type FakeEdge struct {
	mu      sync.Mutex
	handler func()

	// WatchError, if set, will be returned by Watch().
	WatchError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeEdge creates an unwatched FakeEdge.
func NewFakeEdge() *FakeEdge {
	return &FakeEdge{}
}

// Watch stores handler for Fire.
func (f *FakeEdge) Watch(handler func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WatchError != nil {
		return f.WatchError
	}
	if f.handler != nil {
		return errors.New("gpio: edge already watched")
	}
	f.handler = handler
	return nil
}

// Fire simulates one falling edge, running the handler inline.
// Reports whether a handler was registered.
func (f *FakeEdge) Fire() bool {
	f.mu.Lock()
	h := f.handler
	closed := f.Closed
	f.mu.Unlock()
	if h == nil || closed {
		return false
	}
	h()
	return true
}

// Close stops delivering edges.
func (f *FakeEdge) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
