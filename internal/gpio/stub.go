//go:build !linux

package gpio

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Chip is not available on non-Linux platforms.
type Chip struct{}

// OpenChip returns an error on non-Linux platforms.
func OpenChip(name string) (*Chip, error) {
	return nil, errUnsupported
}

// Output is not implemented on non-Linux platforms.
func (c *Chip) Output(offset int) (*RealOutput, error) {
	return nil, errUnsupported
}

// FallingEdge is not implemented on non-Linux platforms.
func (c *Chip) FallingEdge(offset int, debounce time.Duration) *RealEdge {
	return &RealEdge{}
}

// Close is not implemented on non-Linux platforms.
func (c *Chip) Close() error {
	return nil
}

// RealOutput is not available on non-Linux platforms.
type RealOutput struct{}

// Level is not implemented on non-Linux platforms.
func (o *RealOutput) Level() (bool, error) { return false, errUnsupported }

// SetLevel is not implemented on non-Linux platforms.
func (o *RealOutput) SetLevel(high bool) error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (o *RealOutput) Close() error { return nil }

// RealEdge is not available on non-Linux platforms.
type RealEdge struct{}

// Watch is not implemented on non-Linux platforms.
func (e *RealEdge) Watch(handler func()) error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (e *RealEdge) Close() error { return nil }
