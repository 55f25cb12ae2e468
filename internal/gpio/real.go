//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "edge-sampler"

// Chip is an open Linux GPIO character device.
type Chip struct {
	chip *gpiocdev.Chip
}

// OpenChip opens the named gpiochip (e.g. "gpiochip0").
func OpenChip(name string) (*Chip, error) {
	chip, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &Chip{chip: chip}, nil
}

// Output requests offset as an output, initially low.
func (c *Chip) Output(offset int) (*RealOutput, error) {
	line, err := c.chip.RequestLine(offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", offset, err)
	}
	return &RealOutput{line: line, offset: offset}, nil
}

// FallingEdge prepares offset as a pulled-up input reporting falling edges.
// The line is requested when Watch is called. A zero debounce disables
// kernel debouncing.
func (c *Chip) FallingEdge(offset int, debounce time.Duration) *RealEdge {
	return &RealEdge{chip: c.chip, offset: offset, debounce: debounce}
}

// Close releases the chip. Lines must be closed first.
func (c *Chip) Close() error {
	if err := c.chip.Close(); err != nil {
		return fmt.Errorf("close chip: %w", err)
	}
	return nil
}

// RealOutput is an output line whose level is read back from the kernel.
type RealOutput struct {
	line   *gpiocdev.Line
	offset int
}

// Level returns the value the line is currently driven to.
func (o *RealOutput) Level() (bool, error) {
	v, err := o.line.Value()
	if err != nil {
		return false, fmt.Errorf("read output pin %d: %w", o.offset, err)
	}
	return v != 0, nil
}

// SetLevel drives the line.
func (o *RealOutput) SetLevel(high bool) error {
	v := 0
	if high {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set output pin %d: %w", o.offset, err)
	}
	return nil
}

// Close releases the line.
// Reconfigures it to input with pull-down (matching Pi boot defaults) before
// closing so nothing is left driven across a reboot.
func (o *RealOutput) Close() error {
	var errs []error
	if err := o.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure output pin %d: %w", o.offset, err))
	}
	if err := o.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close output pin %d: %w", o.offset, err))
	}
	return errors.Join(errs...)
}

// RealEdge delivers falling edges from the kernel line event stream.
type RealEdge struct {
	chip     *gpiocdev.Chip
	offset   int
	debounce time.Duration

	mu   sync.Mutex
	line *gpiocdev.Line
}

// Watch requests the line with handler attached to falling-edge events.
func (e *RealEdge) Watch(handler func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.line != nil {
		return fmt.Errorf("input pin %d already watched", e.offset)
	}

	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			if evt.Type == gpiocdev.LineEventFallingEdge {
				handler()
			}
		}),
	}
	if e.debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(e.debounce))
	}

	line, err := e.chip.RequestLine(e.offset, opts...)
	if err != nil {
		return fmt.Errorf("request input pin %d: %w", e.offset, err)
	}
	e.line = line
	return nil
}

// Close stops event delivery and returns the line to input with pull-down.
func (e *RealEdge) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.line == nil {
		return nil
	}

	var errs []error
	if err := e.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure input pin %d: %w", e.offset, err))
	}
	if err := e.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close input pin %d: %w", e.offset, err))
	}
	e.line = nil
	return errors.Join(errs...)
}
