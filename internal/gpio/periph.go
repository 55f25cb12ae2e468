package gpio

import (
	"fmt"
	"sync"
	"time"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// edgePoll bounds each WaitForEdge call so Close can stop the watcher.
const edgePoll = 100 * time.Millisecond

// InitPeriph loads the periph.io host drivers. Call once before PeriphPin.
func InitPeriph() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("init periph host: %w", err)
	}
	return nil
}

// PeriphPin looks up a BCM pin number in the periph.io registry.
func PeriphPin(bcm int) (pgpio.PinIO, error) {
	name := fmt.Sprintf("GPIO%d", bcm)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("periph: no pin %s", name)
	}
	return p, nil
}

// PeriphOutput drives a periph.io pin and reads it back.
type PeriphOutput struct {
	pin pgpio.PinIO
}

// NewPeriphOutput puts pin in output mode, initially low.
func NewPeriphOutput(pin pgpio.PinIO) (*PeriphOutput, error) {
	if err := pin.Out(pgpio.Low); err != nil {
		return nil, fmt.Errorf("configure output %s: %w", pin, err)
	}
	return &PeriphOutput{pin: pin}, nil
}

// Level returns the level read from the pin.
func (o *PeriphOutput) Level() (bool, error) {
	return o.pin.Read() == pgpio.High, nil
}

// SetLevel drives the pin.
func (o *PeriphOutput) SetLevel(high bool) error {
	if err := o.pin.Out(pgpio.Level(high)); err != nil {
		return fmt.Errorf("set output %s: %w", o.pin, err)
	}
	return nil
}

// Close returns the pin to input with pull-down.
func (o *PeriphOutput) Close() error {
	return o.pin.In(pgpio.PullDown, pgpio.NoEdge)
}

// PeriphEdge watches a periph.io pin for falling edges on its own goroutine.
type PeriphEdge struct {
	pin pgpio.PinIO

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewPeriphEdge wraps pin. Edge detection starts on Watch.
func NewPeriphEdge(pin pgpio.PinIO) *PeriphEdge {
	return &PeriphEdge{pin: pin}
}

// Watch enables falling-edge detection with pull-up and starts the watcher.
func (e *PeriphEdge) Watch(handler func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stop != nil {
		return fmt.Errorf("input %s already watched", e.pin)
	}
	if err := e.pin.In(pgpio.PullUp, pgpio.FallingEdge); err != nil {
		return fmt.Errorf("configure input %s: %w", e.pin, err)
	}

	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	go e.watch(handler, e.stop, e.done)
	return nil
}

func (e *PeriphEdge) watch(handler func(), stop, done chan struct{}) {
	defer close(done)
	for {
		edge := e.pin.WaitForEdge(edgePoll)
		select {
		case <-stop:
			return
		default:
		}
		if edge {
			handler()
		}
	}
}

// Close stops the watcher and disables edge detection.
func (e *PeriphEdge) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stop == nil {
		return nil
	}
	close(e.stop)
	<-e.done
	e.stop, e.done = nil, nil
	return e.pin.In(pgpio.PullDown, pgpio.NoEdge)
}
