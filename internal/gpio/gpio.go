// Package gpio provides the output line and edge input with hardware abstraction.
// The real implementation uses Linux GPIO character device, with periph.io as
// an alternative backend.
// The fake implementation allows testing without hardware.
package gpio

// OutputPin is a line driven by the worker and read back from hardware.
type OutputPin interface {
	// Level returns the level the line is actually at (true = high).
	Level() (bool, error)

	// SetLevel drives the line high or low.
	SetLevel(high bool) error

	// Close releases GPIO resources.
	Close() error
}

// EdgeSource delivers falling edges on an input line.
type EdgeSource interface {
	// Watch registers handler to run on every falling edge.
	// The handler runs in the backend's event context and must not block.
	Watch(handler func()) error

	// Close stops edge delivery and releases GPIO resources.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinIn  = 16 // falling-edge trigger, pulled up
	DefaultPinOut = 2  // LED, read back on toggle
)

// DefaultChip is the gpiochip the pins live on.
const DefaultChip = "gpiochip0"
