// Package dispatch classifies notification codes and runs the worker that
// performs the hardware operation each one asks for.
//
// All pin and ADC access happens here, on the worker goroutine, never in the
// edge callback that produced the code.
package dispatch

import (
	"time"

	"github.com/sweeney/edge-sampler/internal/adc"
	"github.com/sweeney/edge-sampler/internal/notify"
)

// Event codes written into the notification channel.
const (
	CodeToggleOutput  notify.Code = 1
	CodeSampleChannel notify.Code = 2
)

// Kind is the classified outcome of one channel wait.
type Kind int

const (
	KindTimeout Kind = iota
	KindToggle
	KindSample
	KindUnrecognized
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "TIMEOUT"
	case KindToggle:
		return "TOGGLE"
	case KindSample:
		return "SAMPLE"
	case KindUnrecognized:
		return "UNRECOGNIZED"
	}
	return "UNKNOWN"
}

// Event is the tagged result of classifying a wait.
// Channel is set only for KindSample, Code only when a value was received.
type Event struct {
	Kind    Kind
	Code    notify.Code
	Channel adc.Channel
}

// Classify turns the outcome of a channel wait into an Event.
// ok is false when the wait ended without a value.
func Classify(code notify.Code, ok bool, sampleChannel adc.Channel) Event {
	if !ok {
		return Event{Kind: KindTimeout}
	}
	switch code {
	case CodeToggleOutput:
		return Event{Kind: KindToggle, Code: code}
	case CodeSampleChannel:
		return Event{Kind: KindSample, Code: code, Channel: sampleChannel}
	}
	return Event{Kind: KindUnrecognized, Code: code}
}

// State is the worker's position in its Blocked/Dispatching cycle.
type State int32

const (
	StateBlocked State = iota
	StateDispatching
)

func (s State) String() string {
	if s == StateDispatching {
		return "DISPATCHING"
	}
	return "BLOCKED"
}

// Result describes one handled event.
type Result struct {
	Event Event
	Time  time.Time

	// Level is the output level after a toggle (true = high).
	Level bool

	// Percent is the sampler's reading for a sample.
	Percent int

	// Err is a hardware error absorbed by the worker.
	Err error
}

// Counts tracks the number of each outcome since startup.
type Counts struct {
	Toggles      int
	Samples      int
	Timeouts     int
	Unrecognized int
	Errors       int
}

// Add counts r.
func (c *Counts) Add(r Result) {
	switch r.Event.Kind {
	case KindToggle:
		c.Toggles++
	case KindSample:
		c.Samples++
	case KindTimeout:
		c.Timeouts++
	case KindUnrecognized:
		c.Unrecognized++
	}
	if r.Err != nil {
		c.Errors++
	}
}
