package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/sweeney/edge-sampler/internal/adc"
	"github.com/sweeney/edge-sampler/internal/gpio"
	"github.com/sweeney/edge-sampler/internal/notify"
)

// DefaultWaitTimeout bounds each wait so the worker reports liveness when idle.
const DefaultWaitTimeout = 5 * time.Second

// Receiver is the read side of the notification channel.
type Receiver interface {
	Take(ctx context.Context, timeout time.Duration) (notify.Code, bool)
}

// Observer is told about every handled event, on the worker goroutine.
type Observer interface {
	Observe(r Result)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(r Result)

// Observe calls f(r).
func (f ObserverFunc) Observe(r Result) { f(r) }

// Config holds worker settings.
type Config struct {
	// WaitTimeout bounds each channel wait; <= 0 waits without bound.
	WaitTimeout time.Duration

	// SampleChannel is the analog channel read for CodeSampleChannel.
	SampleChannel adc.Channel
}

// Worker waits on the channel and dispatches one event at a time.
// It is the only writer of the output pin.
type Worker struct {
	rx      Receiver
	pin     gpio.OutputPin
	sampler adc.Sampler
	cfg     Config
	obs     Observer
	now     func() time.Time

	state atomic.Int32
}

// NewWorker creates a worker. obs may be nil.
func NewWorker(rx Receiver, pin gpio.OutputPin, sampler adc.Sampler, cfg Config, obs Observer) *Worker {
	return &Worker{
		rx:      rx,
		pin:     pin,
		sampler: sampler,
		cfg:     cfg,
		obs:     obs,
		now:     time.Now,
	}
}

// State returns where the worker is in its cycle.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Run handles events until ctx is cancelled. Timeouts, unrecognized codes
// and hardware errors never end the loop.
func (w *Worker) Run(ctx context.Context) error {
	log.Printf("worker: started (timeout=%v channel=%d)", w.cfg.WaitTimeout, w.cfg.SampleChannel)
	for {
		if _, err := w.Step(ctx); err != nil {
			log.Printf("worker: stopped")
			return nil
		}
	}
}

// Step waits for one notification or timeout and handles it.
// The only error is ctx's, returned when the wait was cut short by
// cancellation; nothing is dispatched in that case.
func (w *Worker) Step(ctx context.Context) (Result, error) {
	code, ok := w.rx.Take(ctx, w.cfg.WaitTimeout)
	if !ok && ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	w.state.Store(int32(StateDispatching))
	defer w.state.Store(int32(StateBlocked))

	r := Result{
		Event: Classify(code, ok, w.cfg.SampleChannel),
		Time:  w.now(),
	}

	switch r.Event.Kind {
	case KindTimeout:
		log.Printf("worker: timeout waiting for notification (%v)", w.cfg.WaitTimeout)
	case KindToggle:
		r.Level, r.Err = w.toggle()
	case KindSample:
		r.Percent, r.Err = w.sampler.SamplePercentage(r.Event.Channel)
	case KindUnrecognized:
		log.Printf("worker: unrecognized event code %d, ignored", r.Event.Code)
	}

	if r.Err != nil {
		log.Printf("worker: %s failed: %v", r.Event.Kind, r.Err)
	}

	if w.obs != nil {
		w.obs.Observe(r)
	}
	return r, nil
}

// toggle drives the output to the negation of the level read from hardware.
func (w *Worker) toggle() (bool, error) {
	high, err := w.pin.Level()
	if err != nil {
		return false, fmt.Errorf("read output level: %w", err)
	}
	if err := w.pin.SetLevel(!high); err != nil {
		return high, fmt.Errorf("set output level: %w", err)
	}
	return !high, nil
}
