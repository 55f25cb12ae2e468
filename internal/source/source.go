// Package source contains the producers that write event codes into the
// notification channel.
package source

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sweeney/edge-sampler/internal/dispatch"
	"github.com/sweeney/edge-sampler/internal/gpio"
	"github.com/sweeney/edge-sampler/internal/notify"
)

// EdgeHandler returns the falling-edge callback. It only overwrites the
// pending code with CodeToggleOutput: no blocking, no allocation, no I/O.
func EdgeHandler(n notify.Notifier) func() {
	return func() {
		n.Overwrite(dispatch.CodeToggleOutput)
	}
}

// BindEdge registers the edge callback on src. An error here is a setup
// failure and must stop startup before the worker runs.
func BindEdge(src gpio.EdgeSource, n notify.Notifier) error {
	if err := src.Watch(EdgeHandler(n)); err != nil {
		return fmt.Errorf("register edge handler: %w", err)
	}
	return nil
}

// RunPeriodic requests a sample on every tick until ctx is done.
// A request that replaces a pending code is logged; the replaced code is lost.
func RunPeriodic(ctx context.Context, n notify.Notifier, tick <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			if prev, displaced := n.Overwrite(dispatch.CodeSampleChannel); displaced {
				log.Printf("source: sample request superseded pending code %d", prev)
			}
		}
	}
}
