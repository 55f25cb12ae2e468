// Package notify provides the single-slot notification cell shared by an
// edge-event producer and the dispatch worker.
//
// The cell holds at most one pending code. A write replaces whatever is
// pending, a read takes and clears it. Writes never block or allocate, so
// they are safe to make from an edge callback.
package notify

import (
	"context"
	"sync/atomic"
	"time"
)

// Code is a small event code carried by the channel.
type Code uint32

// pendingBit marks the slot as holding a value, so a zero Code is still a
// valid pending code.
const pendingBit = uint64(1) << 32

// Notifier is the write side of a Channel. Producers get only this.
type Notifier interface {
	// Overwrite deposits code, replacing any pending value.
	// Returns the displaced code and whether one was pending.
	Overwrite(code Code) (prev Code, displaced bool)
}

// Stats counts channel activity since creation.
type Stats struct {
	Writes     uint64
	Superseded uint64 // pending values lost to a later write
}

// Channel is a single-slot, overwrite-on-write, take-and-clear-on-read cell.
type Channel struct {
	slot atomic.Uint64
	wake chan struct{}

	writes     atomic.Uint64
	superseded atomic.Uint64
}

// New creates an empty Channel.
func New() *Channel {
	return &Channel{wake: make(chan struct{}, 1)}
}

// Overwrite stores code as the pending value and wakes the reader.
func (c *Channel) Overwrite(code Code) (Code, bool) {
	prev := c.slot.Swap(uint64(code) | pendingBit)
	c.writes.Add(1)

	displaced := prev&pendingBit != 0
	if displaced {
		c.superseded.Add(1)
	}

	select {
	case c.wake <- struct{}{}:
	default:
		// reader already has a wakeup queued
	}
	return Code(uint32(prev)), displaced
}

// TryTake takes and clears the pending value without waiting.
func (c *Channel) TryTake() (Code, bool) {
	v := c.slot.Swap(0)
	if v&pendingBit == 0 {
		return 0, false
	}
	return Code(uint32(v)), true
}

// Take blocks until a value is pending, then takes and clears it.
// It gives up and returns false once timeout elapses or ctx is done.
// A timeout <= 0 waits without bound.
func (c *Channel) Take(ctx context.Context, timeout time.Duration) (Code, bool) {
	if code, ok := c.TryTake(); ok {
		return code, true
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		select {
		case <-c.wake:
			// A wakeup can outlive the value it announced if an earlier
			// TryTake already consumed it.
			if code, ok := c.TryTake(); ok {
				return code, true
			}
		case <-expired:
			return 0, false
		case <-ctx.Done():
			return 0, false
		}
	}
}

// Stats returns a snapshot of the write counters.
func (c *Channel) Stats() Stats {
	return Stats{
		Writes:     c.writes.Load(),
		Superseded: c.superseded.Load(),
	}
}
