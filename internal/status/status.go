// Package status provides a thread-safe status tracker for the edge-sampler daemon.
// It is read by the HTTP handlers and the heartbeat publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/edge-sampler/internal/adc"
	"github.com/sweeney/edge-sampler/internal/dispatch"
	"github.com/sweeney/edge-sampler/internal/notify"
)

// NetworkInfo contains network state as written by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Backend          string
	Chip             string
	PinIn            int
	PinOut           int
	ADCChannel       int
	WaitTimeoutMs    int64
	SampleIntervalMs int64
	HeartbeatMs      int64
	Broker           string
	HTTPPort         string
	WSBroker         string // Websocket broker URL for browser MQTT (empty = disabled)
}

// Sample is the most recent analog reading.
type Sample struct {
	Channel adc.Channel
	Percent int
	Time    time.Time
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	OutputKnown   bool
	OutputHigh    bool
	Worker        dispatch.State
	Counts        dispatch.Counts
	HasSample     bool
	LastSample    Sample
	LastError     string
	Channel       notify.Stats
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot

	stats func() notify.Stats
	state func() dispatch.State
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Attach sets the live sources read on every Snapshot. Either may be nil.
func (t *Tracker) Attach(stats func() notify.Stats, state func() dispatch.State) {
	t.mu.Lock()
	t.stats = stats
	t.state = state
	t.mu.Unlock()
}

// Record folds one dispatched event into the status.
// Called from the worker's observer.
func (t *Tracker) Record(r dispatch.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.Counts.Add(r)
	if r.Err != nil {
		t.snap.LastError = r.Err.Error()
		return
	}
	switch r.Event.Kind {
	case dispatch.KindToggle:
		t.snap.OutputKnown = true
		t.snap.OutputHigh = r.Level
	case dispatch.KindSample:
		t.snap.HasSample = true
		t.snap.LastSample = Sample{Channel: r.Event.Channel, Percent: r.Percent, Time: r.Time}
	}
}

// SetOutput sets the output level read at startup.
func (t *Tracker) SetOutput(high bool) {
	t.mu.Lock()
	t.snap.OutputKnown = true
	t.snap.OutputHigh = high
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	stats, state := t.stats, t.state
	t.mu.RUnlock()

	if stats != nil {
		s.Channel = stats()
	}
	if state != nil {
		s.Worker = state()
	}
	s.Now = time.Now()
	return s
}
