package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/edge-sampler/internal/adc"
	"github.com/sweeney/edge-sampler/internal/dispatch"
	"github.com/sweeney/edge-sampler/internal/gpio"
	"github.com/sweeney/edge-sampler/internal/mqtt"
	"github.com/sweeney/edge-sampler/internal/status"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}

	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo when NETWORK_STATUS is set")
	}
	if info.Status != "connected" {
		t.Errorf("Status: got %q, want %q", info.Status, "connected")
	}
	if info.IP != "" {
		t.Errorf("IP: got %q, want empty", info.IP)
	}
}

func TestResolveWSBroker(t *testing.T) {
	tests := []struct {
		ws, broker, want string
	}{
		{"=broker", "tcp://192.168.1.200:1883", "ws://192.168.1.200:9001"},
		{"=broker", "tcp://mqtt.local:1883", "ws://mqtt.local:9001"},
		{"off", "tcp://192.168.1.200:1883", ""},
		{"ws://other:8080/mqtt", "tcp://192.168.1.200:1883", "ws://other:8080/mqtt"},
	}
	for _, tt := range tests {
		if got := resolveWSBroker(tt.ws, tt.broker); got != tt.want {
			t.Errorf("resolveWSBroker(%q, %q) = %q, want %q", tt.ws, tt.broker, got, tt.want)
		}
	}
}

func TestSignalName(t *testing.T) {
	if got := signalName(syscall.SIGINT); got != "SIGINT" {
		t.Errorf("SIGINT: got %q", got)
	}
	if got := signalName(syscall.SIGTERM); got != "SIGTERM" {
		t.Errorf("SIGTERM: got %q", got)
	}
	if got := signalName(syscall.SIGHUP); got != "UNKNOWN" {
		t.Errorf("SIGHUP: got %q", got)
	}
}

func TestOpenHardwareUnknownBackend(t *testing.T) {
	if _, err := openHardware(options{backend: "bogus"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestPrintStateErrors(t *testing.T) {
	out := gpio.NewFakeOutputPin(true)
	sampler := adc.NewFakeSampler(map[adc.Channel]int{3: 42})
	if err := printState(out, sampler, 3); err != nil {
		t.Fatalf("printState: %v", err)
	}

	out.ReadError = errors.New("gpio read failed")
	if err := printState(out, sampler, 3); err == nil {
		t.Error("expected error on gpio read failure")
	}
}

// --- runDevice tests ---

type rig struct {
	edge     *gpio.FakeEdge
	out      *gpio.FakeOutputPin
	sampler  *adc.FakeSampler
	pub      *mqtt.FakePublisher
	tracker  *status.Tracker
	sampleCh chan time.Time
	beatCh   chan time.Time
	sig      chan os.Signal
	cancel   context.CancelFunc
	done     chan error
}

func newRig(outHigh bool) *rig {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return &rig{
		edge:     gpio.NewFakeEdge(),
		out:      gpio.NewFakeOutputPin(outHigh),
		sampler:  adc.NewFakeSampler(map[adc.Channel]int{3: 57}),
		pub:      mqtt.NewFakePublisher(),
		tracker:  status.NewTracker(start, status.Config{Broker: "tcp://test:1883"}),
		sampleCh: make(chan time.Time),
		beatCh:   make(chan time.Time),
		sig:      make(chan os.Signal, 1),
		done:     make(chan error, 1),
	}
}

// start runs runDevice in the background. Use fire to wait for the edge
// handler to be registered.
func (r *rig) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	d := device{
		edge:       r.edge,
		out:        r.out,
		sampler:    r.sampler,
		publisher:  r.pub,
		mqttStatus: r.pub,
		tracker:    r.tracker,
		cfg: dispatch.Config{
			WaitTimeout:   time.Hour,
			SampleChannel: 3,
		},
		sampleTick:    r.sampleCh,
		heartbeatTick: r.beatCh,
	}
	go func() { r.done <- runDevice(ctx, d, r.sig) }()
	t.Cleanup(cancel)
}

func (r *rig) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("runDevice did not return")
		return nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// fire delivers one falling edge, retrying until the handler is registered.
func (r *rig) fire(t *testing.T) {
	t.Helper()
	waitFor(t, "edge handler", r.edge.Fire)
}

func TestRunDeviceEdgeTogglesOutput(t *testing.T) {
	r := newRig(false)
	r.start(t)

	r.fire(t)
	waitFor(t, "toggle published", func() bool { return r.pub.ResultCount() == 1 })

	if high, _, _ := r.out.Snapshot(); !high {
		t.Error("output should be HIGH after one edge")
	}

	r.sig <- syscall.SIGTERM
	if err := r.wait(t); err != nil {
		t.Fatalf("runDevice: %v", err)
	}

	res := r.pub.Results[0]
	if res.Event.Kind != dispatch.KindToggle {
		t.Errorf("kind: got %v, want TOGGLE", res.Event.Kind)
	}
	if !res.Level {
		t.Error("published level should be HIGH")
	}
	if calls := r.sampler.Calls(); len(calls) != 0 {
		t.Errorf("toggle must not sample, got %v", calls)
	}
}

func TestRunDeviceTwoTogglesRestoreLevel(t *testing.T) {
	r := newRig(true)
	r.start(t)

	r.fire(t)
	waitFor(t, "first toggle", func() bool { return r.pub.ResultCount() == 1 })
	r.fire(t)
	waitFor(t, "second toggle", func() bool { return r.pub.ResultCount() == 2 })

	if high, _, _ := r.out.Snapshot(); !high {
		t.Error("output should be back to HIGH after two dispatched toggles")
	}

	r.cancel()
	if err := r.wait(t); err != nil {
		t.Fatalf("runDevice: %v", err)
	}
}

func TestRunDevicePeriodicSample(t *testing.T) {
	r := newRig(false)
	r.start(t)
	r.fire(t) // ensure bound and running
	waitFor(t, "toggle", func() bool { return r.pub.ResultCount() == 1 })

	r.sampleCh <- time.Now()
	waitFor(t, "sample published", func() bool { return r.pub.ResultCount() == 2 })

	r.sig <- syscall.SIGINT
	if err := r.wait(t); err != nil {
		t.Fatalf("runDevice: %v", err)
	}

	calls := r.sampler.Calls()
	if len(calls) != 1 || calls[0] != 3 {
		t.Errorf("sampler calls: got %v, want [3]", calls)
	}
	res := r.pub.Results[1]
	if res.Event.Kind != dispatch.KindSample {
		t.Fatalf("kind: got %v, want SAMPLE", res.Event.Kind)
	}
	if res.Percent != 57 {
		t.Errorf("percent: got %d, want 57", res.Percent)
	}
	if _, _, sets := r.out.Snapshot(); sets != 1 {
		t.Errorf("sample must not drive the output: %d sets", sets)
	}

	snap := r.tracker.Snapshot()
	if !snap.HasSample || snap.LastSample.Percent != 57 {
		t.Errorf("tracker last sample: %+v", snap.LastSample)
	}
}

func TestRunDeviceStartupAndShutdownEvents(t *testing.T) {
	for _, tt := range []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
	} {
		t.Run(tt.want, func(t *testing.T) {
			r := newRig(false)
			r.start(t)
			r.fire(t)
			waitFor(t, "toggle", func() bool { return r.pub.ResultCount() == 1 })

			r.sig <- tt.sig
			if err := r.wait(t); err != nil {
				t.Fatalf("runDevice: %v", err)
			}

			if len(r.pub.SystemEvents) != 2 {
				t.Fatalf("system events: got %d, want 2", len(r.pub.SystemEvents))
			}
			if ev := r.pub.SystemEvents[0]; ev.Event != "STARTUP" || !ev.Retained {
				t.Errorf("first event: got %+v, want retained STARTUP", ev)
			}
			ev := r.pub.SystemEvents[1]
			if ev.Event != "SHUTDOWN" || ev.Reason != tt.want {
				t.Errorf("last event: got %s/%s, want SHUTDOWN/%s", ev.Event, ev.Reason, tt.want)
			}

			var payload status.StatusJSON
			if err := json.Unmarshal(r.pub.SystemPayloads[1], &payload); err != nil {
				t.Fatalf("unmarshal shutdown payload: %v", err)
			}
			if payload.Status.Reason != tt.want {
				t.Errorf("payload reason: got %q", payload.Status.Reason)
			}
			if payload.Status.Counts.Toggles != 1 {
				t.Errorf("payload toggles: got %d, want 1", payload.Status.Counts.Toggles)
			}
		})
	}
}

func TestRunDeviceParentCancelNoReason(t *testing.T) {
	r := newRig(false)
	r.start(t)
	r.fire(t)
	waitFor(t, "toggle", func() bool { return r.pub.ResultCount() == 1 })

	r.cancel()
	if err := r.wait(t); err != nil {
		t.Fatalf("runDevice: %v", err)
	}
	last := r.pub.SystemEvents[len(r.pub.SystemEvents)-1]
	if last.Event != "SHUTDOWN" || last.Reason != "" {
		t.Errorf("got %s/%q, want SHUTDOWN with no reason", last.Event, last.Reason)
	}
}

func TestRunDeviceHeartbeat(t *testing.T) {
	r := newRig(false)
	r.pub.Connected = true
	r.start(t)
	r.fire(t)
	waitFor(t, "toggle", func() bool { return r.pub.ResultCount() == 1 })

	r.beatCh <- time.Now()
	r.beatCh <- time.Now() // second send returns only once the first was handled

	r.sig <- syscall.SIGTERM
	if err := r.wait(t); err != nil {
		t.Fatalf("runDevice: %v", err)
	}

	var beats int
	for _, ev := range r.pub.SystemEvents {
		if ev.Event == "HEARTBEAT" {
			beats++
			if ev.Retained {
				t.Error("heartbeat should not be retained")
			}
		}
	}
	if beats != 2 {
		t.Errorf("heartbeats: got %d, want 2", beats)
	}
	if !r.tracker.Snapshot().MQTTConnected {
		t.Error("tracker should record MQTT connected")
	}
}

func TestRunDeviceBindFailure(t *testing.T) {
	r := newRig(false)
	r.edge.WatchError = errors.New("line busy")
	r.start(t)

	err := r.wait(t)
	if err == nil {
		t.Fatal("expected bind error")
	}
	if len(r.pub.SystemEvents) != 0 {
		t.Errorf("no STARTUP expected after bind failure, got %d events", len(r.pub.SystemEvents))
	}
	if _, _, sets := r.out.Snapshot(); sets != 0 {
		t.Error("worker must not run after bind failure")
	}
}

func TestRunDevicePublishErrorDoesNotStop(t *testing.T) {
	r := newRig(false)
	r.pub.PublishError = errors.New("broker down")
	r.start(t)

	r.fire(t)
	waitFor(t, "first toggle", func() bool { high, _, _ := r.out.Snapshot(); return high })
	r.fire(t)
	waitFor(t, "second toggle", func() bool { high, _, _ := r.out.Snapshot(); return !high })

	r.sig <- syscall.SIGTERM
	if err := r.wait(t); err != nil {
		t.Fatalf("runDevice: %v", err)
	}
	if got := r.tracker.Snapshot().Counts.Toggles; got != 2 {
		t.Errorf("toggles: got %d, want 2", got)
	}
}

func TestHardwareCloseReverseOrder(t *testing.T) {
	var order []string
	closer := func(name string, err error) func() error {
		return func() error {
			order = append(order, name)
			return err
		}
	}
	h := &hardware{closers: []func() error{
		closer("chip", nil),
		closer("out", errors.New("out busy")),
		closer("edge", nil),
	}}

	err := h.Close()
	if err == nil || err.Error() != "out busy" {
		t.Errorf("Close error: got %v, want out busy", err)
	}
	want := []string{"edge", "out", "chip"}
	if len(order) != len(want) {
		t.Fatalf("close order: got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("close order: got %v, want %v", order, want)
		}
	}

	if err := h.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
