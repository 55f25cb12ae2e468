package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/edge-sampler/internal/dispatch"
)

var testTime = time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC)

func TestFormatPayloadToggle(t *testing.T) {
	r := dispatch.Result{
		Event: dispatch.Event{Kind: dispatch.KindToggle, Code: dispatch.CodeToggleOutput},
		Time:  testTime,
		Level: true,
	}

	payload, err := FormatPayload(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `{"device":{"timestamp":"2026-02-02T22:18:12Z","event":"TOGGLE","code":1,"output":{"level":"HIGH"}}}`
	if string(payload) != want {
		t.Errorf("payload:\ngot  %s\nwant %s", payload, want)
	}
}

func TestFormatPayloadSample(t *testing.T) {
	r := dispatch.Result{
		Event:   dispatch.Event{Kind: dispatch.KindSample, Code: dispatch.CodeSampleChannel, Channel: 3},
		Time:    testTime,
		Percent: 57,
	}

	payload, err := FormatPayload(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Device.Event != "SAMPLE" {
		t.Errorf("event: got %s, want SAMPLE", parsed.Device.Event)
	}
	if parsed.Device.Sample == nil {
		t.Fatal("expected sample section")
	}
	if parsed.Device.Sample.Channel != 3 || parsed.Device.Sample.Percent != 57 {
		t.Errorf("sample: got %+v", *parsed.Device.Sample)
	}
	if parsed.Device.Output != nil {
		t.Error("sample payload should not carry output level")
	}
}

func TestFormatPayloadError(t *testing.T) {
	r := dispatch.Result{
		Event: dispatch.Event{Kind: dispatch.KindToggle, Code: dispatch.CodeToggleOutput},
		Time:  testTime,
		Err:   errors.New("read output level: line gone"),
	}

	payload, err := FormatPayload(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Device.Error != "read output level: line gone" {
		t.Errorf("error: got %q", parsed.Device.Error)
	}
	if parsed.Device.Output != nil {
		t.Error("failed toggle should not report a level")
	}
}

func TestLevelString(t *testing.T) {
	if LevelString(true) != "HIGH" {
		t.Errorf("true: got %s", LevelString(true))
	}
	if LevelString(false) != "LOW" {
		t.Errorf("false: got %s", LevelString(false))
	}
}

func TestFormatSystemPayload(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: testTime,
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `{"system":{"timestamp":"2026-02-02T22:18:12Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != want {
		t.Errorf("payload:\ngot  %s\nwant %s", payload, want)
	}
}

func TestFormatSystemPayloadWill(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{Event: "OFFLINE", Reason: "LWT"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `{"system":{"event":"OFFLINE","reason":"LWT"}}`
	if string(payload) != want {
		t.Errorf("payload:\ngot  %s\nwant %s", payload, want)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"HEARTBEAT"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "HEARTBEAT", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload passthrough, got %s", payload)
	}
}

func TestTopics(t *testing.T) {
	if Topic != "device/edge-sampler/events" {
		t.Errorf("unexpected topic: %s", Topic)
	}
	if TopicSystem != "device/edge-sampler/system" {
		t.Errorf("unexpected system topic: %s", TopicSystem)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	r := dispatch.Result{
		Event: dispatch.Event{Kind: dispatch.KindToggle, Code: dispatch.CodeToggleOutput},
		Time:  testTime,
	}
	if err := f.Publish(r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishSystem(SystemEvent{Timestamp: testTime, Event: "STARTUP"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.ResultCount() != 1 || len(f.Payloads) != 1 {
		t.Errorf("expected 1 result and payload, got %d and %d", len(f.Results), len(f.Payloads))
	}
	if len(f.SystemEvents) != 1 || len(f.SystemPayloads) != 1 {
		t.Errorf("expected 1 system event and payload, got %d and %d", len(f.SystemEvents), len(f.SystemPayloads))
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("simulated error")
	f.PublishSystemError = errors.New("simulated system error")

	if err := f.Publish(dispatch.Result{}); err == nil {
		t.Error("expected Publish error")
	}
	if err := f.PublishSystem(SystemEvent{}); err == nil {
		t.Error("expected PublishSystem error")
	}
	if f.ResultCount() != 0 || len(f.SystemEvents) != 0 {
		t.Error("failed publishes should not be recorded")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Publish(dispatch.Result{})
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.Connected = true
	f.Close()

	f.Reset()

	if f.ResultCount() != 0 || len(f.SystemEvents) != 0 {
		t.Error("expected recorded events to be cleared")
	}
	if f.Closed || f.IsConnected() {
		t.Error("expected flags to be cleared")
	}
}
