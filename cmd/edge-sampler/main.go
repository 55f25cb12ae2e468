// Command edge-sampler toggles an output on every falling edge of a GPIO input,
// samples an analog channel on request, and publishes both to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sweeney/edge-sampler/internal/adc"
	"github.com/sweeney/edge-sampler/internal/dispatch"
	"github.com/sweeney/edge-sampler/internal/gpio"
	"github.com/sweeney/edge-sampler/internal/mqtt"
	"github.com/sweeney/edge-sampler/internal/notify"
	"github.com/sweeney/edge-sampler/internal/source"
	"github.com/sweeney/edge-sampler/internal/status"
	"github.com/sweeney/edge-sampler/internal/web"
)

type options struct {
	backend        string
	chip           string
	pinIn          int
	pinOut         int
	debounce       time.Duration
	adcDevice      string
	adcChannel     int
	adcSamples     int
	cal            adc.Calibration
	waitTimeout    time.Duration
	sampleInterval time.Duration
	broker         string
	heartbeat      time.Duration
	printState     bool
	httpAddr       string
	wsBroker       string
}

func main() {
	var o options
	flag.StringVar(&o.backend, "backend", "gpiocdev", "GPIO backend: gpiocdev or periph")
	flag.StringVar(&o.chip, "chip", gpio.DefaultChip, "GPIO chip (gpiocdev backend)")
	flag.IntVar(&o.pinIn, "pin-in", gpio.DefaultPinIn, "BCM pin number for the falling-edge input")
	flag.IntVar(&o.pinOut, "pin-out", gpio.DefaultPinOut, "BCM pin number for the toggled output")
	flag.DurationVar(&o.debounce, "debounce", 0, "Kernel debounce on the input (gpiocdev backend, 0 to disable)")
	flag.StringVar(&o.adcDevice, "adc-device", "/sys/bus/iio/devices/iio:device0", "IIO ADC device directory")
	flag.IntVar(&o.adcChannel, "adc-channel", int(adc.DefaultChannel), "ADC channel read on a sample request")
	flag.IntVar(&o.adcSamples, "adc-samples", adc.DefaultSamples, "Raw reads averaged per sample")
	flag.IntVar(&o.cal.Min, "adc-cal-min", adc.DefaultCalibration.Min, "Raw count read as 0%")
	flag.IntVar(&o.cal.Max, "adc-cal-max", adc.DefaultCalibration.Max, "Raw count read as 100%")
	flag.DurationVar(&o.waitTimeout, "wait-timeout", dispatch.DefaultWaitTimeout, "Worker idle report interval (0 waits forever)")
	flag.DurationVar(&o.sampleInterval, "sample-interval", 30*time.Second, "Periodic sample request interval (0 to disable)")
	flag.StringVar(&o.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.BoolVar(&o.printState, "print-state", false, "Print output level and one sample, then exit")
	flag.StringVar(&o.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	wsBroker := flag.String("ws-broker", "=broker", `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)

	flag.Parse()

	o.wsBroker = resolveWSBroker(*wsBroker, o.broker)
	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(o options) error {
	hw, err := openHardware(o)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer func() {
		if err := hw.Close(); err != nil {
			log.Printf("gpio close: %v", err)
		}
	}()

	sampler, err := adc.NewIIOSampler(o.adcDevice, o.adcSamples, o.cal)
	if err != nil {
		return fmt.Errorf("init adc: %w", err)
	}

	// Print state mode
	if o.printState {
		return printState(hw.out, sampler, adc.Channel(o.adcChannel))
	}

	publisher := mqtt.NewRealPublisher(o.broker)
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		Backend:          o.backend,
		Chip:             o.chip,
		PinIn:            o.pinIn,
		PinOut:           o.pinOut,
		ADCChannel:       o.adcChannel,
		WaitTimeoutMs:    o.waitTimeout.Milliseconds(),
		SampleIntervalMs: o.sampleInterval.Milliseconds(),
		HeartbeatMs:      o.heartbeat.Milliseconds(),
		Broker:           o.broker,
		HTTPPort:         o.httpAddr,
		WSBroker:         o.wsBroker,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Start HTTP status server
	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", o.httpAddr)
	}

	d := device{
		edge:       hw.edge,
		out:        hw.out,
		sampler:    sampler,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		cfg: dispatch.Config{
			WaitTimeout:   o.waitTimeout,
			SampleChannel: adc.Channel(o.adcChannel),
		},
	}

	if o.sampleInterval > 0 {
		t := time.NewTicker(o.sampleInterval)
		defer t.Stop()
		d.sampleTick = t.C
	}
	if o.heartbeat > 0 {
		t := time.NewTicker(o.heartbeat)
		defer t.Stop()
		d.heartbeatTick = t.C
	}

	log.Printf("started: backend=%s in=%d out=%d adc=%d wait=%v sample=%v broker=%s heartbeat=%v",
		o.backend, o.pinIn, o.pinOut, o.adcChannel, o.waitTimeout, o.sampleInterval, o.broker, o.heartbeat)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return runDevice(context.Background(), d, sigCh)
}

// device is everything runDevice needs; tests supply fakes.
type device struct {
	edge       gpio.EdgeSource
	out        gpio.OutputPin
	sampler    adc.Sampler
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus // optional
	tracker    *status.Tracker
	cfg        dispatch.Config

	sampleTick    <-chan time.Time // nil disables periodic sampling
	heartbeatTick <-chan time.Time // nil disables heartbeats
}

var errShutdown = errors.New("shutdown requested")

// runDevice wires the edge source and periodic producer to one notification
// channel, runs the worker on it, and returns after a signal or when ctx is
// cancelled. Failing to register the edge handler aborts before the worker
// starts.
func runDevice(ctx context.Context, d device, sig <-chan os.Signal) error {
	ch := notify.New()
	worker := dispatch.NewWorker(ch, d.out, d.sampler, d.cfg, dispatch.ObserverFunc(func(r dispatch.Result) {
		report(d, r)
	}))
	d.tracker.Attach(ch.Stats, worker.State)

	if high, err := d.out.Level(); err != nil {
		log.Printf("gpio read error: %v", err)
	} else {
		d.tracker.SetOutput(high)
	}

	if err := source.BindEdge(d.edge, ch); err != nil {
		return err
	}

	publishSystem(d, "STARTUP", "")

	reason := make(chan string, 1)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	if d.sampleTick != nil {
		g.Go(func() error {
			return source.RunPeriodic(gctx, ch, d.sampleTick)
		})
	}
	if d.heartbeatTick != nil {
		g.Go(func() error {
			return runHeartbeat(gctx, d)
		})
	}
	g.Go(func() error {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			reason <- signalName(s)
			return errShutdown
		case <-gctx.Done():
			return nil
		}
	})

	err := g.Wait()
	if errors.Is(err, errShutdown) {
		err = nil
	}

	var why string
	select {
	case why = <-reason:
	default:
	}
	publishSystem(d, "SHUTDOWN", why)
	return err
}

// report runs on the worker goroutine after every dispatch.
func report(d device, r dispatch.Result) {
	d.tracker.Record(r)

	switch r.Event.Kind {
	case dispatch.KindToggle:
		if r.Err == nil {
			log.Printf("event: %s (output=%s)", r.Event.Kind, mqtt.LevelString(r.Level))
		}
	case dispatch.KindSample:
		if r.Err == nil {
			log.Printf("event: %s (channel=%d percent=%d)", r.Event.Kind, r.Event.Channel, r.Percent)
		}
	default:
		return
	}

	if err := d.publisher.Publish(r); err != nil {
		log.Printf("publish error: %v", err)
		// Don't crash on publish failure
	}
}

func runHeartbeat(ctx context.Context, d device) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.heartbeatTick:
			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				d.tracker.SetNetwork(net)
			}
			snap := publishSystem(d, "HEARTBEAT", "")
			log.Printf("heartbeat: uptime=%v toggles=%d samples=%d timeouts=%d superseded=%d",
				snap.Uptime().Truncate(time.Second), snap.Counts.Toggles, snap.Counts.Samples,
				snap.Counts.Timeouts, snap.Channel.Superseded)
		}
	}
}

// publishSystem publishes a lifecycle event carrying a full status snapshot.
func publishSystem(d device, event, reason string) status.Snapshot {
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
	snap := d.tracker.Snapshot()

	err := d.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
	} else if event != "HEARTBEAT" {
		log.Printf("published %s event", event)
	}
	return snap
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func printState(out gpio.OutputPin, sampler adc.Sampler, ch adc.Channel) error {
	high, err := out.Level()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	pct, err := sampler.SamplePercentage(ch)
	if err != nil {
		return fmt.Errorf("read adc: %w", err)
	}
	fmt.Printf("OUT: %s, ADC%d: %d%%\n", mqtt.LevelString(high), ch, pct)
	return nil
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse --broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
