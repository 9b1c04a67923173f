// Command home-agent monitors the household's presence and pairs
// thermostats with the Thermolearn backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thermolearn/home-agent/internal/agent"
	"github.com/thermolearn/home-agent/internal/api"
	"github.com/thermolearn/home-agent/internal/config"
	"github.com/thermolearn/home-agent/internal/geo"
	"github.com/thermolearn/home-agent/internal/location"
	"github.com/thermolearn/home-agent/internal/mqtt"
	"github.com/thermolearn/home-agent/internal/presence"
	"github.com/thermolearn/home-agent/internal/provision"
	"github.com/thermolearn/home-agent/internal/session"
	"github.com/thermolearn/home-agent/internal/status"
	"github.com/thermolearn/home-agent/internal/web"
)

func main() {
	configPath := flag.String("config", "", "TOML config file path")
	apiBase := flag.String("api-base", "", "Backend API base URL")
	provisionURL := flag.String("provision-url", "", "Thermostat setup endpoint")
	broker := flag.String("broker", "", "MQTT broker address (empty disables MQTT)")
	httpAddr := flag.String("http", "", "HTTP control API address (empty to disable)")
	dbPath := flag.String("db", "", "SQLite session database path")
	sample := flag.Duration("sample", 0, "Location sampling interval")
	telemetry := flag.Duration("telemetry", 0, "Distance telemetry interval")
	poll := flag.Duration("poll", 0, "Pairing confirmation poll interval")
	pairTimeout := flag.Duration("pair-timeout", 0, "Pairing confirmation window")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	locationSource := flag.String("location-source", "", `Fix source: "http" or "static"`)
	locationURL := flag.String("location-url", "", "Fix provider URL for the http source")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	// Flags take precedence over file values.
	if *apiBase != "" {
		cfg.APIBaseURL = *apiBase
	}
	if *provisionURL != "" {
		cfg.ProvisioningURL = *provisionURL
	}
	if *broker != "" {
		cfg.Broker = *broker
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if *sample > 0 {
		cfg.SampleMs = sample.Milliseconds()
	}
	if *telemetry > 0 {
		cfg.TelemetryMs = telemetry.Milliseconds()
	}
	if *poll > 0 {
		cfg.PollMs = poll.Milliseconds()
	}
	if *pairTimeout > 0 {
		cfg.PairTimeoutMs = pairTimeout.Milliseconds()
	}
	if *locationSource != "" {
		cfg.LocationSource = *locationSource
	}
	if *locationURL != "" {
		cfg.LocationURL = *locationURL
	}

	if err := run(cfg, *heartbeat); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg *config.Config, heartbeat time.Duration) error {
	ctx := context.Background()

	store, err := session.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()
	if err := store.InitSchema(ctx); err != nil {
		return fmt.Errorf("init session store: %w", err)
	}

	cloud := api.NewClient(cfg.APIBaseURL, func() string {
		token, err := store.Token(context.Background())
		if err != nil {
			log.Printf("token lookup failed: %v", err)
			return ""
		}
		return token
	})

	source, err := buildLocationSource(cfg)
	if err != nil {
		return err
	}
	defer source.Close()

	var publisher mqtt.Publisher = nopPublisher{}
	var mqttStatus mqtt.ConnectionStatus
	if cfg.Broker != "" {
		real, err := mqtt.NewRealPublisher(cfg.Broker)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher = real
		mqttStatus = real
	}
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		SampleMs:      cfg.SampleMs,
		TelemetryMs:   cfg.TelemetryMs,
		PollMs:        cfg.PollMs,
		PairTimeoutMs: cfg.PairTimeoutMs,
		Broker:        cfg.Broker,
		HTTPAddr:      cfg.HTTPAddr,
		APIBase:       cfg.APIBaseURL,
	})

	provisioner := provision.NewClient(cfg.ProvisioningURL)

	a, err := agent.New(ctx, store, cloud, publisher, tracker, source, provisioner, agent.Options{
		SampleInterval:    time.Duration(cfg.SampleMs) * time.Millisecond,
		TelemetryInterval: time.Duration(cfg.TelemetryMs) * time.Millisecond,
		PollInterval:      time.Duration(cfg.PollMs) * time.Millisecond,
		ConfirmTimeout:    time.Duration(cfg.PairTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("init agent: %w", err)
	}
	defer a.Close()

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, a)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http control api listening on %s", cfg.HTTPAddr)
	}

	log.Printf("started: sample=%dms telemetry=%dms poll=%dms api=%s broker=%s",
		cfg.SampleMs, cfg.TelemetryMs, cfg.PollMs, cfg.APIBaseURL, cfg.Broker)

	var heartbeatC <-chan time.Time
	if heartbeat > 0 {
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		heartbeatC = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return mainLoop(publisher, mqttStatus, tracker, time.Now, heartbeatC, sigCh)
}

// mainLoop waits for shutdown while emitting heartbeat status snapshots.
// The agent's own loops run independently.
func mainLoop(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			snap := tracker.Snapshot()
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			}
			return nil

		case <-heartbeat:
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			snap := tracker.Snapshot()
			log.Printf("heartbeat: uptime=%v at_home=%v in=%d out=%d",
				snap.Uptime().Truncate(time.Second), snap.AtHome, snap.Counts.In, snap.Counts.Out)
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      "HEARTBEAT",
				RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}
		}
	}
}

func buildLocationSource(cfg *config.Config) (location.Source, error) {
	switch cfg.LocationSource {
	case "http":
		if cfg.LocationURL == "" {
			return nil, fmt.Errorf("location-url required for the http source")
		}
		return location.NewHTTPSource(cfg.LocationURL), nil
	case "static":
		return location.NewStaticSource(geo.Point{Latitude: cfg.StaticLat, Longitude: cfg.StaticLon}), nil
	default:
		return nil, fmt.Errorf("unknown location source %q", cfg.LocationSource)
	}
}

// nopPublisher discards messages when MQTT is disabled.
type nopPublisher struct{}

func (nopPublisher) Publish(presence.Event) error         { return nil }
func (nopPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (nopPublisher) Close() error                         { return nil }
