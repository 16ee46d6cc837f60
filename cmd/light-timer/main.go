// Command light-timer switches a porch light relay on at dusk and off at a
// fixed hour, honouring remote force_on/force_off overrides that expire on
// their own.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sweeney/light-timer/internal/config"
	"github.com/sweeney/light-timer/internal/gpio"
	"github.com/sweeney/light-timer/internal/logging"
	"github.com/sweeney/light-timer/internal/logic"
	"github.com/sweeney/light-timer/internal/mqtt"
	"github.com/sweeney/light-timer/internal/remote"
	"github.com/sweeney/light-timer/internal/status"
	"github.com/sweeney/light-timer/internal/store"
	"github.com/sweeney/light-timer/internal/web"
)

// errRunFailed makes a one-shot invocation exit non-zero.
var errRunFailed = errors.New("run failed")

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (empty for defaults)")
	interval := flag.Duration("interval", 0, "Run every interval and stay resident (0 runs once and exits)")
	httpAddr := flag.String("http", "", "HTTP status address in resident mode (empty to disable)")
	wsBroker := flag.String("ws-broker", "", `MQTT websocket URL for live UI ("=broker" derives from the MQTT broker, "off" disables)`)
	dryRun := flag.Bool("dry-run", false, "Decide and report without driving the relay")
	printState := flag.Bool("print-state", false, "Print the current decision and exit without writing anything")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "light-timer: %v\n", err)
		os.Exit(2)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "interval":
			cfg.Run.Interval = *interval
		case "http":
			cfg.HTTP.Addr = *httpAddr
		case "ws-broker":
			cfg.MQTT.WSBroker = *wsBroker
		case "dry-run":
			cfg.Run.DryRun = *dryRun
		}
	})

	deviceID, err := cfg.ResolveDeviceID(os.Hostname)
	if err != nil {
		fmt.Fprintf(os.Stderr, "light-timer: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, zap.String("device_id", deviceID))
	if err != nil {
		fmt.Fprintf(os.Stderr, "light-timer: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	if err := run(cfg, deviceID, *printState, logger); err != nil {
		if errors.Is(err, errRunFailed) {
			logger.Sync()
			os.Exit(1)
		}
		logger.Fatal("fatal", zap.Error(err))
	}
}

func run(cfg *config.Config, deviceID string, printState bool, log *zap.Logger) error {
	loc, err := cfg.LogicLocation()
	if err != nil {
		return err
	}
	sched := logic.NewScheduler(loc, cfg.LogicSchedule())
	records := store.NewFile(cfg.State.OverrideFile, loc.TZ)

	if printState {
		return printDecision(os.Stdout, sched, records, time.Now())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hostname, _ := os.Hostname()

	// Initialize relay
	var relay gpio.Relay
	if cfg.Run.DryRun {
		relay = dryRunRelay{log: log.Named("gpio")}
	} else {
		rr, err := gpio.NewRealRelay(cfg.GPIO.Chip, cfg.GPIO.Pin, cfg.GPIO.ActiveLow)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		relay = rr
	}
	defer relay.Close()

	r := &runner{
		sched:      sched,
		store:      records,
		relay:      relay,
		statusFile: cfg.State.StatusFile,
		envFile:    cfg.Network.EnvFile,
		deviceID:   deviceID,
		hostname:   hostname,
		timeout:    callTimeout(cfg),
		log:        log,
		newRunID:   uuid.NewString,
	}

	// Initialize MQTT
	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix, deviceID)
	var client *mqtt.RealClient
	var clientErr error
	if cfg.MQTT.Broker != "" {
		client, clientErr = mqtt.NewRealClient(mqtt.Options{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID + "-" + deviceID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			Topics:      topics,
			Timeout:     cfg.MQTT.Timeout,
			CommandWait: cfg.MQTT.CommandWait,
		}, log.Named("mqtt"))
		if clientErr != nil {
			log.Warn("mqtt unavailable", zap.String("broker", cfg.MQTT.Broker), zap.Error(clientErr))
		} else {
			defer client.Close()
			r.sinks = append(r.sinks, namedSink{name: "mqtt", statusSink: client})
		}
	}

	// Initialize Firestore
	var fs *remote.Firestore
	var fsErr error
	if cfg.CommandSource == config.SourceFirestore || cfg.Firestore.UploadStatus {
		fs, fsErr = newFirestore(ctx, cfg, deviceID, hostname, log.Named("firestore"))
		if fsErr != nil {
			log.Warn("firestore unavailable", zap.Error(fsErr))
		} else if cfg.Firestore.UploadStatus {
			r.sinks = append(r.sinks, namedSink{name: "firestore", statusSink: fs})
		}
	}

	switch cfg.CommandSource {
	case config.SourceFirestore:
		if fsErr != nil {
			r.source = unavailableSource{err: fsErr}
		} else {
			r.source = fs
		}
	case config.SourceMQTT:
		if clientErr != nil {
			r.source = unavailableSource{err: clientErr}
		} else {
			r.source = client
		}
	}

	if cfg.Run.Interval <= 0 {
		rep := r.runOnce(ctx, time.Now())
		if rep.Failed() {
			return errRunFailed
		}
		return nil
	}

	// Resident mode
	ws := resolveWSBroker(cfg.MQTT.WSBroker, cfg.MQTT.Broker, log)
	tracker := status.NewTracker(time.Now(), status.Config{
		DeviceID:      deviceID,
		Location:      loc.Name,
		Timezone:      cfg.Location.Timezone,
		OffHour:       cfg.Schedule.OffHour,
		Interval:      cfg.Run.Interval,
		CommandSource: cfg.CommandSource,
		Broker:        cfg.MQTT.Broker,
		HTTPAddr:      cfg.HTTP.Addr,
		WSBroker:      ws,
		StatusTopic:   topics.Status,
	})
	if net := readNetworkInfo(cfg.Network.EnvFile); net != nil {
		tracker.SetNetwork(net)
	}

	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if client != nil && clientErr == nil {
		publisher = client
		mqttStatus = client
		tracker.SetMQTTConnected(client.IsConnected())
	}

	// Publish startup event with full status snapshot
	if publisher != nil {
		snap := tracker.Snapshot()
		startupEvent := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startupEvent); err != nil {
			log.Warn("failed to publish startup event", zap.Error(err))
		} else {
			log.Info("published startup event")
		}
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("http server error", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info("http status server listening", zap.String("addr", cfg.HTTP.Addr))
	}

	log.Info("started",
		zap.Duration("interval", cfg.Run.Interval),
		zap.String("command_source", cfg.CommandSource),
		zap.String("broker", cfg.MQTT.Broker),
		zap.Bool("dry_run", cfg.Run.DryRun))

	ticker := time.NewTicker(cfg.Run.Interval)
	defer ticker.Stop()

	// signal.NotifyContext above handles one-shot runs; the loop wants the
	// signal itself to report it in the SHUTDOWN event.
	stop()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(context.Background(), r, publisher, mqttStatus, tracker, time.Now, ticker.C, sigCh)
}

// runLoop runs one invocation immediately and then one per tick until a
// signal arrives.
func runLoop(ctx context.Context, r *runner, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	invoke := func() {
		rep := r.runOnce(ctx, now())
		if tracker != nil {
			tracker.Record(rep)
			if rep.Network != nil {
				tracker.SetNetwork(rep.Network)
			}
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
		}
	}

	invoke()
	for {
		select {
		case s := <-sig:
			r.log.Info("shutting down", zap.Stringer("signal", s))
			if publisher == nil {
				return nil
			}
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				r.log.Warn("failed to publish shutdown event", zap.Error(err))
			} else {
				r.log.Info("published shutdown event")
			}
			return nil

		case <-tick:
			invoke()
		}
	}
}

// printDecision writes what an invocation would do at now, without reading
// the remote command or writing anything.
func printDecision(w io.Writer, sched *logic.Scheduler, records *store.File, now time.Time) error {
	rec, _, err := records.Load()
	if err != nil {
		return err
	}
	d, err := sched.Decide(rec, now)
	if err != nil {
		return fmt.Errorf("decide: %w", err)
	}
	fmt.Fprintf(w, "Mode: %s, Light: %s\n", d.Mode, d.State())
	for _, line := range status.DecisionLines(d) {
		fmt.Fprintln(w, line)
	}
	return nil
}

func newFirestore(ctx context.Context, cfg *config.Config, deviceID, hostname string, log *zap.Logger) (*remote.Firestore, error) {
	tokens, err := remote.TokenSourceFromFile(ctx, cfg.Firestore.ServiceAccountFile)
	if err != nil {
		return nil, err
	}
	return remote.NewFirestore(remote.FirestoreConfig{
		BaseURL:            cfg.Firestore.BaseURL,
		ProjectID:          cfg.Firestore.ProjectID,
		Database:           cfg.Firestore.Database,
		CommandsCollection: cfg.Firestore.CommandsCollection,
		DevicesCollection:  cfg.Firestore.DevicesCollection,
		DeviceID:           deviceID,
		Hostname:           hostname,
		Timeout:            cfg.Firestore.Timeout,
	}, tokens, log), nil
}

// callTimeout bounds every remote call of an invocation.
func callTimeout(cfg *config.Config) time.Duration {
	t := cfg.Firestore.Timeout
	if cfg.MQTT.Broker != "" {
		if m := cfg.MQTT.Timeout + cfg.MQTT.CommandWait; m > t {
			t = m
		}
	}
	return t
}

// unavailableSource stands in for a command source that failed to start,
// so each invocation reports the failure and keeps the stored record.
type unavailableSource struct {
	err error
}

func (u unavailableSource) FetchMode(context.Context) (string, bool, error) {
	return "", false, u.err
}

func (u unavailableSource) ResetMode(context.Context) error {
	return u.err
}

// dryRunRelay logs relay writes instead of touching the GPIO line.
type dryRunRelay struct {
	log *zap.Logger
}

func (d dryRunRelay) Set(on bool) error {
	d.log.Info("dry run: relay not driven", zap.String("state", string(logic.StateOf(on))))
	return nil
}

func (dryRunRelay) Close() error { return nil }

// resolveWSBroker converts the ws-broker setting into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" or
// empty disables.
func resolveWSBroker(ws, broker string, log *zap.Logger) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	if broker == "" {
		return ""
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Warn("ws-broker: cannot parse broker", zap.String("broker", broker), zap.Error(err))
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
