package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/sweeney/light-timer/internal/gpio"
	"github.com/sweeney/light-timer/internal/logging"
	"github.com/sweeney/light-timer/internal/logic"
	"github.com/sweeney/light-timer/internal/remote"
	"github.com/sweeney/light-timer/internal/status"
	"github.com/sweeney/light-timer/internal/store"
)

// statusSink receives the report at the end of every invocation.
type statusSink interface {
	PublishStatus(ctx context.Context, r status.Report) error
}

type namedSink struct {
	name string
	statusSink
}

// runner performs invocations. It holds no state between them: everything
// carried forward lives in the override record on disk.
type runner struct {
	sched      *logic.Scheduler
	store      *store.File
	source     remote.Source // nil when no remote commands are read
	relay      gpio.Relay
	sinks      []namedSink
	statusFile string
	envFile    string
	deviceID   string
	hostname   string
	timeout    time.Duration
	log        *zap.Logger
	newRunID   func() string
}

// runOnce performs one invocation at now and returns its report.
// Failures are carried in the report, never returned.
func (r *runner) runOnce(ctx context.Context, now time.Time) status.Report {
	runID := r.newRunID()
	log := logging.WithRunID(r.log, runID)

	rep := status.NewReport(r.deviceID, r.hostname, runID, now)
	rep.Network = readNetworkInfo(r.envFile)

	r.decide(ctx, log, &rep, now)
	r.publish(ctx, log, rep)

	if rep.Failed() {
		log.Error("run failed", zap.String("error", rep.Error))
	} else {
		log.Info("run complete",
			zap.String("mode", rep.OverrideMode),
			zap.String("relay", rep.Relay))
	}
	return rep
}

func (r *runner) decide(ctx context.Context, log *zap.Logger, rep *status.Report, now time.Time) {
	rec, _, err := r.store.Load()
	if err != nil {
		log.Error("load override record", zap.Error(err))
		rep.Fail(status.ErrTagStore, err)
		return
	}
	rep.OverrideMode = string(logic.NormalizeMode(string(rec.Mode)))

	changed := false
	if mode, ok := r.fetchMode(ctx, log, rep); ok {
		rec, changed = logic.ApplyCommand(rec, mode, now)
		if changed {
			log.Info("override command applied",
				zap.String("mode", string(rec.Mode)),
				zap.Time("set_at", rec.SetAt))
		}
	}

	d, err := r.sched.Decide(rec, now)
	if err != nil {
		log.Error("decide", zap.Error(err))
		rep.Fail(status.ErrTagDecision, err)
		return
	}

	if changed || d.Persist {
		if err := r.store.Save(d.Record); err != nil {
			log.Error("save override record", zap.Error(err))
			rep.Fail(status.ErrTagStore, err)
		}
	}

	if d.Revert != nil {
		log.Info("override expired",
			zap.String("from", string(d.Revert.From)),
			zap.Time("cutoff", d.Revert.Cutoff))
		if r.source != nil {
			rctx, cancel := context.WithTimeout(ctx, r.timeout)
			err := r.source.ResetMode(rctx)
			cancel()
			if err != nil {
				log.Warn("reset remote command", zap.Error(err))
				rep.Warn("reset remote command: %v", err)
			}
		}
	}

	rep.ApplyDecision(d)

	if err := r.relay.Set(d.On); err != nil {
		log.Error("drive relay", zap.Bool("on", d.On), zap.Error(err))
		rep.Relay = ""
		rep.Fail(status.ErrTagRelay, err)
	}
}

// fetchMode reads the remote command. ok is false when the stored record
// should be kept as is: no source, or the source could not be read.
func (r *runner) fetchMode(ctx context.Context, log *zap.Logger, rep *status.Report) (string, bool) {
	if r.source == nil {
		return "", false
	}
	fctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	mode, found, err := r.source.FetchMode(fctx)
	if err != nil {
		log.Warn("fetch remote command, keeping stored record", zap.Error(err))
		rep.Warn("fetch remote command: %v", err)
		return "", false
	}
	if !found {
		return string(logic.ModeAuto), true
	}
	return mode, true
}

// publish writes the local status file and sends the report to every sink.
// Failures here are logged only.
func (r *runner) publish(ctx context.Context, log *zap.Logger, rep status.Report) {
	if r.statusFile != "" {
		if err := status.WriteFile(r.statusFile, rep); err != nil {
			log.Warn("write status file", zap.String("path", r.statusFile), zap.Error(err))
		}
	}
	for _, s := range r.sinks {
		pctx, cancel := context.WithTimeout(ctx, r.timeout)
		err := s.PublishStatus(pctx, rep)
		cancel()
		if err != nil {
			log.Warn("publish status", zap.String("sink", s.name), zap.Error(err))
		}
	}
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

// readNetworkInfo reads the pi-helper env file, falling back to the process
// environment for anything the file does not set.
func readNetworkInfo(envFile string) *status.NetworkInfo {
	get := os.Getenv
	if envFile != "" {
		if vars, err := godotenv.Read(envFile); err == nil {
			get = func(key string) string {
				if v, ok := vars[key]; ok {
					return v
				}
				return os.Getenv(key)
			}
		}
	}

	s := get(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       get(envNetworkType),
		IP:         get(envNetworkIP),
		Status:     s,
		Gateway:    get(envNetworkGateway),
		WifiStatus: get(envNetworkWifiStatus),
		SSID:       get(envNetworkWifiSSID),
	}
}
