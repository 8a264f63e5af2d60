package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/roboscene/taskenv/internal/config"
	"github.com/roboscene/taskenv/internal/dispatcher"
	"github.com/roboscene/taskenv/internal/storage"
	"github.com/roboscene/taskenv/internal/telemetry"
	"github.com/roboscene/taskenv/pkg/core"
)

func initStorage() error {
	storageCfg := config.GetStorageConfig()

	// Session-stamped dump file next to the logs unless configured otherwise
	if storageCfg.Type == "sqlite" && storageCfg.SQLite.DumpPath == "" {
		storageCfg.SQLite.DumpPath = filepath.Join(
			viper.GetString("logsDir"),
			fmt.Sprintf("%s_%s.db", BinaryName, SessionStartTime.Format("20060102_150405")),
		)
	}
	if storageCfg.Type == "websocket" {
		storageCfg.WebSocket.URL = httpToWS(storageCfg.WebSocket.URL)
	}

	backend, err := storage.NewBackend(storageCfg, SlogManager)
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return err
	}
	storageBackend = backend
	if err := storageBackend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		return err
	}
	Logger.Info("Storage backend initialized", "type", storageCfg.Type)

	registerStorageHandlers(eventDispatcher)
	return nil
}

// initTelemetry connects the InfluxDB manager when enabled. Failure to reach
// the server is not fatal; points spill into the gzip backup file.
func initTelemetry() {
	if !viper.GetBool("influx.enabled") {
		return
	}

	backupPath := filepath.Join(
		viper.GetString("logsDir"),
		fmt.Sprintf("%s_telemetry_%s.lp.gz", BinaryName, SessionStartTime.Format("20060102_150405")),
	)
	influxManager = telemetry.NewManager(ConsoleLogger, backupPath)
	if err := influxManager.Connect(); err != nil {
		Logger.Warn("Telemetry disabled", "error", err)
		influxManager = nil
	}
}

// registerStorageHandlers routes recorder events to the storage backend and,
// when connected, to InfluxDB. Step evaluations run behind a buffered queue
// so stepping never waits on storage.
func registerStorageHandlers(d *dispatcher.Dispatcher) {
	d.Register("start_episode", func(e dispatcher.Event) (any, error) {
		ep, ok := e.Payload.(*core.EpisodeRecord)
		if !ok {
			return nil, fmt.Errorf("start_episode: unexpected payload %T", e.Payload)
		}
		if influxManager != nil {
			if err := influxManager.WriteSettleTiming(context.Background(), ep.Task, ep); err != nil {
				Logger.Warn("Failed to write settle timing", "error", err)
			}
		}
		return nil, storageBackend.StartEpisode(ep)
	})

	d.Register("add_object", func(e dispatcher.Event) (any, error) {
		o, ok := e.Payload.(*core.ObjectRecord)
		if !ok {
			return nil, fmt.Errorf("add_object: unexpected payload %T", e.Payload)
		}
		return nil, storageBackend.AddObject(o)
	})

	d.Register("step_evaluation", func(e dispatcher.Event) (any, error) {
		s, ok := e.Payload.(*core.StepEvaluation)
		if !ok {
			return nil, fmt.Errorf("step_evaluation: unexpected payload %T", e.Payload)
		}
		if influxManager != nil {
			task := ""
			if ep := EpisodeContext.Episode(); ep != nil {
				task = ep.Task
			}
			if err := influxManager.WriteStepEvaluation(context.Background(), task, s); err != nil {
				Logger.Warn("Failed to write step telemetry", "error", err)
			}
		}
		return nil, storageBackend.RecordStepEvaluation(s)
	}, dispatcher.Buffered(4096), dispatcher.Blocking())

	d.Register("end_episode", func(e dispatcher.Event) (any, error) {
		sum, ok := e.Payload.(*core.EpisodeSummary)
		if !ok {
			return nil, fmt.Errorf("end_episode: unexpected payload %T", e.Payload)
		}
		return nil, storageBackend.EndEpisode(sum)
	})
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
