package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/roboscene/taskenv/internal/config"
	"github.com/roboscene/taskenv/internal/dispatcher"
	"github.com/roboscene/taskenv/internal/episode"
	"github.com/roboscene/taskenv/internal/logging"
	intOtel "github.com/roboscene/taskenv/internal/otel"
	"github.com/roboscene/taskenv/internal/storage"
	"github.com/roboscene/taskenv/internal/telemetry"
)

// version info - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	BinaryName string = "taskenv"
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	// ConsoleLogger is the zerolog logger shared by the dispatcher and
	// telemetry manager
	ConsoleLogger zerolog.Logger

	// EpisodeContext tracks the active episode for log enrichment
	EpisodeContext *episode.Context = episode.NewContext()

	eventDispatcher *dispatcher.Dispatcher
	influxManager   *telemetry.Manager
	storageBackend  storage.Backend

	SessionStartTime time.Time = time.Now()

	LogFile *os.File
)

// setup loads the configuration and brings up logging, OTel and the event
// dispatcher. Runs before any subcommand.
func setup(configDir string) error {
	// Log to stdout until the log file is ready
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, viper.GetString("logLevel"), nil)
	Logger = SlogManager.Logger()

	if err := config.Load(configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	logsDir := viper.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return fmt.Errorf("creating logs directory: %w", err)
		}
	}

	logFilePath := logging.LogFilePath(logsDir, BinaryName, SessionStartTime)
	if _, err := os.Stat(logFilePath); err == nil {
		_ = os.Rename(logFilePath, logFilePath+".old")
	}

	var err error
	LogFile, err = os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("creating log file %s: %w", logFilePath, err)
	}

	// Initialize OTel provider if enabled (after log file is created)
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    LogFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else if otelCfg.Endpoint != "" {
			Logger.Info("OTel provider initialized", "file", logFilePath, "endpoint", otelCfg.Endpoint)
		} else {
			Logger.Info("OTel provider initialized", "file", logFilePath)
		}
	}

	// Re-setup logging with file output, optional OTel and episode context
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(LogFile, viper.GetString("logLevel"), otelLogProvider, episodeAttrs)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", logFilePath)

	ConsoleLogger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
	}).With().Timestamp().Logger()

	eventDispatcher, err = dispatcher.New(logging.NewDispatcherLogger(ConsoleLogger))
	if err != nil {
		return fmt.Errorf("creating event dispatcher: %w", err)
	}

	return nil
}

// episodeAttrs enriches every log record with the active episode and step.
func episodeAttrs() []slog.Attr {
	ep := EpisodeContext.Episode()
	if ep == nil {
		return nil
	}
	return []slog.Attr{
		slog.Uint64("episode", uint64(ep.ID)),
		slog.Int("step", EpisodeContext.Steps()),
	}
}

// shutdown flushes and releases everything setup and initStorage created.
func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if storageBackend != nil {
		if err := storageBackend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}
	if influxManager != nil {
		if err := influxManager.Close(); err != nil {
			Logger.Error("Failed to close telemetry manager", "error", err)
		}
	}
	if err := SlogManager.Flush(ctx); err != nil {
		Logger.Error("Failed to flush logs", "error", err)
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Error("Failed to shut down OTel provider", "error", err)
		}
	}
	if LogFile != nil {
		_ = LogFile.Close()
	}
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
