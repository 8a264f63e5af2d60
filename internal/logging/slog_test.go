package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func TestSetup_FileTarget(t *testing.T) {
	restoreStdout := captureStdout(t)

	var logFile bytes.Buffer
	m := NewSlogManager()
	m.Setup(&logFile, "info", nil)
	m.Logger().Info("settle converged", "steps", 204)

	stdout := restoreStdout()

	assert.Contains(t, logFile.String(), "settle converged")
	assert.Contains(t, logFile.String(), "steps=204")
	// Setup's own "Logging initialized" line must also land in the file.
	assert.Empty(t, stdout, "stdout must stay quiet once a log file exists")
}

func TestSetup_StdoutFallback(t *testing.T) {
	restoreStdout := captureStdout(t)

	m := NewSlogManager()
	m.Setup(nil, "info", nil)
	m.Logger().Info("episode started", "seed", uint64(42))

	stdout := restoreStdout()

	assert.Contains(t, stdout, "episode started")
	assert.Contains(t, stdout, "seed=42")
}

func TestSetup_LevelFiltering(t *testing.T) {
	cases := []struct {
		level       string
		wantDebug   bool
		description string
	}{
		{"debug", true, "debug level passes everything"},
		{"info", false, "info level drops debug records"},
	}

	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			var buf bytes.Buffer
			m := NewSlogManager()
			m.Setup(&buf, tc.level, nil)

			m.Logger().Debug("contact pair pruned")
			m.Logger().Info("reward computed")

			out := buf.String()
			assert.Equal(t, tc.wantDebug, bytes.Contains(buf.Bytes(), []byte("contact pair pruned")), tc.description)
			assert.Contains(t, out, "reward computed")
		})
	}
}

func TestSetup_SecondCallSwitchesTarget(t *testing.T) {
	var bootBuf, fileBuf bytes.Buffer
	m := NewSlogManager()

	m.Setup(&bootBuf, "info", nil)
	m.Logger().Info("loading model catalogue")

	m.Setup(&fileBuf, "info", nil)
	m.Logger().Info("building scene")

	assert.Contains(t, bootBuf.String(), "loading model catalogue")
	assert.NotContains(t, bootBuf.String(), "building scene", "old target must not see records after re-setup")
	assert.Contains(t, fileBuf.String(), "building scene")
}

func TestLogger_BeforeSetup(t *testing.T) {
	m := NewSlogManager()
	assert.Equal(t, slog.Default(), m.Logger(), "pre-setup logger falls back to slog default")
}

func TestFlush_NilProvider(t *testing.T) {
	m := NewSlogManager()
	assert.NoError(t, m.Flush(context.Background()))
}

func TestFlush_WithProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider() // no exporter, exercises the non-nil path

	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", provider)

	assert.NoError(t, m.Flush(context.Background()))
}

func TestWriteLog_Levels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		t.Run(level, func(t *testing.T) {
			var buf bytes.Buffer
			m := NewSlogManager()
			m.Setup(&buf, "debug", nil)

			m.WriteLog("evaluateMoveNear", "distance check "+level, level)

			out := buf.String()
			assert.Contains(t, out, "distance check "+level)
			assert.Contains(t, out, "evaluateMoveNear")
		})
	}
}

func TestWriteLog_BeforeSetup(t *testing.T) {
	m := NewSlogManager()
	// Must not panic without a configured logger.
	m.WriteLog("reconfigure", "drawing target index", "info")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestMultiHandler_FansOut(t *testing.T) {
	var fileBuf, otelBuf bytes.Buffer
	fileH := slog.NewTextHandler(&fileBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	otelH := slog.NewTextHandler(&otelBuf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(fileH, otelH))
	logger.Info("object settled", "model", "banana")

	assert.Contains(t, fileBuf.String(), "object settled")
	assert.Contains(t, otelBuf.String(), "object settled")
}

func TestMultiHandler_DropsNilHandlers(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, nil)

	multi := NewMultiHandler(nil, h, nil)
	require.Len(t, multi.handlers, 1)

	slog.New(multi).Info("grasp check passed")
	assert.Contains(t, buf.String(), "grasp check passed")
}

func TestMultiHandler_Enabled(t *testing.T) {
	infoH := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo})
	debugH := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})

	infoOnly := NewMultiHandler(infoH)
	assert.False(t, infoOnly.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, infoOnly.Enabled(context.Background(), slog.LevelInfo))

	// Any enabled handler is enough.
	mixed := NewMultiHandler(infoH, debugH)
	assert.True(t, mixed.Enabled(context.Background(), slog.LevelDebug))

	empty := NewMultiHandler()
	assert.False(t, empty.Enabled(context.Background(), slog.LevelInfo))
}

func TestMultiHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(h).WithAttrs([]slog.Attr{slog.String("component", "settle")}))
	logger.Info("velocity below threshold")

	assert.Contains(t, buf.String(), "component=settle")
}

func TestMultiHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	multi := NewMultiHandler(h)

	logger := slog.New(multi.WithGroup("episode"))
	logger.Info("reset complete", "id", 3)
	assert.Contains(t, buf.String(), "episode.id=3")

	assert.Equal(t, multi, multi.WithGroup(""), "empty group name returns the handler unchanged")
}

// failingHandler always errors from Handle; used to prove fan-out continues
// past a broken sink.
type failingHandler struct {
	slog.Handler
}

func (h *failingHandler) Handle(_ context.Context, _ slog.Record) error {
	return errors.New("sink unavailable")
}

func (h *failingHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func TestMultiHandler_ContinuesPastFailedSink(t *testing.T) {
	var buf bytes.Buffer
	healthy := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(&failingHandler{}, healthy))
	logger.Info("step evaluated")

	assert.Contains(t, buf.String(), "step evaluated")
}

func TestSetup_WithOTelProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()

	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", provider)

	m.Logger().Info("exported to collector")
	assert.Contains(t, buf.String(), "exported to collector")
}

func TestSetup_EpisodeAttrProvider(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", nil, func() []slog.Attr {
		return []slog.Attr{slog.Uint64("episode", 7), slog.Int("step", 12)}
	})

	m.Logger().Info("cube lifted")

	out := buf.String()
	assert.Contains(t, out, "episode=7")
	assert.Contains(t, out, "step=12")
}

// captureStdout reroutes the package's stdout writer into a pipe and returns
// a function that restores it and yields everything captured.
func captureStdout(t *testing.T) func() string {
	t.Helper()

	r, w, err := osPipe()
	require.NoError(t, err)

	orig := osStdout
	osStdout = w

	return func() string {
		w.Close()
		osStdout = orig
		var buf bytes.Buffer
		buf.ReadFrom(r)
		r.Close()
		return buf.String()
	}
}
