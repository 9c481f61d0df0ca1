package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, cfg *LoggingConfig) (*CentralLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cl, err := newCentralLogger(cfg, &buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cl.Close() })
	return cl, &buf
}

func TestModuleLoggerConsoleOutput(t *testing.T) {
	t.Parallel()

	cl, buf := newTestLogger(t, &LoggingConfig{DefaultLevel: "debug", Console: &ConsoleOutput{Enabled: true, Level: "debug"}})
	log := cl.Module("scanner").Module("queue")

	log.Info("event accepted", String("label", "Ann Lee"), Int("depth", 2))

	out := buf.String()
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "module=scanner.queue")
	assert.Contains(t, out, `label="Ann Lee"`)
	assert.Contains(t, out, "depth=2")
	assert.NotContains(t, out, "time=")
}

func TestModuleLevelFiltering(t *testing.T) {
	t.Parallel()

	cl, buf := newTestLogger(t, &LoggingConfig{
		DefaultLevel: "info",
		Console:      &ConsoleOutput{Enabled: true, Level: "trace"},
		ModuleLevels: map[string]string{"kvstore": "trace"},
	})

	cl.Module("sheets").Debug("hidden")
	cl.Module("kvstore").Trace("sql query")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=TRACE")
}

func TestWithAndContextFields(t *testing.T) {
	t.Parallel()

	cl, buf := newTestLogger(t, &LoggingConfig{Console: &ConsoleOutput{Enabled: true, Level: "info"}})
	ctx := WithTraceID(context.Background(), "req-42")

	cl.Module("api").With(String("route", "/scans")).WithContext(ctx).Info("handled")

	out := buf.String()
	assert.Contains(t, out, "route=/scans")
	assert.Contains(t, out, "trace_id=req-42")
}

func TestSensitiveFieldsRedacted(t *testing.T) {
	t.Parallel()

	cl, buf := newTestLogger(t, &LoggingConfig{Console: &ConsoleOutput{Enabled: true, Level: "info"}})
	cl.Module("auth").Info("token stored",
		String("access_token", "ya29.a0AfH6SMBx"),
		String("detail", "Authorization: Bearer abcdef123456"))

	out := buf.String()
	assert.NotContains(t, out, "ya29.a0AfH6SMBx")
	assert.NotContains(t, out, "abcdef123456")
	assert.Contains(t, out, redacted)
}

func TestModuleFileOutputIsJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "sheets.log")
	cl, _ := newTestLogger(t, &LoggingConfig{
		Timezone:   "UTC",
		Console:    &ConsoleOutput{Enabled: false},
		FileOutput: &FileOutput{Enabled: false},
		ModuleOutputs: map[string]ModuleOutput{
			"sheets": {Enabled: true, FilePath: path, Level: "info"},
		},
	})

	cl.Module("sheets").Warn("append failed", Duration("elapsed", 1500*time.Millisecond))
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "append failed", entry["msg"])
	assert.Equal(t, "sheets", entry["module"])
	assert.Equal(t, "1.5s", entry["elapsed"])
	assert.True(t, strings.HasSuffix(entry["time"].(string), "Z"))
}

func TestInvalidTimezone(t *testing.T) {
	t.Parallel()

	_, err := newCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestApplyConfigDefaultsAddsModulesOnlyWithFileOutput(t *testing.T) {
	t.Parallel()

	cfg := &LoggingConfig{}
	applyConfigDefaults(cfg)
	assert.Empty(t, cfg.ModuleOutputs)
	assert.Equal(t, DefaultLogLevel, cfg.DefaultLevel)

	cfg = &LoggingConfig{FileOutput: &FileOutput{Enabled: true, Path: "x.log"}}
	applyConfigDefaults(cfg)
	assert.Equal(t, DefaultSheetsLogPath, cfg.ModuleOutputs["sheets"].FilePath)
	assert.Equal(t, DefaultAuthLogPath, cfg.ModuleOutputs["session"].FilePath)
}
