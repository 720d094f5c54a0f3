package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobscout/internal/config"
	"jobscout/internal/logging/adapters"
)

func TestMultiLoggerLevelsAndFields(t *testing.T) {
	logger, mem := NewCaptureLogger()
	logger.SetLevel(InfoLevel)

	child := logger.WithField("company", "Wayve").WithFields(map[string]interface{}{"run_id": "run_1"})
	child.Debug("suppressed")
	child.Info("fetched career page", map[string]interface{}{"status": "ok"})
	logger.Warn("parent entry")

	entries := mem.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "fetched career page", entries[0].Message)
	assert.Equal(t, map[string]interface{}{"company": "Wayve", "run_id": "run_1", "status": "ok"}, entries[0].Fields)
	assert.Empty(t, entries[1].Fields, "child fields must not leak into the parent")
	assert.Equal(t, []string{"parent entry"}, mem.Messages(WarnLevel))
}

func TestMultiLoggerAdapters(t *testing.T) {
	logger := NewMultiLogger()
	require.NoError(t, logger.AddAdapter(adapters.NewMemoryAdapter("a")))
	assert.Error(t, logger.AddAdapter(adapters.NewMemoryAdapter("a")))
	assert.Equal(t, map[string]string{"a": "ok"}, logger.AdapterHealth())

	require.NoError(t, logger.RemoveAdapter("a"))
	assert.Error(t, logger.RemoveAdapter("a"))
}

func TestStdoutAdapterFormats(t *testing.T) {
	var buf bytes.Buffer
	logger := NewMultiLogger()
	require.NoError(t, logger.AddAdapter(adapters.NewStdoutAdapter("json", adapters.StdoutConfig{Format: "json", Writer: &buf})))

	logger.Info("quota reserved", map[string]interface{}{"used": 3})

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "info", decoded["level"])
	assert.Equal(t, "quota reserved", decoded["message"])
	assert.EqualValues(t, 3, decoded["used"])

	buf.Reset()
	text := NewMultiLogger()
	require.NoError(t, text.AddAdapter(adapters.NewStdoutAdapter("text", adapters.StdoutConfig{Format: "text", Writer: &buf})))
	text.Warn("spooled", map[string]interface{}{"url": "https://acme.io/jobs/1", "attempts": 4})

	line := buf.String()
	assert.Contains(t, line, "[WARN] spooled")
	assert.True(t, strings.Index(line, "attempts=4") < strings.Index(line, "url="), "fields are sorted")

	buf.Reset()
	text.WithField("component", "gateway").Info("stored")
	line = buf.String()
	assert.Contains(t, line, "[INFO] gateway: stored")
	assert.NotContains(t, line, "component=")
}

func TestFileAdapterRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobscout.log")

	adapter, err := adapters.NewFileAdapter("file", adapters.FileConfig{
		FilePath:   path,
		Format:     "text",
		MaxSize:    64,
		MaxBackups: 2,
		Compress:   true,
	})
	require.NoError(t, err)

	logger := NewMultiLogger()
	require.NoError(t, logger.AddAdapter(adapter))
	for i := 0; i < 10; i++ {
		logger.Info("a log line long enough to trigger rotation quickly")
	}
	require.NoError(t, logger.Close())

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(files), 3, "active file plus at most two backups")
	assert.FileExists(t, path)
}

func TestManagerInitialize(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "debug"

	m := NewManager()
	require.NoError(t, m.Initialize(cfg))
	assert.Equal(t, DebugLevel, m.GetLogger().GetLevel())

	cfg.Logging.Adapters = append(cfg.Logging.Adapters, struct {
		Name    string                 `yaml:"name"`
		Type    string                 `yaml:"type"`
		Enabled bool                   `yaml:"enabled"`
		Options map[string]interface{} `yaml:"options"`
	}{Name: "bad", Type: "syslog", Enabled: true})
	assert.Error(t, NewManager().Initialize(cfg))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, WarnLevel, ParseLogLevel("WARNING"))
	assert.Equal(t, ErrorLevel, ParseLogLevel("error"))
	assert.Equal(t, InfoLevel, ParseLogLevel("verbose"))

	data, err := json.Marshal(LogEntry{Level: WarnLevel, Message: "m"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"level":"warn"`)
}
