package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/linesink/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func noEnv(string) (string, bool) { return "", false }

func TestLoad_Full(t *testing.T) {
	path := writeFile(t, "linesink.yaml", `
sink:
  id: audit
  type: file
  codec: json
  postprocessors: [gzip, base64]
  config:
    file: /tmp/audit.ndjson
input:
  type: nats
  config:
    subject: audit.>
    queue: writers
metrics:
  enabled: true
  addr: ":9100"
signal_interval: 10s
log:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "audit", cfg.Sink.ID)
	assert.Equal(t, "file", cfg.Sink.Type)
	assert.Equal(t, "json", cfg.Sink.Codec)
	assert.Equal(t, []string{"gzip", "base64"}, cfg.Sink.Postprocessors)
	assert.Equal(t, "nats", cfg.Input.Type)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
	assert.Equal(t, "/metrics", cfg.Metrics.Path, "default kept")
	assert.Equal(t, 10*time.Second, cfg.SignalInterval)
	assert.Equal(t, LogConfig{Level: "debug", Format: "text"}, cfg.Log)
	assert.Equal(t, "linesink://localhost/sink/file/audit", cfg.SinkURL())

	raw, err := cfg.Sink.RawConfig()
	require.NoError(t, err)
	assert.JSONEq(t, `{"file":"/tmp/audit.ndjson"}`, string(raw))

	raw, err = cfg.Input.RawConfig()
	require.NoError(t, err)
	var input map[string]any
	require.NoError(t, json.Unmarshal(raw, &input))
	assert.Equal(t, "audit.>", input["subject"])
}

func TestLoad_Defaults(t *testing.T) {
	path := writeFile(t, "empty.yaml", "")

	l := NewLoader()
	l.lookupEnv = noEnv
	cfg, err := l.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "reader", cfg.Input.Type)

	raw, err := cfg.Input.RawConfig()
	require.NoError(t, err)
	assert.Nil(t, raw, "absent settings leave factory defaults in place")
}

func TestLoader_Layers(t *testing.T) {
	base := writeFile(t, "base.yaml", `
sink:
  id: base
  config:
    file: base.ndjson
log:
  level: warn
`)
	override := writeFile(t, "prod.yml", `
sink:
  config:
    file: prod.ndjson
log:
  format: text
`)

	l := NewLoader()
	l.lookupEnv = noEnv
	l.AddLayer(base)
	l.AddLayer(override)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "base", cfg.Sink.ID)
	assert.Equal(t, "prod.ndjson", cfg.Sink.Config["file"])
	assert.Equal(t, LogConfig{Level: "warn", Format: "text"}, cfg.Log)
}

func TestLoader_EnvOverrides(t *testing.T) {
	path := writeFile(t, "linesink.yaml", "sink:\n  config:\n    file: from-file.ndjson\n")

	t.Setenv("LINESINK_SINK_FILE", "from-env.ndjson")
	t.Setenv("LINESINK_SINK_POSTPROCESSORS", "zstd, lz4")
	t.Setenv("LINESINK_INPUT_TYPE", "websocket")
	t.Setenv("LINESINK_METRICS_ENABLED", "true")
	t.Setenv("LINESINK_SIGNAL_INTERVAL", "250ms")
	t.Setenv("LINESINK_LOG_LEVEL", "error")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env.ndjson", cfg.Sink.Config["file"])
	assert.Equal(t, []string{"zstd", "lz4"}, cfg.Sink.Postprocessors)
	assert.Equal(t, "websocket", cfg.Input.Type)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.SignalInterval)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoader_BadEnvOverride(t *testing.T) {
	path := writeFile(t, "linesink.yaml", "")

	for key, val := range map[string]string{
		"LINESINK_METRICS_ENABLED": "sometimes",
		"LINESINK_SIGNAL_INTERVAL": "soon",
	} {
		t.Run(key, func(t *testing.T) {
			l := NewLoader()
			l.lookupEnv = func(k string) (string, bool) {
				if k == key {
					return val, true
				}
				return "", false
			}
			_, err := l.LoadFile(path)
			require.Error(t, err)
			assert.True(t, errors.IsConfiguration(err))
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "unknown field", file: "c.yaml", content: "sinks:\n  type: file\n"},
		{name: "malformed", file: "c.yaml", content: "sink: [unclosed\n"},
		{name: "wrong extension", file: "c.json", content: "{}"},
		{name: "unknown codec", file: "c.yaml", content: "sink:\n  codec: protobuf\n"},
		{name: "unknown postprocessor", file: "c.yaml", content: "sink:\n  postprocessors: [rot13]\n"},
		{name: "negative interval", file: "c.yaml", content: "signal_interval: -1s\n"},
		{name: "bad log level", file: "c.yaml", content: "log:\n  level: chatty\n"},
		{name: "bad metrics path", file: "c.yaml", content: "metrics:\n  enabled: true\n  path: metrics\n"},
		{name: "empty sink type", file: "c.yaml", content: "sink:\n  type: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			l := NewLoader()
			l.lookupEnv = noEnv
			_, err := l.LoadFile(path)
			require.Error(t, err)
			assert.True(t, errors.IsConfiguration(err), "got %v", err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.True(t, errors.IsIO(err))
	})
}

func TestLoader_ValidationDisabled(t *testing.T) {
	path := writeFile(t, "c.yaml", "log:\n  level: chatty\n")

	l := NewLoader()
	l.lookupEnv = noEnv
	l.EnableValidation(false)
	cfg, err := l.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "chatty", cfg.Log.Level)
	assert.Error(t, cfg.Validate())
}

func TestValidateConfigPath(t *testing.T) {
	assert.Error(t, validateConfigPath(""))
	assert.Error(t, validateConfigPath("../outside.yaml"))
	assert.Error(t, validateConfigPath(strings.Repeat("a", maxPathLen+1)+".yaml"))
	assert.NoError(t, validateConfigPath("configs/linesink.yaml"))
	assert.NoError(t, validateConfigPath("/etc/linesink/linesink.YML"))
}

func TestValidateDepth(t *testing.T) {
	var v any = "leaf"
	for i := 0; i < maxDepth+2; i++ {
		v = map[string]any{"k": v}
	}
	assert.Error(t, validateDepth(v, 0))
	assert.NoError(t, validateDepth(map[string]any{"a": []any{1, 2}}, 0))
}

func TestConfig_String(t *testing.T) {
	s := Default().String()
	assert.Contains(t, s, "type: file")
	assert.Contains(t, s, "signal_interval: 0s")
}
