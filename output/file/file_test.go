package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/linesink/codec"
	"github.com/c360/linesink/component"
	"github.com/c360/linesink/errors"
	"github.com/c360/linesink/event"
	"github.com/c360/linesink/metric"
	"github.com/c360/linesink/postprocessor"
	"github.com/c360/linesink/sink"
	"github.com/c360/linesink/testutil"
)

const failingPostprocessor = "always-fails"

func init() {
	postprocessor.MustRegister(failingPostprocessor, func() (postprocessor.Postprocessor, error) {
		return alwaysFails{}, nil
	})
}

type alwaysFails struct{}

func (alwaysFails) Name() string { return failingPostprocessor }

func (alwaysFails) Process(uint64, []byte) ([][]byte, error) {
	return nil, testutil.ErrMockFailed
}

func newMemSink(t *testing.T, fs afero.Fs) *Sink {
	t.Helper()
	s, err := NewSink(json.RawMessage(`{"file":"out.log"}`), component.Dependencies{Fs: fs})
	require.NoError(t, err)
	return s
}

func initSink(t *testing.T, s *Sink, postprocessors ...string) {
	t.Helper()
	require.NoError(t, s.Init(context.Background(), sink.InitArgs{SinkID: "test", Postprocessors: postprocessors}))
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(data)
}

func TestNewSink_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  json.RawMessage
	}{
		{"absent", nil},
		{"empty", json.RawMessage("")},
		{"null", json.RawMessage("null")},
		{"padded null", json.RawMessage("  null\n")},
		{"empty object", json.RawMessage(`{}`)},
		{"empty path", json.RawMessage(`{"file":""}`)},
		{"blank path", json.RawMessage(`{"file":"   "}`)},
		{"wrong type", json.RawMessage(`{"file":5}`)},
		{"bare string", json.RawMessage(`"out.log"`)},
		{"wrong field", json.RawMessage(`{"path":"out.log"}`)},
		{"malformed", json.RawMessage(`{"file":`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSink(tt.raw, component.Dependencies{Fs: afero.NewMemMapFs()})
			require.Error(t, err)
			assert.Nil(t, s)
			assert.True(t, errors.IsConfiguration(err), "got %v", err)
		})
	}
}

func TestNewSink_Valid(t *testing.T) {
	s := newMemSink(t, afero.NewMemMapFs())

	assert.Equal(t, "out.log", s.Path())
	assert.IsType(t, uninitialized{}, s.state)
	assert.Empty(t, s.chain)
	assert.False(t, s.Health().Healthy)
}

func TestSink_Capabilities(t *testing.T) {
	s := newMemSink(t, afero.NewMemMapFs())

	assert.True(t, s.IsActive())
	assert.True(t, s.AutoAck())
	assert.Equal(t, "json", s.DefaultCodec())

	replies, err := s.OnSignal(context.Background(), event.NewSignal(event.SignalTick))
	assert.NoError(t, err)
	assert.Empty(t, replies)

	initSink(t, s)
	replies, err = s.OnSignal(context.Background(), event.NewSignal(event.SignalTick))
	assert.NoError(t, err)
	assert.Empty(t, replies)
	assert.True(t, s.IsActive())
}

func TestSink_TwoValuesTwoLines(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newMemSink(t, fs)
	initSink(t, s)

	ev := event.New([]any{
		map[string]any{"a": 1},
		map[string]any{"b": 2},
	})

	replies, err := s.OnEvent(context.Background(), ev, codec.NewJSON())
	require.NoError(t, err)

	// Flushed before the acknowledgment is returned
	assert.Equal(t, "{\"a\":1}\n{\"b\":2}\n", readFile(t, fs, "out.log"))

	require.Len(t, replies, 1)
	require.NotNil(t, replies[0].Insight)
	assert.True(t, replies[0].Insight.IsAck())
	assert.Equal(t, ev.ID, replies[0].Insight.EventID)

	s.Terminate(context.Background())
	assert.Equal(t, "{\"a\":1}\n{\"b\":2}\n", readFile(t, fs, "out.log"))
}

func TestSink_GzipOneLinePerValue(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newMemSink(t, fs)
	initSink(t, s, "gzip")

	values := []any{map[string]any{"a": 1}, map[string]any{"b": 2}}
	replies, err := s.OnEvent(context.Background(), event.New(values), codec.NewJSON())
	require.NoError(t, err)
	require.Len(t, replies, 1)

	var want bytes.Buffer
	var packets [][]byte
	for _, v := range values {
		data, err := codec.NewJSON().Encode(v)
		require.NoError(t, err)
		out, err := postprocessor.Gzip{}.Process(0, data)
		require.NoError(t, err)
		require.Len(t, out, 1)
		packets = append(packets, out[0])
		want.Write(out[0])
		want.WriteByte('\n')
	}
	assert.Equal(t, want.String(), readFile(t, fs, "out.log"))

	decoded := make([]string, 0, len(packets))
	for _, packet := range packets {
		r, err := gzip.NewReader(bytes.NewReader(packet))
		require.NoError(t, err)
		plain, err := io.ReadAll(r)
		require.NoError(t, err)
		decoded = append(decoded, string(plain))
	}
	assert.Equal(t, []string{`{"a":1}`, `{"b":2}`}, decoded)
}

func TestSink_NValuesNLines(t *testing.T) {
	for _, n := range []int{1, 2, 5, 50} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			fs := afero.NewMemMapFs()
			s := newMemSink(t, fs)
			initSink(t, s, "ingest-ns", "base64")

			values := make([]any, n)
			for i := range values {
				values[i] = map[string]any{"i": i}
			}
			ev := event.New(values)

			replies, err := s.OnEvent(context.Background(), ev, codec.NewJSON())
			require.NoError(t, err)
			assert.Len(t, replies, 1)

			chain, err := postprocessor.Make([]string{"ingest-ns", "base64"})
			require.NoError(t, err)

			lines := strings.Split(strings.TrimSuffix(readFile(t, fs, "out.log"), "\n"), "\n")
			require.Len(t, lines, n)
			for i, v := range values {
				data, err := codec.NewJSON().Encode(v)
				require.NoError(t, err)
				packets, err := chain.Apply(ev.IngestNS, data)
				require.NoError(t, err)
				assert.Equal(t, string(bytes.Join(packets, nil)), lines[i])
			}
		})
	}
}

func TestSink_EventsAppendInOrder(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newMemSink(t, fs)
	initSink(t, s)

	for i := 0; i < 3; i++ {
		_, err := s.OnEvent(context.Background(), event.New([]any{i}), codec.NewJSON())
		require.NoError(t, err)
	}
	assert.Equal(t, "0\n1\n2\n", readFile(t, fs, "out.log"))
}

func TestSink_EncodeFailureAbortsEvent(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newMemSink(t, fs)
	initSink(t, s)

	ev := event.New([]any{"v1", "v2", "v3"})
	failing := testutil.FailOn(2)

	replies, err := s.OnEvent(context.Background(), ev, failing)
	require.Error(t, err)
	assert.Nil(t, replies)
	assert.True(t, errors.IsEncode(err))
	assert.ErrorIs(t, err, testutil.ErrMockEncode)
	assert.Equal(t, 2, failing.EncodeCalls, "values after the failing one are not attempted")

	// Redelivery re-appends every value; there is no dedup
	replies, err = s.OnEvent(context.Background(), ev, codec.NewJSON())
	require.NoError(t, err)
	assert.Len(t, replies, 1)

	s.Terminate(context.Background())
	assert.Equal(t, "\"v1\"\n\"v1\"\n\"v2\"\n\"v3\"\n", readFile(t, fs, "out.log"))
}

func TestSink_TransformFailureAbortsEvent(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newMemSink(t, fs)
	initSink(t, s, "gzip", failingPostprocessor)

	replies, err := s.OnEvent(context.Background(), event.New([]any{1, 2}), codec.NewJSON())
	require.Error(t, err)
	assert.Nil(t, replies)
	assert.True(t, errors.IsTransform(err))
	assert.ErrorIs(t, err, testutil.ErrMockFailed)

	s.Terminate(context.Background())
	assert.Empty(t, readFile(t, fs, "out.log"))
}

func TestSink_InitUnknownPostprocessor(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newMemSink(t, fs)

	err := s.Init(context.Background(), sink.InitArgs{Postprocessors: []string{"gzip", "rot13"}})
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
	assert.ErrorIs(t, err, errors.ErrUnknownPostprocessor)
	assert.IsType(t, uninitialized{}, s.state)

	exists, err := afero.Exists(fs, "out.log")
	require.NoError(t, err)
	assert.False(t, exists, "file is not opened when the chain is invalid")

	replies, err := s.OnEvent(context.Background(), event.New([]any{1}), codec.NewJSON())
	assert.NoError(t, err)
	assert.Empty(t, replies)
}

func TestSink_InitUnopenablePath(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{"directory", dir},
		{"missing parent", filepath.Join(dir, "missing", "out.log")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(Config{File: tt.path})
			require.NoError(t, err)

			s, err := NewSink(raw, component.Dependencies{Fs: afero.NewOsFs()})
			require.NoError(t, err)

			err = s.Init(context.Background(), sink.InitArgs{})
			require.Error(t, err)
			assert.True(t, errors.IsIO(err), "got %v", err)
			assert.IsType(t, uninitialized{}, s.state)

			replies, err := s.OnEvent(context.Background(), event.New([]any{1}), codec.NewJSON())
			assert.NoError(t, err)
			assert.Empty(t, replies)

			health := s.Health()
			assert.False(t, health.Healthy)
			assert.Equal(t, 1, health.ErrorCount)
			assert.NotEmpty(t, health.LastError)

			s.Terminate(context.Background())
		})
	}
}

func TestSink_InitInjectedOpenFailure(t *testing.T) {
	fs := testutil.NewFailingFs(afero.NewMemMapFs())
	fs.SetOpenErr(testutil.ErrMockIO)
	s := newMemSink(t, fs)

	err := s.Init(context.Background(), sink.InitArgs{})
	require.Error(t, err)
	assert.True(t, errors.IsIO(err))
	assert.ErrorIs(t, err, testutil.ErrMockIO)
}

func TestSink_OnEventBeforeInit(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newMemSink(t, fs)

	replies, err := s.OnEvent(context.Background(), event.New([]any{1}), codec.NewJSON())
	assert.NoError(t, err)
	assert.Empty(t, replies)

	exists, err := afero.Exists(fs, "out.log")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSink_FlushFailure(t *testing.T) {
	fs := testutil.NewFailingFs(afero.NewMemMapFs())
	s := newMemSink(t, fs)
	initSink(t, s)

	fs.SetSyncErr(testutil.ErrMockIO)

	replies, err := s.OnEvent(context.Background(), event.New([]any{1}), codec.NewJSON())
	require.Error(t, err)
	assert.Nil(t, replies)
	assert.True(t, errors.IsIO(err))
	assert.ErrorIs(t, err, testutil.ErrMockIO)
}

func TestSink_RecoversAfterWriteFailure(t *testing.T) {
	fs := testutil.NewFailingFs(afero.NewMemMapFs())
	s := newMemSink(t, fs)
	initSink(t, s)

	fs.SetWriteErr(testutil.ErrMockIO)
	replies, err := s.OnEvent(context.Background(), event.New([]any{"lost"}), codec.NewJSON())
	require.Error(t, err)
	assert.True(t, errors.IsIO(err))
	assert.Nil(t, replies)

	fs.SetWriteErr(nil)
	ev := event.New([]any{"kept"})
	replies, err = s.OnEvent(context.Background(), ev, codec.NewJSON())
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, ev.ID, replies[0].Insight.EventID)
	assert.True(t, replies[0].Insight.IsAck())

	s.Terminate(context.Background())
	assert.Equal(t, "\"kept\"\n", readFile(t, fs, "out.log"))
	assert.Equal(t, 1, s.Health().ErrorCount)
}

func TestSink_TerminateAfterFailedEventFlushesCleanly(t *testing.T) {
	fs := testutil.NewFailingFs(afero.NewMemMapFs())
	s := newMemSink(t, fs)
	initSink(t, s)

	_, err := s.OnEvent(context.Background(), event.New([]any{1}), codec.NewJSON())
	require.NoError(t, err)

	fs.SetWriteErr(testutil.ErrMockIO)
	_, err = s.OnEvent(context.Background(), event.New([]any{2}), codec.NewJSON())
	require.Error(t, err)
	fs.SetWriteErr(nil)

	s.Terminate(context.Background())
	assert.Equal(t, 1, s.Health().ErrorCount, "terminate flush does not repeat the earlier failure")
	assert.Equal(t, "1\n", readFile(t, fs, "out.log"))
}

func TestSink_TerminateSwallowsFailures(t *testing.T) {
	fs := testutil.NewFailingFs(afero.NewMemMapFs())
	s := newMemSink(t, fs)
	initSink(t, s)

	fs.SetSyncErr(testutil.ErrMockIO)
	fs.SetCloseErr(testutil.ErrMockIO)

	assert.NotPanics(t, func() { s.Terminate(context.Background()) })
	assert.IsType(t, terminated{}, s.state)
	assert.Equal(t, 2, s.Health().ErrorCount)
}

func TestSink_TerminateIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newMemSink(t, fs)
	initSink(t, s)

	_, err := s.OnEvent(context.Background(), event.New([]any{"x"}), codec.NewJSON())
	require.NoError(t, err)

	s.Terminate(context.Background())
	s.Terminate(context.Background())
	assert.IsType(t, terminated{}, s.state)

	// No way back from terminated
	err = s.Init(context.Background(), sink.InitArgs{})
	assert.Error(t, err)

	replies, err := s.OnEvent(context.Background(), event.New([]any{"y"}), codec.NewJSON())
	assert.NoError(t, err)
	assert.Empty(t, replies)
	assert.Equal(t, "\"x\"\n", readFile(t, fs, "out.log"))
}

func TestSink_TerminateBeforeInit(t *testing.T) {
	s := newMemSink(t, afero.NewMemMapFs())
	s.Terminate(context.Background())
	assert.IsType(t, terminated{}, s.state)
}

func TestSink_InitTwice(t *testing.T) {
	s := newMemSink(t, afero.NewMemMapFs())
	initSink(t, s)
	assert.Error(t, s.Init(context.Background(), sink.InitArgs{}))
}

func TestSink_TruncatesExistingFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "out.log", []byte("stale line\nanother\n"), 0644))

	s := newMemSink(t, fs)
	initSink(t, s)
	_, err := s.OnEvent(context.Background(), event.New([]any{1}), codec.NewJSON())
	require.NoError(t, err)

	assert.Equal(t, "1\n", readFile(t, fs, "out.log"))
}

func TestSink_EmbeddedNewlinesAreNotEscaped(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newMemSink(t, fs)
	initSink(t, s)

	_, err := s.OnEvent(context.Background(), event.New([]any{"a\nb"}), codec.String{})
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", readFile(t, fs, "out.log"))
}

func TestSink_SplitLinesFansOut(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newMemSink(t, fs)
	initSink(t, s, "split-lines")

	_, err := s.OnEvent(context.Background(), event.New([]any{"a\nb\n", "c"}), codec.String{})
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\n", readFile(t, fs, "out.log"))
}

func TestSink_CancelledContext(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newMemSink(t, fs)
	initSink(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	replies, err := s.OnEvent(ctx, event.New([]any{1}), codec.NewJSON())
	require.Error(t, err)
	assert.Nil(t, replies)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSink_NilCodecUsesDefault(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newMemSink(t, fs)
	initSink(t, s)

	_, err := s.OnEvent(context.Background(), event.New([]any{map[string]any{"k": "v"}}), nil)
	require.NoError(t, err)
	assert.Equal(t, "{\"k\":\"v\"}\n", readFile(t, fs, "out.log"))
}

func TestSink_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	fs := testutil.NewFailingFs(afero.NewMemMapFs())
	s, err := NewSink(json.RawMessage(`{"file":"out.log"}`), component.Dependencies{
		Fs:              fs,
		MetricsRegistry: registry,
	})
	require.NoError(t, err)
	initSink(t, s)

	_, err = s.OnEvent(context.Background(), event.New([]any{1, 22}), codec.NewJSON())
	require.NoError(t, err)
	_, err = s.OnEvent(context.Background(), event.New([]any{"x"}), testutil.FailOn(1))
	require.Error(t, err)

	m := s.metrics
	require.NotNil(t, m)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.events.WithLabelValues("file", "ok")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.events.WithLabelValues("file", "failed")))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.valuesWritten.WithLabelValues("file")))
	assert.Equal(t, 5.0, promtest.ToFloat64(m.bytesWritten.WithLabelValues("file")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.errors.WithLabelValues("file", "encode")))

	// A second file output on the same registry collides
	_, err = NewSink(json.RawMessage(`{"file":"other.log"}`), component.Dependencies{
		Fs:              fs,
		MetricsRegistry: registry,
	})
	assert.Error(t, err)
}

func TestSink_HealthAndDataFlow(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := newMemSink(t, fs)
	initSink(t, s)

	_, err := s.OnEvent(context.Background(), event.New([]any{1}), codec.NewJSON())
	require.NoError(t, err)

	health := s.Health()
	assert.True(t, health.Healthy)
	assert.Zero(t, health.ErrorCount)

	flow := s.DataFlow()
	assert.False(t, flow.LastActivity.IsZero())
	assert.Zero(t, flow.ErrorRate)

	meta := s.Meta()
	assert.Equal(t, "file", meta.Name)
	assert.Equal(t, "output", meta.Type)
	assert.Equal(t, []string{"file"}, s.ConfigSchema().Required)

	s.Terminate(context.Background())
	assert.False(t, s.Health().Healthy)
}

func TestRegister(t *testing.T) {
	registry := component.NewRegistry()
	require.NoError(t, Register(registry))

	comp, err := registry.CreateComponent("file", "output", json.RawMessage(`{"file":"out.log"}`),
		component.Dependencies{Fs: afero.NewMemMapFs()})
	require.NoError(t, err)

	s, ok := comp.(sink.Sink)
	require.True(t, ok)
	assert.Equal(t, "json", s.DefaultCodec())

	_, err = registry.CreateComponent("file", "output", nil, component.Dependencies{})
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}
