// Package file provides the line-oriented file output.
//
// # Overview
//
// The file output accepts events from a host engine, encodes every value with
// a codec, runs the bytes through a postprocessor chain, and appends each
// resulting packet to a file as one line. The file is flushed and synced once
// per event, and only then is the event acknowledged.
//
// # Quick Start
//
//	s, err := file.NewSink(json.RawMessage(`{"file":"out.log"}`), deps)
//	if err != nil {
//	    return err
//	}
//	if err := s.Init(ctx, sink.InitArgs{SinkID: "out", Postprocessors: []string{"gzip", "base64"}}); err != nil {
//	    return err
//	}
//	defer s.Terminate(ctx)
//
//	replies, err := s.OnEvent(ctx, event.New([]any{map[string]any{"a": 1}}), codec.NewJSON())
//
// # Configuration
//
//   - file: path of the output file (required). It is created if absent and
//     truncated if present.
//
// An absent or null configuration is a configuration error.
//
// # Lifecycle
//
//	uninitialized --Init--> active --Terminate--> terminated
//
// A failed Init leaves the sink uninitialized. Outside the active state
// OnEvent writes nothing and acknowledges nothing.
//
// # Write Path
//
// For each value in order: encode, postprocess, append each packet plus '\n'.
// Then flush once. The first error aborts the event: remaining values are not
// attempted and no acknowledgment is returned. Lines already appended for
// earlier values of the aborted event stay in the write buffer and reach the
// file with the next flush.
//
// Framing assumes packets contain no raw '\n'. Binary postprocessors such as
// gzip can emit one; chain "base64" after them when the file must be split
// back into lines reliably.
//
// # Errors
//
// Errors carry a kind from the errors package:
//
//   - configuration: missing config, unknown postprocessor or codec
//   - encode: codec failure
//   - transform: postprocessor failure
//   - io: open, append, or flush failure
//
// Terminate never returns an error; flush and close failures are logged.
//
// # Metrics
//
// With a metrics registry in the dependencies, the output registers
// linesink_file_events_total{component,status},
// linesink_file_values_written_total, linesink_file_bytes_written_total,
// linesink_file_errors_total{component,kind} and
// linesink_file_flush_duration_seconds.
package file
