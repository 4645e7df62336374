// Package linesink appends events to a file, one encoded record per line.
//
// # Overview
//
// A linesink process wires one input to one file sink:
//
//	┌─────────────┐     events     ┌─────────────┐   insights   ┌─────────────┐
//	│    Input    │ ─────────────→ │   Engine    │ ───────────→ │    Input    │
//	│ reader/udp/ │                │ codec + pp  │   ack/fail   │  (origin)   │
//	│ nats/ws     │                └──────┬──────┘              └─────────────┘
//	└─────────────┘                       │ OnEvent
//	                                      ↓
//	                               ┌─────────────┐
//	                               │  File Sink  │  packet + "\n" per value,
//	                               │             │  one flush per event
//	                               └─────────────┘
//
// For every value in an event the sink encodes it with the configured codec,
// runs the postprocessor chain, and writes each resulting packet followed by
// a newline. The file is flushed once per event. A successful write answers
// the event's origin with an ack; a failed one with a fail insight carrying
// the reason.
//
// # Packages
//
// Write path:
//   - codec: value encoders (json, string, yaml)
//   - postprocessor: byte transforms applied after encoding (base64,
//     compression, framing)
//   - sink: the sink contract and reply types
//   - output/file: the file sink
//   - engine: drives events from an input through the sink and routes insights
//
// Inputs:
//   - input/reader: newline-delimited JSON from a file or stdin
//   - input/udp: newline-delimited JSON datagrams
//   - input/nats: JSON messages from a NATS subject, with request/reply insights
//   - input/websocket: JSON frames from WebSocket clients, insights written back
//
// Infrastructure:
//   - component, componentregistry: factories and registration
//   - config: layered YAML configuration with LINESINK_* overrides
//   - errors: classified errors (transient, invalid, fatal) tagged with the
//     write-path stage that produced them
//   - metric, health: Prometheus metrics and the /health endpoint
//   - natsclient: NATS connection management
//   - pkg/retry: backoff for dialing brokers
//
// # Binary
//
//	linesink run --config linesink.yaml
//	linesink run -c linesink.yaml --validate
//	linesink version
package linesink
