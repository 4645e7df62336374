// Package websocket provides an input that receives events over WebSocket.
//
// # Overview
//
// The input runs an HTTP server and upgrades requests on the configured path.
// Every connected client sends JSON envelopes; data envelopes become events,
// and once the sink has handled an event its insight is written back to the
// connection that sent it as an ack or nack envelope.
//
//	┌──────────────┐  data {id, payload}   ┌──────────────────┐      ┌──────┐
//	│   Producer   ├──────────────────────►│  WebSocket Input ├─────►│ Sink │
//	│              │◄──────────────────────┤  :8081/ws        │◄─────┤      │
//	└──────────────┘  ack / nack {id}      └──────────────────┘      └──────┘
//
// # Message Protocol
//
// All messages share one envelope:
//
//	{
//	  "type": "data",
//	  "id": "msg-001",
//	  "timestamp": 1704844800000,
//	  "payload": {"sensor": "temp-01", "value": 23.5}
//	}
//
// A payload that is a JSON array is a batch: the event carries one value per
// element and the sink writes one line per value. The envelope ID becomes the
// event ID; when it is empty a fresh one is generated and reported in the ack.
//
// Replies:
//
//	{"type": "ack",  "id": "msg-001", "timestamp": 1704844800010}
//	{"type": "nack", "id": "msg-001", "timestamp": 1704844800010,
//	 "payload": {"reason": "delivery_failed", "error": "..."}}
//
// Nack reasons are invalid_envelope, invalid_payload, unknown_type,
// shutting_down and delivery_failed. A "slow" envelope is sent when the
// event queue is more than 80% full. Envelopes of type ack, nack and slow
// received from a client are ignored.
//
// # Configuration
//
//	{
//	  "addr": ":8081",
//	  "path": "/ws",
//	  "max_connections": 100,
//	  "queue_size": 1000,
//	  "auth": {"type": "bearer", "bearer_token_env": "WS_TOKEN"}
//	}
//
// Authentication is none, bearer or basic. Secrets are read from environment
// variables when a client connects and compared in constant time.
//
// # Shutdown
//
// Cancelling the Start context or calling Close stops the server, closes
// every connection and then closes the event channel. Events still queued
// are handled by the sink, but their insights are dropped because their
// connections are gone.
//
// # Metrics
//
//	linesink_websocket_input_messages_received_total{component,type}
//	linesink_websocket_input_insights_sent_total{component,kind}
//	linesink_websocket_input_connections_active
//	linesink_websocket_input_connections_total
//	linesink_websocket_input_queue_depth
//	linesink_websocket_input_errors_total{component,type}
package websocket
