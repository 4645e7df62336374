// Package config loads the linesink application configuration.
//
// Configuration is YAML. Defaults are applied first, then each file layer,
// then LINESINK_* environment variables:
//
//	sink:
//	  id: audit
//	  type: file
//	  codec: json
//	  postprocessors: [gzip]
//	  config:
//	    file: /var/log/audit.ndjson
//	input:
//	  type: nats
//	  config:
//	    subject: audit.>
//	metrics:
//	  enabled: true
//	  addr: ":9090"
//	signal_interval: 10s
//	log:
//	  level: info
//	  format: json
//
// The sink and input config blocks are opaque here. They are re-encoded as
// JSON and handed to the component factory, which validates them.
//
// Loading with layers:
//
//	loader := config.NewLoader()
//	loader.AddLayer("base.yaml")
//	loader.AddLayer("production.yaml")
//	cfg, err := loader.Load()
package config
