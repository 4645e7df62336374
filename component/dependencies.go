package component

import (
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/spf13/afero"

	"github.com/c360/linesink/metric"
)

// Dependencies provides all external dependencies needed by components.
// Every field is optional.
type Dependencies struct {
	NATSConn        *nats.Conn              // NATS connection for NATS-backed inputs (can be nil)
	MetricsRegistry *metric.MetricsRegistry // Metrics registry for Prometheus (can be nil)
	Logger          *slog.Logger            // Structured logger (can be nil, defaults to slog.Default())
	Fs              afero.Fs                // Filesystem for file outputs (can be nil, defaults to the OS filesystem)
}

// GetLogger returns the configured logger or a default logger if none is provided
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// GetLoggerWithComponent returns a logger configured with component context
func (d *Dependencies) GetLoggerWithComponent(componentName string) *slog.Logger {
	return d.GetLogger().With("component", componentName)
}

// GetFs returns the configured filesystem or the OS filesystem
func (d *Dependencies) GetFs() afero.Fs {
	if d.Fs != nil {
		return d.Fs
	}
	return afero.NewOsFs()
}
