package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/linesink/component"
	"github.com/c360/linesink/componentregistry"
	"github.com/c360/linesink/config"
	"github.com/c360/linesink/engine"
	"github.com/c360/linesink/health"
	"github.com/c360/linesink/input"
	"github.com/c360/linesink/metric"
	"github.com/c360/linesink/sink"
)

// pipeline is one input feeding one sink, plus the optional metrics server
type pipeline struct {
	engine *engine.Engine
	sink   sink.Sink
	source input.Source
	server *metric.Server
	logger *slog.Logger
}

func buildPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	metricsRegistry := metric.NewMetricsRegistry()

	registry := component.NewRegistry()
	if err := componentregistry.Register(registry); err != nil {
		return nil, fmt.Errorf("register components: %w", err)
	}
	logger.Debug("Component factories registered", "factories", registry.ListComponentTypes())

	deps := component.Dependencies{
		MetricsRegistry: metricsRegistry,
		Logger:          logger,
	}

	s, err := createSink(registry, cfg.Sink, deps)
	if err != nil {
		return nil, err
	}

	source, err := createSource(registry, cfg.Input, deps)
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(engine.Config{
		SinkID:         cfg.Sink.ID,
		SinkURL:        cfg.SinkURL(),
		Codec:          cfg.Sink.Codec,
		Postprocessors: cfg.Sink.Postprocessors,
		SignalInterval: cfg.SignalInterval,
	}, s, source, logger, metricsRegistry)
	if err != nil {
		_ = source.Close()
		return nil, fmt.Errorf("create engine: %w", err)
	}

	p := &pipeline{
		engine: eng,
		sink:   s,
		source: source,
		logger: logger,
	}
	if cfg.Metrics.Enabled {
		p.server = metric.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, metricsRegistry)
		p.server.SetHealthHandler(newHealthMonitor(cfg, s, source))
	}
	return p, nil
}

// newHealthMonitor watches whichever of the sink and input report health
func newHealthMonitor(cfg *config.Config, s sink.Sink, source input.Source) *health.Monitor {
	monitor := health.NewMonitor(appName)
	if r, ok := s.(health.Reporter); ok {
		monitor.Watch("sink/"+cfg.Sink.ID, r)
	}
	if r, ok := source.(health.Reporter); ok {
		monitor.Watch("input/"+source.Name(), r)
	}
	return monitor
}

func createSink(registry *component.Registry, cfg config.SinkConfig, deps component.Dependencies) (sink.Sink, error) {
	raw, err := cfg.RawConfig()
	if err != nil {
		return nil, err
	}
	comp, err := registry.CreateComponent(cfg.Type, "output", raw, deps)
	if err != nil {
		return nil, fmt.Errorf("create sink %s: %w", cfg.Type, err)
	}
	s, ok := comp.(sink.Sink)
	if !ok {
		return nil, fmt.Errorf("component %s is not a sink", cfg.Type)
	}
	return s, nil
}

func createSource(registry *component.Registry, cfg config.InputConfig, deps component.Dependencies) (input.Source, error) {
	raw, err := cfg.RawConfig()
	if err != nil {
		return nil, err
	}
	comp, err := registry.CreateComponent(cfg.Type, "input", raw, deps)
	if err != nil {
		return nil, fmt.Errorf("create input %s: %w", cfg.Type, err)
	}
	source, ok := comp.(input.Source)
	if !ok {
		return nil, fmt.Errorf("component %s is not an input", cfg.Type)
	}
	return source, nil
}

// run blocks until the input is exhausted, ctx is cancelled, or the metrics
// server fails. The engine terminates the sink and closes the input on exit.
func (p *pipeline) run(ctx context.Context, shutdownTimeout time.Duration) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		// The input running dry ends the whole pipeline
		defer cancel()
		return p.engine.Run(gctx)
	})

	if p.server != nil {
		p.logger.Info("Serving metrics", "address", p.server.Address())
		g.Go(p.server.Start)
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			return p.server.Stop(stopCtx)
		})
	}

	err := g.Wait()

	delivered, failed := p.engine.Stats()
	p.logger.Info("linesink stopped", "delivered", delivered, "failed", failed)
	return err
}

// discard releases a pipeline that was built but never run
func (p *pipeline) discard() {
	if err := p.source.Close(); err != nil {
		p.logger.Warn("Input close failed", "error", err)
	}
}
