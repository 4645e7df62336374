package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/c360/linesink/codec"
	"github.com/c360/linesink/component"
	"github.com/c360/linesink/errors"
	"github.com/c360/linesink/event"
	"github.com/c360/linesink/input"
	"github.com/c360/linesink/metric"
	"github.com/c360/linesink/sink"
)

// Config controls how the engine drives its sink
type Config struct {
	SinkID         string
	SinkURL        string
	Codec          string        // empty uses the sink's default codec
	Postprocessors []string      // passed to the sink's Init
	SignalInterval time.Duration // zero disables tick signals
}

// Engine feeds events from one source into one sink
type Engine struct {
	cfg     Config
	sink    sink.Sink
	source  input.Source
	codec   codec.Codec
	logger  *slog.Logger
	metrics *metric.Metrics

	delivered atomic.Int64
	failed    atomic.Int64
}

// New creates an engine. The codec is resolved here so that an unknown codec
// name fails before anything is opened.
func New(cfg Config, s sink.Sink, source input.Source, logger *slog.Logger,
	registry *metric.MetricsRegistry) (*Engine, error) {
	if s == nil || source == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Engine", "New", "sink and source required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	name := cfg.Codec
	if name == "" {
		name = s.DefaultCodec()
	}
	c, err := codec.Lookup(name)
	if err != nil {
		return nil, errors.Wrap(err, "Engine", "New", "codec lookup")
	}

	e := &Engine{
		cfg:    cfg,
		sink:   s,
		source: source,
		codec:  c,
		logger: logger.With("component", "engine", "sink_id", cfg.SinkID, "source", source.Name()),
	}
	if registry != nil {
		e.metrics = registry.CoreMetrics()
	}
	return e, nil
}

// Stats returns the number of acknowledged and failed events so far
func (e *Engine) Stats() (delivered, failed int64) {
	return e.delivered.Load(), e.failed.Load()
}

// Run initializes the sink, pumps events until ctx is cancelled or the
// source is exhausted, then drains and terminates the sink. Only Init and
// source start failures are returned; per-event failures become negative
// insights.
func (e *Engine) Run(ctx context.Context) error {
	defer e.shutdown()

	if err := e.sink.Init(ctx, sink.InitArgs{
		SinkID:         e.cfg.SinkID,
		SinkURL:        e.cfg.SinkURL,
		Postprocessors: e.cfg.Postprocessors,
	}); err != nil {
		e.recordStatus(component.StateFailed)
		return errors.Wrap(err, "Engine", "Run", "sink init")
	}

	events, err := e.source.Start(ctx)
	if err != nil {
		e.recordStatus(component.StateFailed)
		return errors.Wrap(err, "Engine", "Run", "source start")
	}

	e.recordStatus(component.StateStarted)
	e.logger.Info("Engine started",
		"codec", e.codec.Name(),
		"postprocessors", e.cfg.Postprocessors,
		"signal_interval", e.cfg.SignalInterval)

	var ticks <-chan time.Time
	if e.cfg.SignalInterval > 0 {
		ticker := time.NewTicker(e.cfg.SignalInterval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Engine stopping", "reason", ctx.Err())
			return nil

		case ev, ok := <-events:
			if !ok {
				e.logger.Info("Source exhausted")
				return nil
			}
			e.handleEvent(ctx, ev)

		case <-ticks:
			e.signal(ctx, event.NewSignal(event.SignalTick))
		}
	}
}

func (e *Engine) handleEvent(ctx context.Context, ev *event.Event) {
	start := time.Now()
	if e.metrics != nil {
		e.metrics.RecordEventReceived(e.source.Name())
	}

	if !e.sink.IsActive() {
		e.failed.Add(1)
		e.route(ev.InsightFail("sink inactive"))
		return
	}

	replies, err := e.sink.OnEvent(ctx, ev, e.codec)
	if err != nil {
		e.failed.Add(1)
		e.logger.Warn("Event not delivered",
			"event_id", ev.ID,
			"kind", errors.KindOf(err).String(),
			"error", err)
		e.route(ev.InsightFail(err.Error()))
		return
	}

	e.delivered.Add(1)
	if e.sink.AutoAck() {
		e.routeReplies(replies)
	} else {
		e.route(ev.InsightAck())
	}

	if e.metrics != nil {
		e.metrics.RecordEventDuration(e.cfg.SinkID, time.Since(start))
	}
}

func (e *Engine) signal(ctx context.Context, sig event.Signal) {
	replies, err := e.sink.OnSignal(ctx, sig)
	if err != nil {
		e.logger.Warn("Signal handling failed", "signal", sig.Kind.String(), "error", err)
		return
	}
	e.routeReplies(replies)
}

func (e *Engine) routeReplies(replies []sink.Reply) {
	for _, reply := range replies {
		if reply.Insight != nil {
			e.route(*reply.Insight)
		}
	}
}

func (e *Engine) route(insight event.Insight) {
	e.source.Insight(insight)
	if e.metrics != nil {
		e.metrics.RecordInsight(e.source.Name(), insight.Kind.String())
	}
}

// shutdown runs with a fresh context: the run context is usually cancelled by now.
func (e *Engine) shutdown() {
	ctx := context.Background()

	e.signal(ctx, event.NewSignal(event.SignalDrain))
	e.sink.Terminate(ctx)

	if err := e.source.Close(); err != nil {
		e.logger.Warn("Source close failed", "error", err)
	}

	e.recordStatus(component.StateStopped)
	delivered, failed := e.Stats()
	e.logger.Info("Engine stopped", "delivered", delivered, "failed", failed)
}

func (e *Engine) recordStatus(state component.State) {
	if e.metrics != nil {
		e.metrics.RecordComponentStatus(e.cfg.SinkID, int(state))
	}
}
