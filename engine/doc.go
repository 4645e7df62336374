// Package engine drives a single sink from a single source.
//
// The engine owns the sequential call discipline a sink relies on: Init once,
// then OnEvent and OnSignal one at a time, then Terminate. Replies from the
// sink are routed back to the source as insights; failed events are answered
// with a negative insight and the engine moves on to the next event.
//
//	eng, err := engine.New(engine.Config{SinkID: "out"}, fileSink, src, logger, registry)
//	if err != nil {
//		return err
//	}
//	return eng.Run(ctx)
//
// Run returns when ctx is cancelled or the source closes its event channel.
package engine
