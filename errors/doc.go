// Package errors provides standardized error handling for linesink components.
//
// # Overview
//
// Errors carry two independent labels:
//
//   - Class: Transient (may succeed on a later delivery), Invalid (bad input or
//     configuration, redelivering the same data will fail again) and Fatal
//     (unrecoverable, stop processing).
//   - Kind: the stage of the sink write path that failed. Configuration, Encode,
//     Transform or IO.
//
// The host engine uses the class to decide how loudly to report a failure and the
// kind to label metrics and fail insights.
//
// # Error Wrapping Pattern
//
// All wrapping follows the format:
//
//	"component.method: action failed: %w"
//
// Kind-aware wrappers:
//
//	errors.WrapConfiguration(err, "FileSink", "NewSink", "parse config")
//	errors.WrapEncode(err, "FileSink", "OnEvent", "encode value")
//	errors.WrapTransform(err, "FileSink", "OnEvent", "postprocess value")
//	errors.WrapIO(err, "FileSink", "OnEvent", "flush")
//
// Class-only wrappers (WrapTransient, WrapInvalid, WrapFatal) and the plain Wrap
// remain available for code outside the write path.
//
// # Checking Errors
//
//	if errors.IsConfiguration(err) {
//	    // the sink never became active
//	}
//	switch errors.KindOf(err) {
//	case errors.KindEncode, errors.KindTransform:
//	    // the event is rejected
//	case errors.KindIO:
//	    // the output is in trouble
//	}
//
// KindOf reports the kind of the outermost ClassifiedError in the chain.
// Standard library errors.Is and errors.As work through every wrapper.
package errors
