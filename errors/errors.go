package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may succeed on a later delivery
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Kind names the stage of the sink write path an error came from.
type Kind int

const (
	// KindUnknown is used for errors that were not produced by a Wrap<Kind> helper
	KindUnknown Kind = iota
	// KindConfiguration covers missing or malformed configuration and unknown codec or postprocessor names
	KindConfiguration
	// KindEncode covers codec failures on a single value
	KindEncode
	// KindTransform covers postprocessor failures
	KindTransform
	// KindIO covers open, append, flush and close failures on the output handle
	KindIO
)

// String returns the label used for this kind in logs and metrics
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindEncode:
		return "encode"
	case KindTransform:
		return "transform"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Lifecycle errors
	ErrAlreadyStarted = errors.New("component already started")
	ErrNotStarted     = errors.New("component not started")
	ErrShuttingDown   = errors.New("component is shutting down")
	ErrNotActive      = errors.New("sink is not active")
	ErrAlreadyActive  = errors.New("sink already initialized")
	ErrSourceClosed   = errors.New("source closed")

	// Connection errors
	ErrNoConnection      = errors.New("no connection available")
	ErrConnectionLost    = errors.New("connection lost")
	ErrConnectionTimeout = errors.New("connection timeout")

	// Data processing errors
	ErrInvalidData      = errors.New("invalid data format")
	ErrParsingFailed    = errors.New("parsing failed")
	ErrUnsupportedValue = errors.New("unsupported value type")
	ErrEncodeFailed     = errors.New("encode failed")
	ErrTransformFailed  = errors.New("transform failed")

	// Storage errors
	ErrStorageFull        = errors.New("storage full")
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Configuration errors
	ErrInvalidConfig          = errors.New("invalid configuration")
	ErrMissingConfig          = errors.New("missing required configuration")
	ErrConfigNotFound         = errors.New("configuration not found")
	ErrUnknownCodec           = errors.New("unknown codec")
	ErrUnknownPostprocessor   = errors.New("unknown postprocessor")
	ErrUnknownComponent       = errors.New("unknown component factory")
	ErrUnsupportedInputSource = errors.New("unsupported input type")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Kind      Kind
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is transient
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrConnectionTimeout) ||
		errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"connection",
		"temporary",
		"unavailable",
		"busy",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	if errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingConfig) ||
		errors.Is(err, ErrStorageFull) ||
		errors.Is(err, fs.ErrPermission) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	fatalPatterns := []string{
		"fatal",
		"panic",
		"invalid config",
		"missing config",
		"no space left",
		"disk full",
	}

	for _, pattern := range fatalPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrInvalidData) ||
		errors.Is(err, ErrParsingFailed) ||
		errors.Is(err, ErrUnsupportedValue)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}

	if IsTransient(err) {
		return ErrorTransient
	}
	if IsFatal(err) {
		return ErrorFatal
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}

	return ErrorTransient
}

// KindOf returns the write-path stage recorded on the outermost classified error.
func KindOf(err error) Kind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}

// IsConfiguration reports whether err is a configuration error
func IsConfiguration(err error) bool { return err != nil && KindOf(err) == KindConfiguration }

// IsEncode reports whether err is a codec failure
func IsEncode(err error) bool { return err != nil && KindOf(err) == KindEncode }

// IsTransform reports whether err is a postprocessor failure
func IsTransform(err error) bool { return err != nil && KindOf(err) == KindTransform }

// IsIO reports whether err is an output handle failure
func IsIO(err error) bool { return err != nil && KindOf(err) == KindIO }

func newClassified(class ErrorClass, kind Kind, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Kind:      kind,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	return wrapAs(ErrorTransient, KindUnknown, err, component, method, action)
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	return wrapAs(ErrorFatal, KindUnknown, err, component, method, action)
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	return wrapAs(ErrorInvalid, KindUnknown, err, component, method, action)
}

// WrapConfiguration wraps an error as a configuration error. A sink that fails
// with one of these never becomes active.
func WrapConfiguration(err error, component, method, action string) error {
	return wrapAs(ErrorInvalid, KindConfiguration, err, component, method, action)
}

// WrapEncode wraps a codec failure
func WrapEncode(err error, component, method, action string) error {
	return wrapAs(ErrorInvalid, KindEncode, err, component, method, action)
}

// WrapTransform wraps a postprocessor failure
func WrapTransform(err error, component, method, action string) error {
	return wrapAs(ErrorInvalid, KindTransform, err, component, method, action)
}

// WrapIO wraps an output handle failure. Permission and disk-full failures
// are classified fatal, everything else transient.
func WrapIO(err error, component, method, action string) error {
	class := ErrorTransient
	if IsFatal(err) {
		class = ErrorFatal
	}
	return wrapAs(class, KindIO, err, component, method, action)
}

func wrapAs(class ErrorClass, kind Kind, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(class, kind, wrappedErr, component, method, wrappedErr.Error())
}
