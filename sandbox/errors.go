package sandbox

import "fmt"

// ErrorKind classifies a sandbox failure. Callers consume the kinds with
// an exhaustive switch at the boundary instead of inspecting error
// messages.
type ErrorKind int

// Failure classifications
const (
	// KindValidation marks caller-fixable input problems, raised before
	// any external process starts.
	KindValidation ErrorKind = iota

	// KindTimeout marks executions that exceeded their wall-clock budget.
	KindTimeout

	// KindExecution marks failures of the sandboxed workload itself.
	KindExecution

	// KindOutputProtocol marks sandbox output that could not be parsed,
	// an internal-fault signal.
	KindOutputProtocol

	// KindRuntimeUnavailable marks an isolation backend that is missing
	// or unreachable, an operational fault.
	KindRuntimeUnavailable
)

// String returns the kind name for logs.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTimeout:
		return "timeout"
	case KindExecution:
		return "execution"
	case KindOutputProtocol:
		return "output_protocol"
	case KindRuntimeUnavailable:
		return "runtime_unavailable"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by the sandbox engine. Message
// is always safe to surface to the caller; the wrapped cause carries the
// full internal detail and is only ever written to server-side logs.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the internal cause for logging.
func (e *Error) Unwrap() error {
	return e.cause
}

func newError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		cause:   cause,
	}
}

// AsError extracts a sandbox *Error from err if it is one.
func AsError(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
