package status

import "errors"

// Code is a closed classification of session-layer failures.
// Codes are stable identifiers: callers branch on them instead of
// matching substrings of human-readable messages.
type Code uint8

const (
	// CodeOK indicates no error.
	CodeOK Code = 0

	// CodeScanFailure indicates the adapter scan itself failed.
	CodeScanFailure Code = 1

	// CodeDeviceNotFound indicates the scan completed but no device name
	// matched the target prefix.
	CodeDeviceNotFound Code = 2

	// CodeConnectFailure indicates the connection attempt to a discovered
	// device failed.
	CodeConnectFailure Code = 3

	// CodeCommandTimeout indicates a single command/response round trip
	// timed out.
	CodeCommandTimeout Code = 4

	// CodeConnectionTimeout indicates the overall discover+connect+fetch
	// budget was exceeded. Distinct from CodeCommandTimeout.
	CodeConnectionTimeout Code = 5

	// CodeHardwareUnavailable indicates no Bluetooth adapter is present.
	CodeHardwareUnavailable Code = 6

	// CodeHardwareDisabled indicates an adapter is present but powered off.
	CodeHardwareDisabled Code = 7

	// CodeNotConnected indicates an operation that requires an established
	// connection was issued without one.
	CodeNotConnected Code = 8

	// CodeUnknown is the fallback for unclassified failures.
	CodeUnknown Code = 9
)

// String returns the code name.
func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeScanFailure:
		return "SCAN_FAILURE"
	case CodeDeviceNotFound:
		return "DEVICE_NOT_FOUND"
	case CodeConnectFailure:
		return "CONNECT_FAILURE"
	case CodeCommandTimeout:
		return "COMMAND_TIMEOUT"
	case CodeConnectionTimeout:
		return "CONNECTION_TIMEOUT"
	case CodeHardwareUnavailable:
		return "HARDWARE_UNAVAILABLE"
	case CodeHardwareDisabled:
		return "HARDWARE_DISABLED"
	case CodeNotConnected:
		return "NOT_CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Error carries a Code together with the failing operation and an
// optional cause. It is the only error type the session surface returns.
type Error struct {
	// Code classifies the failure.
	Code Code

	// Op names the operation that failed (e.g. "session.GetValue").
	Op string

	// Msg is an optional human-readable detail.
	Msg string

	// Err is the underlying cause, if any.
	Err error
}

// Error returns the formatted message.
func (e *Error) Error() string {
	s := e.Code.String()
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error with the same code.
// This makes errors.Is(err, &Error{Code: CodeX}) work for code matching.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates an Error with a code, operation, and message.
func New(code Code, op, msg string) *Error {
	return &Error{Code: code, Op: op, Msg: msg}
}

// Wrap creates an Error wrapping an underlying cause.
// If err is already a *Error its code is preserved and only the
// operation context is added.
func Wrap(code Code, op string, err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return &Error{Code: se.Code, Op: op, Err: err}
	}
	return &Error{Code: code, Op: op, Err: err}
}

// CodeOf extracts the Code from an error.
// Returns CodeOK for nil and CodeUnknown for unclassified errors.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeUnknown
}
