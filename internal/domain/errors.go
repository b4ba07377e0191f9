package domain

import "errors"

// Error classes. Match with errors.Is.
var (
	// ErrConfig is returned when the process is misconfigured. Not retryable.
	ErrConfig = errors.New("config error")

	// ErrPrecondition is returned when an operation is attempted before its
	// requirements (wallet, account, valid amount) are met.
	ErrPrecondition = errors.New("precondition failed")

	// ErrUpstream is returned when an external fetch or SDK call fails.
	ErrUpstream = errors.New("upstream failure")

	// ErrValidation is returned for malformed data in a single record or entry.
	ErrValidation = errors.New("validation failed")
)

// Error is a classified error carrying a human-readable status message.
type Error struct {
	Class error
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

// Is matches the error class.
func (e *Error) Is(target error) bool {
	return target == e.Class
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ConfigError creates an ErrConfig-class error.
func ConfigError(msg string) error {
	return &Error{Class: ErrConfig, Msg: msg}
}

// PreconditionError creates an ErrPrecondition-class error.
func PreconditionError(msg string) error {
	return &Error{Class: ErrPrecondition, Msg: msg}
}

// UpstreamError creates an ErrUpstream-class error wrapping err.
func UpstreamError(msg string, err error) error {
	return &Error{Class: ErrUpstream, Msg: msg, Err: err}
}

// ValidationError creates an ErrValidation-class error wrapping err.
func ValidationError(msg string, err error) error {
	return &Error{Class: ErrValidation, Msg: msg, Err: err}
}
