package advisor

import "fmt"

// ErrorCode represents specific advisor failure types.
type ErrorCode string

const (
	ErrNotConfigured ErrorCode = "ADVISOR_NOT_CONFIGURED"
	ErrUnavailable   ErrorCode = "ADVISOR_UNAVAILABLE"
	ErrRateLimited   ErrorCode = "ADVISOR_RATE_LIMITED"
	ErrEmptyResponse ErrorCode = "ADVISOR_EMPTY_RESPONSE"
)

// Error is a structured error for advisor failures.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether this error is retryable.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}
