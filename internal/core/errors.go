package core

// Error codes for domain errors.
const (
	ErrCodeBadRequest    = "bad_request"
	ErrCodeNotFound      = "not_found"
	ErrCodeNotRegistered = "not_registered"
	ErrCodeUnauthorized  = "unauthorized"
	ErrCodePersistFailed = "persist_failed"
	ErrCodeRateLimited   = "rate_limited"
	ErrCodeUnknownType   = "unknown_type"
	ErrCodeInternal      = "internal"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
	Details string
}

func (e *CoreError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// ErrorEvent converts err into the ReceiveError event sent to the caller.
func ErrorEvent(err *CoreError) *Event {
	return NewEvent(&ReceiveError{Code: err.Code, Message: err.Message, Details: err.Details})
}
