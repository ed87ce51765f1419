package usecase

import "fmt"

type ErrorCode string

const (
	ErrorInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrorSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	ErrorRetrieval       ErrorCode = "RETRIEVAL_FAILURE"
	ErrorGeneration      ErrorCode = "GENERATION_FAILURE"
	ErrorAggregation     ErrorCode = "AGGREGATION_ANOMALY"
	ErrorRateLimited     ErrorCode = "RATE_LIMITED"
	ErrorInternal        ErrorCode = "INTERNAL_ERROR"
)

// User-facing messages for recovered failures. They never carry internal detail.
const (
	msgRetrievalFailure  = "Sorry, I couldn't search the CV library right now. Please try again in a moment."
	msgGenerationFailure = "Sorry, I couldn't put an answer together right now. Please try again."
	msgRateLimited       = "I'm receiving a lot of requests right now. Please try again in a moment."
	msgInternal          = "Something went wrong on our side. Please try again."
	msgModerated         = "I can only help with recruiting questions. Let's keep the conversation professional."
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// userMessage maps a recovered failure to the text shown in the error answer.
func userMessage(code ErrorCode) string {
	switch code {
	case ErrorRetrieval:
		return msgRetrievalFailure
	case ErrorGeneration:
		return msgGenerationFailure
	case ErrorRateLimited:
		return msgRateLimited
	default:
		return msgInternal
	}
}
