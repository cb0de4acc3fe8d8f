package backend

import (
	"errors"
	"fmt"
)

// Kind classifies why a backend call did not produce an answer.
type Kind string

const (
	// KindTransport means the request could not be sent or no response was received.
	KindTransport Kind = "transport"
	// KindInvalidResponseBody means a non-success status came with a body that is not JSON.
	KindInvalidResponseBody Kind = "invalid_response_body"
	// KindServerReported means a non-success status came with a JSON error body.
	KindServerReported Kind = "server_reported"
	// KindMalformedResponse means a success status came without an answer.
	KindMalformedResponse Kind = "malformed_response"
)

const (
	invalidJSONMessage       = "Invalid JSON response"
	invalidFormatMessage     = "Invalid response format from server."
	httpErrorMessageTemplate = "HTTP error %d"
	followupFailedMessage    = "Follow-up request failed"
)

// Failure is the error returned by Client for every unsuccessful call. Message is safe to show to
// the user.
type Failure struct {
	Kind       Kind
	Message    string
	StatusCode int

	cause error
}

func (f *Failure) Error() string {
	return f.Message
}

// Unwrap returns the underlying transport error, if any.
func (f *Failure) Unwrap() error {
	return f.cause
}

// KindOf returns the Kind of err when it is (or wraps) a *Failure, and false otherwise.
func KindOf(err error) (Kind, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return "", false
}

func transportFailure(err error) *Failure {
	return &Failure{
		Kind:    KindTransport,
		Message: err.Error(),
		cause:   err,
	}
}

func serverFailure(status int, detail, fallback string) *Failure {
	msg := detail
	if msg == "" {
		msg = fallback
	}
	if msg == "" {
		msg = fmt.Sprintf(httpErrorMessageTemplate, status)
	}
	return &Failure{
		Kind:       KindServerReported,
		Message:    msg,
		StatusCode: status,
	}
}
