package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is a retryable failure: transport errors, 5xx, rate limits, an open breaker.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrRejected is a non-retryable business rejection of a request.
	ErrRejected = errors.New("payment gateway rejected request")
	// ErrMalformedResponse means the gateway answered in a shape we cannot act on,
	// including SUCCESS without a display url.
	ErrMalformedResponse = errors.New("payment gateway returned malformed response")
)

// RejectedError carries the gateway result code of a rejection.
type RejectedError struct {
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", ErrRejected, e.Code, e.Message)
}

func (e *RejectedError) Unwrap() error {
	return ErrRejected
}
