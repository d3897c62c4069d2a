// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package zoho

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies why a Zoho request failed.
type ErrorKind string

const (
	// KindRejected is a non-retryable response (4xx other than 429, or a Zoho error code).
	KindRejected ErrorKind = "rejected"
	// KindRateLimited means every attempt was answered with HTTP 429.
	KindRateLimited ErrorKind = "rate_limited"
	// KindServerError means retries were exhausted on 500/502/503/504.
	KindServerError ErrorKind = "server_error"
	// KindTransport covers timeouts, connection failures and cancellation.
	KindTransport ErrorKind = "transport"
	// KindDecode means the response body was not a JSON object.
	KindDecode ErrorKind = "decode"
	// KindNoToken means the client holds no access token.
	KindNoToken ErrorKind = "no_token"
	// KindCircuitOpen means the circuit breaker rejected the call.
	KindCircuitOpen ErrorKind = "circuit_open"
)

// ErrNoToken is returned for requests on a client whose token exchange failed.
var ErrNoToken = errors.New("zoho: no access token")

// RequestError is the failure result of MakeRequest.
type RequestError struct {
	Kind     ErrorKind
	Status   int
	Attempts int
	URL      string
	Body     string
	Err      error
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("zoho request %s", e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempt(s)", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	} else if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure was transient, so that a later run
// may succeed where this one gave up.
func (e *RequestError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindServerError, KindTransport, KindCircuitOpen:
		return true
	default:
		return false
	}
}

// KindOf returns the ErrorKind of err, or "" if err is not a *RequestError.
func KindOf(err error) ErrorKind {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind
	}
	return ""
}

// IsRejected reports whether err is a permanent rejection by Zoho.
func IsRejected(err error) bool {
	return KindOf(err) == KindRejected
}

// isContextError reports whether err came from ctx cancellation or deadline.
func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
