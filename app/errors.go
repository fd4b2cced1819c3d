package app

import (
	"errors"
	"fmt"
)

var (
	ErrNoCasesDefined       = errors.New("no test cases defined")
	ErrInvalidMethod        = errors.New("invalid HTTP method")
	ErrContextReleased      = errors.New("request context already released")
	ErrInvalidBaseURL       = errors.New("invalid base URL")
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	ErrUnexpectedShape      = errors.New("response body is neither an object nor an array of objects")
	ErrMissingFields        = errors.New("missing fields")
	ErrUnexpectedType       = errors.New("unexpected type")
	ErrUnexpectedCount      = errors.New("unexpected number of items")
	ErrJSONMismatch         = errors.New("JSON mismatch")
	ErrNotIdempotent        = errors.New("repeated request returned a different body")

	ErrPrefixFilledButSuffixNot = errors.New("PatternPrefix is filled but PatternSuffix is not")
	ErrSuffixFilledButPrefixNot = errors.New("PatternSuffix is filled but PatternPrefix is not")
)

// TransportError reports a request that never produced an HTTP response:
// connection, DNS, timeout or body read failures.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// JSONDecodeError reports a response body that is not valid JSON.
type JSONDecodeError struct {
	Body []byte
	Err  error
}

func (e *JSONDecodeError) Error() string {
	body := string(e.Body)
	if len(body) > 64 {
		body = body[:64] + "..."
	}

	return fmt.Sprintf("invalid JSON body %q: %v", body, e.Err)
}

func (e *JSONDecodeError) Unwrap() error {
	return e.Err
}

// AssertionFailure is an expectation mismatch on a response. Err is one of the
// Err* sentinels so callers can match it with errors.Is.
type AssertionFailure struct {
	Err    error
	Detail string
	Diff   string
}

func (e *AssertionFailure) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}

	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *AssertionFailure) Unwrap() error {
	return e.Err
}

func failf(sentinel error, format string, args ...any) *AssertionFailure {
	return &AssertionFailure{Err: sentinel, Detail: fmt.Sprintf(format, args...)}
}
