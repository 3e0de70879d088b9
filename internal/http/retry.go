package http

import (
	"context"
	"errors"
	"math/rand"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrorType represents different classes of failures for the retry policy
type ErrorType int

const (
	// ErrorTypeSuccess indicates the request got a usable answer
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeCredential indicates authentication/authorization failure (401, 403)
	ErrorTypeCredential
	// ErrorTypeNetwork indicates connection issues (timeouts, resets, refused)
	ErrorTypeNetwork
	// ErrorTypeRetryable indicates server errors that can be retried (429, 502, 503, 504)
	ErrorTypeRetryable
	// ErrorTypeFatal indicates failures that should not be retried
	ErrorTypeFatal
)

// Classify determines the error type of a finished round trip.
//
// Action endpoints answer conflicts and validation failures with 4xx bodies
// the move engine needs to see, so every 4xx other than 429 is a success
// from the transport's point of view.
func Classify(resp *nethttp.Response, err error) ErrorType {
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return ErrorTypeNetwork
		}
		errStr := strings.ToLower(err.Error())
		switch {
		case strings.Contains(errStr, "connection reset"),
			strings.Contains(errStr, "connection refused"),
			strings.Contains(errStr, "broken pipe"),
			strings.Contains(errStr, "tls handshake timeout"),
			strings.Contains(errStr, "i/o timeout"),
			strings.Contains(errStr, "eof"):
			return ErrorTypeNetwork
		}
		return ErrorTypeFatal
	}

	switch {
	case resp == nil:
		return ErrorTypeFatal
	case resp.StatusCode == nethttp.StatusTooManyRequests:
		return ErrorTypeRetryable
	case resp.StatusCode == nethttp.StatusUnauthorized, resp.StatusCode == nethttp.StatusForbidden:
		return ErrorTypeCredential
	case resp.StatusCode == nethttp.StatusBadGateway,
		resp.StatusCode == nethttp.StatusServiceUnavailable,
		resp.StatusCode == nethttp.StatusGatewayTimeout:
		return ErrorTypeRetryable
	default:
		return ErrorTypeSuccess
	}
}

// CheckRetry is the retryablehttp.CheckRetry used by the action client.
//
// A 500 is not retried: move actions are not idempotent and a server that
// failed half way may already have moved the item. Credential failures are
// returned to the caller as-is.
func CheckRetry(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	switch Classify(resp, err) {
	case ErrorTypeNetwork, ErrorTypeRetryable:
		return true, nil
	case ErrorTypeFatal:
		return false, err
	default:
		return false, nil
	}
}

// Backoff returns exponential backoff duration with full jitter, honouring
// Retry-After on 429/503 answers.
//
// Formula: random(0, min(max, min * 2^attempt))
func Backoff(min, max time.Duration, attempt int, resp *nethttp.Response) time.Duration {
	if resp != nil && (resp.StatusCode == nethttp.StatusTooManyRequests || resp.StatusCode == nethttp.StatusServiceUnavailable) {
		if wait := retryablehttp.DefaultBackoff(min, max, attempt, resp); resp.Header.Get("Retry-After") != "" {
			return wait
		}
	}

	if attempt <= 0 || min <= 0 {
		return min
	}

	base := time.Duration(1<<uint(attempt)) * min
	if base > max || base <= 0 {
		base = max
	}

	return time.Duration(rand.Int63n(int64(base)))
}

// ErrorTypeName returns a human-readable name for an ErrorType
func ErrorTypeName(errType ErrorType) string {
	switch errType {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeCredential:
		return "credential"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeRetryable:
		return "retryable"
	case ErrorTypeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
