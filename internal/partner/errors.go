package partner

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a partner API failure for callers deciding whether
// to retry, re-authenticate or drop the item.
type Kind string

const (
	KindAuth        Kind = "auth"
	KindRateLimited Kind = "rate_limited"
	KindNotFound    Kind = "not_found"
	KindValidation  Kind = "validation"
	KindServer      Kind = "server"
	KindNetwork     Kind = "network"
)

// Error is a typed partner API error.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error

	// retryAfter is the server-mandated wait on 429 responses.
	retryAfter time.Duration
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("partner api %s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("partner api %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure class is worth retrying.
func (e *Error) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindServer || e.Kind == KindNetwork
}

// KindOf extracts the failure kind from any error, defaulting to
// network for non-partner errors.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindNetwork
}

func kindForStatus(status int) Kind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 404:
		return KindNotFound
	case status == 429:
		return KindRateLimited
	case status >= 500:
		return KindServer
	default:
		return KindValidation
	}
}
