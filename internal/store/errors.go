package store

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel markers for the remote failure taxonomy. Adapters tag every error
// they surface with exactly one of these so the retry layer can classify
// without knowing store-specific status codes.
var (
	// ErrRateLimited marks quota or throttling rejections. Retried with
	// backoff.
	ErrRateLimited = errors.New("rate limited")
	// ErrTransient marks network-level or server-side failures expected to
	// clear on their own. Retried with backoff.
	ErrTransient = errors.New("transient failure")
	// ErrFatal marks auth, permission, and not-found failures. Never
	// retried.
	ErrFatal = errors.New("fatal remote failure")
)

// Class is the retry-relevant classification of a remote failure.
type Class int

const (
	ClassFatal Class = iota
	ClassRateLimited
	ClassTransient
)

// Classify maps an error onto the failure taxonomy. Unrecognized errors are
// treated as transient so a missing tag degrades to bounded retries rather
// than a silent abort.
func Classify(err error) Class {
	switch {
	case errors.Is(err, ErrFatal):
		return ClassFatal
	case errors.Is(err, ErrRateLimited):
		return ClassRateLimited
	default:
		return ClassTransient
	}
}

// Retryable reports whether the failure class permits another attempt.
func Retryable(err error) bool {
	return Classify(err) != ClassFatal
}

// Wrap tags err with the provided marker and operation context.
func Wrap(marker error, store, operation string, err error) error {
	detail := buildDetail(store, operation)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(store, operation string) string {
	parts := make([]string, 0, 2)
	if store = strings.TrimSpace(store); store != "" {
		parts = append(parts, store)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if len(parts) == 0 {
		return "remote failure"
	}
	return strings.Join(parts, ": ")
}

// rateLimitError carries a server-suggested wait alongside the rate-limit
// marker.
type rateLimitError struct {
	detail     string
	retryAfter time.Duration
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("%s: %s", ErrRateLimited.Error(), e.detail)
}

func (e *rateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// NewRateLimitError builds a rate-limit failure that carries the server's
// Retry-After hint.
func NewRateLimitError(store, operation string, retryAfter time.Duration) error {
	return &rateLimitError{detail: buildDetail(store, operation), retryAfter: retryAfter}
}

// RetryAfter extracts a server-suggested wait from err, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var rle *rateLimitError
	if errors.As(err, &rle) && rle.retryAfter > 0 {
		return rle.retryAfter, true
	}
	return 0, false
}
