package ai

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a generation service failure. Only transient failures
// may be retried; rate limits and quota exhaustion always surface to the
// caller, since retrying them either worsens the pressure or requires an
// out-of-band fix.
type ErrorKind int

const (
	ErrorOther ErrorKind = iota
	ErrorRateLimited
	ErrorQuotaExceeded
	ErrorTransient
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorRateLimited:
		return "rate_limited"
	case ErrorQuotaExceeded:
		return "quota_exceeded"
	case ErrorTransient:
		return "transient"
	default:
		return "other"
	}
}

// UpstreamError wraps a generation service failure with its classification.
type UpstreamError struct {
	Kind ErrorKind
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("generation service (%s): %v", e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Kind returns the classification of the provided error, or ErrorOther when
// the error did not originate from the generation service.
func Kind(err error) ErrorKind {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Kind
	}
	return ErrorOther
}

// Retryable reports whether the error may be retried with backoff.
func Retryable(err error) bool {
	return Kind(err) == ErrorTransient
}
