// Package retry provides the shared retry policy for refresh work.
// Both the single-item refresh path and the batch orchestrator classify
// failures through here instead of growing ad-hoc backoff loops
package retry

import (
	"time"

	perr "gitrank/internal/platform/errors"
)

// Class buckets an error by how it should be retried
type Class int

const (
	// ClassFatal is never retried (config errors, bad input)
	ClassFatal Class = iota

	// ClassConflict is a held refresh lease; retry after a fixed cooldown
	ClassConflict

	// ClassRateLimited is an upstream 429/403; retry with linear backoff
	ClassRateLimited

	// ClassTransient is a 5xx, transport, or store error; retry with a
	// smaller linear backoff
	ClassTransient
)

// Classify buckets err by perr code. Errors that are not ours (raw
// transport failures) count as transient
func Classify(err error) Class {
	if err == nil {
		return ClassFatal
	}
	switch perr.CodeOf(err) {
	case perr.ErrorCodeConflict:
		return ClassConflict
	case perr.ErrorCodeTooManyRequests, perr.ErrorCodeForbidden:
		return ClassRateLimited
	case perr.ErrorCodeUnavailable, perr.ErrorCodeUpstream:
		return ClassTransient
	case perr.ErrorCodeDB:
		// deadlocks and serialization failures retry, constraint
		// violations and the like do not
		if perr.Retryable(err) {
			return ClassTransient
		}
		return ClassFatal
	case perr.ErrorCodeConfig, perr.ErrorCodeValidation, perr.ErrorCodeInvalidArgument,
		perr.ErrorCodeUnauthorized, perr.ErrorCodeNotFound, perr.ErrorCodeJSON:
		return ClassFatal
	default:
		return ClassTransient
	}
}

// Policy parameterizes per-item retries
type Policy struct {
	// MaxAttempts bounds total tries per item; <=0 -> 1
	MaxAttempts int

	// ConflictCooldown is the fixed wait after a lock conflict
	ConflictCooldown time.Duration

	// RateLimitStep scales linearly with the attempt number for 429/403
	RateLimitStep time.Duration

	// TransientStep scales linearly with the attempt number for 5xx/transport
	TransientStep time.Duration
}

// Default returns the stock policy
func Default() Policy {
	return Policy{
		MaxAttempts:      4,
		ConflictCooldown: 2 * time.Second,
		RateLimitStep:    5 * time.Second,
		TransientStep:    time.Second,
	}
}

// Delay returns how long to wait before attempt+1 for the given class,
// and whether a retry should happen at all. attempt is zero-based
func (p Policy) Delay(c Class, attempt int) (time.Duration, bool) {
	maxA := p.MaxAttempts
	if maxA <= 0 {
		maxA = 1
	}
	if c == ClassFatal || attempt+1 >= maxA {
		return 0, false
	}
	switch c {
	case ClassConflict:
		return p.ConflictCooldown, true
	case ClassRateLimited:
		return time.Duration(attempt+1) * p.RateLimitStep, true
	default:
		return time.Duration(attempt+1) * p.TransientStep, true
	}
}
