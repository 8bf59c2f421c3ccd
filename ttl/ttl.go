// Package ttl provides retention arithmetic for time-bounded stores.
// It includes utilities for validating retention windows, computing the
// deadline of an entry and checking whether an entry has outlived it.
package ttl

import (
	"time"

	"github.com/gozephyr/vstorage/errors"
)

// NoRetention disables time-based eviction.
const NoRetention time.Duration = 0

// Clock returns the current time. Stores accept one so that tests and
// callers can supply their own notion of "now".
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time {
	return time.Now()
}

// Validate validates a retention window. Zero means no retention.
func Validate(retention time.Duration) error {
	if retention < 0 {
		return errors.WrapError("Validate", nil, errors.ErrInvalidRetention)
	}
	return nil
}

// Deadline returns the instant after which an entry created at createdAt
// is expired. The zero time means the entry never expires.
func Deadline(createdAt time.Time, retention time.Duration) time.Time {
	if retention <= NoRetention {
		return time.Time{}
	}
	return createdAt.Add(retention)
}

// IsExpired checks if an entry created at createdAt has outlived retention at now.
func IsExpired(createdAt time.Time, retention time.Duration, now time.Time) bool {
	deadline := Deadline(createdAt, retention)
	if deadline.IsZero() {
		return false
	}
	return now.After(deadline)
}

// Remaining returns how long an entry has left before it expires.
// It returns a negative duration for an expired entry and NoRetention
// when retention is disabled.
func Remaining(createdAt time.Time, retention time.Duration, now time.Time) time.Duration {
	deadline := Deadline(createdAt, retention)
	if deadline.IsZero() {
		return NoRetention
	}
	return deadline.Sub(now)
}
