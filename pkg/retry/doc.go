// Package retry wraps fallible network operations in a bounded exponential
// backoff with jitter.
//
// The delay before attempt i+1 (0-indexed) is BaseDelay * 2^i scaled by a
// uniform factor in [0.8, 1.2]. Every failed attempt that will be retried is
// logged before the executor sleeps. Operations must be safe to repeat from the
// caller's point of view: the executor does not deduplicate side effects.
package retry
