package verify

import (
	"fmt"
	"strings"
)

// StatusError is a non-2xx gateway response.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	if e == nil {
		return "gateway request failed"
	}
	return fmt.Sprintf("HTTP_%d", e.Status)
}

// IntegrityMismatchError reports content whose digest differs from the
// recorded one, or that no gateway could serve. It is never retried.
type IntegrityMismatchError struct {
	CID      string
	Expected string
	Observed string
	Gateway  string
	Errors   []string
}

func (e *IntegrityMismatchError) Error() string {
	if e == nil {
		return "integrity mismatch"
	}
	if e.Observed == "" {
		return fmt.Sprintf("no gateway served %s: %s", e.CID, strings.Join(e.Errors, "; "))
	}
	return fmt.Sprintf("sha256 mismatch for %s via %s: expected %s, got %s", e.CID, e.Gateway, e.Expected, e.Observed)
}

// ObjectTooLargeError is a gateway body longer than the verifier reads.
type ObjectTooLargeError struct {
	Limit int64
}

func (e *ObjectTooLargeError) Error() string {
	if e == nil {
		return "object too large"
	}
	return fmt.Sprintf("object exceeds %d bytes", e.Limit)
}
