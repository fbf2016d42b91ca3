package anchor

import (
	"context"
	"errors"
	"fmt"
)

type Status string

const (
	StatusUnknown       Status = "unknown"
	StatusSubmitted     Status = "submitted"
	StatusConfirmed     Status = "confirmed"
	StatusProcessed     Status = "processed"
	StatusFinalized     Status = "finalized"
	StatusNotApplicable Status = "n/a"
)

// ErrNoQuerier is the Confirmation error when no status source is configured.
var ErrNoQuerier = errors.New("no confirmation querier configured")

// Submitter signs and submits one memo-bearing transaction. key is stable
// across retries of the same logical memo and may be used to deduplicate.
type Submitter interface {
	Submit(ctx context.Context, memo []byte, key string) (string, error)
}

// MemoChecker is implemented by submitters that can reject a memo before
// anything is submitted.
type MemoChecker interface {
	CheckMemo(memo []byte) error
}

// StatusQuerier looks up the confirmation state of a submitted transaction.
type StatusQuerier interface {
	Status(ctx context.Context, signature string) (Confirmation, error)
}

// Confirmation is the result of a single status query. A failed query yields
// StatusUnknown with Err set.
type Confirmation struct {
	Status Status `json:"status"`
	Slot   *int64 `json:"slot"`
	Err    error  `json:"-"`
}

// AnchorError is returned once every submission attempt has failed.
type AnchorError struct {
	Cause error
}

func (e *AnchorError) Error() string {
	if e == nil {
		return "anchor failed"
	}
	return fmt.Sprintf("anchor failed: %v", e.Cause)
}

func (e *AnchorError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
