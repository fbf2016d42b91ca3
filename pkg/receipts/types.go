package receipts

import (
	"errors"
	"fmt"
)

// TimestampLayout is the UTC ISO-8601 form used for receipts and log lines.
// Its fixed width keeps lexical and chronological order identical.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

const (
	StatusSubmitted     = "submitted"
	StatusNotApplicable = "n/a"
)

var (
	ErrNoLog        = errors.New("no audit log for day")
	ErrEmptyLog     = errors.New("audit log is empty")
	ErrInvalidField = errors.New("field contains a comma or line break")
)

type Receipt struct {
	CID         string `json:"cid"`
	SHA256      string `json:"sha256"`
	Tx          string `json:"tx"`
	File        string `json:"file"`
	Gateway     string `json:"gateway"`
	TeamID      string `json:"teamId,omitempty"`
	Team        string `json:"team,omitempty"`
	Source      string `json:"source"`
	PointsCount int    `json:"pointsCount"`
	Timestamp   string `json:"timestamp"`
	Status      string `json:"status"`
	Slot        *int64 `json:"slot"`
}

// Entry is one line of the daily audit log.
type Entry struct {
	File      string `json:"file"`
	CID       string `json:"cid"`
	SHA256    string `json:"sha256"`
	Tx        string `json:"tx"`
	Timestamp string `json:"timestamp,omitempty"`
}

// CorruptRecordError marks an unreadable receipt or a malformed log line.
// Callers skip such records rather than failing.
type CorruptRecordError struct {
	Path  string
	Line  string
	Cause error
}

func (e *CorruptRecordError) Error() string {
	if e == nil {
		return "corrupt record"
	}
	if e.Line != "" {
		return fmt.Sprintf("corrupt record in %s (%q): %v", e.Path, e.Line, e.Cause)
	}
	return fmt.Sprintf("corrupt record %s: %v", e.Path, e.Cause)
}

func (e *CorruptRecordError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
