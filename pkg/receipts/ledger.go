package receipts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	"github.com/rs/zerolog"
)

type LedgerConfig struct {
	RunsDir     string
	ReceiptsDir string
	Now         func() time.Time
	// NewID names receipt files. It defaults to time-ordered UUIDv7 values.
	NewID  func() (string, error)
	Logger *zerolog.Logger
}

type Ledger struct {
	runsDir     string
	receiptsDir string
	now         func() time.Time
	newID       func() (string, error)
	logger      zerolog.Logger
}

// NewLedger creates a new Ledger.
func NewLedger(config LedgerConfig) *Ledger {
	runsDir := config.RunsDir
	if runsDir == "" {
		runsDir = "runs"
	}
	receiptsDir := config.ReceiptsDir
	if receiptsDir == "" {
		receiptsDir = "receipts"
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}
	newID := config.NewID
	if newID == nil {
		newID = newReceiptID
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	return &Ledger{
		runsDir:     runsDir,
		receiptsDir: receiptsDir,
		now:         now,
		newID:       newID,
		logger:      logger,
	}
}

func newReceiptID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Timestamp returns the current time in TimestampLayout.
func (l *Ledger) Timestamp() string {
	return l.now().UTC().Format(TimestampLayout)
}

// LogPath returns the audit log for the UTC day containing day.
func (l *Ledger) LogPath(day time.Time) string {
	return filepath.Join(l.runsDir, fmt.Sprintf("devnet_%s.csv", day.UTC().Format("2006-01-02")))
}

// Record writes receipt to a new file and appends its audit log line. The two
// writes are independent; a crash in between leaves one without the other.
func (l *Ledger) Record(receipt Receipt) (string, error) {
	now := l.now()
	if receipt.Timestamp == "" {
		receipt.Timestamp = now.UTC().Format(TimestampLayout)
	}
	if receipt.Status == "" {
		receipt.Status = defaultStatus(receipt.Tx)
	}

	line := []string{receipt.File, receipt.CID, receipt.SHA256, receipt.Tx, receipt.Timestamp}
	for _, field := range line {
		if strings.ContainsAny(field, ",\r\n") {
			return "", fmt.Errorf("%w: %q", ErrInvalidField, field)
		}
	}

	path, err := l.writeReceipt(receipt)
	if err != nil {
		return "", err
	}

	logPath := l.LogPath(now)
	if err := appendLine(logPath, strings.Join(line, ",")); err != nil {
		return path, err
	}

	l.logger.Debug().Str("receipt", path).Str("log", logPath).Msg("receipt recorded")
	return path, nil
}

func (l *Ledger) writeReceipt(receipt Receipt) (string, error) {
	if err := os.MkdirAll(l.receiptsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create receipts dir: %w", err)
	}

	id, err := l.newID()
	if err != nil {
		return "", fmt.Errorf("failed to generate receipt id: %w", err)
	}

	payload, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode receipt: %w", err)
	}

	path := filepath.Join(l.receiptsDir, id+"-receipt.json")
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create receipt: %w", err)
	}
	if _, err := file.Write(payload); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to write receipt: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to write receipt: %w", err)
	}

	return path, nil
}

func appendLine(path string, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create runs dir: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock %s: %w", path, err)
	}
	defer lock.Unlock()

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	if _, err := file.WriteString(line + "\n"); err != nil {
		file.Close()
		return fmt.Errorf("failed to append audit log: %w", err)
	}
	return file.Close()
}

// LatestEntry returns the last line of the audit log for day.
func (l *Ledger) LatestEntry(day time.Time) (Entry, string, error) {
	path := l.LogPath(day)
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, path, ErrNoLog
		}
		return Entry{}, path, fmt.Errorf("failed to read audit log: %w", err)
	}

	var last string
	for _, line := range bytes.Split(raw, []byte("\n")) {
		if trimmed := strings.TrimSpace(string(line)); trimmed != "" {
			last = trimmed
		}
	}
	if last == "" {
		return Entry{}, path, ErrEmptyLog
	}

	entry, err := ParseEntry(last)
	if err != nil {
		return Entry{}, path, &CorruptRecordError{Path: path, Line: last, Cause: err}
	}
	return entry, path, nil
}

// ParseEntry parses one audit log line. file, cid, sha256 and tx are
// required and cid must decode.
func ParseEntry(line string) (Entry, error) {
	fields := strings.Split(line, ",")
	for len(fields) < 5 {
		fields = append(fields, "")
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	entry := Entry{File: fields[0], CID: fields[1], SHA256: fields[2], Tx: fields[3], Timestamp: fields[4]}
	if entry.File == "" || entry.CID == "" || entry.SHA256 == "" || entry.Tx == "" {
		return Entry{}, fmt.Errorf("expected file,cid,sha256,tx fields")
	}
	if _, err := cid.Decode(entry.CID); err != nil {
		return Entry{}, fmt.Errorf("invalid cid %q: %w", entry.CID, err)
	}
	return entry, nil
}

func defaultStatus(tx string) string {
	if strings.TrimSpace(tx) != "" {
		return StatusSubmitted
	}
	return StatusNotApplicable
}
