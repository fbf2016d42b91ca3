package receipts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gofrs/flock"
)

// NoTimestamp is the lastTs placeholder of an empty snapshot.
const NoTimestamp = "—"

type Totals struct {
	Files     int    `json:"files"`
	CIDs      int    `json:"cids"`
	OnchainTx int    `json:"onchainTx"`
	LastTs    string `json:"lastTs"`
}

// Item is the dashboard view of one receipt.
type Item struct {
	CID         string `json:"cid"`
	Tx          string `json:"tx"`
	File        string `json:"file"`
	SHA256      string `json:"sha256"`
	Timestamp   string `json:"ts"`
	Status      string `json:"status"`
	Slot        *int64 `json:"slot"`
	Source      string `json:"source"`
	Gateway     string `json:"gateway,omitempty"`
	Team        string `json:"team,omitempty"`
	PointsCount *int64 `json:"pointsCount,omitempty"`
}

type Snapshot struct {
	Totals Totals `json:"totals"`
	Items  []Item `json:"items"`
	// Skipped lists receipt files left out as unreadable or incomplete.
	Skipped []*CorruptRecordError `json:"-"`
}

type WriteOptions struct {
	// Brotli also writes a precompressed copy next to the output as <path>.br.
	Brotli bool
}

// BuildSnapshot aggregates every *.json receipt in dir. A missing directory
// yields an empty snapshot.
func BuildSnapshot(dir string) (Snapshot, error) {
	snapshot := Snapshot{Items: []Item{}}

	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, fmt.Errorf("failed to read receipts dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		item, err := readItem(path, entry.Name())
		if err != nil {
			snapshot.Skipped = append(snapshot.Skipped, &CorruptRecordError{Path: path, Cause: err})
			continue
		}
		snapshot.Items = append(snapshot.Items, item)
	}

	sort.SliceStable(snapshot.Items, func(i, j int) bool {
		return snapshot.Items[i].Timestamp > snapshot.Items[j].Timestamp
	})

	snapshot.Totals = totalsOf(snapshot.Items)
	return snapshot, nil
}

func totalsOf(items []Item) Totals {
	totals := Totals{Files: len(items), LastTs: NoTimestamp}
	distinct := map[string]struct{}{}
	for _, item := range items {
		distinct[item.CID] = struct{}{}
		if item.Tx != "" {
			totals.OnchainTx++
		}
	}
	totals.CIDs = len(distinct)
	if len(items) > 0 {
		totals.LastTs = items[0].Timestamp
	}
	return totals
}

func readItem(path string, name string) (Item, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Item{}, err
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var fields map[string]any
	if err := decoder.Decode(&fields); err != nil {
		return Item{}, err
	}

	item := Item{
		CID:     stringField(fields, "cid", "IpfsHash"),
		Tx:      stringField(fields, "tx"),
		File:    stringField(fields, "file"),
		SHA256:  stringField(fields, "sha256"),
		Status:  stringField(fields, "status"),
		Source:  stringField(fields, "source", "sourceType"),
		Gateway: stringField(fields, "gateway", "gw"),
		Team:    stringField(fields, "team"),
	}
	if item.CID == "" {
		return Item{}, fmt.Errorf("receipt has no cid")
	}

	item.Timestamp = stringField(fields, "timestamp", "ts")
	if item.Timestamp == "" {
		item.Timestamp = strings.TrimSuffix(name, ".json")
	}
	if item.File == "" {
		item.File = name
	}
	if item.Status == "" {
		item.Status = defaultStatus(item.Tx)
	}
	item.Slot = intField(fields, "slot")
	item.PointsCount = intField(fields, "pointsCount", "count", "points")

	return item, nil
}

func stringField(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := fields[key].(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func intField(fields map[string]any, keys ...string) *int64 {
	for _, key := range keys {
		number, ok := fields[key].(json.Number)
		if !ok {
			continue
		}
		if value, err := number.Int64(); err == nil {
			return &value
		}
	}
	return nil
}

// WriteSnapshot replaces the file at path with snapshot. Concurrent writers
// are serialized with a lock file next to the output.
func WriteSnapshot(path string, snapshot Snapshot, options WriteOptions) error {
	if snapshot.Items == nil {
		snapshot.Items = []Item{}
	}

	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock %s: %w", path, err)
	}
	defer lock.Unlock()

	if err := replaceFile(path, func(w io.Writer) error {
		_, err := w.Write(payload)
		return err
	}); err != nil {
		return err
	}

	if !options.Brotli {
		return nil
	}
	return replaceFile(path+".br", func(w io.Writer) error {
		compressor := brotli.NewWriterLevel(w, brotli.BestCompression)
		if _, err := compressor.Write(payload); err != nil {
			return err
		}
		return compressor.Close()
	})
}

func replaceFile(path string, write func(io.Writer) error) error {
	temp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := temp.Name()

	if err := write(temp); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tempPath, 0o644); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
