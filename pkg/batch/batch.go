package batch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wakama-oracle/anchor-sdk-go/pkg/hashstore"
)

const (
	DocumentType    = "wakama.sensor.batch"
	DocumentVersion = 1

	SourceIngest    = "ingest"
	SourceSimulated = "simulated"
)

var ErrNoBatches = errors.New("no batch json found")

type Point struct {
	T int64   `json:"t"`
	V float64 `json:"v"`
}

type Series struct {
	Kind   string  `json:"kind"`
	Points []Point `json:"points"`
}

type Site struct {
	Zone   string `json:"zone"`
	Field  string `json:"field"`
	Device string `json:"device"`
}

type Batch struct {
	Type      string            `json:"type"`
	Version   int               `json:"version"`
	Source    string            `json:"source"`
	Site      Site              `json:"site"`
	Timestamp string            `json:"timestamp"`
	Readings  []Series          `json:"readings"`
	Count     int               `json:"count"`
	TsMin     int64             `json:"ts_min"`
	TsMax     int64             `json:"ts_max"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Finalize sets Count, TsMin and TsMax from the readings.
func (b *Batch) Finalize() {
	b.Count = 0
	b.TsMin = 0
	b.TsMax = 0

	first := true
	for _, series := range b.Readings {
		for _, point := range series.Points {
			b.Count++
			if first || point.T < b.TsMin {
				b.TsMin = point.T
			}
			if first || point.T > b.TsMax {
				b.TsMax = point.T
			}
			first = false
		}
	}
}

// Header is the part of an ingested document that goes into the anchored
// memo. TsMin and TsMax are carried through verbatim.
type Header struct {
	Count int
	TsMin json.RawMessage
	TsMax json.RawMessage
}

// ReadHeader reads count, ts_min and ts_max from the document at path. A
// missing or non-integral count reads as zero.
func ReadHeader(path string) (Header, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Header{}, &hashstore.ReadError{Path: path, Cause: err}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Header{}, fmt.Errorf("invalid batch document %s: %w", path, err)
	}

	header := Header{
		TsMin: nonNull(fields["ts_min"]),
		TsMax: nonNull(fields["ts_max"]),
	}

	var count float64
	if rawCount, ok := fields["count"]; ok && json.Unmarshal(rawCount, &count) == nil {
		if count == math.Trunc(count) && count >= 0 && count <= math.MaxInt32 {
			header.Count = int(count)
		}
	}

	return header, nil
}

func nonNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}

// BatchesDir returns the directory batches are read from.
func BatchesDir(ingestDir string) string {
	return filepath.Join(ingestDir, "batches")
}

// NewestFile returns the lexically greatest *.json file in the batches
// directory of ingestDir.
func NewestFile(ingestDir string) (string, error) {
	dir := BatchesDir(ingestDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w in %s", ErrNoBatches, dir)
		}
		return "", fmt.Errorf("failed to read %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoBatches, dir)
	}

	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}
