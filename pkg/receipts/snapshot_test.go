package receipts

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/andybalholm/brotli"
)

func writeReceiptFile(t *testing.T, dir string, name string, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func receiptFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeReceiptFile(t, dir, "0001-receipt.json", `{"cid":"bafyA","tx":"sig1","file":"a.json","sha256":"aa","timestamp":"2025-03-01T10:00:00.000Z","status":"finalized","slot":7,"source":"ingest","gateway":"https://gw/ipfs","pointsCount":240}`)
	writeReceiptFile(t, dir, "0002-receipt.json", `{"IpfsHash":"bafyB","tx":"","file":"b.json","ts":"2025-03-03T10:00:00.000Z","sourceType":"simulated","gw":"https://gw2/ipfs","count":12}`)
	writeReceiptFile(t, dir, "0003-receipt.json", `{"cid":"bafyA","tx":"sig3","sha256":"aa","ts":"2025-03-02T10:00:00.000Z"}`)
	writeReceiptFile(t, dir, "0004-receipt.json", `{"tx":"sig4","file":"nocid.json","ts":"2025-03-09T00:00:00.000Z"}`)
	writeReceiptFile(t, dir, "0005-receipt.json", `{not json`)
	writeReceiptFile(t, dir, "2025-03-04T00:00:00.000Z.json", `{"cid":"bafyC","tx":"sig5"}`)
	writeReceiptFile(t, dir, "notes.txt", `ignored`)
	return dir
}

func TestBuildSnapshot(t *testing.T) {
	snapshot, err := BuildSnapshot(receiptFixture(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snapshot.Totals.Files != 4 {
		t.Fatalf("expected 4 files, got %d", snapshot.Totals.Files)
	}
	if snapshot.Totals.CIDs != 3 {
		t.Fatalf("expected 3 distinct cids, got %d", snapshot.Totals.CIDs)
	}
	if snapshot.Totals.OnchainTx != 3 {
		t.Fatalf("expected 3 on-chain txs, got %d", snapshot.Totals.OnchainTx)
	}
	if snapshot.Totals.LastTs != "2025-03-04T00:00:00.000Z" {
		t.Fatalf("unexpected lastTs %s", snapshot.Totals.LastTs)
	}
	if len(snapshot.Skipped) != 2 {
		t.Fatalf("expected 2 skipped receipts, got %d", len(snapshot.Skipped))
	}

	timestamps := make([]string, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		timestamps = append(timestamps, item.Timestamp)
	}
	if !sort.SliceIsSorted(timestamps, func(i, j int) bool { return timestamps[i] > timestamps[j] }) {
		t.Fatalf("items not sorted by timestamp descending: %v", timestamps)
	}

	fromFileName := snapshot.Items[0]
	if fromFileName.CID != "bafyC" || fromFileName.File != "2025-03-04T00:00:00.000Z.json" || fromFileName.Status != StatusSubmitted {
		t.Fatalf("unexpected fallback item %+v", fromFileName)
	}

	variant := snapshot.Items[1]
	if variant.CID != "bafyB" || variant.Source != "simulated" || variant.Gateway != "https://gw2/ipfs" {
		t.Fatalf("unexpected variant item %+v", variant)
	}
	if variant.Status != StatusNotApplicable {
		t.Fatalf("expected n/a status without tx, got %s", variant.Status)
	}
	if variant.PointsCount == nil || *variant.PointsCount != 12 {
		t.Fatalf("unexpected points count %v", variant.PointsCount)
	}

	oldest := snapshot.Items[3]
	if oldest.Slot == nil || *oldest.Slot != 7 || oldest.Status != "finalized" {
		t.Fatalf("unexpected oldest item %+v", oldest)
	}
}

func TestBuildSnapshotIsIdempotent(t *testing.T) {
	dir := receiptFixture(t)

	first, err := BuildSnapshot(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := BuildSnapshot(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	firstJSON, _ := json.Marshal(first)
	secondJSON, _ := json.Marshal(second)
	if !bytes.Equal(firstJSON, secondJSON) {
		t.Fatalf("snapshots differ:\n%s\n%s", firstJSON, secondJSON)
	}
	if first.Totals.CIDs > first.Totals.Files {
		t.Fatal("distinct cids must not exceed files")
	}
}

func TestBuildSnapshotMissingDir(t *testing.T) {
	snapshot, err := BuildSnapshot(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	encoded, _ := json.Marshal(snapshot)
	if string(encoded) != `{"totals":{"files":0,"cids":0,"onchainTx":0,"lastTs":"—"},"items":[]}` {
		t.Fatalf("unexpected empty snapshot %s", encoded)
	}
}

func TestWriteSnapshotWithBrotli(t *testing.T) {
	snapshot, err := BuildSnapshot(receiptFixture(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outPath := filepath.Join(t.TempDir(), "public", "now.json")
	if err := WriteSnapshot(outPath, snapshot, WriteOptions{Brotli: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	plain, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(plain, &decoded); err != nil {
		t.Fatalf("invalid snapshot json: %v", err)
	}
	if decoded.Totals != snapshot.Totals || len(decoded.Items) != len(snapshot.Items) {
		t.Fatalf("unexpected decoded snapshot %+v", decoded)
	}

	compressed, err := os.Open(outPath + ".br")
	if err != nil {
		t.Fatalf("missing brotli sibling: %v", err)
	}
	defer compressed.Close()
	inflated, err := io.ReadAll(brotli.NewReader(compressed))
	if err != nil {
		t.Fatalf("failed to inflate: %v", err)
	}
	if !bytes.Equal(inflated, plain) {
		t.Fatal("brotli sibling does not match the snapshot")
	}
}

func TestWriteSnapshotReplacesExisting(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "now.json")
	os.WriteFile(outPath, []byte("stale"), 0o644)

	if err := WriteSnapshot(outPath, Snapshot{Totals: Totals{LastTs: NoTimestamp}}, WriteOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, _ := os.ReadFile(outPath)
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("invalid json %s: %v", raw, err)
	}
	if items, ok := decoded["items"].([]any); !ok || len(items) != 0 {
		t.Fatalf("expected empty items array, got %v", decoded["items"])
	}
	if _, err := os.Stat(outPath + ".br"); !os.IsNotExist(err) {
		t.Fatal("brotli sibling must only be written on request")
	}
}
