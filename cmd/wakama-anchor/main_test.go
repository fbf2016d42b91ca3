package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/wakama-oracle/anchor-sdk-go/pkg/anchor"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/batch"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/config"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/hashstore"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/pinning"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/verify"
)

const (
	testCID = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"
	testDay = "2026-01-02"
	testTx  = "0.0.1234@1700000000.000000001"
)

func testEnv(t *testing.T) (config.MapSource, string) {
	t.Helper()
	root := t.TempDir()
	return config.MapSource{
		config.KeyRunsDir:         filepath.Join(root, "runs"),
		config.KeyReceiptsDir:     filepath.Join(root, "receipts"),
		config.KeyTmpDir:          filepath.Join(root, "tmp"),
		config.KeyIngestDir:       filepath.Join(root, "ingest"),
		config.KeyVerifyBackoffMS: "1",
		config.KeyVerifyRetryMax:  "2",
		config.KeyVerifyMinBytes:  "0",
		config.KeyBackoffMS:       "1",
		config.KeyLogLevel:        "error",
	}, root
}

func writeLogLine(t *testing.T, env config.MapSource, line string) {
	t.Helper()
	dir := env[config.KeyRunsDir]
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create runs dir: %v", err)
	}
	path := filepath.Join(dir, "devnet_"+testDay+".csv")
	if err := os.WriteFile(path, []byte(line+"\n"), 0o644); err != nil {
		t.Fatalf("failed to write audit log: %v", err)
	}
}

func runCommand(t *testing.T, env config.Source, args ...string) (int, map[string]any) {
	t.Helper()
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	code := run(context.Background(), args, env, &stdout, &stderr)

	output := map[string]any{}
	if stdout.Len() > 0 {
		if err := json.Unmarshal(stdout.Bytes(), &output); err != nil {
			t.Fatalf("stdout is not one JSON document: %v\n%s", err, stdout.String())
		}
	}
	return code, output
}

func TestRunUnknownCommand(t *testing.T) {
	env, _ := testEnv(t)
	code, output := runCommand(t, env, "anchor-everything")
	if code != exitUsage {
		t.Fatalf("expected exit %d, got %d", exitUsage, code)
	}
	if output["ok"] != false || output["reason"] != "usage" {
		t.Fatalf("expected a usage failure document, got %#v", output)
	}

	code, output = runCommand(t, env)
	if code != exitUsage || output["reason"] != "usage" {
		t.Fatalf("expected a usage failure without a command, got %d %#v", code, output)
	}
}

func TestUsageErrorsPrintJSON(t *testing.T) {
	env, _ := testEnv(t)
	tests := []struct {
		name string
		args []string
		code int
	}{
		{name: "publish unknown flag", args: []string{"publish", "--bogus"}, code: exitUsage},
		{name: "verify unknown flag", args: []string{"verify", "--bogus"}, code: exitUsage},
		{name: "snapshot unknown flag", args: []string{"build-snapshot", "--bogus"}, code: exitUsage},
		{name: "snapshot extra arguments", args: []string{"build-snapshot", "a", "b", "c"}, code: exitFailure},
		{name: "export without output", args: []string{"export-snapshot"}, code: exitFailure},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			code, output := runCommand(t, env, test.args...)
			if code != test.code {
				t.Fatalf("expected exit %d, got %d", test.code, code)
			}
			if output["ok"] != false || output["reason"] != "usage" || output["error"] == "" {
				t.Fatalf("expected a usage failure document, got %#v", output)
			}
		})
	}
}

func TestPublishWithoutCredentials(t *testing.T) {
	env, root := testEnv(t)
	path := filepath.Join(root, "batch.json")
	if err := os.WriteFile(path, []byte(`{"count":1}`), 0o644); err != nil {
		t.Fatalf("failed to write batch: %v", err)
	}

	env[config.KeyAnchorTopicID] = "0.0.5005"
	code, output := runCommand(t, env, "publish", path)
	if code != exitFailure {
		t.Fatalf("expected exit %d, got %d", exitFailure, code)
	}
	if output["ok"] != false || output["reason"] != "missing_credentials" {
		t.Fatalf("unexpected output: %#v", output)
	}

	entries, err := os.ReadDir(env[config.KeyReceiptsDir])
	if err == nil && len(entries) > 0 {
		t.Fatalf("expected no receipts, found %d", len(entries))
	}
}

func TestPublishWithoutTopicFailsBeforeUpload(t *testing.T) {
	var pins atomic.Int32
	pinata := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pins.Add(1)
		_, _ = fmt.Fprintf(w, `{"IpfsHash":%q}`, testCID)
	}))
	defer pinata.Close()

	env, _ := testEnv(t)
	env[config.KeyPinataJWT] = "jwt"
	env[config.KeyPinataAPIURL] = pinata.URL

	code, output := runCommand(t, env, "publish", "--sim")
	if code != exitFailure {
		t.Fatalf("expected exit %d, got %d", exitFailure, code)
	}
	if output["reason"] != "configuration" || !strings.Contains(fmt.Sprint(output["error"]), config.KeyAnchorTopicID) {
		t.Fatalf("expected a configuration failure naming %s, got %#v", config.KeyAnchorTopicID, output)
	}
	if pins.Load() != 0 {
		t.Fatalf("expected no pinning request, got %d", pins.Load())
	}
}

func TestPublishRejectsExtraArguments(t *testing.T) {
	env, _ := testEnv(t)
	code, output := runCommand(t, env, "publish", "a.json", "b.json")
	if code != exitUsage || output["reason"] != "usage" {
		t.Fatalf("expected a usage failure, got %d %#v", code, output)
	}
}

func TestVerifyWithoutLog(t *testing.T) {
	env, _ := testEnv(t)
	code, output := runCommand(t, env, "verify", "--day", testDay)
	if code != exitFailure {
		t.Fatalf("expected exit %d, got %d", exitFailure, code)
	}
	if output["reason"] != "no_csv_today" {
		t.Fatalf("expected no_csv_today, got %#v", output)
	}
	if !strings.HasSuffix(fmt.Sprint(output["csv"]), "devnet_"+testDay+".csv") {
		t.Fatalf("expected the log path in the output, got %#v", output["csv"])
	}
}

func TestVerifyMalformedLog(t *testing.T) {
	env, _ := testEnv(t)
	writeLogLine(t, env, "batch.json,not-a-cid,abc,"+testTx)

	code, output := runCommand(t, env, "verify", "--day", testDay)
	if code != exitFailure {
		t.Fatalf("expected exit %d, got %d", exitFailure, code)
	}
	if output["reason"] != "csv_malformed" {
		t.Fatalf("expected csv_malformed, got %#v", output)
	}
}

func TestVerifyInvalidDay(t *testing.T) {
	env, _ := testEnv(t)
	code, output := runCommand(t, env, "verify", "--day", "yesterday")
	if code != exitUsage || output["reason"] != "usage" {
		t.Fatalf("expected a usage failure, got %d %#v", code, output)
	}
}

func TestVerifyMatchAndMemo(t *testing.T) {
	payload := []byte(`{"kind":"sensor-batch"}`)
	digest := hashstore.DigestBytes(payload)

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ipfs/"+testCID {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer gateway.Close()

	memo := fmt.Sprintf(`{"cid":%q,"sha256":%q}`, testCID, digest)
	mirrorServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/transactions/0.0.1234-1700000000-000000001" {
			http.NotFound(w, r)
			return
		}
		_, _ = fmt.Fprintf(w, `{"transactions":[{"consensus_timestamp":"1700000000.000000001","name":"CRYPTOTRANSFER","result":"SUCCESS","memo_base64":%q}]}`,
			base64.StdEncoding.EncodeToString([]byte(memo)))
	}))
	defer mirrorServer.Close()

	env, _ := testEnv(t)
	env[config.KeyGateways] = gateway.URL + "/ipfs"
	env[config.KeyMirrorBaseURL] = mirrorServer.URL
	writeLogLine(t, env, strings.Join([]string{"batch.json", testCID, digest, testTx, "2026-01-02T10:00:00.000Z"}, ","))

	code, output := runCommand(t, env, "verify", "--day", testDay)
	if code != exitOK {
		t.Fatalf("expected exit %d, got %d: %#v", exitOK, code, output)
	}
	if output["ok"] != true || output["sha256"] != digest || output["csv_sha"] != digest {
		t.Fatalf("unexpected verdict: %#v", output)
	}
	memoOutput, ok := output["memo"].(map[string]any)
	if !ok || memoOutput["matched"] != true {
		t.Fatalf("expected a matching memo, got %#v", output["memo"])
	}
}

func TestVerifyMismatch(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tampered"))
	}))
	defer gateway.Close()

	env, _ := testEnv(t)
	env[config.KeyGateways] = gateway.URL
	writeLogLine(t, env, strings.Join([]string{"batch.json", testCID, hashstore.DigestBytes([]byte("original")), testTx}, ","))

	code, output := runCommand(t, env, "verify", "--day", testDay, "--skip-memo")
	if code != exitFailure {
		t.Fatalf("expected exit %d, got %d", exitFailure, code)
	}
	if output["ok"] != false || output["reason"] != "sha_mismatch" {
		t.Fatalf("unexpected verdict: %#v", output)
	}
	if _, ok := output["memo"]; ok {
		t.Fatalf("expected no memo check with --skip-memo")
	}
}

func TestVerifyAllGatewaysFail(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer gateway.Close()

	env, _ := testEnv(t)
	writeLogLine(t, env, strings.Join([]string{"batch.json", testCID, hashstore.DigestBytes([]byte("x")), testTx}, ","))

	code, output := runCommand(t, env, "verify", "--day", testDay, "--gateway", gateway.URL, "--gateway", gateway.URL+"/alt")
	if code != exitFailure {
		t.Fatalf("expected exit %d, got %d", exitFailure, code)
	}
	if output["reason"] != "download_failed" {
		t.Fatalf("expected download_failed, got %#v", output)
	}
	errs, _ := output["errors"].([]any)
	if len(errs) != 2 {
		t.Fatalf("expected one error per gateway, got %#v", output["errors"])
	}
}

func TestBuildSnapshot(t *testing.T) {
	env, root := testEnv(t)
	receiptsDir := filepath.Join(root, "receipts")
	if err := os.MkdirAll(receiptsDir, 0o755); err != nil {
		t.Fatalf("failed to create receipts dir: %v", err)
	}
	receipt := fmt.Sprintf(`{"cid":%q,"sha256":"abc","tx":%q,"file":"batch.json","timestamp":"2026-01-02T10:00:00.000Z","status":"finalized","source":"ingest"}`, testCID, testTx)
	if err := os.WriteFile(filepath.Join(receiptsDir, "a-receipt.json"), []byte(receipt), 0o644); err != nil {
		t.Fatalf("failed to write receipt: %v", err)
	}
	if err := os.WriteFile(filepath.Join(receiptsDir, "broken-receipt.json"), []byte("{"), 0o644); err != nil {
		t.Fatalf("failed to write receipt: %v", err)
	}

	out := filepath.Join(root, "public", "now.json")
	code, output := runCommand(t, env, "build-snapshot", receiptsDir, out, "--brotli")
	if code != exitOK {
		t.Fatalf("expected exit %d, got %d: %#v", exitOK, code, output)
	}
	if output["files"] != float64(1) || output["onchainTx"] != float64(1) || output["skipped"] != float64(1) {
		t.Fatalf("unexpected summary: %#v", output)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("expected snapshot file: %v", err)
	}
	var snapshot struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		t.Fatalf("snapshot is not JSON: %v", err)
	}
	if len(snapshot.Items) != 1 || snapshot.Items[0]["cid"] != testCID {
		t.Fatalf("unexpected items: %#v", snapshot.Items)
	}
	if _, err := os.Stat(out + ".br"); err != nil {
		t.Fatalf("expected brotli copy: %v", err)
	}
}

func TestExportSnapshot(t *testing.T) {
	env, root := testEnv(t)

	code, _ := runCommand(t, env, "export-snapshot")
	if code != exitFailure {
		t.Fatalf("expected exit %d without an output path, got %d", exitFailure, code)
	}

	out := filepath.Join(root, "now.json")
	code, output := runCommand(t, env, "export-snapshot", out)
	if code != exitOK {
		t.Fatalf("expected exit %d, got %d: %#v", exitOK, code, output)
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("expected snapshot file: %v", err)
	}
	if !strings.Contains(string(raw), `"items": []`) && !strings.Contains(string(raw), `"items":[]`) {
		t.Fatalf("expected an empty item list, got %s", raw)
	}
}

func TestConfigFileLayering(t *testing.T) {
	env, root := testEnv(t)
	delete(env, config.KeyRunsDir)
	runsDir := filepath.Join(root, "from-file")
	configPath := filepath.Join(root, "wakama.yaml")
	if err := os.WriteFile(configPath, []byte("RUNS_DIR: "+runsDir+"\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	code, output := runCommand(t, env, "verify", "--day", testDay, "--config", configPath)
	if code != exitFailure {
		t.Fatalf("expected exit %d, got %d", exitFailure, code)
	}
	if !strings.HasPrefix(fmt.Sprint(output["csv"]), runsDir) {
		t.Fatalf("expected the runs dir from the config file, got %#v", output["csv"])
	}
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "credentials", err: &config.ConfigurationError{Key: config.KeyPinataJWT, Cause: pinning.ErrMissingCredentials}, want: "missing_credentials"},
		{name: "configuration", err: &config.ConfigurationError{Key: config.KeyAnchorTopicID}, want: "configuration"},
		{name: "download", err: &verify.IntegrityMismatchError{CID: testCID}, want: "download_failed"},
		{name: "mismatch", err: &verify.IntegrityMismatchError{CID: testCID, Observed: "abc"}, want: "sha_mismatch"},
		{name: "upload", err: &pinning.UploadError{Name: "batch.json", Cause: errors.New("boom")}, want: "upload_failed"},
		{name: "anchor", err: &anchor.AnchorError{Cause: errors.New("boom")}, want: "anchor_failed"},
		{name: "no batch", err: fmt.Errorf("resolve: %w", batch.ErrNoBatches), want: "no_batch"},
		{name: "read", err: &hashstore.ReadError{Path: "x", Cause: os.ErrNotExist}, want: "read_failed"},
		{name: "other", err: errors.New("boom"), want: "exception"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := failureReason(test.err); got != test.want {
				t.Fatalf("expected %q, got %q", test.want, got)
			}
		})
	}
}
