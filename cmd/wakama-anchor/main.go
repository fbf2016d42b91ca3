// wakama-anchor publishes sensor batches to IPFS, anchors their digests on
// Hedera and audits earlier publishes.
//
// Every subcommand writes exactly one JSON document to stdout. Logs, retry
// notices and warnings go to stderr.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/wakama-oracle/anchor-sdk-go/pkg/config"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], config.Env(), os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, env config.Source, stdout io.Writer, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return usageFailure(stdout, errors.New("a command is required"))
	}

	switch args[0] {
	case "publish":
		return runPublish(ctx, args[1:], env, stdout, stderr)
	case "verify":
		return runVerify(ctx, args[1:], env, stdout, stderr)
	case "build-snapshot":
		return runBuildSnapshot(args[1:], env, stdout, stderr)
	case "export-snapshot":
		return runExportSnapshot(args[1:], env, stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	default:
		printUsage(stderr)
		return usageFailure(stdout, fmt.Errorf("unknown command %q", args[0]))
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: wakama-anchor <command> [flags]

Commands:
  publish [batchPath] [--sim]                  pin a batch, anchor its digest and write a receipt
  verify [--day YYYY-MM-DD] [--gateway url]... re-check the latest logged publish against IPFS gateways
         [--skip-memo]                         skip reading the anchored memo back from the mirror node
  build-snapshot [receiptsDir] [out] [--brotli]
                                               aggregate receipts into the dashboard snapshot
  export-snapshot <out> [--brotli]             build the snapshot from the configured receipts dir

Common flags:
  --config <file>     YAML or JSONC settings file layered under the environment (or WAKAMA_CONFIG)
  --log-level <level> zerolog level (or LOG_LEVEL), default info
`)
}

func writeJSON(w io.Writer, value any) {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fmt.Fprintf(w, `{"ok":false,"reason":"exception","error":%q}`+"\n", err.Error())
		return
	}
	w.Write(append(encoded, '\n'))
}

type failure struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
}

func fail(w io.Writer, reason string, err error) int {
	output := failure{Reason: reason}
	if err != nil {
		output.Error = err.Error()
	}
	writeJSON(w, output)
	return exitFailure
}

// usageFailure reports a bad command line. The exit code differs from fail so
// scripts can tell invocation mistakes from failed runs.
func usageFailure(w io.Writer, err error) int {
	fail(w, "usage", err)
	return exitUsage
}
