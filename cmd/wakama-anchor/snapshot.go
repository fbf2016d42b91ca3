package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/wakama-oracle/anchor-sdk-go/pkg/config"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/receipts"
)

const defaultSnapshotPath = "../wakama-dashboard/public/now.json"

type snapshotSummary struct {
	OK        bool   `json:"ok"`
	Out       string `json:"out"`
	Files     int    `json:"files"`
	CIDs      int    `json:"cids"`
	OnchainTx int    `json:"onchainTx"`
	Skipped   int    `json:"skipped"`
}

// runBuildSnapshot takes optional [receiptsDir] [outPath] positionals.
func runBuildSnapshot(args []string, env config.Source, stdout io.Writer, stderr io.Writer) int {
	return snapshotCommand("build-snapshot", args, env, stdout, stderr, func(positional []string, settings config.Settings) (string, string, error) {
		if len(positional) > 2 {
			return "", "", fmt.Errorf("expected at most [receiptsDir] [outPath], got %d arguments", len(positional))
		}
		dir := settings.ReceiptsDir
		if len(positional) > 0 {
			dir = positional[0]
		}
		out := defaultSnapshotPath
		if len(positional) > 1 {
			out = positional[1]
		}
		return dir, out, nil
	})
}

// runExportSnapshot reads the configured receipts directory and writes to the
// required <outPath>.
func runExportSnapshot(args []string, env config.Source, stdout io.Writer, stderr io.Writer) int {
	return snapshotCommand("export-snapshot", args, env, stdout, stderr, func(positional []string, settings config.Settings) (string, string, error) {
		if len(positional) != 1 {
			return "", "", errors.New("usage: export-snapshot <outPath>")
		}
		return settings.ReceiptsDir, positional[0], nil
	})
}

type snapshotPaths func(positional []string, settings config.Settings) (string, string, error)

func snapshotCommand(name string, args []string, env config.Source, stdout io.Writer, stderr io.Writer, paths snapshotPaths) int {
	var common commonFlags
	var compress bool

	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	common.register(flagSet)
	flagSet.BoolVar(&compress, "brotli", false, "also write a brotli-compressed copy as <outPath>.br")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return usageFailure(stdout, err)
	}

	application, err := newApp(env, common, stderr)
	if err != nil {
		return fail(stdout, failureReason(err), err)
	}

	dir, out, err := paths(flagSet.Args(), application.settings)
	if err != nil {
		return fail(stdout, "usage", err)
	}
	if dir == "" {
		dir = "receipts"
	}

	snapshot, err := receipts.BuildSnapshot(dir)
	if err != nil {
		return fail(stdout, "read_failed", err)
	}
	for _, skipped := range snapshot.Skipped {
		application.logger.Warn().Err(skipped).Str("path", skipped.Path).Msg("receipt skipped")
	}

	if err := receipts.WriteSnapshot(out, snapshot, receipts.WriteOptions{Brotli: compress}); err != nil {
		return fail(stdout, "write_failed", err)
	}
	application.logger.Info().Str("out", out).Int("items", len(snapshot.Items)).Msg("snapshot written")

	writeJSON(stdout, snapshotSummary{
		OK:        true,
		Out:       out,
		Files:     snapshot.Totals.Files,
		CIDs:      snapshot.Totals.CIDs,
		OnchainTx: snapshot.Totals.OnchainTx,
		Skipped:   len(snapshot.Skipped),
	})
	return exitOK
}
