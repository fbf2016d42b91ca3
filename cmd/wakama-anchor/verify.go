package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"github.com/wakama-oracle/anchor-sdk-go/pkg/anchor"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/config"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/hashstore"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/receipts"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/verify"
)

type verdict struct {
	OK        bool       `json:"ok"`
	Reason    string     `json:"reason,omitempty"`
	File      string     `json:"file"`
	CID       string     `json:"cid"`
	SHA256    string     `json:"sha256,omitempty"`
	Tx        string     `json:"tx"`
	Gateway   string     `json:"gateway,omitempty"`
	CSVSHA256 string     `json:"csv_sha"`
	Size      int64      `json:"size,omitempty"`
	Errors    []string   `json:"errors,omitempty"`
	Memo      *memoCheck `json:"memo,omitempty"`
}

// memoCheck compares the memo recorded on the ledger with the log entry. It
// is informational and does not change the exit code.
type memoCheck struct {
	Matched bool   `json:"matched"`
	CID     string `json:"cid,omitempty"`
	SHA256  string `json:"sha256,omitempty"`
	Error   string `json:"error,omitempty"`
}

type logFailure struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason"`
	CSV    string `json:"csv"`
	Line   string `json:"line,omitempty"`
	Error  string `json:"error,omitempty"`
}

func runVerify(ctx context.Context, args []string, env config.Source, stdout io.Writer, stderr io.Writer) int {
	var common commonFlags
	var dayFlag string
	var gateways []string
	var skipMemo bool

	flagSet := pflag.NewFlagSet("verify", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	common.register(flagSet)
	flagSet.StringVar(&dayFlag, "day", "", "audit log day as YYYY-MM-DD (default: today, UTC)")
	flagSet.StringSliceVar(&gateways, "gateway", nil, "gateway base URL to try, in order (repeatable; default IPFS_GATEWAYS)")
	flagSet.BoolVar(&skipMemo, "skip-memo", false, "do not read the anchored memo back from the mirror node")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return usageFailure(stdout, err)
	}

	day := time.Now().UTC()
	if dayFlag != "" {
		parsed, err := time.Parse(time.DateOnly, dayFlag)
		if err != nil {
			return usageFailure(stdout, fmt.Errorf("invalid --day %q: %w", dayFlag, err))
		}
		day = parsed
	}

	application, err := newApp(env, common, stderr)
	if err != nil {
		return fail(stdout, failureReason(err), err)
	}
	if len(gateways) == 0 {
		gateways = application.settings.Gateways
	}

	ledger := receipts.NewLedger(receipts.LedgerConfig{
		RunsDir:     application.settings.RunsDir,
		ReceiptsDir: application.settings.ReceiptsDir,
		Logger:      &application.logger,
	})

	entry, logPath, err := ledger.LatestEntry(day)
	if err != nil {
		output := logFailure{CSV: logPath, Error: err.Error()}
		var corrupt *receipts.CorruptRecordError
		switch {
		case errors.Is(err, receipts.ErrNoLog):
			output.Reason = "no_csv_today"
		case errors.Is(err, receipts.ErrEmptyLog):
			output.Reason = "csv_empty"
		case errors.As(err, &corrupt):
			output.Reason = "csv_malformed"
			output.Line = corrupt.Line
		default:
			output.Reason = "exception"
		}
		writeJSON(stdout, output)
		return exitFailure
	}

	result := verify.New(application.verifyOptions()).Verify(ctx, entry.CID, entry.SHA256, gateways)
	if result.Observed == "" {
		writeJSON(stdout, verdict{
			Reason:    "download_failed",
			File:      entry.File,
			CID:       entry.CID,
			Tx:        entry.Tx,
			CSVSHA256: entry.SHA256,
			Errors:    result.Errors,
		})
		return exitFailure
	}

	output := verdict{
		OK:        result.Matched,
		File:      entry.File,
		CID:       entry.CID,
		SHA256:    result.Observed,
		Tx:        entry.Tx,
		Gateway:   result.Gateway,
		CSVSHA256: entry.SHA256,
		Size:      result.Size,
		Errors:    result.Errors,
	}
	if !result.Matched {
		output.Reason = "sha_mismatch"
	}
	if !skipMemo {
		output.Memo = application.checkMemo(ctx, entry)
	}

	writeJSON(stdout, output)
	if !result.Matched {
		return exitFailure
	}
	return exitOK
}

func (a *app) checkMemo(ctx context.Context, entry receipts.Entry) *memoCheck {
	check := &memoCheck{}

	mirrorClient, err := a.mirrorClient()
	if err != nil {
		check.Error = err.Error()
		return check
	}

	raw, err := anchor.NewMirrorStatus(mirrorClient).Memo(ctx, entry.Tx)
	if err != nil {
		a.logger.Warn().Err(err).Str("tx", entry.Tx).Msg("anchored memo unavailable")
		check.Error = err.Error()
		return check
	}

	var memo struct {
		CID    string `json:"cid"`
		SHA256 string `json:"sha256"`
	}
	if err := json.Unmarshal(raw, &memo); err != nil {
		check.Error = fmt.Sprintf("memo is not a batch payload: %v", err)
		return check
	}

	check.CID = memo.CID
	check.SHA256 = memo.SHA256
	check.Matched = memo.CID == entry.CID && hashstore.Equal(memo.SHA256, entry.SHA256)
	return check
}
