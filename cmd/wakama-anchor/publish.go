package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/wakama-oracle/anchor-sdk-go/pkg/anchor"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/config"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/pinning"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/publish"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/receipts"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/retry"
)

func runPublish(ctx context.Context, args []string, env config.Source, stdout io.Writer, stderr io.Writer) int {
	var common commonFlags
	var simulated bool

	flagSet := pflag.NewFlagSet("publish", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	common.register(flagSet)
	flagSet.BoolVar(&simulated, "sim", false, "publish a freshly simulated batch instead of an ingested one")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return usageFailure(stdout, err)
	}
	if flagSet.NArg() > 1 {
		return usageFailure(stdout, fmt.Errorf("publish takes at most one batch path, got %d", flagSet.NArg()))
	}

	application, err := newApp(env, common, stderr)
	if err != nil {
		return fail(stdout, failureReason(err), err)
	}

	pipeline, err := application.pipeline()
	if err != nil {
		return fail(stdout, failureReason(err), err)
	}

	summary, err := pipeline.Run(ctx, publish.Input{Path: flagSet.Arg(0), Simulated: simulated})
	if err != nil {
		application.logger.Error().Err(err).Msg("publish failed")
		return fail(stdout, failureReason(err), err)
	}

	writeJSON(stdout, summary)
	return exitOK
}

func (a *app) pipeline() (*publish.Pipeline, error) {
	baseDelay := a.settings.RetryBaseDelay
	if baseDelay == 0 {
		baseDelay = retry.NoDelay
	}
	executor := retry.New(retry.Config{
		MaxAttempts: a.settings.RetryMax,
		BaseDelay:   baseDelay,
		Logger:      &a.logger,
	})

	uploader, err := pinning.NewClient(pinning.Config{
		BaseURL:     a.settings.PinataAPIURL,
		Credentials: pinning.CredentialsFrom(a.source),
		Retry:       executor,
		Logger:      &a.logger,
	})
	if err != nil {
		return nil, err
	}

	submitter, err := anchor.NewHederaSubmitter(anchor.HederaConfig{
		Source:  a.source,
		TopicID: a.settings.AnchorTopicID,
		Logger:  &a.logger,
	})
	if err != nil {
		return nil, err
	}

	mirrorClient, err := a.mirrorClient()
	if err != nil {
		return nil, err
	}

	anchorer, err := anchor.New(anchor.Config{
		Submitter: submitter,
		Querier:   anchor.NewMirrorStatus(mirrorClient),
		Retry:     executor,
		Logger:    &a.logger,
	})
	if err != nil {
		return nil, err
	}

	ledger := receipts.NewLedger(receipts.LedgerConfig{
		RunsDir:     a.settings.RunsDir,
		ReceiptsDir: a.settings.ReceiptsDir,
		Logger:      &a.logger,
	})

	return publish.New(publish.Config{
		Settings: a.settings,
		Uploader: uploader,
		Anchor:   anchorer,
		Ledger:   ledger,
		Verify:   a.verifyOptions(),
		Logger:   &a.logger,
	})
}
