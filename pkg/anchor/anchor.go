package anchor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wakama-oracle/anchor-sdk-go/pkg/hashstore"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/retry"
)

const operationName = "ledger-memo"

type Config struct {
	Submitter Submitter
	Querier   StatusQuerier
	Retry     *retry.Executor
	Logger    *zerolog.Logger
}

type Anchor struct {
	submitter Submitter
	querier   StatusQuerier
	retry     *retry.Executor
	logger    zerolog.Logger
}

// New creates a new Anchor.
func New(config Config) (*Anchor, error) {
	if config.Submitter == nil {
		return nil, fmt.Errorf("submitter is required")
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	executor := config.Retry
	if executor == nil {
		executor = retry.New(retry.Config{Logger: &logger})
	}

	return &Anchor{
		submitter: config.Submitter,
		querier:   config.Querier,
		retry:     executor,
		logger:    logger,
	}, nil
}

// CheckMemo asks the submitter whether memo can be anchored. Submitters
// without a MemoChecker accept every memo.
func (a *Anchor) CheckMemo(memo []byte) error {
	if checker, ok := a.submitter.(MemoChecker); ok {
		return checker.CheckMemo(memo)
	}
	return nil
}

// Anchor submits memo and returns the signature of the attempt that
// succeeded. Every attempt carries the memo digest as its idempotency key.
func (a *Anchor) Anchor(ctx context.Context, memo []byte) (string, error) {
	if len(memo) == 0 {
		return "", fmt.Errorf("memo is required")
	}
	key := hashstore.DigestBytes(memo)

	signature, err := retry.Execute(ctx, a.retry, operationName, func(attemptContext context.Context) (string, error) {
		signature, err := a.submitter.Submit(attemptContext, memo, key)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(signature) == "" {
			return "", fmt.Errorf("submitter returned an empty signature")
		}
		return signature, nil
	})
	if err != nil {
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			return "", &AnchorError{Cause: err}
		}
		return "", err
	}

	a.logger.Debug().Str("tx", signature).Str("memo_sha256", key).Msg("memo anchored")
	return signature, nil
}

// Confirm queries the status of signature once. It returns nil for an empty
// signature and never fails: query errors are reported as StatusUnknown.
func (a *Anchor) Confirm(ctx context.Context, signature string) *Confirmation {
	if strings.TrimSpace(signature) == "" {
		return nil
	}
	if a.querier == nil {
		return &Confirmation{Status: StatusUnknown, Err: ErrNoQuerier}
	}

	confirmation, err := a.querier.Status(ctx, signature)
	if err != nil {
		a.logger.Warn().Err(err).Str("tx", signature).Msg("confirmation query failed")
		return &Confirmation{Status: StatusUnknown, Err: err}
	}
	if confirmation.Status == "" {
		confirmation.Status = StatusUnknown
	}
	return &confirmation
}
