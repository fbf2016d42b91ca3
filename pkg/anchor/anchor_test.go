package anchor

import (
	"context"
	"errors"
	"testing"

	"github.com/wakama-oracle/anchor-sdk-go/pkg/config"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/hashstore"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/retry"
)

type fakeSubmitter struct {
	failures int
	calls    int
	keys     []string
	err      error
}

func (f *fakeSubmitter) Submit(_ context.Context, memo []byte, key string) (string, error) {
	f.calls++
	f.keys = append(f.keys, key)
	if f.err != nil {
		return "", f.err
	}
	if f.calls <= f.failures {
		return "", errors.New("node unavailable")
	}
	return "0.0.1234@1700000000.000000001", nil
}

type fakeQuerier struct {
	confirmation Confirmation
	err          error
}

func (f fakeQuerier) Status(context.Context, string) (Confirmation, error) {
	return f.confirmation, f.err
}

func newTestAnchor(t *testing.T, submitter Submitter, querier StatusQuerier, maxAttempts int) *Anchor {
	t.Helper()
	anchor, err := New(Config{
		Submitter: submitter,
		Querier:   querier,
		Retry:     retry.New(retry.Config{MaxAttempts: maxAttempts, BaseDelay: retry.NoDelay}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return anchor
}

func TestNewRequiresSubmitter(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error without submitter")
	}
}

func TestNewDefaultRetryBacksOff(t *testing.T) {
	anchor, err := New(Config{Submitter: &fakeSubmitter{}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if anchor.retry.BaseDelay() != retry.DefaultBaseDelay {
		t.Fatalf("expected default base delay %s, got %s", retry.DefaultBaseDelay, anchor.retry.BaseDelay())
	}
}

type checkingSubmitter struct {
	fakeSubmitter
	limit int
}

func (c *checkingSubmitter) CheckMemo(memo []byte) error {
	if len(memo) > c.limit {
		return errors.New("memo too large")
	}
	return nil
}

func TestCheckMemoDelegatesToSubmitter(t *testing.T) {
	plain, err := New(Config{Submitter: &fakeSubmitter{}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := plain.CheckMemo(make([]byte, 4096)); err != nil {
		t.Fatalf("expected a plain submitter to accept any memo, got %v", err)
	}

	checked, err := New(Config{Submitter: &checkingSubmitter{limit: 8}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := checked.CheckMemo([]byte("0123456789")); err == nil {
		t.Fatal("expected the submitter's limit to apply")
	}
}

func TestAnchorRetriesWithStableKey(t *testing.T) {
	submitter := &fakeSubmitter{failures: 2}
	anchor := newTestAnchor(t, submitter, nil, 5)

	memo := []byte(`{"cid":"bafy","sha256":"abc"}`)
	signature, err := anchor.Anchor(context.Background(), memo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signature != "0.0.1234@1700000000.000000001" {
		t.Fatalf("unexpected signature %s", signature)
	}
	if submitter.calls != 3 {
		t.Fatalf("expected 3 submissions, got %d", submitter.calls)
	}

	expectedKey := hashstore.DigestBytes(memo)
	for _, key := range submitter.keys {
		if key != expectedKey {
			t.Fatalf("expected key %s, got %s", expectedKey, key)
		}
	}
}

func TestAnchorExhaustion(t *testing.T) {
	submitter := &fakeSubmitter{failures: 10}
	anchor := newTestAnchor(t, submitter, nil, 3)

	_, err := anchor.Anchor(context.Background(), []byte("memo"))

	var anchorErr *AnchorError
	if !errors.As(err, &anchorErr) {
		t.Fatalf("expected AnchorError, got %v", err)
	}
	var exhausted *retry.ExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Operation != "ledger-memo" || exhausted.Attempts != 3 {
		t.Fatalf("unexpected exhausted error %v", err)
	}
	if submitter.calls != 3 {
		t.Fatalf("expected 3 submissions, got %d", submitter.calls)
	}
}

func TestAnchorPermanentErrorStopsImmediately(t *testing.T) {
	configErr := &config.ConfigurationError{Key: "HEDERA_ACCOUNT_ID", Message: "missing"}
	submitter := &fakeSubmitter{err: retry.Permanent(configErr)}
	anchor := newTestAnchor(t, submitter, nil, 5)

	_, err := anchor.Anchor(context.Background(), []byte("memo"))
	if !errors.Is(err, configErr) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	var anchorErr *AnchorError
	if errors.As(err, &anchorErr) {
		t.Fatal("permanent errors must not be reported as AnchorError")
	}
	if submitter.calls != 1 {
		t.Fatalf("expected 1 submission, got %d", submitter.calls)
	}
}

func TestAnchorRejectsEmptyMemo(t *testing.T) {
	anchor := newTestAnchor(t, &fakeSubmitter{}, nil, 1)
	if _, err := anchor.Anchor(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty memo")
	}
}

func TestConfirmEmptySignature(t *testing.T) {
	anchor := newTestAnchor(t, &fakeSubmitter{}, fakeQuerier{}, 1)
	if confirmation := anchor.Confirm(context.Background(), ""); confirmation != nil {
		t.Fatalf("expected nil confirmation, got %+v", confirmation)
	}
}

func TestConfirmSuccess(t *testing.T) {
	slot := int64(4242)
	anchor := newTestAnchor(t, &fakeSubmitter{}, fakeQuerier{confirmation: Confirmation{Status: StatusFinalized, Slot: &slot}}, 1)

	confirmation := anchor.Confirm(context.Background(), "0.0.1@1.1")
	if confirmation == nil || confirmation.Status != StatusFinalized {
		t.Fatalf("unexpected confirmation %+v", confirmation)
	}
	if confirmation.Slot == nil || *confirmation.Slot != 4242 {
		t.Fatalf("unexpected slot %v", confirmation.Slot)
	}
	if confirmation.Err != nil {
		t.Fatalf("unexpected error %v", confirmation.Err)
	}
}

func TestConfirmQueryFailureDowngradesToUnknown(t *testing.T) {
	queryErr := errors.New("mirror unreachable")
	anchor := newTestAnchor(t, &fakeSubmitter{}, fakeQuerier{err: queryErr}, 1)

	confirmation := anchor.Confirm(context.Background(), "0.0.1@1.1")
	if confirmation == nil || confirmation.Status != StatusUnknown {
		t.Fatalf("expected unknown status, got %+v", confirmation)
	}
	if confirmation.Slot != nil {
		t.Fatalf("expected nil slot, got %v", *confirmation.Slot)
	}
	if !errors.Is(confirmation.Err, queryErr) {
		t.Fatalf("expected query error, got %v", confirmation.Err)
	}
}

func TestConfirmWithoutQuerier(t *testing.T) {
	anchor := newTestAnchor(t, &fakeSubmitter{}, nil, 1)

	confirmation := anchor.Confirm(context.Background(), "0.0.1@1.1")
	if confirmation == nil || confirmation.Status != StatusUnknown || !errors.Is(confirmation.Err, ErrNoQuerier) {
		t.Fatalf("unexpected confirmation %+v", confirmation)
	}
}
