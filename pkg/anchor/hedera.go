package anchor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/rs/zerolog"

	"github.com/wakama-oracle/anchor-sdk-go/pkg/config"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/retry"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/shared"
)

const (
	MaxTransactionMemoBytes = 100
	MaxTopicMessageBytes    = 1024
)

type HederaConfig struct {
	// Source is read on every Submit to resolve the operator account.
	Source config.Source
	// TopicID, when set, carries the memo as a topic message. Otherwise a
	// zero-value self-transfer carries it as the transaction memo.
	TopicID string
	// NewClient builds the network client; it defaults to shared.NewHederaClient.
	NewClient func(network string) (*hedera.Client, error)
	Logger    *zerolog.Logger
}

// HederaSubmitter submits memo transactions. The transaction ID generated for
// a key is reused until it succeeds or expires, so retried submissions of one
// memo are rejected by the network as duplicates instead of landing twice.
type HederaSubmitter struct {
	source    config.Source
	topicID   *hedera.TopicID
	newClient func(network string) (*hedera.Client, error)
	logger    zerolog.Logger

	mu      sync.Mutex
	pending map[string]hedera.TransactionID
}

// NewHederaSubmitter creates a new HederaSubmitter.
func NewHederaSubmitter(cfg HederaConfig) (*HederaSubmitter, error) {
	source := cfg.Source
	if source == nil {
		source = config.Env()
	}

	var topicID *hedera.TopicID
	if trimmed := strings.TrimSpace(cfg.TopicID); trimmed != "" {
		parsed, err := hedera.TopicIDFromString(trimmed)
		if err != nil {
			return nil, &config.ConfigurationError{
				Key:     config.KeyAnchorTopicID,
				Message: fmt.Sprintf("invalid topic ID %q", trimmed),
				Cause:   err,
			}
		}
		topicID = &parsed
	}

	newClient := cfg.NewClient
	if newClient == nil {
		newClient = shared.NewHederaClient
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &HederaSubmitter{
		source:    source,
		topicID:   topicID,
		newClient: newClient,
		logger:    logger,
		pending:   map[string]hedera.TransactionID{},
	}, nil
}

// Submit implements Submitter. Configuration problems are returned as
// permanent errors so the caller does not retry them.
func (s *HederaSubmitter) Submit(ctx context.Context, memo []byte, key string) (string, error) {
	if err := s.CheckMemo(memo); err != nil {
		return "", retry.Permanent(err)
	}

	operator, err := shared.OperatorConfigFrom(s.source)
	if err != nil {
		return "", retry.Permanent(err)
	}
	accountID, err := hedera.AccountIDFromString(operator.AccountID)
	if err != nil {
		return "", retry.Permanent(&config.ConfigurationError{
			Key:     "HEDERA_ACCOUNT_ID",
			Message: fmt.Sprintf("invalid operator account ID %q", operator.AccountID),
			Cause:   err,
		})
	}
	privateKey, err := shared.ParsePrivateKey(operator.PrivateKey)
	if err != nil {
		return "", retry.Permanent(&config.ConfigurationError{
			Key:     "HEDERA_PRIVATE_KEY",
			Message: "invalid operator private key",
			Cause:   err,
		})
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	client, err := s.newClient(operator.Network)
	if err != nil {
		return "", retry.Permanent(err)
	}
	defer client.Close()
	client.SetOperator(accountID, privateKey)

	transactionID := s.transactionID(key, accountID)
	signature := transactionID.String()

	response, err := s.execute(client, transactionID, accountID, memo)
	if err != nil {
		var precheck hedera.ErrHederaPreCheckStatus
		if errors.As(err, &precheck) {
			switch precheck.Status {
			case hedera.StatusDuplicateTransaction:
				s.logger.Info().Str("tx", signature).Msg("memo transaction already submitted")
				s.forget(key)
				return signature, nil
			case hedera.StatusTransactionExpired:
				s.forget(key)
			}
		}
		return "", fmt.Errorf("failed to submit memo transaction: %w", err)
	}

	if _, err := response.GetReceipt(client); err != nil {
		var receiptErr hedera.ErrHederaReceiptStatus
		if errors.As(err, &receiptErr) {
			s.forget(key)
		}
		return "", fmt.Errorf("failed to get memo transaction receipt: %w", err)
	}

	s.forget(key)
	return response.TransactionID.String(), nil
}

func (s *HederaSubmitter) execute(
	client *hedera.Client,
	transactionID hedera.TransactionID,
	accountID hedera.AccountID,
	memo []byte,
) (hedera.TransactionResponse, error) {
	if s.topicID != nil {
		return hedera.NewTopicMessageSubmitTransaction().
			SetTransactionID(transactionID).
			SetTopicID(*s.topicID).
			SetMessage(memo).
			Execute(client)
	}

	return hedera.NewTransferTransaction().
		SetTransactionID(transactionID).
		AddHbarTransfer(accountID, hedera.NewHbar(0)).
		SetTransactionMemo(string(memo)).
		Execute(client)
}

// CheckMemo reports whether memo fits the configured transport: a topic
// message when a topic is set, otherwise a transaction memo.
func (s *HederaSubmitter) CheckMemo(memo []byte) error {
	if s.topicID != nil {
		if len(memo) > MaxTopicMessageBytes {
			return &config.ConfigurationError{
				Key:     config.KeyAnchorTopicID,
				Message: fmt.Sprintf("memo is %d bytes, topic messages are limited to %d", len(memo), MaxTopicMessageBytes),
			}
		}
		return nil
	}
	if len(memo) > MaxTransactionMemoBytes {
		return &config.ConfigurationError{
			Key: config.KeyAnchorTopicID,
			Message: fmt.Sprintf(
				"memo is %d bytes, transaction memos are limited to %d; set %s to anchor through a topic",
				len(memo), MaxTransactionMemoBytes, config.KeyAnchorTopicID,
			),
		}
	}
	return nil
}

func (s *HederaSubmitter) transactionID(key string, accountID hedera.AccountID) hedera.TransactionID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.pending[key]; ok && existing.AccountID != nil && existing.AccountID.String() == accountID.String() {
		return existing
	}
	generated := hedera.TransactionIDGenerate(accountID)
	s.pending[key] = generated
	return generated
}

func (s *HederaSubmitter) forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, key)
}
