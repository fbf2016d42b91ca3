package anchor

import (
	"context"
	"errors"
	"fmt"

	"github.com/wakama-oracle/anchor-sdk-go/pkg/mirror"
)

// MirrorStatus answers confirmation queries from a mirror node. The slot is
// the number of the record block holding the transaction.
type MirrorStatus struct {
	client *mirror.Client
}

// NewMirrorStatus creates a new MirrorStatus.
func NewMirrorStatus(client *mirror.Client) *MirrorStatus {
	return &MirrorStatus{client: client}
}

// Status implements StatusQuerier.
func (m *MirrorStatus) Status(ctx context.Context, signature string) (Confirmation, error) {
	transaction, err := m.client.GetTransaction(ctx, signature)
	if err != nil {
		var statusErr *mirror.StatusError
		if errors.As(err, &statusErr) && statusErr.NotFound() {
			return Confirmation{Status: StatusSubmitted}, nil
		}
		return Confirmation{}, err
	}
	if transaction == nil {
		return Confirmation{Status: StatusSubmitted}, nil
	}

	confirmation := Confirmation{Status: StatusProcessed}
	if transaction.Result == mirror.ResultSuccess {
		confirmation.Status = StatusFinalized
	}

	if block, err := m.client.GetBlockAt(ctx, transaction.ConsensusTimestamp); err == nil && block != nil {
		number := block.Number
		confirmation.Slot = &number
	}

	return confirmation, nil
}

// Memo reads back the memo bytes recorded by the transaction, from the topic
// message for topic submissions or the transaction memo otherwise.
func (m *MirrorStatus) Memo(ctx context.Context, signature string) ([]byte, error) {
	transaction, err := m.client.GetTransaction(ctx, signature)
	if err != nil {
		return nil, err
	}
	if transaction == nil {
		return nil, fmt.Errorf("transaction %s not found", signature)
	}

	if transaction.Name == mirror.TransactionNameSubmitMessage {
		message, err := m.client.GetTopicMessageByTimestamp(ctx, transaction.ConsensusTimestamp)
		if err != nil {
			return nil, err
		}
		return mirror.DecodeMessageData(*message)
	}

	return mirror.DecodeMemo(*transaction)
}
