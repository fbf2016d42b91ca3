package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/wakama-oracle/anchor-sdk-go/pkg/anchor"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/batch"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/config"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/hashstore"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/receipts"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/verify"
)

// placeholderCID has the length of the shortest CID the pinning service
// returns, so a memo checked before upload is never larger than the real one.
const placeholderCID = "QmXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX"

type Uploader interface {
	Upload(ctx context.Context, filePath string, name string) (string, error)
}

type Anchorer interface {
	Anchor(ctx context.Context, memo []byte) (string, error)
	Confirm(ctx context.Context, signature string) *anchor.Confirmation
}

type Recorder interface {
	Record(receipt receipts.Receipt) (string, error)
}

type Config struct {
	Settings config.Settings
	Uploader Uploader
	Anchor   Anchorer
	Ledger   Recorder
	// Verify configures the post-upload gateway check. MinBytes is lowered
	// to the batch size for small batches; a negative value disables it.
	Verify    verify.Options
	Simulator *batch.Simulator
	Logger    *zerolog.Logger
}

type Pipeline struct {
	settings  config.Settings
	uploader  Uploader
	anchor    Anchorer
	ledger    Recorder
	verify    verify.Options
	simulator *batch.Simulator
	logger    zerolog.Logger
}

type Input struct {
	// Path selects the batch file. Empty picks the newest ingested batch.
	Path      string
	Simulated bool
}

// MemoPayload is the document anchored on the ledger.
type MemoPayload struct {
	CID    string          `json:"cid"`
	SHA256 string          `json:"sha256"`
	Count  int             `json:"count,omitempty"`
	TsMin  json.RawMessage `json:"ts_min,omitempty"`
	TsMax  json.RawMessage `json:"ts_max,omitempty"`
}

// Summary is the result of a successful run.
type Summary struct {
	OK          bool   `json:"ok"`
	Mode        string `json:"mode"`
	File        string `json:"file"`
	CID         string `json:"cid"`
	SHA256      string `json:"sha256"`
	Tx          string `json:"tx"`
	Gateway     string `json:"gateway"`
	TeamID      string `json:"teamId,omitempty"`
	Team        string `json:"team,omitempty"`
	PointsCount int    `json:"pointsCount"`
	Status      string `json:"status"`
	Slot        *int64 `json:"slot"`
	Receipt     string `json:"receipt"`
}

type resolvedBatch struct {
	path   string
	name   string
	source string
	header batch.Header
}

// New creates a new Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Uploader == nil {
		return nil, fmt.Errorf("uploader is required")
	}
	if cfg.Anchor == nil {
		return nil, fmt.Errorf("anchor is required")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}

	simulator := cfg.Simulator
	if simulator == nil {
		simulator = batch.NewSimulator()
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	verifyOptions := cfg.Verify
	if verifyOptions.Logger == nil {
		verifyOptions.Logger = &logger
	}

	return &Pipeline{
		settings:  cfg.Settings,
		uploader:  cfg.Uploader,
		anchor:    cfg.Anchor,
		ledger:    cfg.Ledger,
		verify:    verifyOptions,
		simulator: simulator,
		logger:    logger,
	}, nil
}

// Run publishes one batch. Stages run strictly in order; a failed integrity
// check stops the run before anything is anchored. Nothing is rolled back on
// failure, so a pinned object may be left without a receipt.
func (p *Pipeline) Run(ctx context.Context, input Input) (Summary, error) {
	resolved, err := p.resolve(input)
	if err != nil {
		return Summary{}, err
	}
	logger := p.logger.With().Str("file", resolved.name).Str("mode", resolved.source).Logger()

	digest, size, err := hashstore.DigestFileSize(resolved.path)
	if err != nil {
		return Summary{}, err
	}

	if checker, ok := p.anchor.(anchor.MemoChecker); ok {
		draft, err := encodeMemo(placeholderCID, digest, resolved.header)
		if err != nil {
			return Summary{}, err
		}
		if err := checker.CheckMemo(draft); err != nil {
			return Summary{}, err
		}
	}

	contentID, err := p.uploader.Upload(ctx, resolved.path, resolved.name)
	if err != nil {
		return Summary{}, err
	}
	logger.Info().Str("cid", contentID).Msg("batch pinned")

	if p.settings.SkipShaCheck {
		logger.Warn().Msgf("%s=1, skipping gateway integrity check", config.KeySkipShaCheck)
	} else if err := p.checkGateway(ctx, contentID, digest, size); err != nil {
		return Summary{}, err
	}

	memo, err := encodeMemo(contentID, digest, resolved.header)
	if err != nil {
		return Summary{}, err
	}

	signature, err := p.anchor.Anchor(ctx, memo)
	if err != nil {
		return Summary{}, err
	}
	logger.Info().Str("tx", signature).Msg("memo anchored")

	status := receipts.StatusSubmitted
	var slot *int64
	if confirmation := p.anchor.Confirm(ctx, signature); confirmation != nil {
		status = string(confirmation.Status)
		slot = confirmation.Slot
		if confirmation.Err != nil {
			logger.Warn().Err(confirmation.Err).Msg("confirmation unavailable")
		}
	}

	receipt := receipts.Receipt{
		CID:         contentID,
		SHA256:      digest,
		Tx:          signature,
		File:        resolved.name,
		Gateway:     p.settings.Gateway,
		TeamID:      p.settings.TeamID,
		Team:        p.settings.TeamName,
		Source:      resolved.source,
		PointsCount: resolved.header.Count,
		Status:      status,
		Slot:        slot,
	}
	receiptPath, err := p.ledger.Record(receipt)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		OK:          true,
		Mode:        resolved.source,
		File:        resolved.name,
		CID:         contentID,
		SHA256:      digest,
		Tx:          signature,
		Gateway:     p.settings.Gateway,
		TeamID:      p.settings.TeamID,
		Team:        p.settings.TeamName,
		PointsCount: resolved.header.Count,
		Status:      status,
		Slot:        slot,
		Receipt:     receiptPath,
	}, nil
}

func encodeMemo(contentID string, digest string, header batch.Header) ([]byte, error) {
	memo, err := json.Marshal(MemoPayload{
		CID:    contentID,
		SHA256: digest,
		Count:  header.Count,
		TsMin:  header.TsMin,
		TsMax:  header.TsMax,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode memo: %w", err)
	}
	return memo, nil
}

func (p *Pipeline) resolve(input Input) (resolvedBatch, error) {
	if input.Simulated {
		path, generated, err := p.simulator.Write(p.settings.TmpDir)
		if err != nil {
			return resolvedBatch{}, err
		}
		return resolvedBatch{
			path:   path,
			name:   filepath.Base(path),
			source: batch.SourceSimulated,
			header: batch.Header{
				Count: generated.Count,
				TsMin: json.RawMessage(strconv.FormatInt(generated.TsMin, 10)),
				TsMax: json.RawMessage(strconv.FormatInt(generated.TsMax, 10)),
			},
		}, nil
	}

	path := input.Path
	if path == "" {
		newest, err := batch.NewestFile(p.settings.IngestDir)
		if err != nil {
			return resolvedBatch{}, err
		}
		path = newest
	}

	header, err := batch.ReadHeader(path)
	if err != nil {
		return resolvedBatch{}, err
	}

	return resolvedBatch{
		path:   path,
		name:   filepath.Base(path),
		source: batch.SourceIngest,
		header: header,
	}, nil
}

func (p *Pipeline) checkGateway(ctx context.Context, contentID string, digest string, size int64) error {
	options := p.verify
	if options.MinBytes == 0 {
		options.MinBytes = verify.DefaultMinBytes
	}
	if options.MinBytes > 0 && int64(options.MinBytes) > size {
		options.MinBytes = int(size)
	}

	result := verify.New(options).Verify(ctx, contentID, digest, []string{p.settings.Gateway})
	if err := result.Err(contentID); err != nil {
		return err
	}

	p.logger.Info().Str("cid", contentID).Str("gateway", result.Gateway).Msg("gateway copy verified")
	return nil
}
