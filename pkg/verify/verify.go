package verify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/wakama-oracle/anchor-sdk-go/pkg/hashstore"
)

const (
	DefaultMinBytes    = 2000
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 250 * time.Millisecond
	DefaultMaxBodySize = 256 << 20
)

type Options struct {
	// MinBytes is the smallest object accepted as real content. Zero means
	// DefaultMinBytes.
	MinBytes    int
	MaxAttempts int
	// BaseDelay precedes the second attempt and doubles after that. Zero
	// means DefaultBaseDelay.
	BaseDelay time.Duration
	// MaxBodySize caps the bytes read per object. Zero means
	// DefaultMaxBodySize.
	MaxBodySize int64
	HTTPClient  *http.Client
	Logger      *zerolog.Logger
	// Timer overrides the sleep between fetch attempts; nil uses real time.
	Timer backoff.Timer
}

type Verifier struct {
	minBytes    int
	maxAttempts int
	baseDelay   time.Duration
	maxBodySize int64
	httpClient  *http.Client
	logger      zerolog.Logger
	timer       backoff.Timer
}

// Result is the outcome of one verification. Gateway and Observed are empty
// when no gateway produced a plausible object.
type Result struct {
	Matched  bool     `json:"matched"`
	Gateway  string   `json:"gateway,omitempty"`
	Observed string   `json:"sha256,omitempty"`
	Expected string   `json:"expected"`
	Size     int64    `json:"size,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// Err returns nil for a match and an IntegrityMismatchError otherwise.
func (r Result) Err(cid string) error {
	if r.Matched {
		return nil
	}
	return &IntegrityMismatchError{
		CID:      cid,
		Expected: r.Expected,
		Observed: r.Observed,
		Gateway:  r.Gateway,
		Errors:   append([]string(nil), r.Errors...),
	}
}

// New creates a new Verifier.
func New(options Options) *Verifier {
	minBytes := options.MinBytes
	if minBytes == 0 {
		minBytes = DefaultMinBytes
	}
	if minBytes < 0 {
		minBytes = 0
	}
	maxAttempts := options.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	baseDelay := options.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	maxBodySize := options.MaxBodySize
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	logger := zerolog.Nop()
	if options.Logger != nil {
		logger = *options.Logger
	}

	return &Verifier{
		minBytes:    minBytes,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxBodySize: maxBodySize,
		httpClient:  httpClient,
		logger:      logger,
		timer:       options.Timer,
	}
}

// MinBytes returns the size threshold in use.
func (v *Verifier) MinBytes() int {
	return v.minBytes
}

// Verify tries gateways in order and stops at the first one that serves an
// object of at least MinBytes. Only that object's digest is compared.
func (v *Verifier) Verify(ctx context.Context, cid string, expected string, gateways []string) Result {
	result := Result{Expected: strings.ToLower(strings.TrimSpace(expected))}

	for _, gateway := range gateways {
		gateway = strings.TrimRight(strings.TrimSpace(gateway), "/")
		if gateway == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s:%v", gateway, err))
			continue
		}

		body, err := v.fetch(ctx, gateway+"/"+cid)
		if err != nil {
			v.logger.Warn().Str("gateway", gateway).Str("cid", cid).Err(err).Msg("gateway fetch failed")
			result.Errors = append(result.Errors, fmt.Sprintf("%s:%v", gateway, err))
			continue
		}
		if len(body) < v.minBytes {
			v.logger.Warn().Str("gateway", gateway).Int("size", len(body)).Int("min_bytes", v.minBytes).Msg("gateway object too small")
			result.Errors = append(result.Errors, "too_small@"+gateway)
			continue
		}

		result.Gateway = gateway
		result.Size = int64(len(body))
		result.Observed = hashstore.DigestBytes(body)
		result.Matched = hashstore.Equal(result.Observed, result.Expected)
		return result
	}

	return result
}

func (v *Verifier) fetch(ctx context.Context, url string) ([]byte, error) {
	attempt := 0
	operation := func() ([]byte, error) {
		attempt++
		return v.get(ctx, url)
	}
	notify := func(err error, delay time.Duration) {
		v.logger.Debug().
			Str("url", url).
			Int("attempt", attempt).
			Int("max_attempts", v.maxAttempts).
			Err(err).
			Dur("backoff", delay).
			Msg("gateway fetch retry")
	}

	return backoff.RetryNotifyWithTimerAndData(operation, v.schedule(ctx), notify, v.timer)
}

func (v *Verifier) get(ctx context.Context, url string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	response, err := v.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		io.Copy(io.Discard, response.Body)
		return nil, &StatusError{Status: response.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, v.maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > v.maxBodySize {
		return nil, backoff.Permanent(&ObjectTooLargeError{Limit: v.maxBodySize})
	}
	return body, nil
}

func (v *Verifier) schedule(ctx context.Context) backoff.BackOff {
	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = v.baseDelay
	exponential.RandomizationFactor = 0
	exponential.Multiplier = 2
	exponential.MaxInterval = time.Hour
	exponential.MaxElapsedTime = 0
	exponential.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exponential, uint64(v.maxAttempts-1)), ctx)
}
