package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 800 * time.Millisecond

	jitterFactor = 0.2
	multiplier   = 2
)

// NoDelay as Config.BaseDelay retries immediately. A zero BaseDelay selects
// DefaultBaseDelay.
const NoDelay time.Duration = -1

type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *zerolog.Logger
	// Timer overrides the sleep between attempts; nil uses real time.
	Timer backoff.Timer
}

type Executor struct {
	maxAttempts int
	baseDelay   time.Duration
	logger      zerolog.Logger
	timer       backoff.Timer
}

// ExhaustedError is returned once every attempt of an operation has failed.
type ExhaustedError struct {
	Operation string
	Attempts  int
	Last      error
}

func (e *ExhaustedError) Error() string {
	if e == nil {
		return "retry exhausted"
	}
	return fmt.Sprintf("%s: failed after %d attempts: %v", e.Operation, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Last
}

// New creates a new Executor.
func New(config Config) *Executor {
	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	baseDelay := config.BaseDelay
	switch {
	case baseDelay == 0:
		baseDelay = DefaultBaseDelay
	case baseDelay < 0:
		baseDelay = 0
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	return &Executor{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		logger:      logger,
		timer:       config.Timer,
	}
}

// MaxAttempts returns the attempt cap.
func (e *Executor) MaxAttempts() int {
	return e.maxAttempts
}

// BaseDelay returns the delay that precedes the second attempt before jitter.
func (e *Executor) BaseDelay() time.Duration {
	return e.baseDelay
}

// DelayBounds returns the inclusive range the jittered delay after the given
// 0-indexed failed attempt falls in.
func (e *Executor) DelayBounds(attempt int) (time.Duration, time.Duration) {
	nominal := float64(e.baseDelay) * math.Pow(multiplier, float64(attempt))
	delta := jitterFactor * nominal
	return time.Duration(nominal - delta), time.Duration(nominal + delta)
}

// Permanent marks err as not worth retrying. The executor returns it as-is
// instead of an ExhaustedError.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs operation until it succeeds or the attempt cap is reached.
func (e *Executor) Do(ctx context.Context, name string, operation func(context.Context) error) error {
	_, err := Execute(ctx, e, name, func(attemptContext context.Context) (struct{}, error) {
		return struct{}{}, operation(attemptContext)
	})
	return err
}

// Execute runs operation through executor and returns its first successful
// result.
func Execute[T any](
	ctx context.Context,
	executor *Executor,
	name string,
	operation func(context.Context) (T, error),
) (T, error) {
	attempts := 0
	permanent := false

	wrapped := func() (T, error) {
		attempts++
		value, err := operation(ctx)
		if err != nil {
			var permanentErr *backoff.PermanentError
			if errors.As(err, &permanentErr) {
				permanent = true
			}
		}
		return value, err
	}

	notify := func(err error, delay time.Duration) {
		executor.logger.Warn().
			Str("operation", name).
			Int("attempt", attempts).
			Int("max_attempts", executor.maxAttempts).
			Err(err).
			Dur("backoff", delay).
			Msgf("%s: attempt %d/%d failed", name, attempts, executor.maxAttempts)
	}

	value, err := backoff.RetryNotifyWithTimerAndData(wrapped, executor.schedule(ctx), notify, executor.timer)
	if err == nil {
		return value, nil
	}
	if permanent {
		return value, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return value, fmt.Errorf("%s: %w", name, ctxErr)
	}

	return value, &ExhaustedError{
		Operation: name,
		Attempts:  attempts,
		Last:      err,
	}
}

func (e *Executor) schedule(ctx context.Context) backoff.BackOff {
	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = e.baseDelay
	exponential.RandomizationFactor = jitterFactor
	exponential.Multiplier = multiplier
	exponential.MaxInterval = time.Duration(math.MaxInt64)
	exponential.MaxElapsedTime = 0
	exponential.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exponential, uint64(e.maxAttempts-1)), ctx)
}
