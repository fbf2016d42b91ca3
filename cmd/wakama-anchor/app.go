package main

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/wakama-oracle/anchor-sdk-go/pkg/anchor"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/batch"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/config"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/hashstore"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/mirror"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/pinning"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/verify"
)

type commonFlags struct {
	configPath string
	logLevel   string
}

func (c *commonFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.configPath, "config", "", "YAML or JSONC settings file layered under the environment")
	flagSet.StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

type app struct {
	source   config.Source
	provider *config.Provider
	settings config.Settings
	logger   zerolog.Logger
}

func newApp(env config.Source, flags commonFlags, stderr io.Writer) (*app, error) {
	source := env
	configPath := strings.TrimSpace(flags.configPath)
	if configPath == "" {
		configPath = config.NewProvider(env).FirstNonEmpty(config.KeyConfigFile)
	}
	if configPath != "" {
		file, err := config.LoadFile(configPath)
		if err != nil {
			return nil, err
		}
		source = config.Layered(env, file)
	}

	provider := config.NewProvider(source)
	level := flags.logLevel
	if level == "" {
		level = provider.String(config.KeyLogLevel, "info")
	}
	logger := newLogger(stderr, level)

	settings, err := provider.Settings()
	if err != nil {
		return nil, err
	}

	return &app{
		source:   source,
		provider: provider,
		settings: settings,
		logger:   logger,
	}, nil
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}

	output := w
	if file, ok := w.(*os.File); ok && isatty.IsTerminal(file.Fd()) {
		output = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}

	return zerolog.New(output).Level(parsed).With().Timestamp().Logger()
}

func (a *app) network() string {
	return a.provider.FirstNonEmpty("HEDERA_NETWORK", "NETWORK")
}

func (a *app) mirrorClient() (*mirror.Client, error) {
	return mirror.NewClient(mirror.Config{
		Network: a.network(),
		BaseURL: a.settings.MirrorBaseURL,
	})
}

func (a *app) verifyOptions() verify.Options {
	minBytes := a.settings.VerifyMinBytes
	if minBytes == 0 {
		minBytes = -1
	}
	return verify.Options{
		MinBytes:    minBytes,
		MaxAttempts: a.settings.VerifyRetryMax,
		BaseDelay:   a.settings.VerifyBaseDelay,
		Logger:      &a.logger,
	}
}

// failureReason maps an error to the short reason code printed on stdout.
func failureReason(err error) string {
	var (
		configErr   *config.ConfigurationError
		mismatchErr *verify.IntegrityMismatchError
		uploadErr   *pinning.UploadError
		anchorErr   *anchor.AnchorError
		readErr     *hashstore.ReadError
	)

	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, pinning.ErrMissingCredentials):
		return "missing_credentials"
	case errors.As(err, &configErr):
		return "configuration"
	case errors.As(err, &mismatchErr):
		if mismatchErr.Observed == "" {
			return "download_failed"
		}
		return "sha_mismatch"
	case errors.As(err, &uploadErr):
		return "upload_failed"
	case errors.As(err, &anchorErr):
		return "anchor_failed"
	case errors.Is(err, batch.ErrNoBatches):
		return "no_batch"
	case errors.As(err, &readErr):
		return "read_failed"
	default:
		return "exception"
	}
}
