package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Provider reads typed values from a Source on every call.
type Provider struct {
	source Source
}

// NewProvider creates a new Provider. A nil source reads the environment.
func NewProvider(source Source) *Provider {
	if source == nil {
		source = Env()
	}
	return &Provider{source: source}
}

// Source returns the underlying lookup.
func (p *Provider) Source() Source {
	return p.source
}

// String returns the trimmed value of key, or fallback when unset.
func (p *Provider) String(key string, fallback string) string {
	if value := p.FirstNonEmpty(key); value != "" {
		return value
	}
	return fallback
}

// FirstNonEmpty returns the first key with a non-blank value.
func (p *Provider) FirstNonEmpty(keys ...string) string {
	for _, key := range keys {
		value, ok := p.source.Lookup(key)
		if !ok {
			continue
		}
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// Int parses key as a base-10 integer.
func (p *Provider) Int(key string, fallback int) (int, error) {
	raw := p.FirstNonEmpty(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ConfigurationError{Key: key, Message: fmt.Sprintf("invalid %s=%q", key, raw), Cause: err}
	}
	return value, nil
}

// Millis parses key as a non-negative number of milliseconds.
func (p *Provider) Millis(key string, fallback int) (time.Duration, error) {
	value, err := p.Int(key, fallback)
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, &ConfigurationError{Key: key, Message: fmt.Sprintf("%s must not be negative", key)}
	}
	return time.Duration(value) * time.Millisecond, nil
}

// Bool reports whether key is set to 1, true, yes or on.
func (p *Provider) Bool(key string) bool {
	switch strings.ToLower(p.FirstNonEmpty(key)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// List splits a comma separated value, dropping blanks.
func (p *Provider) List(key string, fallback []string) []string {
	raw := p.FirstNonEmpty(key)
	if raw == "" {
		return append([]string(nil), fallback...)
	}

	items := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// Settings is the non-secret part of the configuration, resolved once per run.
type Settings struct {
	PinataAPIURL    string
	Gateway         string
	Gateways        []string
	IngestDir       string
	RunsDir         string
	ReceiptsDir     string
	TmpDir          string
	RetryMax        int
	RetryBaseDelay  time.Duration
	VerifyRetryMax  int
	VerifyBaseDelay time.Duration
	VerifyMinBytes  int
	SkipShaCheck    bool
	TeamID          string
	TeamName        string
	AnchorTopicID   string
	MirrorBaseURL   string
}

// Settings resolves the current Settings.
func (p *Provider) Settings() (Settings, error) {
	retryMax, err := p.Int(KeyRetryMax, DefaultRetryMax)
	if err != nil {
		return Settings{}, err
	}
	if retryMax <= 0 {
		return Settings{}, &ConfigurationError{Key: KeyRetryMax, Message: fmt.Sprintf("%s must be positive", KeyRetryMax)}
	}
	retryBase, err := p.Millis(KeyBackoffMS, DefaultBackoffMS)
	if err != nil {
		return Settings{}, err
	}
	verifyRetryMax, err := p.Int(KeyVerifyRetryMax, DefaultVerifyRetryMax)
	if err != nil {
		return Settings{}, err
	}
	if verifyRetryMax <= 0 {
		return Settings{}, &ConfigurationError{Key: KeyVerifyRetryMax, Message: fmt.Sprintf("%s must be positive", KeyVerifyRetryMax)}
	}
	verifyBase, err := p.Millis(KeyVerifyBackoffMS, DefaultVerifyBackoffMS)
	if err != nil {
		return Settings{}, err
	}
	minBytes, err := p.Int(KeyVerifyMinBytes, DefaultVerifyMinBytes)
	if err != nil {
		return Settings{}, err
	}
	if minBytes < 0 {
		return Settings{}, &ConfigurationError{Key: KeyVerifyMinBytes, Message: fmt.Sprintf("%s must not be negative", KeyVerifyMinBytes)}
	}

	teamID := p.FirstNonEmpty(KeyTeamID)
	teamName := p.FirstNonEmpty(KeyTeamName)
	if teamName == "" {
		teamName = teamID
	}
	if teamName == "" {
		teamName = "unknown"
	}

	return Settings{
		PinataAPIURL:    strings.TrimRight(p.String(KeyPinataAPIURL, DefaultPinataAPIURL), "/"),
		Gateway:         strings.TrimRight(p.String(KeyGateway, DefaultGateway), "/"),
		Gateways:        p.List(KeyGateways, DefaultGateways),
		IngestDir:       p.String(KeyIngestDir, defaultIngestDir()),
		RunsDir:         p.String(KeyRunsDir, "runs"),
		ReceiptsDir:     p.String(KeyReceiptsDir, "receipts"),
		TmpDir:          p.String(KeyTmpDir, "tmp"),
		RetryMax:        retryMax,
		RetryBaseDelay:  retryBase,
		VerifyRetryMax:  verifyRetryMax,
		VerifyBaseDelay: verifyBase,
		VerifyMinBytes:  minBytes,
		SkipShaCheck:    p.Bool(KeySkipShaCheck),
		TeamID:          teamID,
		TeamName:        teamName,
		AnchorTopicID:   p.FirstNonEmpty(KeyAnchorTopicID),
		MirrorBaseURL:   p.FirstNonEmpty(KeyAnchorProviderURL, KeyRPCURL, KeyMirrorBaseURL),
	}, nil
}

func defaultIngestDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home = "/home"
	}
	return filepath.Join(home, "dev", "wakama", "wakama-oracle-ingest")
}
