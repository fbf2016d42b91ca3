package pinning

import (
	"errors"

	"github.com/wakama-oracle/anchor-sdk-go/pkg/config"
)

// ErrMissingCredentials means neither a bearer token nor a key/secret pair is
// configured.
var ErrMissingCredentials = errors.New("PINATA_JWT or PINATA_API_KEY/PINATA_API_SECRET is required")

type Credentials struct {
	JWT       string
	APIKey    string
	APISecret string
}

// CredentialsProvider is consulted on every upload so rotated secrets are
// picked up without a restart.
type CredentialsProvider interface {
	Credentials() Credentials
}

type CredentialsFunc func() Credentials

func (f CredentialsFunc) Credentials() Credentials {
	return f()
}

// CredentialsFrom reads the pinning credentials from source at call time.
func CredentialsFrom(source config.Source) CredentialsProvider {
	provider := config.NewProvider(source)
	return CredentialsFunc(func() Credentials {
		return Credentials{
			JWT:       provider.FirstNonEmpty(config.KeyPinataJWT),
			APIKey:    provider.FirstNonEmpty(config.KeyPinataAPIKey, config.KeyPinataKeyLegacy),
			APISecret: provider.FirstNonEmpty(config.KeyPinataAPISecret, config.KeyPinataSecretLegacy),
		}
	})
}

func (c Credentials) hasJWT() bool {
	return c.JWT != ""
}

func (c Credentials) hasKeyPair() bool {
	return c.APIKey != "" && c.APISecret != ""
}

func (c Credentials) validate() error {
	if c.hasJWT() || c.hasKeyPair() {
		return nil
	}
	return &config.ConfigurationError{
		Key:     config.KeyPinataJWT,
		Message: "pinning credentials missing",
		Cause:   ErrMissingCredentials,
	}
}

func (c Credentials) operationName() string {
	if c.hasJWT() {
		return "pinFileToIPFS(JWT)"
	}
	return "pinFileToIPFS(apiKey)"
}
