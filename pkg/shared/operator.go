package shared

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"

	"github.com/wakama-oracle/anchor-sdk-go/pkg/config"
)

type OperatorConfig struct {
	AccountID  string
	PrivateKey string
	Network    string
}

// OperatorConfigFrom resolves the anchoring account from source. The key may
// be given inline or through a wallet file (ANCHOR_WALLET / HEDERA_KEY_FILE).
func OperatorConfigFrom(source config.Source) (OperatorConfig, error) {
	provider := config.NewProvider(source)

	network, err := NormalizeNetwork(provider.FirstNonEmpty("HEDERA_NETWORK", "NETWORK"))
	if err != nil {
		return OperatorConfig{}, &config.ConfigurationError{Key: "HEDERA_NETWORK", Message: "invalid ledger network", Cause: err}
	}

	accountID := provider.FirstNonEmpty("HEDERA_ACCOUNT_ID", "HEDERA_OPERATOR_ID", "ACCOUNT_ID", "OPERATOR_ID")
	privateKey := provider.FirstNonEmpty("HEDERA_PRIVATE_KEY", "HEDERA_OPERATOR_KEY", "PRIVATE_KEY", "OPERATOR_KEY")

	switch network {
	case NetworkMainnet:
		if scopedAccount := provider.FirstNonEmpty("MAINNET_HEDERA_ACCOUNT_ID", "MAINNET_OPERATOR_ID"); scopedAccount != "" {
			accountID = scopedAccount
		}
		if scopedKey := provider.FirstNonEmpty("MAINNET_HEDERA_PRIVATE_KEY", "MAINNET_OPERATOR_KEY"); scopedKey != "" {
			privateKey = scopedKey
		}
	case NetworkTestnet:
		if scopedAccount := provider.FirstNonEmpty("TESTNET_HEDERA_ACCOUNT_ID", "TESTNET_OPERATOR_ID"); scopedAccount != "" {
			accountID = scopedAccount
		}
		if scopedKey := provider.FirstNonEmpty("TESTNET_HEDERA_PRIVATE_KEY", "TESTNET_OPERATOR_KEY"); scopedKey != "" {
			privateKey = scopedKey
		}
	}

	if walletPath := provider.FirstNonEmpty(config.KeyAnchorWallet, config.KeyHederaKeyFile); walletPath != "" {
		wallet, err := ReadWalletFile(walletPath)
		if err != nil {
			return OperatorConfig{}, err
		}
		if wallet.PrivateKey != "" {
			privateKey = wallet.PrivateKey
		}
		if accountID == "" {
			accountID = wallet.AccountID
		}
	}

	if accountID == "" {
		return OperatorConfig{}, &config.ConfigurationError{Key: "HEDERA_ACCOUNT_ID", Message: "HEDERA_ACCOUNT_ID is required"}
	}
	if privateKey == "" {
		return OperatorConfig{}, &config.ConfigurationError{Key: "HEDERA_PRIVATE_KEY", Message: "HEDERA_PRIVATE_KEY or ANCHOR_WALLET is required"}
	}

	return OperatorConfig{
		AccountID:  accountID,
		PrivateKey: privateKey,
		Network:    network,
	}, nil
}

// WalletFile is the on-disk keypair. Either a bare private key string or a
// JSON object with accountId/privateKey fields is accepted.
type WalletFile struct {
	AccountID  string `json:"accountId"`
	PrivateKey string `json:"privateKey"`
}

// ReadWalletFile reads the keypair file at path.
func ReadWalletFile(path string) (WalletFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return WalletFile{}, &config.ConfigurationError{
			Key:     config.KeyAnchorWallet,
			Message: fmt.Sprintf("cannot read wallet file %s", path),
			Cause:   err,
		}
	}

	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		var wallet WalletFile
		if err := json.Unmarshal([]byte(trimmed), &wallet); err != nil {
			return WalletFile{}, &config.ConfigurationError{
				Key:     config.KeyAnchorWallet,
				Message: fmt.Sprintf("invalid wallet file %s", path),
				Cause:   err,
			}
		}
		wallet.AccountID = strings.TrimSpace(wallet.AccountID)
		wallet.PrivateKey = strings.TrimSpace(wallet.PrivateKey)
		return wallet, nil
	}

	return WalletFile{PrivateKey: trimmed}, nil
}

// ParsePrivateKey parses the provided input value.
func ParsePrivateKey(raw string) (hedera.PrivateKey, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return hedera.PrivateKey{}, fmt.Errorf("private key cannot be empty")
	}

	ed25519Key, edErr := hedera.PrivateKeyFromStringEd25519(candidate)
	if edErr == nil {
		return ed25519Key, nil
	}

	ecdsaKey, ecdsaErr := hedera.PrivateKeyFromStringECDSA(candidate)
	if ecdsaErr == nil {
		return ecdsaKey, nil
	}

	genericKey, genericErr := hedera.PrivateKeyFromString(candidate)
	if genericErr == nil {
		return genericKey, nil
	}

	return hedera.PrivateKey{}, fmt.Errorf(
		"failed to parse private key as ED25519 (%v), ECDSA (%v), or generic (%v)",
		edErr,
		ecdsaErr,
		genericErr,
	)
}
