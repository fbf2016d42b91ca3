package shared

import (
	"fmt"
	"strings"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

const (
	NetworkMainnet    = "mainnet"
	NetworkTestnet    = "testnet"
	NetworkPreviewnet = "previewnet"
)

// networkAliases maps names left over from older deployments. The daily
// audit logs keep their devnet_ prefix for the same reason.
var networkAliases = map[string]string{
	"devnet":  NetworkTestnet,
	"hedera":  NetworkMainnet,
	"preview": NetworkPreviewnet,
}

var mirrorBaseURLs = map[string]string{
	NetworkMainnet:    "https://mainnet-public.mirrornode.hedera.com",
	NetworkTestnet:    "https://testnet.mirrornode.hedera.com",
	NetworkPreviewnet: "https://previewnet.mirrornode.hedera.com",
}

// NormalizeNetwork resolves network to one of the supported ledger names.
// An empty name selects testnet.
func NormalizeNetwork(network string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(network))
	if normalized == "" {
		return NetworkTestnet, nil
	}
	if alias, ok := networkAliases[normalized]; ok {
		normalized = alias
	}

	if _, ok := mirrorBaseURLs[normalized]; !ok {
		return "", fmt.Errorf("unsupported network %q", network)
	}
	return normalized, nil
}

// NewHederaClient creates an unauthenticated client for the named network.
// Callers set the operator before submitting.
func NewHederaClient(network string) (*hedera.Client, error) {
	normalized, err := NormalizeNetwork(network)
	if err != nil {
		return nil, err
	}

	switch normalized {
	case NetworkMainnet:
		return hedera.ClientForMainnet(), nil
	case NetworkPreviewnet:
		return hedera.ClientForPreviewnet(), nil
	default:
		return hedera.ClientForTestnet(), nil
	}
}

// DefaultMirrorBaseURL returns the public mirror node for network, falling
// back to the testnet mirror for unknown names.
func DefaultMirrorBaseURL(network string) string {
	normalized, err := NormalizeNetwork(network)
	if err != nil {
		normalized = NetworkTestnet
	}
	return mirrorBaseURLs[normalized]
}
