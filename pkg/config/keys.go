package config

const (
	KeyPinataJWT          = "PINATA_JWT"
	KeyPinataAPIKey       = "PINATA_API_KEY"
	KeyPinataKeyLegacy    = "PINATA_KEY"
	KeyPinataAPISecret    = "PINATA_API_SECRET"
	KeyPinataSecretLegacy = "PINATA_SECRET_API_KEY"
	KeyPinataAPIURL       = "PINATA_API_URL"

	KeyAnchorTopicID = "ANCHOR_TOPIC_ID"
	KeyAnchorWallet  = "ANCHOR_WALLET"
	KeyHederaKeyFile = "HEDERA_KEY_FILE"

	KeyAnchorProviderURL = "ANCHOR_PROVIDER_URL"
	KeyRPCURL            = "RPC_URL"
	KeyMirrorBaseURL     = "MIRROR_BASE_URL"

	KeyGateway      = "NEXT_PUBLIC_IPFS_GATEWAY"
	KeyGateways     = "IPFS_GATEWAYS"
	KeyIngestDir    = "INGEST_DIR"
	KeyRetryMax     = "PUBLISH_RETRY_MAX"
	KeyBackoffMS    = "PUBLISH_BACKOFF_MS"
	KeySkipShaCheck = "PUBLISH_SKIP_SHA_CHECK"

	KeyVerifyMinBytes  = "VERIFY_MIN_BYTES"
	KeyVerifyRetryMax  = "VERIFY_RETRY_MAX"
	KeyVerifyBackoffMS = "VERIFY_BACKOFF_MS"

	KeyTeamID   = "TEAM_ID"
	KeyTeamName = "TEAM_NAME"

	KeyRunsDir     = "RUNS_DIR"
	KeyReceiptsDir = "RECEIPTS_DIR"
	KeyTmpDir      = "TMP_DIR"

	KeyConfigFile = "WAKAMA_CONFIG"
	KeyLogLevel   = "LOG_LEVEL"
)

const (
	DefaultPinataAPIURL    = "https://api.pinata.cloud"
	DefaultGateway         = "https://gateway.pinata.cloud/ipfs"
	DefaultVerifyMinBytes  = 2000
	DefaultVerifyRetryMax  = 4
	DefaultVerifyBackoffMS = 250
	DefaultRetryMax        = 5
	DefaultBackoffMS       = 800
)

// DefaultGateways is the ordered candidate list for standalone verification.
var DefaultGateways = []string{
	"https://gateway.pinata.cloud/ipfs",
	"https://ipfs.io/ipfs",
	"https://cloudflare-ipfs.com/ipfs",
}
