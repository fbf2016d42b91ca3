package mirror

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wakama-oracle/anchor-sdk-go/pkg/shared"
)

type Config struct {
	Network    string
	BaseURL    string
	HTTPClient *http.Client
	APIKey     string
	Headers    map[string]string
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	headers    map[string]string
}

// StatusError is a non-2xx mirror node response.
type StatusError struct {
	Status int
	Path   string
	Body   string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "mirror node request failed"
	}
	return fmt.Sprintf("mirror node request %s failed with status %d: %s", e.Path, e.Status, e.Body)
}

// NotFound reports whether the mirror node has no record of the resource yet.
func (e *StatusError) NotFound() bool {
	return e != nil && e.Status == http.StatusNotFound
}

// NewClient creates a new Client.
func NewClient(config Config) (*Client, error) {
	network, err := shared.NormalizeNetwork(config.Network)
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = shared.DefaultMirrorBaseURL(network)
	}
	parsedBaseURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid mirror base URL: %w", err)
	}
	if parsedBaseURL.Scheme != "http" && parsedBaseURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid mirror base URL: scheme must be http or https")
	}
	if strings.TrimSpace(parsedBaseURL.Host) == "" {
		return nil, fmt.Errorf("invalid mirror base URL: host is required")
	}
	baseURL = strings.TrimRight(parsedBaseURL.String(), "/")

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	headers := map[string]string{}
	for key, value := range config.Headers {
		headers[key] = value
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		apiKey:     strings.TrimSpace(config.APIKey),
		headers:    headers,
	}, nil
}

// BaseURL returns the normalized mirror node URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetTransaction returns the first record for transactionID, or nil when the
// mirror node returns an empty list.
func (c *Client) GetTransaction(ctx context.Context, transactionID string) (*Transaction, error) {
	normalized := NormalizeTransactionID(transactionID)
	if normalized == "" {
		return nil, fmt.Errorf("transaction ID is required")
	}

	var response transactionsResponse
	path := fmt.Sprintf("/api/v1/transactions/%s", url.PathEscape(normalized))
	if err := c.getJSON(ctx, path, &response); err != nil {
		return nil, err
	}

	if len(response.Transactions) == 0 {
		return nil, nil
	}

	return &response.Transactions[0], nil
}

// GetBlockAt returns the record block whose range starts at or before the
// consensus timestamp.
func (c *Client) GetBlockAt(ctx context.Context, consensusTimestamp string) (*Block, error) {
	trimmed := strings.TrimSpace(consensusTimestamp)
	if trimmed == "" {
		return nil, fmt.Errorf("consensus timestamp is required")
	}

	values := url.Values{}
	values.Set("timestamp", "lte:"+trimmed)
	values.Set("order", "desc")
	values.Set("limit", "1")

	var response blocksResponse
	if err := c.getJSON(ctx, "/api/v1/blocks?"+values.Encode(), &response); err != nil {
		return nil, err
	}
	if len(response.Blocks) == 0 {
		return nil, nil
	}

	return &response.Blocks[0], nil
}

// GetTopicMessageByTimestamp returns the topic message recorded at the
// consensus timestamp.
func (c *Client) GetTopicMessageByTimestamp(ctx context.Context, consensusTimestamp string) (*TopicMessage, error) {
	trimmed := strings.TrimSpace(consensusTimestamp)
	if trimmed == "" {
		return nil, fmt.Errorf("consensus timestamp is required")
	}

	var message TopicMessage
	path := fmt.Sprintf("/api/v1/topics/messages/%s", url.PathEscape(trimmed))
	if err := c.getJSON(ctx, path, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

// DecodeMessageData returns the raw bytes of a topic message.
func DecodeMessageData(message TopicMessage) ([]byte, error) {
	if strings.TrimSpace(message.Message) == "" {
		return nil, fmt.Errorf("message payload is empty")
	}
	return base64.StdEncoding.DecodeString(message.Message)
}

// DecodeMemo returns the raw transaction memo bytes.
func DecodeMemo(transaction Transaction) ([]byte, error) {
	if strings.TrimSpace(transaction.MemoBase64) == "" {
		return nil, fmt.Errorf("transaction memo is empty")
	}
	return base64.StdEncoding.DecodeString(transaction.MemoBase64)
}

// NormalizeTransactionID converts the SDK form 0.0.1@1700000000.000000001
// into the mirror node path form 0.0.1-1700000000-000000001.
func NormalizeTransactionID(transactionID string) string {
	trimmed := strings.TrimSpace(transactionID)
	if !strings.Contains(trimmed, "@") {
		return trimmed
	}

	parts := strings.Split(trimmed, "@")
	if len(parts) != 2 {
		return trimmed
	}

	return parts[0] + "-" + strings.ReplaceAll(parts[1], ".", "-")
}

func (c *Client) getJSON(ctx context.Context, pathOrURL string, target any) error {
	requestURL := c.resolveURL(pathOrURL)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	request.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		request.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}
	for key, value := range c.headers {
		request.Header.Set(key, value)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("mirror node request failed: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("failed to read mirror node response: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return &StatusError{
			Status: response.StatusCode,
			Path:   pathOrURL,
			Body:   strings.TrimSpace(string(body)),
		}
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode mirror node response: %w", err)
	}

	return nil
}

func (c *Client) resolveURL(pathOrURL string) string {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		return pathOrURL
	}

	path := pathOrURL
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return c.baseURL + path
}
