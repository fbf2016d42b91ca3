package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/rs/zerolog"

	"github.com/wakama-oracle/anchor-sdk-go/pkg/config"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/hashstore"
	"github.com/wakama-oracle/anchor-sdk-go/pkg/retry"
)

const pinFilePath = "/pinning/pinFileToIPFS"

type Config struct {
	BaseURL     string
	HTTPClient  *http.Client
	Credentials CredentialsProvider
	Retry       *retry.Executor
	Logger      *zerolog.Logger
}

type Client struct {
	baseURL     string
	httpClient  *http.Client
	credentials CredentialsProvider
	retry       *retry.Executor
	logger      zerolog.Logger
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// NewClient creates a new Client. Credentials default to the process
// environment.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = config.DefaultPinataAPIURL
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, &config.ConfigurationError{
			Key:     config.KeyPinataAPIURL,
			Message: fmt.Sprintf("invalid pinning base URL %q", baseURL),
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	credentials := cfg.Credentials
	if credentials == nil {
		credentials = CredentialsFrom(config.Env())
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	executor := cfg.Retry
	if executor == nil {
		executor = retry.New(retry.Config{Logger: &logger})
	}

	return &Client{
		baseURL:     baseURL,
		httpClient:  httpClient,
		credentials: credentials,
		retry:       executor,
		logger:      logger,
	}, nil
}

// Upload pins the file at filePath under name and returns its CID.
// Credentials are resolved before any request is made.
func (c *Client) Upload(ctx context.Context, filePath string, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		name = filepath.Base(filePath)
	}

	credentials := c.credentials.Credentials()
	if err := credentials.validate(); err != nil {
		return "", err
	}

	contentID, err := retry.Execute(ctx, c.retry, credentials.operationName(), func(attemptContext context.Context) (string, error) {
		return c.pin(attemptContext, credentials, filePath, name)
	})
	if err != nil {
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			return "", &UploadError{Name: name, Cause: err}
		}
		return "", err
	}

	c.logger.Debug().Str("file", name).Str("cid", contentID).Msg("pinned")
	return contentID, nil
}

func (c *Client) pin(ctx context.Context, credentials Credentials, filePath string, name string) (string, error) {
	body, contentType, err := encodeUpload(filePath, name)
	if err != nil {
		return "", retry.Permanent(err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pinFilePath, body)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	request.Header.Set("Content-Type", contentType)
	request.Header.Set("Accept", "application/json")
	if credentials.hasJWT() {
		request.Header.Set("Authorization", "Bearer "+credentials.JWT)
	} else {
		request.Header.Set("pinata_api_key", credentials.APIKey)
		request.Header.Set("pinata_secret_api_key", credentials.APISecret)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("pinning request failed: %w", err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read pinning response: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", &StatusError{Status: response.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var decoded pinResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode pinning response: %w", err)
	}

	contentID := strings.TrimSpace(decoded.IpfsHash)
	if contentID == "" {
		return "", fmt.Errorf("pinning response missing CID")
	}
	if _, err := cid.Decode(contentID); err != nil {
		return "", fmt.Errorf("pinning response returned invalid CID %q: %w", contentID, err)
	}

	return contentID, nil
}

func encodeUpload(filePath string, name string) (io.Reader, string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, "", &hashstore.ReadError{Path: filePath, Cause: err}
	}
	defer file.Close()

	buffer := &bytes.Buffer{}
	writer := multipart.NewWriter(buffer)

	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", &hashstore.ReadError{Path: filePath, Cause: err}
	}

	metadata, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return nil, "", err
	}
	if err := writer.WriteField("pinataMetadata", string(metadata)); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return buffer, writer.FormDataContentType(), nil
}
