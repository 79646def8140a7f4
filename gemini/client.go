package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-pro"

	apiKeyHeader = "x-goog-api-key"
	maxBodyBytes = 10 << 20
)

// Client is the upstream text-generation endpoint.
type Client interface {
	GenerateContent(ctx context.Context, msgs []Message) (*GenerateContentResponse, error)
	// ListModels returns the upstream model listing as raw JSON.
	ListModels(ctx context.Context) (json.RawMessage, error)
	Close() error
}

type ClientConfig struct {
	APIKey    string
	ModelName string // empty for "gemini-pro"
	BaseURL   string // empty for DefaultBaseURL
}

func (c ClientConfig) model() string {
	name := c.ModelName
	if name == "" {
		name = DefaultModel
	}
	return strings.TrimPrefix(name, "models/")
}

// RESTClient talks to the Generative Language REST API directly. The key is
// sent in a header so it never shows up in URLs or access logs.
type RESTClient struct {
	cfg        ClientConfig
	baseURL    string
	httpClient *http.Client
}

func NewRESTClient(cfg ClientConfig, httpClient *http.Client) *RESTClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &RESTClient{
		cfg:        cfg,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *RESTClient) GenerateContent(ctx context.Context, msgs []Message) (*GenerateContentResponse, error) {
	body, err := json.Marshal(NewRequest(msgs))
	if err != nil {
		return nil, fmt.Errorf("failed to encode gemini request: %w", err)
	}
	endpoint := c.baseURL + "/models/" + url.PathEscape(c.cfg.model()) + ":generateContent"
	data, err := c.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	resp := &GenerateContentResponse{}
	if err := json.Unmarshal(data, resp); err != nil {
		return nil, fmt.Errorf("failed to decode gemini response: %w", err)
	}
	return resp, nil
}

func (c *RESTClient) ListModels(ctx context.Context) (json.RawMessage, error) {
	data, err := c.do(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("gemini returned a non-JSON model listing")
	}
	return json.RawMessage(data), nil
}

func (c *RESTClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *RESTClient) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build gemini request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read gemini response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		errResp := &ErrorResponse{}
		if json.Unmarshal(data, errResp) == nil {
			apiErr.Detail = errResp.Error
		}
		log.Debugf("gemini %s %s: status %d", method, req.URL.Path, resp.StatusCode)
		return nil, apiErr
	}
	return data, nil
}
