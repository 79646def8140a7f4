package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// SDKClient is the generative-ai-go backed Client. It ignores
// ClientConfig.BaseURL; the SDK picks its own endpoint.
type SDKClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewSDKClient sends every SDK request through hc (http.DefaultTransport
// when nil) with the key in the x-goog-api-key header, never in the URL.
func NewSDKClient(ctx context.Context, cfg ClientConfig, hc *http.Client, opts ...option.ClientOption) (*SDKClient, error) {
	keyed := &http.Client{}
	if hc != nil {
		*keyed = *hc
	}
	keyed.Transport = &apiKeyTransport{key: cfg.APIKey, base: keyed.Transport}

	opts = append([]option.ClientOption{option.WithHTTPClient(keyed)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &SDKClient{
		client: client,
		model:  client.GenerativeModel(cfg.model()),
	}, nil
}

func (c *SDKClient) GenerateContent(ctx context.Context, msgs []Message) (*GenerateContentResponse, error) {
	if len(msgs) == 0 {
		return nil, errors.New("no message to send")
	}
	cs := c.model.StartChat()
	for _, m := range msgs[:len(msgs)-1] {
		cs.History = append(cs.History, &genai.Content{
			Role:  m.Role,
			Parts: []genai.Part{genai.Text(m.Text)},
		})
	}
	resp, err := cs.SendMessage(ctx, genai.Text(msgs[len(msgs)-1].Text))
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return fromBlocked(resp, blocked), nil
		}
		return nil, fmt.Errorf("failed to generate text: %w", err)
	}
	return fromSDKResponse(resp), nil
}

// fromBlocked turns a safety or recitation block into a response carrying
// no reply text, the same thing the REST API returns for it.
func fromBlocked(resp *genai.GenerateContentResponse, blocked *genai.BlockedError) *GenerateContentResponse {
	if resp != nil {
		return fromSDKResponse(resp)
	}
	out := &GenerateContentResponse{}
	if blocked.Candidate != nil {
		out.Candidates = append(out.Candidates, fromSDKCandidate(blocked.Candidate))
	}
	return out
}

func fromSDKResponse(resp *genai.GenerateContentResponse) *GenerateContentResponse {
	out := &GenerateContentResponse{}
	if resp == nil {
		return out
	}
	for _, cand := range resp.Candidates {
		if cand == nil {
			continue
		}
		out.Candidates = append(out.Candidates, fromSDKCandidate(cand))
	}
	return out
}

func fromSDKCandidate(cand *genai.Candidate) *Candidate {
	c := &Candidate{FinishReason: cand.FinishReason.String()}
	if cand.Content == nil {
		return c
	}
	c.Content = &Content{Role: cand.Content.Role}
	for _, part := range cand.Content.Parts {
		var text *string
		switch p := part.(type) {
		case genai.Text:
			s := string(p)
			text = &s
		case genai.Blob:
			s := fmt.Sprintf("<%d bytes %s data>", len(p.Data), p.MIMEType)
			text = &s
		}
		c.Content.Parts = append(c.Content.Parts, &Part{Text: text})
	}
	return c
}

type apiKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	req = req.Clone(req.Context())
	req.Header.Set("x-goog-api-key", t.key)
	return base.RoundTrip(req)
}

type modelInfo struct {
	Name                       string   `json:"name"`
	BaseModelID                string   `json:"baseModelId,omitempty"`
	Version                    string   `json:"version,omitempty"`
	DisplayName                string   `json:"displayName,omitempty"`
	Description                string   `json:"description,omitempty"`
	InputTokenLimit            int32    `json:"inputTokenLimit,omitempty"`
	OutputTokenLimit           int32    `json:"outputTokenLimit,omitempty"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods,omitempty"`
}

// ListModels renders the SDK listing in the same shape as the REST API.
func (c *SDKClient) ListModels(ctx context.Context) (json.RawMessage, error) {
	var models []modelInfo
	it := c.client.ListModels(ctx)
	for {
		m, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list models: %w", err)
		}
		models = append(models, modelInfo{
			Name:                       m.Name,
			BaseModelID:                m.BaseModelID,
			Version:                    m.Version,
			DisplayName:                m.DisplayName,
			Description:                m.Description,
			InputTokenLimit:            m.InputTokenLimit,
			OutputTokenLimit:           m.OutputTokenLimit,
			SupportedGenerationMethods: m.SupportedGenerationMethods,
		})
	}
	data, err := json.Marshal(struct {
		Models []modelInfo `json:"models"`
	}{models})
	if err != nil {
		return nil, fmt.Errorf("failed to encode model listing: %w", err)
	}
	return data, nil
}

func (c *SDKClient) Close() error {
	return c.client.Close()
}
