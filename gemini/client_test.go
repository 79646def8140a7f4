package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestRESTClient_GenerateContent(t *testing.T) {
	var gotReq GenerateContentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-pro:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.Query().Get("key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &gotReq))
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"hi there"}]}}]}`))
	}))
	defer srv.Close()

	c := NewRESTClient(ClientConfig{APIKey: "secret", BaseURL: srv.URL + "/v1beta/"}, srv.Client())
	resp, err := c.GenerateContent(context.Background(), []Message{
		{Role: RoleUser, Text: "hello"},
		{Role: RoleModel, Text: "hey"},
		{Role: RoleUser, Text: "how are you"},
	})
	require.NoError(t, err)

	text, ok := resp.FirstText()
	assert.True(t, ok)
	assert.Equal(t, "hi there", text)

	require.Len(t, gotReq.Contents, 3)
	assert.Equal(t, RoleModel, gotReq.Contents[1].Role)
	assert.Equal(t, "how are you", *gotReq.Contents[2].Parts[0].Text)
}

func TestRESTClient_ModelPrefix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewRESTClient(ClientConfig{APIKey: "k", ModelName: "models/gemini-1.5-flash", BaseURL: srv.URL}, nil)
	_, err := c.GenerateContent(context.Background(), []Message{{Role: RoleUser, Text: "x"}})
	require.NoError(t, err)
}

func TestRESTClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	c := NewRESTClient(ClientConfig{APIKey: "bad", BaseURL: srv.URL}, srv.Client())
	_, err := c.GenerateContent(context.Background(), []Message{{Role: RoleUser, Text: "x"}})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.NotNil(t, apiErr.Detail)
	assert.Equal(t, "INVALID_ARGUMENT", apiErr.Detail.Status)
	assert.Contains(t, err.Error(), "API key not valid")
}

func TestRESTClient_APIErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	c := NewRESTClient(ClientConfig{APIKey: "k", BaseURL: srv.URL}, srv.Client())
	_, err := c.GenerateContent(context.Background(), []Message{{Role: RoleUser, Text: "x"}})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Nil(t, apiErr.Detail)
	assert.Equal(t, "gemini: 502 Bad Gateway", err.Error())
}

func TestRESTClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":`))
	}))
	defer srv.Close()

	c := NewRESTClient(ClientConfig{APIKey: "k", BaseURL: srv.URL}, srv.Client())
	_, err := c.GenerateContent(context.Background(), []Message{{Role: RoleUser, Text: "x"}})
	assert.ErrorContains(t, err, "decode")
}

func TestRESTClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewRESTClient(ClientConfig{APIKey: "k", BaseURL: url}, nil)
	_, err := c.GenerateContent(context.Background(), []Message{{Role: RoleUser, Text: "x"}})
	assert.ErrorContains(t, err, "gemini request failed")
}

func TestRESTClient_ListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/models", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))
		w.Write([]byte(`{"models":[{"name":"models/gemini-pro"}]}`))
	}))
	defer srv.Close()

	c := NewRESTClient(ClientConfig{APIKey: "k", BaseURL: srv.URL}, srv.Client())
	raw, err := c.ListModels(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"models":[{"name":"models/gemini-pro"}]}`, string(raw))
}

func TestRESTClient_ListModelsNotJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewRESTClient(ClientConfig{APIKey: "k", BaseURL: srv.URL}, srv.Client())
	_, err := c.ListModels(context.Background())
	assert.Error(t, err)
}

func TestFirstText(t *testing.T) {
	tests := []struct {
		name   string
		resp   *GenerateContentResponse
		want   string
		wantOK bool
	}{
		{"nil response", nil, "", false},
		{"no candidates", &GenerateContentResponse{}, "", false},
		{"nil candidate", &GenerateContentResponse{Candidates: []*Candidate{nil}}, "", false},
		{"no content", &GenerateContentResponse{Candidates: []*Candidate{{FinishReason: "SAFETY"}}}, "", false},
		{"no parts", &GenerateContentResponse{Candidates: []*Candidate{{Content: &Content{}}}}, "", false},
		{"part without text", &GenerateContentResponse{Candidates: []*Candidate{{Content: &Content{Parts: []*Part{{}}}}}}, "", false},
		{"empty text", &GenerateContentResponse{Candidates: []*Candidate{{Content: &Content{Parts: []*Part{{Text: strPtr("")}}}}}}, "", true},
		{"text", &GenerateContentResponse{Candidates: []*Candidate{{Content: &Content{Parts: []*Part{{Text: strPtr("a")}, {Text: strPtr("b")}}}}}}, "a", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.resp.FirstText()
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFromSDKResponse(t *testing.T) {
	resp := fromSDKResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role: "model",
				Parts: []genai.Part{
					genai.Text("hello"),
					genai.Blob{MIMEType: "image/png", Data: []byte{1, 2, 3}},
				},
			},
		}},
	})

	text, ok := resp.FirstText()
	assert.True(t, ok)
	assert.Equal(t, "hello", text)
	assert.Equal(t, "<3 bytes image/png data>", *resp.Candidates[0].Content.Parts[1].Text)

	_, ok = fromSDKResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{}},
	}).FirstText()
	assert.False(t, ok)
}
