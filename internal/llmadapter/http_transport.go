package llmadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPTransport is a Transport that posts a JSON generation request to a provider's
// HTTP endpoint and decodes its JSON response, the same call shape
// internal/classifier.Classifier.doRequest uses against the classifier service.
type HTTPTransport struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

// NewHTTPTransport builds an HTTPTransport. A nil client gets a default one.
func NewHTTPTransport(endpoint, apiKey string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{Endpoint: endpoint, APIKey: apiKey, Client: client}
}

type httpTransportRequest struct {
	ModelID         string    `json:"model_id"`
	Messages        []Message `json:"messages"`
	Temperature     float64   `json:"temperature"`
	MaxOutputTokens int       `json:"max_output_tokens"`
}

type httpTransportResponse struct {
	Content          string `json:"content"`
	TokensPrompt     int    `json:"tokens_prompt"`
	TokensCompletion int    `json:"tokens_completion"`
}

// Do implements Transport.
func (t *HTTPTransport) Do(ctx context.Context, req Request) (string, int, int, error) {
	body, err := json.Marshal(httpTransportRequest{
		ModelID:         req.ModelID,
		Messages:        req.Messages,
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxOutputTokens,
	})
	if err != nil {
		return "", 0, 0, fmt.Errorf("llmadapter: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, 0, fmt.Errorf("llmadapter: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.APIKey)
	}

	resp, err := t.Client.Do(httpReq)
	if err != nil {
		return "", 0, 0, fmt.Errorf("llmadapter: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, 0, fmt.Errorf("llmadapter: provider %s returned status %d", req.ModelID, resp.StatusCode)
	}

	var out httpTransportResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, 0, fmt.Errorf("llmadapter: decode response: %w", err)
	}
	return out.Content, out.TokensPrompt, out.TokensCompletion, nil
}

var _ Transport = (*HTTPTransport)(nil)
