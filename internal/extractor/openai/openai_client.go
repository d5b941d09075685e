package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wasilisafish/proposal-builder/internal/config"
	"github.com/wasilisafish/proposal-builder/internal/extractor"
	"github.com/wasilisafish/proposal-builder/internal/port"
)

const (
	apiURL       = "https://api.openai.com/v1/chat/completions"
	providerName = "openai"
)

// Client implements port.ExtractionClient using the OpenAI Chat Completions API.
type Client struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewClient creates an OpenAI extraction client from a provider config.
func NewClient(cfg *config.ExtractorProviderConfig) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = apiURL
	}
	return newClient(cfg, endpoint)
}

// NewClientWithEndpoint creates a client pointing at a custom API endpoint (for testing).
func NewClientWithEndpoint(cfg *config.ExtractorProviderConfig, endpoint string) *Client {
	return newClient(cfg, endpoint)
}

// Factory adapts NewClient to extractor.ProviderFactory.
func Factory(cfg *config.ExtractorProviderConfig, _ *config.ExtractorConfig) (port.ExtractionClient, error) {
	return NewClient(cfg), nil
}

func newClient(cfg *config.ExtractorProviderConfig, endpoint string) *Client {
	model := cfg.DefaultModel
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *Client) Extract(ctx context.Context, input port.ExtractionInput) (*port.ExtractionOutput, error) {
	if c.apiKey == "" {
		return nil, extractor.MissingCredentials(providerName, "API key")
	}
	if len(input.Images) == 0 {
		return nil, fmt.Errorf("openai: no images to extract from")
	}

	reqBody := map[string]interface{}{
		"model":       c.model,
		"temperature": 0,
		"max_tokens":  1500,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": buildContentBlocks(input),
			},
		},
		"response_format": map[string]interface{}{
			"type": "json_object",
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, extractor.TransportError(providerName, fmt.Errorf("calling openai API: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, extractor.TransportError(providerName, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, extractor.StatusError(providerName, resp, respBody)
	}

	return parseResponse(respBody, c.model)
}

// buildContentBlocks puts the instruction first, then every page image in order.
func buildContentBlocks(input port.ExtractionInput) []map[string]interface{} {
	blocks := make([]map[string]interface{}, 0, len(input.Images)+1)
	blocks = append(blocks, map[string]interface{}{
		"type": "text",
		"text": input.Instruction,
	})
	for _, uri := range input.Images {
		blocks = append(blocks, map[string]interface{}{
			"type": "image_url",
			"image_url": map[string]interface{}{
				"url":    uri,
				"detail": "high",
			},
		})
	}
	return blocks
}

// apiResponse models the OpenAI Chat Completions API response.
type apiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func parseResponse(body []byte, model string) (*port.ExtractionOutput, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, extractor.TransportError(providerName, fmt.Errorf("unmarshaling response: %w", err))
	}

	if len(resp.Choices) == 0 {
		return nil, extractor.TransportError(providerName, fmt.Errorf("empty response from API: no choices"))
	}

	text := resp.Choices[0].Message.Content
	if text == "" {
		return &port.ExtractionOutput{ModelUsed: model, Provider: providerName}, nil
	}
	if resp.Choices[0].FinishReason == "length" {
		return nil, extractor.TruncatedReply(text)
	}

	return &port.ExtractionOutput{
		RawText:   text,
		ModelUsed: model,
		Provider:  providerName,
	}, nil
}
