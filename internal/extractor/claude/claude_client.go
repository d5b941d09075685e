package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wasilisafish/proposal-builder/internal/config"
	"github.com/wasilisafish/proposal-builder/internal/encoder"
	"github.com/wasilisafish/proposal-builder/internal/extractor"
	"github.com/wasilisafish/proposal-builder/internal/port"
)

const (
	apiURL       = "https://api.anthropic.com/v1/messages"
	apiVersion   = "2023-06-01"
	providerName = "claude"
)

// Client implements port.ExtractionClient using the Anthropic Messages API.
type Client struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewClient creates a Claude extraction client from a provider config.
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
		model = "claude-sonnet-4-20250514"
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
		return nil, fmt.Errorf("claude: no images to extract from")
	}

	contentBlocks, err := buildContentBlocks(input)
	if err != nil {
		return nil, fmt.Errorf("building content blocks: %w", err)
	}

	reqBody := map[string]interface{}{
		"model":       c.model,
		"max_tokens":  2048,
		"temperature": 0,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": contentBlocks,
			},
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
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, extractor.TransportError(providerName, fmt.Errorf("calling anthropic API: %w", err))
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

// buildContentBlocks sends page images in order followed by the instruction.
func buildContentBlocks(input port.ExtractionInput) ([]map[string]interface{}, error) {
	blocks := make([]map[string]interface{}, 0, len(input.Images)+1)
	for i, uri := range input.Images {
		mediaType, data, err := encoder.Payload(uri)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		blocks = append(blocks, map[string]interface{}{
			"type": "image",
			"source": map[string]interface{}{
				"type":       "base64",
				"media_type": mediaType,
				"data":       data,
			},
		})
	}
	blocks = append(blocks, map[string]interface{}{
		"type": "text",
		"text": input.Instruction,
	})
	return blocks, nil
}

// apiResponse models the Anthropic Messages API response.
type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func parseResponse(body []byte, model string) (*port.ExtractionOutput, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, extractor.TransportError(providerName, fmt.Errorf("unmarshaling response: %w", err))
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := b.String()
	if text == "" {
		return &port.ExtractionOutput{ModelUsed: model, Provider: providerName}, nil
	}

	if resp.StopReason == "max_tokens" {
		return nil, extractor.TruncatedReply(text)
	}

	return &port.ExtractionOutput{
		RawText:   text,
		ModelUsed: model,
		Provider:  providerName,
	}, nil
}
