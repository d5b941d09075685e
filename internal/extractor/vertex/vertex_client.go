package vertex

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/vertexai/genai"

	"github.com/wasilisafish/proposal-builder/internal/config"
	"github.com/wasilisafish/proposal-builder/internal/domain"
	"github.com/wasilisafish/proposal-builder/internal/encoder"
	"github.com/wasilisafish/proposal-builder/internal/extractor"
	"github.com/wasilisafish/proposal-builder/internal/port"
)

const (
	providerName   = "vertex"
	defaultTimeout = 120 * time.Second
)

// Generator is the subset of *genai.GenerativeModel the client uses.
type Generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client implements port.ExtractionClient using Gemini on Vertex AI.
// The SDK client is created on first use with Application Default Credentials.
type Client struct {
	project string
	region  string
	model   string

	timeout time.Duration

	mu        sync.Mutex
	base      *genai.Client
	generator Generator
}

// NewClient creates a Vertex AI extraction client.
func NewClient(cfg *config.ExtractorProviderConfig, project, region string) *Client {
	model := cfg.DefaultModel
	if model == "" {
		model = "gemini-1.5-pro"
	}
	timeout := defaultTimeout
	if cfg.TimeoutSecs > 0 {
		timeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}
	return &Client{project: project, region: region, model: model, timeout: timeout}
}

// NewClientWithGenerator creates a client around a ready generator (for testing).
func NewClientWithGenerator(model string, g Generator) *Client {
	return &Client{project: "test", region: "test", model: model, timeout: defaultTimeout, generator: g}
}

// Factory adapts NewClient to extractor.ProviderFactory.
func Factory(cfg *config.ExtractorProviderConfig, ext *config.ExtractorConfig) (port.ExtractionClient, error) {
	return NewClient(cfg, ext.VertexProject, ext.VertexRegion), nil
}

func (c *Client) Extract(ctx context.Context, input port.ExtractionInput) (*port.ExtractionOutput, error) {
	if c.project == "" || c.region == "" {
		return nil, extractor.MissingCredentials(providerName, "vertex project and region")
	}
	if len(input.Images) == 0 {
		return nil, fmt.Errorf("vertex: no images to extract from")
	}

	gen, err := c.generatorFor(ctx)
	if err != nil {
		return nil, err
	}

	parts := make([]genai.Part, 0, len(input.Images)+1)
	for i, uri := range input.Images {
		mimeType, data, err := encoder.Decode(uri)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		parts = append(parts, genai.Blob{MIMEType: mimeType, Data: data})
	}
	parts = append(parts, genai.Text(input.Instruction))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := gen.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, extractor.TransportError(providerName, fmt.Errorf("genai.GenerateContent: %w", err))
	}
	return parseResponse(resp, c.model)
}

func (c *Client) generatorFor(ctx context.Context) (Generator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generator != nil {
		return c.generator, nil
	}
	base, err := genai.NewClient(ctx, c.project, c.region)
	if err != nil {
		return nil, &domain.ServiceConfigurationError{Provider: providerName, Reason: fmt.Sprintf("creating client: %v", err)}
	}
	model := base.GenerativeModel(c.model)
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}
	c.base = base
	c.generator = model
	return model, nil
}

// Close releases the SDK client, if one was created.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}

func parseResponse(resp *genai.GenerateContentResponse, model string) (*port.ExtractionOutput, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, extractor.TransportError(providerName, fmt.Errorf("empty response from API"))
	}
	var b strings.Builder
	if content := resp.Candidates[0].Content; content != nil {
		for _, part := range content.Parts {
			if txt, ok := part.(genai.Text); ok {
				b.WriteString(string(txt))
			}
		}
	}
	text := b.String()
	if text == "" {
		return &port.ExtractionOutput{ModelUsed: model, Provider: providerName}, nil
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		return nil, extractor.TruncatedReply(text)
	}
	return &port.ExtractionOutput{
		RawText:   text,
		ModelUsed: model,
		Provider:  providerName,
	}, nil
}
