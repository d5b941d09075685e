package vertex_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasilisafish/proposal-builder/internal/config"
	"github.com/wasilisafish/proposal-builder/internal/domain"
	"github.com/wasilisafish/proposal-builder/internal/extractor/vertex"
	"github.com/wasilisafish/proposal-builder/internal/port"
)

type fakeGenerator struct {
	parts       []genai.Part
	resp        *genai.GenerateContentResponse
	err         error
	deadline    time.Time
	hasDeadline bool
}

func (g *fakeGenerator) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	g.parts = parts
	g.deadline, g.hasDeadline = ctx.Deadline()
	return g.resp, g.err
}

func textResponse(text string, finish genai.FinishReason) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content:      &genai.Content{Parts: []genai.Part{genai.Text(text)}},
				FinishReason: finish,
			},
		},
	}
}

var input = port.ExtractionInput{
	Images:      []string{"data:image/png;base64,UEFHRS0x", "data:image/png;base64,UEFHRS0y"},
	Instruction: "extract",
}

func TestClient_Extract_Success(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(`{"carrier":{"value":"Chubb","confidence":0.9}}`, genai.FinishReasonStop)}
	c := vertex.NewClientWithGenerator("gemini-1.5-pro", gen)

	out, err := c.Extract(context.Background(), input)

	require.NoError(t, err)
	assert.Contains(t, out.RawText, "Chubb")
	assert.Equal(t, "vertex", out.Provider)

	require.Len(t, gen.parts, 3)
	first, ok := gen.parts[0].(genai.Blob)
	require.True(t, ok)
	assert.Equal(t, "image/png", first.MIMEType)
	assert.Equal(t, "PAGE-1", string(first.Data))
	second := gen.parts[1].(genai.Blob)
	assert.Equal(t, "PAGE-2", string(second.Data))
	assert.Equal(t, genai.Text("extract"), gen.parts[2])
}

func TestClient_Extract_MissingProject(t *testing.T) {
	c := vertex.NewClient(&config.ExtractorProviderConfig{Provider: "vertex"}, "", "us-central1")

	_, err := c.Extract(context.Background(), input)

	assert.ErrorIs(t, err, domain.ErrServiceConfiguration)
}

func TestClient_Extract_SDKError(t *testing.T) {
	c := vertex.NewClientWithGenerator("m", &fakeGenerator{err: errors.New("quota exceeded")})

	_, err := c.Extract(context.Background(), input)

	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestClient_Extract_EmptyResponse(t *testing.T) {
	c := vertex.NewClientWithGenerator("m", &fakeGenerator{resp: &genai.GenerateContentResponse{}})

	_, err := c.Extract(context.Background(), input)

	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestClient_Extract_MaxTokens(t *testing.T) {
	c := vertex.NewClientWithGenerator("m", &fakeGenerator{resp: textResponse(`{"carrier"`, genai.FinishReasonMaxTokens)})

	_, err := c.Extract(context.Background(), input)

	assert.ErrorIs(t, err, domain.ErrMalformedExtractionResponse)
}

func TestClient_Extract_BoundsCallWithDeadline(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(`{}`, genai.FinishReasonStop)}
	c := vertex.NewClientWithGenerator("m", gen)

	start := time.Now()
	_, err := c.Extract(context.Background(), input)

	require.NoError(t, err)
	require.True(t, gen.hasDeadline)
	assert.WithinDuration(t, start.Add(120*time.Second), gen.deadline, 5*time.Second)
}

func TestClient_Extract_KeepsEarlierCallerDeadline(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(`{}`, genai.FinishReasonStop)}
	c := vertex.NewClientWithGenerator("m", gen)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	want, _ := ctx.Deadline()

	_, err := c.Extract(ctx, input)

	require.NoError(t, err)
	require.True(t, gen.hasDeadline)
	assert.Equal(t, want, gen.deadline)
}

func TestClient_Extract_NoTextPartsIsEmptyReply(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{}, FinishReason: genai.FinishReasonStop}},
	}
	c := vertex.NewClientWithGenerator("m", &fakeGenerator{resp: resp})

	out, err := c.Extract(context.Background(), input)

	require.NoError(t, err)
	assert.Empty(t, out.RawText)
	assert.Equal(t, "vertex", out.Provider)
}
