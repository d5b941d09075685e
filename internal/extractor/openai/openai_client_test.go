package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasilisafish/proposal-builder/internal/config"
	"github.com/wasilisafish/proposal-builder/internal/domain"
	"github.com/wasilisafish/proposal-builder/internal/extractor"
	"github.com/wasilisafish/proposal-builder/internal/extractor/openai"
	"github.com/wasilisafish/proposal-builder/internal/port"
)

func newTestClient(serverURL, apiKey string) *openai.Client {
	cfg := &config.ExtractorProviderConfig{
		Provider:     "openai",
		APIKey:       apiKey,
		DefaultModel: "gpt-4o-mini",
		TimeoutSecs:  30,
	}
	return openai.NewClientWithEndpoint(cfg, serverURL)
}

func successResponse(content, finish string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": finish,
			},
		},
	}
}

var testInput = port.ExtractionInput{
	Images:      []string{"data:image/png;base64,UEFHRS0x", "data:image/png;base64,UEFHRS0y"},
	Instruction: "extract the fields",
}

func TestClient_Extract_Success(t *testing.T) {
	reply := `{"carrier":{"value":"Allstate","confidence":0.95}}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-openai-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "gpt-4o-mini", reqBody["model"])
		assert.Equal(t, float64(0), reqBody["temperature"])

		messages := reqBody["messages"].([]interface{})
		require.Len(t, messages, 1)
		content := messages[0].(map[string]interface{})["content"].([]interface{})
		require.Len(t, content, 3)

		textBlock := content[0].(map[string]interface{})
		assert.Equal(t, "text", textBlock["type"])
		assert.Equal(t, "extract the fields", textBlock["text"])

		for i, want := range testInput.Images {
			block := content[i+1].(map[string]interface{})
			assert.Equal(t, "image_url", block["type"])
			assert.Equal(t, want, block["image_url"].(map[string]interface{})["url"])
		}

		_ = json.NewEncoder(w).Encode(successResponse(reply, "stop"))
	}))
	defer server.Close()

	out, err := newTestClient(server.URL, "test-openai-key").Extract(context.Background(), testInput)

	require.NoError(t, err)
	assert.Equal(t, reply, out.RawText)
	assert.Equal(t, "gpt-4o-mini", out.ModelUsed)
	assert.Equal(t, "openai", out.Provider)
}

func TestClient_Extract_MissingKeyMakesNoRequest(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, "").Extract(context.Background(), testInput)

	assert.ErrorIs(t, err, domain.ErrServiceConfiguration)
	assert.False(t, called)
}

func TestClient_Extract_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, "k").Extract(context.Background(), testInput)

	var su *domain.ServiceUnavailableError
	require.ErrorAs(t, err, &su)
	assert.Equal(t, http.StatusInternalServerError, su.StatusCode)
	assert.Contains(t, err.Error(), "boom")
}

func TestClient_Extract_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, "k").Extract(context.Background(), testInput)

	var rl *extractor.RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, "openai", rl.Provider)
	assert.Equal(t, float64(30), rl.RetryAfter.Seconds())
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestClient_Extract_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(url, "k").Extract(context.Background(), testInput)

	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestClient_Extract_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, "k").Extract(context.Background(), testInput)

	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestClient_Extract_EmptyContentIsEmptyReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(successResponse("", "stop"))
	}))
	defer server.Close()

	out, err := newTestClient(server.URL, "k").Extract(context.Background(), testInput)

	require.NoError(t, err)
	assert.Empty(t, out.RawText)
	assert.Equal(t, "openai", out.Provider)
}

func TestClient_Extract_Truncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(successResponse(`{"carrier":{"value":"All`, "length"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, "k").Extract(context.Background(), testInput)

	assert.ErrorIs(t, err, domain.ErrMalformedExtractionResponse)
	assert.ErrorIs(t, err, extractor.ErrTruncated)
}

func TestClient_Extract_Canceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(server.URL, "k").Extract(ctx, testInput)

	assert.ErrorIs(t, err, context.Canceled)
}
