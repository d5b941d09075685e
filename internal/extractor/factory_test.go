package extractor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasilisafish/proposal-builder/internal/config"
	"github.com/wasilisafish/proposal-builder/internal/extractor"
	"github.com/wasilisafish/proposal-builder/internal/port"
	"github.com/wasilisafish/proposal-builder/mocks"
)

func TestRegistry_New_UnknownProvider(t *testing.T) {
	r := extractor.NewRegistry()

	_, err := r.New(&config.ExtractorProviderConfig{Provider: "nonexistent"}, &config.ExtractorConfig{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown extractor provider")
}

func TestRegistry_Build_FollowsChainOrder(t *testing.T) {
	r := extractor.NewRegistry()
	var seen []string
	factory := func(cfg *config.ExtractorProviderConfig, _ *config.ExtractorConfig) (port.ExtractionClient, error) {
		seen = append(seen, cfg.Provider+"/"+cfg.APIKey)
		return new(mocks.MockExtractionClient), nil
	}
	r.Register("openai", factory)
	r.Register("gemini", factory)

	clients, err := r.Build(&config.ExtractorConfig{
		Primary:   config.ExtractorProviderConfig{Provider: "gemini", APIKey: "g"},
		Secondary: config.ExtractorProviderConfig{Provider: "openai", APIKey: "o"},
	})

	require.NoError(t, err)
	require.Len(t, clients, 2)
	assert.Equal(t, "gemini", clients[0].Name)
	assert.Equal(t, "openai", clients[1].Name)
	assert.Equal(t, []string{"gemini/g", "openai/o"}, seen)
	assert.Equal(t, []string{"gemini", "openai"}, r.Names())
}
