package extractor

import (
	"fmt"
	"sort"

	"github.com/wasilisafish/proposal-builder/internal/config"
	"github.com/wasilisafish/proposal-builder/internal/port"
)

// ProviderFactory creates an ExtractionClient from a provider config. ext
// carries settings shared across providers.
type ProviderFactory func(cfg *config.ExtractorProviderConfig, ext *config.ExtractorConfig) (port.ExtractionClient, error)

// Registry maps provider names to factories.
type Registry struct {
	providers map[string]ProviderFactory
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: map[string]ProviderFactory{}}
}

// Register registers a provider factory by name.
func (r *Registry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New creates an ExtractionClient from a provider config using the registered factory.
func (r *Registry) New(cfg *config.ExtractorProviderConfig, ext *config.ExtractorConfig) (port.ExtractionClient, error) {
	factory, ok := r.providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown extractor provider: %q (registered: %v)", cfg.Provider, r.Names())
	}
	return factory(cfg, ext)
}

// Build creates one client per configured provider in fallback order.
func (r *Registry) Build(ext *config.ExtractorConfig) ([]NamedClient, error) {
	var clients []NamedClient
	for _, pc := range ext.Chain() {
		c, err := r.New(pc, ext)
		if err != nil {
			return nil, err
		}
		clients = append(clients, NamedClient{Name: pc.Provider, Client: c})
	}
	return clients, nil
}
