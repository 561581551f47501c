package provider

import (
	"github.com/rs/zerolog"
)

// Registry holds the providers that were available at startup, in a stable
// order. It is immutable after construction.
type Registry struct {
	providers []SourceSentimentProvider
	byName    map[string]SourceSentimentProvider
}

// NewRegistry keeps only the providers whose credentials and configuration
// are present, logging what was skipped.
func NewRegistry(log zerolog.Logger, candidates ...SourceSentimentProvider) *Registry {
	r := &Registry{byName: make(map[string]SourceSentimentProvider)}
	for _, p := range candidates {
		if !p.IsAvailable() {
			log.Info().Str("source", p.Name()).Msg("sentiment source not configured, skipping")
			continue
		}
		r.providers = append(r.providers, p)
		r.byName[p.Name()] = p
	}
	return r
}

// All returns the registered providers in registration order.
func (r *Registry) All() []SourceSentimentProvider {
	return r.providers
}

// Get returns the provider for a source name.
func (r *Registry) Get(name string) (SourceSentimentProvider, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Names returns the registered source names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name())
	}
	return names
}
