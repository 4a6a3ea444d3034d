package providers

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrProviderNotFound is returned when a provider is not registered
	ErrProviderNotFound = errors.New("provider not found")

	// ErrProviderAlreadyRegistered is returned when trying to register a duplicate provider
	ErrProviderAlreadyRegistered = errors.New("provider already registered")
)

// Registry holds the embedding and completion providers known to the process,
// keyed by provider name.
type Registry struct {
	mu          sync.RWMutex
	embedders   map[string]EmbeddingProvider
	completions map[string]CompletionProvider
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		embedders:   make(map[string]EmbeddingProvider),
		completions: make(map[string]CompletionProvider),
	}
}

// RegisterEmbedding registers an embedding provider under its Name
func (r *Registry) RegisterEmbedding(p EmbeddingProvider) error {
	if p == nil {
		return errors.New("provider cannot be nil")
	}
	name := p.Name()
	if name == "" {
		return errors.New("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.embedders[name]; exists {
		return ErrProviderAlreadyRegistered
	}
	r.embedders[name] = p
	return nil
}

// RegisterCompletion registers a completion provider under its Name
func (r *Registry) RegisterCompletion(p CompletionProvider) error {
	if p == nil {
		return errors.New("provider cannot be nil")
	}
	name := p.Name()
	if name == "" {
		return errors.New("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.completions[name]; exists {
		return ErrProviderAlreadyRegistered
	}
	r.completions[name] = p
	return nil
}

// Embedding returns the embedding provider registered as name
func (r *Registry) Embedding(name string) (EmbeddingProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.embedders[name]
	if !ok {
		return nil, fmt.Errorf("embedding %q: %w", name, ErrProviderNotFound)
	}
	return p, nil
}

// Completion returns the completion provider registered as name
func (r *Registry) Completion(name string) (CompletionProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.completions[name]
	if !ok {
		return nil, fmt.Errorf("completion %q: %w", name, ErrProviderNotFound)
	}
	return p, nil
}

// ListProviders returns the sorted, de-duplicated names of all registered providers
func (r *Registry) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.embedders)+len(r.completions))
	for name := range r.embedders {
		seen[name] = struct{}{}
	}
	for name := range r.completions {
		seen[name] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Provider is satisfied by adapters that serve both embeddings and completions
type Provider interface {
	EmbeddingProvider
	CompletionProvider
}

// ProviderBuilder is a function that creates a provider instance
type ProviderBuilder func(config ProviderConfig) (Provider, error)

// RegistryBuilder helps build a registry with multiple providers
type RegistryBuilder struct {
	builders map[string]ProviderBuilder
}

// NewRegistryBuilder creates a new registry builder
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{
		builders: make(map[string]ProviderBuilder),
	}
}

// WithProviderBuilder registers a provider builder
func (rb *RegistryBuilder) WithProviderBuilder(name string, builder ProviderBuilder) *RegistryBuilder {
	rb.builders[name] = builder
	return rb
}

// Build creates a provider for every configured name that has a builder and
// registers it for both embeddings and completions. Names without a builder fail.
func (rb *RegistryBuilder) Build(configs map[string]ProviderConfig) (*Registry, error) {
	registry := NewRegistry()

	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		builder, ok := rb.builders[name]
		if !ok {
			return nil, fmt.Errorf("no builder for provider %s: %w", name, ErrProviderNotFound)
		}
		provider, err := builder(configs[name])
		if err != nil {
			return nil, fmt.Errorf("failed to build provider %s: %w", name, err)
		}
		if err := registry.RegisterEmbedding(provider); err != nil {
			return nil, fmt.Errorf("failed to register provider %s: %w", name, err)
		}
		if err := registry.RegisterCompletion(provider); err != nil {
			return nil, fmt.Errorf("failed to register provider %s: %w", name, err)
		}
	}

	return registry, nil
}
