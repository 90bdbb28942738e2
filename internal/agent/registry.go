package agent

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ProviderRegistry holds the configured LLM providers keyed by name.
// Lookup is case-insensitive. Safe for concurrent use.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]LLMProvider
}

// NewProviderRegistry creates an empty provider registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]LLMProvider),
	}
}

// Register adds a provider, replacing any existing provider with the
// same name.
func (r *ProviderRegistry) Register(p LLMProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[strings.ToLower(p.Name())] = p
}

// Resolve returns the provider for name. An unknown name yields an error
// listing every registered provider so misconfiguration is obvious.
func (r *ProviderRegistry) Resolve(name string) (LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		if len(r.providers) == 0 {
			return nil, ErrNoProvider
		}
		return nil, fmt.Errorf("unknown provider %q, available: %s",
			name, strings.Join(r.availableLocked(), ", "))
	}
	return p, nil
}

// Available returns the registered provider names in sorted order.
func (r *ProviderRegistry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.availableLocked()
}

func (r *ProviderRegistry) availableLocked() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
