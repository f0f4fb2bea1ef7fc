package llms

import (
	"fmt"
	"strings"
	"sync"
)

// ProviderFactory constructs a provider client. A factory that cannot build
// a usable client (missing credentials, unsupported configuration) returns a
// *ClassifiedError.
type ProviderFactory func() (Provider, error)

// Registry is the lazily-populated provider-client cache. Factories are
// registered once at startup; clients are constructed on first resolve and
// shared afterwards. Resolution failures are cached too, so a misconfigured
// provider fails fast on every call instead of re-attempting construction.
type Registry struct {
	mu sync.Mutex

	defaultProvider string
	factories       map[string]ProviderFactory
	clients         map[string]Provider
	failures        map[string]error
}

// NewRegistry creates an empty registry that resolves bare model strings
// against defaultProvider.
func NewRegistry(defaultProvider string) *Registry {
	return &Registry{
		defaultProvider: defaultProvider,
		factories:       map[string]ProviderFactory{},
		clients:         map[string]Provider{},
		failures:        map[string]error{},
	}
}

// Register adds a provider factory under the given name, replacing any
// previous registration.
func (r *Registry) Register(name string, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[name] = factory
	delete(r.clients, name)
	delete(r.failures, name)
}

// Resolve returns the cached client for a provider, constructing it on
// first use.
func (r *Registry) Resolve(name string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[name]; ok {
		return client, nil
	}
	if err, ok := r.failures[name]; ok {
		return nil, err
	}

	factory, ok := r.factories[name]
	if !ok {
		err := NewError(ErrorModelUnavailable, fmt.Sprintf("unsupported provider %q", name), nil)
		r.failures[name] = err
		return nil, err
	}

	client, err := factory()
	if err != nil {
		logger.Warn("provider client initialisation failed", "provider", name, "error", err)
		r.failures[name] = err
		return nil, err
	}
	r.clients[name] = client
	return client, nil
}

// ParseModel splits a "provider:model" string. A missing or unregistered
// provider prefix leaves the whole string as the model name under the
// default provider, matching how bare model names are configured.
func (r *Registry) ParseModel(model string) (provider string, name string) {
	if prefix, rest, found := strings.Cut(model, ":"); found {
		r.mu.Lock()
		_, known := r.factories[prefix]
		r.mu.Unlock()
		if known {
			return prefix, rest
		}
	}
	return r.defaultProvider, model
}
