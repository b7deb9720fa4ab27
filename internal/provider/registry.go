package provider

import "fmt"

// Registry holds the configured Providers a daemon can route completions
// to, keyed by Name(). The orchestrator, task worker, and passive memory
// pipeline each resolve a Provider through the same Registry instance.
type Registry struct {
	providers   map[string]Provider
	defaultName string
}

// NewRegistry builds a Registry from a set of configured providers. The
// first provider is used as the default unless defaultName names another
// registered provider.
func NewRegistry(defaultName string, providers ...Provider) (*Registry, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("provider: at least one provider is required")
	}
	reg := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		reg.providers[p.Name()] = p
	}
	if defaultName == "" {
		defaultName = providers[0].Name()
	}
	if _, ok := reg.providers[defaultName]; !ok {
		return nil, fmt.Errorf("provider: default provider %q is not registered", defaultName)
	}
	reg.defaultName = defaultName
	return reg, nil
}

// Get resolves a provider by name, falling back to the default when name
// is empty.
func (r *Registry) Get(name string) (Provider, error) {
	if name == "" {
		name = r.defaultName
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider: %q is not registered", name)
	}
	return p, nil
}

// Default returns the default provider.
func (r *Registry) Default() Provider {
	return r.providers[r.defaultName]
}

// Names lists all registered provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
