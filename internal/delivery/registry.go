package delivery

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry maps an integration-type string to a plugin factory. Several type
// aliases may resolve to the same factory (e.g. "n8n" and "custom" both build
// the webhook plugin).
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds an integration type to a factory, replacing any previous
// binding.
func (r *Registry) Register(integrationType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[integrationType] = factory
}

// Alias registers a second type name for an already registered factory.
func (r *Registry) Alias(alias, integrationType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.factories[integrationType]
	if !ok {
		return fmt.Errorf("cannot alias %q: type %q is not registered", alias, integrationType)
	}
	r.factories[alias] = f
	return nil
}

// IsRegistered reports whether the type resolves to a factory.
func (r *Registry) IsRegistered(integrationType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[integrationType]
	return ok
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Get resolves and constructs a plugin. Unknown types and factory failures
// (including panics) return nil after logging; construction problems must
// never propagate as exceptions to the orchestrator.
func (r *Registry) Get(integrationType string, config map[string]any, credentials map[string]string) Plugin {
	r.mu.RLock()
	factory, ok := r.factories[integrationType]
	r.mu.RUnlock()
	if !ok {
		log.Warn().Str("type", integrationType).Msg("No plugin registered for integration type")
		return nil
	}

	var plugin Plugin
	var err error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("plugin constructor panicked: %v", rec)
			}
		}()
		plugin, err = factory(config, credentials)
	}()
	if err != nil {
		log.Error().Err(err).Str("type", integrationType).Msg("Failed to construct plugin")
		return nil
	}
	return plugin
}
