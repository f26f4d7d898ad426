package acl

import (
	"context"
	"fmt"
	"sync"
)

// Provider implements the Store contract for one resource type. Different
// resource kinds (files, application functions, tenant data, ...) may keep
// their ACL payload in different tables or services; the registry gives
// them one uniform SPI.
type Provider interface {
	Store

	// BizPayloads fetches opaque, domain-specific payload text for a
	// batch of ACL ids in one round trip (e.g. human-readable
	// descriptions). Unknown ids are simply absent from the result.
	BizPayloads(ctx context.Context, aclIDs ...string) (map[string]string, error)
}

// Registry routes ACL operations to the provider registered for a resource
// type. Providers are registered at startup; resolution is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	fallback  Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register binds a provider to a resource type, replacing any previous
// binding.
func (r *Registry) Register(resourceType string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[resourceType] = p
}

// SetDefault installs a fallback provider for resource types with no
// explicit binding. Principal and strategy operations without a resource
// context also go to the default provider.
func (r *Registry) SetDefault(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = p
}

// Resolve returns the provider for a resource type. Fails with
// ErrUnknownResourceType when neither a binding nor a default exists.
func (r *Registry) Resolve(resourceType string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.providers[resourceType]; ok {
		return p, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownResourceType, resourceType)
}

// Default returns the fallback provider. Fails with ErrUnknownResourceType
// when none is installed.
func (r *Registry) Default() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fallback == nil {
		return nil, fmt.Errorf("%w: no default provider", ErrUnknownResourceType)
	}
	return r.fallback, nil
}

// StoreProvider adapts a plain Store into a Provider for resource types
// without domain-specific payloads.
type StoreProvider struct {
	Store
}

// NewStoreProvider wraps a Store as a Provider.
func NewStoreProvider(s Store) *StoreProvider {
	return &StoreProvider{Store: s}
}

// BizPayloads returns an empty map; a plain store carries no business
// payload.
func (p *StoreProvider) BizPayloads(ctx context.Context, aclIDs ...string) (map[string]string, error) {
	return map[string]string{}, nil
}

// Compile-time interface check
var _ Provider = (*StoreProvider)(nil)
