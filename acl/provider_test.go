package acl

import (
	"context"
	"errors"
	"testing"
)

func TestRegistry_Resolve(t *testing.T) {
	registry := NewRegistry()
	fileProvider := NewStoreProvider(newMockStore())
	registry.Register("file", fileProvider)

	p, err := registry.Resolve("file")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p != Provider(fileProvider) {
		t.Error("Resolve returned the wrong provider")
	}
}

func TestRegistry_UnknownType(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Resolve("file")
	if !errors.Is(err, ErrUnknownResourceType) {
		t.Fatalf("Expected ErrUnknownResourceType, got %v", err)
	}
	_, err = registry.Default()
	if !errors.Is(err, ErrUnknownResourceType) {
		t.Fatalf("Expected ErrUnknownResourceType, got %v", err)
	}
}

func TestRegistry_DefaultFallback(t *testing.T) {
	registry := NewRegistry()
	fallback := NewStoreProvider(newMockStore())
	registry.SetDefault(fallback)

	p, err := registry.Resolve("anything")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p != Provider(fallback) {
		t.Error("Resolve should fall back to the default provider")
	}

	specific := NewStoreProvider(newMockStore())
	registry.Register("file", specific)
	p, err = registry.Resolve("file")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p != Provider(specific) {
		t.Error("an explicit binding should win over the default")
	}
}

func TestStoreProvider_BizPayloads(t *testing.T) {
	p := NewStoreProvider(newMockStore())

	payloads, err := p.BizPayloads(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("BizPayloads failed: %v", err)
	}
	if len(payloads) != 0 {
		t.Errorf("a plain store carries no payloads, got %d", len(payloads))
	}
}
