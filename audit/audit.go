// Package audit records security-relevant ACL events: strategy and ACL
// lifecycle, grants, revocations, and denied access decisions.
package audit

import (
	"context"
	"time"
)

// Event is a structured record of one ACL operation.
type Event struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`   // e.g. "acl.entry.granted"
	Actor        string    `json:"actor"`  // principal performing the operation, if known
	Status       string    `json:"status"` // "success", "failure", "denied"
	Message      string    `json:"message"`
	ResourceType string    `json:"resource_type,omitempty"`
	ResourceID   string    `json:"resource_id,omitempty"`
	Principal    string    `json:"principal,omitempty"` // principal affected by the grant/decision
	Permission   string    `json:"permission,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store defines the interface for persisting and querying audit events.
type Store interface {
	// SaveEvent persists an audit event.
	SaveEvent(ctx context.Context, event *Event) error

	// Query returns events matching the filter, newest first.
	Query(ctx context.Context, filter Filter) ([]Event, error)

	// Count returns the number of events matching the filter.
	Count(ctx context.Context, filter Filter) (int64, error)
}

// Filter for querying audit events. Zero fields are ignored.
type Filter struct {
	Types        []string
	Statuses     []string
	ResourceType string
	ResourceID   string
	Principal    string
	StartTime    time.Time
	EndTime      time.Time
	Limit        int
	Offset       int
}

// Event types emitted by the ACL manager.
const (
	EventStrategyCreated  = "acl.strategy.created"
	EventPrincipalCreated = "acl.principal.created"
	EventPrincipalDeleted = "acl.principal.deleted"
	EventAclCreated       = "acl.created"
	EventAclUpdated       = "acl.updated"
	EventAclDeleted       = "acl.deleted"
	EventEntryGranted     = "acl.entry.granted"
	EventEntryRevoked     = "acl.entry.revoked"
	EventAccessDenied     = "acl.decision.denied"
)

// Hooks provides extension points for audit behavior.
type Hooks struct {
	// BeforeSave is called before persisting an event. Modify the event
	// or return an error to prevent saving.
	BeforeSave func(ctx context.Context, event *Event) error

	// AfterSave is called after an event is persisted.
	AfterSave func(ctx context.Context, event *Event)

	// IDGenerator generates event IDs. If nil, the store assigns one.
	IDGenerator func() string
}

// Logger wraps a Store and applies hooks.
type Logger struct {
	store Store
	hooks Hooks
}

// NewLogger creates a new audit logger.
func NewLogger(store Store, hooks Hooks) *Logger {
	return &Logger{store: store, hooks: hooks}
}

// Log persists an audit event with hooks applied.
func (l *Logger) Log(ctx context.Context, event *Event) error {
	if event.ID == "" && l.hooks.IDGenerator != nil {
		event.ID = l.hooks.IDGenerator()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	if l.hooks.BeforeSave != nil {
		if err := l.hooks.BeforeSave(ctx, event); err != nil {
			return err
		}
	}

	if err := l.store.SaveEvent(ctx, event); err != nil {
		return err
	}

	if l.hooks.AfterSave != nil {
		l.hooks.AfterSave(ctx, event)
	}

	return nil
}

// Query delegates to the store.
func (l *Logger) Query(ctx context.Context, filter Filter) ([]Event, error) {
	return l.store.Query(ctx, filter)
}

// Store returns the underlying store for direct access.
func (l *Logger) Store() Store {
	return l.store
}
