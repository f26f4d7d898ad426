package acl

import (
	"context"
	"fmt"
	"time"

	"github.com/getwarden/warden/audit"
	"go.uber.org/zap"
)

// Hooks provides lifecycle extension points around manager operations.
type Hooks struct {
	// BeforeMutation is called before any mutating operation. Return an
	// error to veto it.
	BeforeMutation func(ctx context.Context, op string, resource Resource) error

	// AfterMutation is called after a mutating operation committed.
	AfterMutation func(ctx context.Context, op string, resource Resource)

	// OnDenied is called when Accessible rejects a check.
	OnDenied func(ctx context.Context, resource Resource, principal, permission string)
}

// MetricsRecorder receives decision and mutation metrics. The telemetry
// package provides an OpenTelemetry-backed implementation.
type MetricsRecorder interface {
	RecordDecision(ctx context.Context, resourceType string, allowed bool, elapsed time.Duration)
	RecordMutation(ctx context.Context, op, resourceType string, err error)
}

// Manager coordinates ACL operations: it routes each call to the provider
// registered for the resource type, keeps the strategy cache, and emits
// audit events and metrics. It is safe for concurrent use; all mutations
// are delegated to the providers' transactional stores.
type Manager struct {
	registry   *Registry
	strategies *strategyCache
	hooks      Hooks
	log        *zap.Logger
	auditor    *audit.Logger
	metrics    MetricsRecorder
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithHooks sets lifecycle hooks.
func WithHooks(hooks Hooks) ManagerOption {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// WithAudit wires an audit logger; grant, revoke, lifecycle, and denied
// decision events are recorded through it.
func WithAudit(a *audit.Logger) ManagerOption {
	return func(m *Manager) {
		m.auditor = a
	}
}

// WithMetrics wires a metrics recorder.
func WithMetrics(r MetricsRecorder) ManagerOption {
	return func(m *Manager) {
		m.metrics = r
	}
}

// WithStrategyCacheSize bounds the strategy cache.
func WithStrategyCacheSize(size int) ManagerOption {
	return func(m *Manager) {
		m.strategies = newStrategyCache(size)
	}
}

// NewManager creates a manager dispatching through the given registry.
func NewManager(registry *Registry, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry:   registry,
		strategies: newStrategyCache(DefaultStrategyCacheSize),
		log:        zap.NewNop(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Registry returns the provider registry for startup-time registration.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// CreateStrategy parses and persists the permission strategy of a resource
// type, then invalidates the cached copy. Parsing failures reject the call
// before any storage mutation.
func (m *Manager) CreateStrategy(ctx context.Context, resourceType, expression string) (*Strategy, error) {
	s, err := ParseStrategy(resourceType, expression)
	if err != nil {
		return nil, err
	}

	p, err := m.registry.Resolve(resourceType)
	if err != nil {
		return nil, err
	}

	res := Resource{Type: resourceType}
	if err := m.beforeMutation(ctx, "createAclStrategy", res); err != nil {
		return nil, err
	}
	err = p.CreateStrategy(ctx, s)
	m.recordMutation(ctx, "createAclStrategy", resourceType, err)
	if err != nil {
		return nil, err
	}
	m.strategies.invalidate(resourceType)
	m.afterMutation(ctx, "createAclStrategy", res)

	m.log.Info("acl strategy created",
		zap.String("resource_type", resourceType),
		zap.String("expression", s.Expression),
	)
	m.auditEvent(ctx, &audit.Event{
		Type:         audit.EventStrategyCreated,
		Status:       "success",
		ResourceType: resourceType,
		Message:      s.Expression,
	})
	return s, nil
}

// GetStrategy returns the declared strategy of a resource type, consulting
// the cache first.
func (m *Manager) GetStrategy(ctx context.Context, resourceType string) (*Strategy, error) {
	p, err := m.registry.Resolve(resourceType)
	if err != nil {
		return nil, err
	}
	s, err := m.strategyFor(ctx, p, resourceType)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: %q", ErrStrategyNotFound, resourceType)
	}
	return s, nil
}

// CreatePrincipal registers a principal on the default provider.
func (m *Manager) CreatePrincipal(ctx context.Context, name, tag string) (*Principal, error) {
	p, err := m.registry.Default()
	if err != nil {
		return nil, err
	}

	principal := &Principal{Name: name, Tag: tag}
	err = p.CreatePrincipal(ctx, principal)
	m.recordMutation(ctx, "createAclPrincipal", "", err)
	if err != nil {
		return nil, err
	}

	m.auditEvent(ctx, &audit.Event{
		Type:      audit.EventPrincipalCreated,
		Status:    "success",
		Principal: name,
	})
	return principal, nil
}

// GetPrincipal looks up a principal by name on the default provider.
func (m *Manager) GetPrincipal(ctx context.Context, name string) (*Principal, error) {
	p, err := m.registry.Default()
	if err != nil {
		return nil, err
	}
	return p.GetPrincipal(ctx, name)
}

// DeletePrincipal removes an unreferenced principal.
func (m *Manager) DeletePrincipal(ctx context.Context, name string) error {
	p, err := m.registry.Default()
	if err != nil {
		return err
	}
	err = p.DeletePrincipal(ctx, name)
	m.recordMutation(ctx, "deleteAclPrincipal", "", err)
	if err != nil {
		return err
	}
	m.auditEvent(ctx, &audit.Event{
		Type:      audit.EventPrincipalDeleted,
		Status:    "success",
		Principal: name,
	})
	return nil
}

// CreateAcl establishes the ACL of a resource with resource.Owner as the
// sole initial owner.
func (m *Manager) CreateAcl(ctx context.Context, resource Resource) (*Acl, error) {
	if resource.Type == "" || resource.ID == "" {
		return nil, fmt.Errorf("acl: resource type and id are required")
	}
	if resource.Owner == "" {
		return nil, fmt.Errorf("acl: resource owner is required")
	}

	p, err := m.registry.Resolve(resource.Type)
	if err != nil {
		return nil, err
	}
	if err := m.beforeMutation(ctx, "createAcl", resource); err != nil {
		return nil, err
	}

	a, err := p.CreateAcl(ctx, resource)
	m.recordMutation(ctx, "createAcl", resource.Type, err)
	if err != nil {
		return nil, err
	}
	m.afterMutation(ctx, "createAcl", resource)

	m.log.Info("acl created",
		zap.String("resource", resource.Key()),
		zap.String("owner", resource.Owner),
	)
	m.auditEvent(ctx, &audit.Event{
		Type:         audit.EventAclCreated,
		Status:       "success",
		Actor:        resource.Owner,
		ResourceType: resource.Type,
		ResourceID:   resource.ID,
	})
	return a, nil
}

// UpdateAcl updates the resource tag and owner set of an existing ACL.
func (m *Manager) UpdateAcl(ctx context.Context, resource Resource) error {
	p, err := m.registry.Resolve(resource.Type)
	if err != nil {
		return err
	}
	if err := m.beforeMutation(ctx, "updateAcl", resource); err != nil {
		return err
	}
	err = p.UpdateAcl(ctx, resource)
	m.recordMutation(ctx, "updateAcl", resource.Type, err)
	if err != nil {
		return err
	}
	m.afterMutation(ctx, "updateAcl", resource)
	m.auditEvent(ctx, &audit.Event{
		Type:         audit.EventAclUpdated,
		Status:       "success",
		ResourceType: resource.Type,
		ResourceID:   resource.ID,
	})
	return nil
}

// DeleteAcl removes the ACL of a deleted resource, cascading its entries.
func (m *Manager) DeleteAcl(ctx context.Context, resource Resource) error {
	p, err := m.registry.Resolve(resource.Type)
	if err != nil {
		return err
	}
	if err := m.beforeMutation(ctx, "deleteAcl", resource); err != nil {
		return err
	}
	err = p.DeleteAcl(ctx, resource)
	m.recordMutation(ctx, "deleteAcl", resource.Type, err)
	if err != nil {
		return err
	}
	m.afterMutation(ctx, "deleteAcl", resource)
	m.auditEvent(ctx, &audit.Event{
		Type:         audit.EventAclDeleted,
		Status:       "success",
		ResourceType: resource.Type,
		ResourceID:   resource.ID,
	})
	return nil
}

// GetAcl returns the ACL of a resource, owners and entries loaded.
func (m *Manager) GetAcl(ctx context.Context, resource Resource) (*Acl, error) {
	p, err := m.registry.Resolve(resource.Type)
	if err != nil {
		return nil, err
	}
	return p.GetAcl(ctx, resource)
}

// ListAcls returns one page of the ACLs of a resource type.
func (m *Manager) ListAcls(ctx context.Context, resourceType string, page PageRequest) (*Page[Acl], error) {
	p, err := m.registry.Resolve(resourceType)
	if err != nil {
		return nil, err
	}
	return p.ListAcls(ctx, resourceType, page)
}

// CreateEntries grants the principal the given permissions on the resource.
// Duplicate grants coalesce silently.
func (m *Manager) CreateEntries(ctx context.Context, resource Resource, principal string, permissions ...string) error {
	p, err := m.registry.Resolve(resource.Type)
	if err != nil {
		return err
	}
	if err := m.beforeMutation(ctx, "createAclEntry", resource); err != nil {
		return err
	}
	err = p.CreateEntries(ctx, resource, principal, permissions...)
	m.recordMutation(ctx, "createAclEntry", resource.Type, err)
	if err != nil {
		return err
	}
	m.afterMutation(ctx, "createAclEntry", resource)

	for _, perm := range permissionsOrCoarse(permissions) {
		m.auditEvent(ctx, &audit.Event{
			Type:         audit.EventEntryGranted,
			Status:       "success",
			ResourceType: resource.Type,
			ResourceID:   resource.ID,
			Principal:    principal,
			Permission:   perm,
		})
	}
	return nil
}

// DeleteEntries revokes the matching grants; missing grants are ignored.
func (m *Manager) DeleteEntries(ctx context.Context, resource Resource, principal string, permissions ...string) error {
	p, err := m.registry.Resolve(resource.Type)
	if err != nil {
		return err
	}
	if err := m.beforeMutation(ctx, "deleteAclEntry", resource); err != nil {
		return err
	}
	err = p.DeleteEntries(ctx, resource, principal, permissions...)
	m.recordMutation(ctx, "deleteAclEntry", resource.Type, err)
	if err != nil {
		return err
	}
	m.afterMutation(ctx, "deleteAclEntry", resource)

	for _, perm := range permissionsOrCoarse(permissions) {
		m.auditEvent(ctx, &audit.Event{
			Type:         audit.EventEntryRevoked,
			Status:       "success",
			ResourceType: resource.Type,
			ResourceID:   resource.ID,
			Principal:    principal,
			Permission:   perm,
		})
	}
	return nil
}

// ListEntries returns one page of a resource's entries, optionally
// filtered by principal.
func (m *Manager) ListEntries(ctx context.Context, resource Resource, principal string, page PageRequest) (*Page[Entry], error) {
	p, err := m.registry.Resolve(resource.Type)
	if err != nil {
		return nil, err
	}
	return p.ListEntries(ctx, resource, principal, page)
}

// ListPrincipalEntries returns one page of the entries granted to a
// principal across all resources of a type.
func (m *Manager) ListPrincipalEntries(ctx context.Context, principal, resourceType, permission string, page PageRequest) (*Page[Entry], error) {
	p, err := m.registry.Resolve(resourceType)
	if err != nil {
		return nil, err
	}
	return p.ListPrincipalEntries(ctx, principal, resourceType, permission, page)
}

// BizPayloads fetches domain payload text for a batch of ACL ids of one
// resource type.
func (m *Manager) BizPayloads(ctx context.Context, resourceType string, aclIDs ...string) (map[string]string, error) {
	p, err := m.registry.Resolve(resourceType)
	if err != nil {
		return nil, err
	}
	return p.BizPayloads(ctx, aclIDs...)
}

func permissionsOrCoarse(permissions []string) []string {
	if len(permissions) == 0 {
		return []string{""}
	}
	return permissions
}

func (m *Manager) beforeMutation(ctx context.Context, op string, resource Resource) error {
	if m.hooks.BeforeMutation == nil {
		return nil
	}
	return m.hooks.BeforeMutation(ctx, op, resource)
}

func (m *Manager) afterMutation(ctx context.Context, op string, resource Resource) {
	if m.hooks.AfterMutation != nil {
		m.hooks.AfterMutation(ctx, op, resource)
	}
}

func (m *Manager) recordMutation(ctx context.Context, op, resourceType string, err error) {
	if m.metrics != nil {
		m.metrics.RecordMutation(ctx, op, resourceType, err)
	}
}

func (m *Manager) auditEvent(ctx context.Context, event *audit.Event) {
	if m.auditor == nil {
		return
	}
	if err := m.auditor.Log(ctx, event); err != nil {
		m.log.Warn("audit event not recorded",
			zap.String("type", event.Type),
			zap.Error(err),
		)
	}
}
