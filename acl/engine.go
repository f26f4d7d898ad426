package acl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getwarden/warden/audit"
	"go.uber.org/zap"
)

// IsAccessible answers an access-control query: may the principal exercise
// the permission on the resource?
//
// The decision is true iff one of:
//   - the principal is listed among the ACL's owners (owners bypass the
//     permission system entirely),
//   - an entry grants the principal a permission whose implication closure,
//     per the resource type's strategy, includes the requested one,
//   - the check is coarse-grained (empty permission, or no strategy
//     declared for the type) and any entry exists for the principal.
//
// A resource with no ACL is simply not accessible; that is an absent grant
// record, not an error. There is no wildcard matching beyond the declared
// inheritance chain.
func (m *Manager) IsAccessible(ctx context.Context, resource Resource, principal, permission string) (bool, error) {
	start := time.Now()
	allowed, err := m.decide(ctx, resource, principal, permission)
	if err != nil {
		return false, err
	}
	if m.metrics != nil {
		m.metrics.RecordDecision(ctx, resource.Type, allowed, time.Since(start))
	}
	m.log.Debug("access decision",
		zap.String("resource", resource.Key()),
		zap.String("principal", principal),
		zap.String("permission", permission),
		zap.Bool("allowed", allowed),
	)
	return allowed, nil
}

// Accessible is the exception-style form of IsAccessible for call sites
// that want to short-circuit, such as a request filter. A negative decision
// fails with an error wrapping ErrAccessDenied.
func (m *Manager) Accessible(ctx context.Context, resource Resource, principal, permission string) error {
	allowed, err := m.IsAccessible(ctx, resource, principal, permission)
	if err != nil {
		return err
	}
	if allowed {
		return nil
	}

	if m.hooks.OnDenied != nil {
		m.hooks.OnDenied(ctx, resource, principal, permission)
	}
	m.auditEvent(ctx, &audit.Event{
		Type:         audit.EventAccessDenied,
		Status:       "denied",
		ResourceType: resource.Type,
		ResourceID:   resource.ID,
		Principal:    principal,
		Permission:   permission,
	})
	return fmt.Errorf("%w: principal %q lacks %q on %s", ErrAccessDenied, principal, permission, resource.Key())
}

func (m *Manager) decide(ctx context.Context, resource Resource, principal, permission string) (bool, error) {
	if principal == "" {
		return false, nil
	}

	p, err := m.registry.Resolve(resource.Type)
	if err != nil {
		return false, err
	}

	a, err := p.GetAcl(ctx, resource)
	if errors.Is(err, ErrResourceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if a.IsOwner(principal) {
		return true, nil
	}

	strategy, err := m.strategyFor(ctx, p, resource.Type)
	if err != nil {
		return false, err
	}

	// No strategy, or no requested permission: coarse-grained existence
	// check over the principal's entries, ignoring the permission field.
	coarse := strategy == nil || permission == ""

	page := PageRequest{Page: 1, Size: MaxPageSize}
	for {
		entries, err := p.ListEntries(ctx, resource, principal, page)
		if err != nil {
			return false, err
		}
		for _, e := range entries.Items {
			if coarse {
				return true, nil
			}
			// A coarse entry is a blanket grant; it satisfies fine-grained
			// checks too.
			if e.Coarse() || strategy.Satisfies(e.Permission, permission) {
				return true, nil
			}
		}
		if len(entries.Items) < page.Size || int64(page.Offset()+len(entries.Items)) >= entries.Total {
			return false, nil
		}
		page.Page++
	}
}

// strategyFor resolves the strategy of a resource type through the cache.
// A nil strategy with a nil error means the type has none declared and
// operates in coarse-grained mode.
func (m *Manager) strategyFor(ctx context.Context, p Provider, resourceType string) (*Strategy, error) {
	if s, hit := m.strategies.get(resourceType); hit {
		return s, nil
	}

	// Snapshot before the store read: if CreateStrategy invalidates while
	// the read is in flight, put drops the stale result instead of caching
	// an absence that no longer holds.
	gen := m.strategies.generation()

	s, err := p.GetStrategy(ctx, resourceType)
	if errors.Is(err, ErrStrategyNotFound) {
		m.strategies.put(resourceType, nil, gen)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m.strategies.put(resourceType, s, gen)
	return s, nil
}
