package acl

import "context"

// Store defines the persistence contract for ACL records. Implementations
// can use SQL databases, in-memory maps, or domain-owned tables depending
// on the resource type; the wgorm package provides the GORM-based default.
//
// Uniqueness invariants are the store's responsibility and must hold under
// concurrent callers: one ACL per (resource type, id), one entry per
// (acl, principal, permission), one principal per name, one strategy per
// resource type. They must be enforced by storage constraints, not by
// read-then-write application logic.
type Store interface {
	// CreateStrategy persists a parsed strategy. Fails with
	// ErrStrategyExists when the resource type already has one.
	CreateStrategy(ctx context.Context, s *Strategy) error

	// GetStrategy returns the strategy declared for the resource type,
	// or ErrStrategyNotFound.
	GetStrategy(ctx context.Context, resourceType string) (*Strategy, error)

	// CreatePrincipal persists a principal. Fails with ErrPrincipalExists
	// on a duplicate name. A missing ID is assigned by the store.
	CreatePrincipal(ctx context.Context, p *Principal) error

	// GetPrincipal returns the principal with the given name, or
	// ErrPrincipalNotFound.
	GetPrincipal(ctx context.Context, name string) (*Principal, error)

	// DeletePrincipal removes a principal. Fails with ErrPrincipalInUse
	// while the principal is referenced by entries or ACL ownership, and
	// with ErrPrincipalNotFound for an unknown name.
	DeletePrincipal(ctx context.Context, name string) error

	// CreateAcl establishes the ACL for a resource with resource.Owner as
	// the sole initial owner. The owner principal is created if absent,
	// keyed by name. Fails with ErrAclExists when an ACL already exists
	// for (type, id); the uniqueness check and insert are atomic.
	CreateAcl(ctx context.Context, resource Resource) (*Acl, error)

	// UpdateAcl updates the resource tag of an existing ACL and, when
	// resource.Owner is set, adds it to the owner set. Fails with
	// ErrResourceNotFound.
	UpdateAcl(ctx context.Context, resource Resource) error

	// DeleteAcl removes the ACL and cascades entry deletion. Fails with
	// ErrResourceNotFound.
	DeleteAcl(ctx context.Context, resource Resource) error

	// GetAcl returns the ACL for (type, id) with owners and entries
	// loaded, or ErrResourceNotFound.
	GetAcl(ctx context.Context, resource Resource) (*Acl, error)

	// ListAcls returns one page of the ACLs of a resource type, owners
	// loaded, entries omitted.
	ListAcls(ctx context.Context, resourceType string, page PageRequest) (*Page[Acl], error)

	// CreateEntries grants the principal the given permissions on the
	// resource, all within one transaction. No permissions means a single
	// coarse-grained entry. Re-granting an existing (acl, principal,
	// permission) triple is an idempotent no-op. Fails with
	// ErrResourceNotFound when the ACL does not pre-exist and with
	// ErrPrincipalNotFound for an unknown principal.
	CreateEntries(ctx context.Context, resource Resource, principal string, permissions ...string) error

	// DeleteEntries removes the matching grants. No permissions targets
	// the coarse-grained entry, mirroring CreateEntries. Absence of a
	// match, or of the ACL itself, is not an error.
	DeleteEntries(ctx context.Context, resource Resource, principal string, permissions ...string) error

	// ListEntries returns one page of the resource's entries, optionally
	// filtered by principal. A resource with no ACL yields an empty page.
	ListEntries(ctx context.Context, resource Resource, principal string, page PageRequest) (*Page[Entry], error)

	// ListPrincipalEntries returns one page of the entries granted to a
	// principal across all resources of a type, optionally filtered by
	// permission.
	ListPrincipalEntries(ctx context.Context, principal, resourceType, permission string, page PageRequest) (*Page[Entry], error)
}
