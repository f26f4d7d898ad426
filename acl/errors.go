package acl

import "errors"

// Error taxonomy of the engine. Storage implementations return these
// sentinels (usually wrapped with detail) so callers can branch with
// errors.Is: conflicts are distinct from not-found, and not-found is
// distinct from access-denied.
var (
	// ErrBadStrategyFormat rejects a malformed strategy expression before
	// any storage mutation.
	ErrBadStrategyFormat = errors.New("acl: invalid strategy expression")

	// ErrStrategyExists reports a second strategy for one resource type.
	ErrStrategyExists = errors.New("acl: strategy already exists for resource type")

	// ErrStrategyNotFound reports a resource type with no declared
	// strategy. The decision engine treats it as coarse-grained mode, not
	// as a failure.
	ErrStrategyNotFound = errors.New("acl: strategy not found")

	// ErrPrincipalExists reports a duplicate principal name.
	ErrPrincipalExists = errors.New("acl: principal already exists")

	// ErrPrincipalNotFound reports an unknown principal name.
	ErrPrincipalNotFound = errors.New("acl: principal not found")

	// ErrPrincipalInUse prevents deleting a principal still referenced by
	// entries or ACL ownership.
	ErrPrincipalInUse = errors.New("acl: principal is referenced by grants")

	// ErrAclExists reports a second ACL for one (type, id) pair.
	ErrAclExists = errors.New("acl: acl already exists for resource")

	// ErrResourceNotFound reports a lookup of an ACL that does not exist.
	ErrResourceNotFound = errors.New("acl: resource not found")

	// ErrAccessDenied is the failure form of a negative access decision.
	// It marks a decision outcome, not a system fault.
	ErrAccessDenied = errors.New("acl: access denied")

	// ErrUnknownResourceType reports a resource type with no registered
	// provider.
	ErrUnknownResourceType = errors.New("acl: no provider registered for resource type")
)
