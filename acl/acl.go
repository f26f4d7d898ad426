// Package acl implements a generic, resource-type-agnostic access control
// list engine.
//
// Every protected object is identified by a (type, id) pair and owns exactly
// one ACL. An ACL carries a set of owner principals, who implicitly hold
// every permission, and a list of entries, each granting one principal one
// permission (or coarse-grained access when the permission is empty).
//
// The permission vocabulary of a resource type is declared by a Strategy,
// parsed from a compact expression such as "admin=Admin>write=Write>read=Read"
// (inheritance chain) or "publish=Pub,subscribe=Sub" (independent flat
// permissions). Resource types without a strategy operate in coarse-grained
// mode: any entry grants access.
//
// This package provides:
//   - Core types for resources, principals, ACLs and entries
//   - The strategy expression parser with precomputed implication closures
//   - Storage interface for persisting ACL records
//   - Provider registry dispatching operations by resource type
//   - Manager with the access decision algorithm
//
// See the wgorm package for a complete GORM-based storage implementation.
package acl

// Resource identifies a protected object within the ACL subsystem.
// Type is the resource category (e.g. "file", "app_func"), ID is unique
// within the type. Tag is an optional display label. Owner names the
// principal that owns the resource; it is required when creating an ACL
// and ignored by read operations.
type Resource struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Tag   string `json:"tag,omitempty"`
	Owner string `json:"owner,omitempty"`
}

// NewResource creates a resource descriptor for lookups.
func NewResource(resourceType, id string) Resource {
	return Resource{Type: resourceType, ID: id}
}

// Key returns the canonical string representation: "type:id".
func (r Resource) Key() string {
	return r.Type + ":" + r.ID
}

// Principal is an actor that can be granted rights. Name is the unique,
// stable identifier used in grants; ID is system-assigned and opaque.
type Principal struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Tag  string `json:"tag,omitempty"`
}

// Acl is the access control list of exactly one resource.
type Acl struct {
	ID       string      `json:"id"`
	Resource Resource    `json:"resource"`
	Owners   []Principal `json:"owners"`
	Entries  []Entry     `json:"entries,omitempty"`
}

// IsOwner reports whether the named principal is an owner of the resource.
func (a *Acl) IsOwner(principal string) bool {
	for _, o := range a.Owners {
		if o.Name == principal {
			return true
		}
	}
	return false
}

// Entry is a single grant record: one principal holding one permission on
// one resource. An empty Permission represents coarse-grained "has access"
// semantics.
type Entry struct {
	ID         string   `json:"id"`
	AclID      string   `json:"acl_id"`
	Resource   Resource `json:"resource"`
	Principal  string   `json:"principal"`
	Permission string   `json:"permission,omitempty"`
}

// Coarse reports whether the entry carries no distinct permission.
func (e Entry) Coarse() bool {
	return e.Permission == ""
}

// DefaultPageSize is applied when a page request does not specify a size.
const DefaultPageSize = 20

// MaxPageSize caps the number of items returned per page.
const MaxPageSize = 500

// PageRequest selects one page of a listing. Page is 1-based.
type PageRequest struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

// Normalize returns a copy with defaults applied and the size capped.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset returns the row offset of the page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Size
}

// Page is one page of a listing together with the total match count.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}
