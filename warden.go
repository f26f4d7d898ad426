// Package warden wires the ACL engine to its default GORM storage.
package warden

import (
	"github.com/getwarden/warden/acl"
	"github.com/getwarden/warden/audit"
	"github.com/getwarden/warden/wgorm"
	"gorm.io/gorm"
)

// NewDefaultManager creates an ACL manager backed by a single GORM store
// serving every resource type. Domain-specific providers can still be
// registered on the returned manager's registry.
func NewDefaultManager(db *gorm.DB, opts ...acl.ManagerOption) *acl.Manager {
	repo := wgorm.NewRepository(db)
	registry := acl.NewRegistry()
	registry.SetDefault(repo)
	return acl.NewManager(registry, opts...)
}

// NewDefaultAuditLogger creates an audit logger persisting through GORM.
func NewDefaultAuditLogger(db *gorm.DB, hooks audit.Hooks) *audit.Logger {
	return audit.NewLogger(wgorm.NewRepository(db), hooks)
}
