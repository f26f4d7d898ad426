package wgorm

import (
	"time"

	"github.com/getwarden/warden/acl"
	"github.com/getwarden/warden/audit"
)

type gormStrategy struct {
	ResourceType string `gorm:"primaryKey"`
	Expression   string
	CreatedAt    time.Time
}

func (gormStrategy) TableName() string { return "acl_strategies" }

// Permission rows are derived from the strategy expression at creation
// time. They exist for reporting queries; the engine re-parses the
// expression so implication closures never depend on row ordering.
type gormPermission struct {
	ID           string `gorm:"primaryKey"`
	ResourceType string `gorm:"uniqueIndex:idx_acl_permissions_type_name"`
	Name         string `gorm:"uniqueIndex:idx_acl_permissions_type_name"`
	Tag          string
	Rank         int
}

func (gormPermission) TableName() string { return "acl_permissions" }

type gormPrincipal struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex"`
	Tag       string
	CreatedAt time.Time
}

func (gormPrincipal) TableName() string { return "acl_principals" }

func toCorePrincipal(gp *gormPrincipal) *acl.Principal {
	if gp == nil {
		return nil
	}
	return &acl.Principal{
		ID:   gp.ID,
		Name: gp.Name,
		Tag:  gp.Tag,
	}
}

type gormAcl struct {
	ID           string `gorm:"primaryKey"`
	ResourceType string `gorm:"uniqueIndex:idx_acls_resource"`
	ResourceID   string `gorm:"uniqueIndex:idx_acls_resource"`
	ResourceTag  string
	BizPayload   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (gormAcl) TableName() string { return "acls" }

func toCoreAcl(ga *gormAcl, owners []acl.Principal, entries []acl.Entry) *acl.Acl {
	if ga == nil {
		return nil
	}
	return &acl.Acl{
		ID: ga.ID,
		Resource: acl.Resource{
			Type: ga.ResourceType,
			ID:   ga.ResourceID,
			Tag:  ga.ResourceTag,
		},
		Owners:  owners,
		Entries: entries,
	}
}

type gormAclOwner struct {
	AclID         string `gorm:"primaryKey"`
	PrincipalName string `gorm:"primaryKey;index"`
}

func (gormAclOwner) TableName() string { return "acl_owners" }

type gormAclEntry struct {
	ID            string `gorm:"primaryKey"`
	AclID         string `gorm:"index"`
	ResourceType  string `gorm:"index:idx_acl_entries_principal"`
	ResourceID    string
	PrincipalName string `gorm:"index:idx_acl_entries_principal"`
	Permission    string
	CreatedAt     time.Time
}

func (gormAclEntry) TableName() string { return "acl_entries" }

func toCoreEntry(ge *gormAclEntry) acl.Entry {
	return acl.Entry{
		ID:    ge.ID,
		AclID: ge.AclID,
		Resource: acl.Resource{
			Type: ge.ResourceType,
			ID:   ge.ResourceID,
		},
		Principal:  ge.PrincipalName,
		Permission: ge.Permission,
	}
}

type gormAuditEvent struct {
	ID           string `gorm:"primaryKey"`
	Type         string `gorm:"index"`
	Actor        string `gorm:"index"`
	Status       string `gorm:"index"`
	Message      string
	ResourceType string `gorm:"index:idx_acl_audit_resource"`
	ResourceID   string `gorm:"index:idx_acl_audit_resource"`
	Principal    string `gorm:"index"`
	Permission   string
	CreatedAt    time.Time `gorm:"index"`
}

func (gormAuditEvent) TableName() string { return "acl_audit_events" }

func fromCoreAuditEvent(e *audit.Event) *gormAuditEvent {
	if e == nil {
		return nil
	}
	return &gormAuditEvent{
		ID:           e.ID,
		Type:         e.Type,
		Actor:        e.Actor,
		Status:       e.Status,
		Message:      e.Message,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Principal:    e.Principal,
		Permission:   e.Permission,
		CreatedAt:    e.CreatedAt,
	}
}

func toCoreAuditEvent(ge *gormAuditEvent) audit.Event {
	return audit.Event{
		ID:           ge.ID,
		Type:         ge.Type,
		Actor:        ge.Actor,
		Status:       ge.Status,
		Message:      ge.Message,
		ResourceType: ge.ResourceType,
		ResourceID:   ge.ResourceID,
		Principal:    ge.Principal,
		Permission:   ge.Permission,
		CreatedAt:    ge.CreatedAt,
	}
}
