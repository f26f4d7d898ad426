// Package wgorm implements the acl and audit storage contracts using GORM.
//
// Uniqueness invariants (one ACL per resource, one entry per grant triple,
// one principal per name) are enforced by unique indexes plus ON CONFLICT
// inserts, so they hold under concurrent callers without read-then-write
// races. Multi-row mutations run inside gorm transactions.
package wgorm

import (
	"context"
	"errors"
	"fmt"

	"github.com/getwarden/warden/acl"
	"github.com/getwarden/warden/audit"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository implements acl.Store and audit.Store on one *gorm.DB.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a repository on an open GORM handle.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB returns the underlying GORM handle.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// AutoMigrate creates the ACL tables.
func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&gormStrategy{},
		&gormPermission{},
		&gormPrincipal{},
		&gormAcl{},
		&gormAclOwner{},
		&gormAclEntry{},
		&gormAuditEvent{},
	)
}

// entryID derives a deterministic entry identity from the grant triple, so
// re-granting an existing (acl, principal, permission) collides on the
// primary key and coalesces into a no-op.
func entryID(aclID, principal, permission string) string {
	key := aclID + "\x00" + principal + "\x00" + permission
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// ---- Strategies ----

func (r *Repository) CreateStrategy(ctx context.Context, s *acl.Strategy) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "resource_type"}},
			DoNothing: true,
		}).Create(&gormStrategy{
			ResourceType: s.ResourceType,
			Expression:   s.Expression,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %q", acl.ErrStrategyExists, s.ResourceType)
		}

		for _, p := range s.Permissions {
			gp := &gormPermission{
				ID:           uuid.NewString(),
				ResourceType: s.ResourceType,
				Name:         p.Name,
				Tag:          p.Tag,
				Rank:         p.Rank,
			}
			if err := tx.Create(gp).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) GetStrategy(ctx context.Context, resourceType string) (*acl.Strategy, error) {
	var gs gormStrategy
	err := r.db.WithContext(ctx).First(&gs, "resource_type = ?", resourceType).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %q", acl.ErrStrategyNotFound, resourceType)
	}
	if err != nil {
		return nil, err
	}
	// Re-parsing rebuilds the implication closure from the stored
	// expression.
	return acl.ParseStrategy(gs.ResourceType, gs.Expression)
}

// ---- Principals ----

func (r *Repository) CreatePrincipal(ctx context.Context, p *acl.Principal) error {
	if p.Name == "" {
		return fmt.Errorf("acl: principal name is required")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&gormPrincipal{ID: p.ID, Name: p.Name, Tag: p.Tag})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %q", acl.ErrPrincipalExists, p.Name)
	}
	return nil
}

func (r *Repository) GetPrincipal(ctx context.Context, name string) (*acl.Principal, error) {
	var gp gormPrincipal
	err := r.db.WithContext(ctx).First(&gp, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %q", acl.ErrPrincipalNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return toCorePrincipal(&gp), nil
}

func (r *Repository) DeletePrincipal(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&gormAclEntry{}).Where("principal_name = ?", name).Count(&refs).Error; err != nil {
			return err
		}
		if refs == 0 {
			if err := tx.Model(&gormAclOwner{}).Where("principal_name = ?", name).Count(&refs).Error; err != nil {
				return err
			}
		}
		if refs > 0 {
			return fmt.Errorf("%w: %q", acl.ErrPrincipalInUse, name)
		}

		res := tx.Where("name = ?", name).Delete(&gormPrincipal{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %q", acl.ErrPrincipalNotFound, name)
		}
		return nil
	})
}

// ensurePrincipal creates the principal record if absent, keyed by name.
func ensurePrincipal(tx *gorm.DB, name string) (*gormPrincipal, error) {
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&gormPrincipal{ID: uuid.NewString(), Name: name}).Error; err != nil {
		return nil, err
	}

	var gp gormPrincipal
	if err := tx.First(&gp, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &gp, nil
}

// ---- ACLs ----

func (r *Repository) CreateAcl(ctx context.Context, resource acl.Resource) (*acl.Acl, error) {
	var created *acl.Acl
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owner, err := ensurePrincipal(tx, resource.Owner)
		if err != nil {
			return err
		}

		ga := &gormAcl{
			ID:           uuid.NewString(),
			ResourceType: resource.Type,
			ResourceID:   resource.ID,
			ResourceTag:  resource.Tag,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "resource_type"}, {Name: "resource_id"}},
			DoNothing: true,
		}).Create(ga)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", acl.ErrAclExists, resource.Key())
		}

		if err := tx.Create(&gormAclOwner{AclID: ga.ID, PrincipalName: owner.Name}).Error; err != nil {
			return err
		}

		created = toCoreAcl(ga, []acl.Principal{*toCorePrincipal(owner)}, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *Repository) UpdateAcl(ctx context.Context, resource acl.Resource) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ga, err := findAcl(tx, resource)
		if err != nil {
			return err
		}

		if err := tx.Model(ga).Update("resource_tag", resource.Tag).Error; err != nil {
			return err
		}

		if resource.Owner != "" {
			owner, err := ensurePrincipal(tx, resource.Owner)
			if err != nil {
				return err
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&gormAclOwner{AclID: ga.ID, PrincipalName: owner.Name}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) DeleteAcl(ctx context.Context, resource acl.Resource) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ga, err := findAcl(tx, resource)
		if err != nil {
			return err
		}

		if err := tx.Where("acl_id = ?", ga.ID).Delete(&gormAclEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("acl_id = ?", ga.ID).Delete(&gormAclOwner{}).Error; err != nil {
			return err
		}
		return tx.Delete(ga).Error
	})
}

func (r *Repository) GetAcl(ctx context.Context, resource acl.Resource) (*acl.Acl, error) {
	db := r.db.WithContext(ctx)

	ga, err := findAcl(db, resource)
	if err != nil {
		return nil, err
	}

	owners, err := r.ownersOf(db, []string{ga.ID})
	if err != nil {
		return nil, err
	}

	var ges []gormAclEntry
	if err := db.Where("acl_id = ?", ga.ID).Order("created_at").Find(&ges).Error; err != nil {
		return nil, err
	}
	entries := make([]acl.Entry, len(ges))
	for i := range ges {
		entries[i] = toCoreEntry(&ges[i])
	}

	return toCoreAcl(ga, owners[ga.ID], entries), nil
}

func (r *Repository) ListAcls(ctx context.Context, resourceType string, page acl.PageRequest) (*acl.Page[acl.Acl], error) {
	page = page.Normalize()
	db := r.db.WithContext(ctx)

	var total int64
	if err := db.Model(&gormAcl{}).Where("resource_type = ?", resourceType).Count(&total).Error; err != nil {
		return nil, err
	}

	var gas []gormAcl
	if err := db.Where("resource_type = ?", resourceType).
		Order("created_at").
		Scopes(paginate(page)).
		Find(&gas).Error; err != nil {
		return nil, err
	}

	ids := make([]string, len(gas))
	for i := range gas {
		ids[i] = gas[i].ID
	}
	owners, err := r.ownersOf(db, ids)
	if err != nil {
		return nil, err
	}

	items := make([]acl.Acl, len(gas))
	for i := range gas {
		items[i] = *toCoreAcl(&gas[i], owners[gas[i].ID], nil)
	}

	return &acl.Page[acl.Acl]{Items: items, Total: total, Page: page.Page, Size: page.Size}, nil
}

// ownersOf loads the owner principals of a batch of ACLs in two queries.
func (r *Repository) ownersOf(db *gorm.DB, aclIDs []string) (map[string][]acl.Principal, error) {
	result := make(map[string][]acl.Principal, len(aclIDs))
	if len(aclIDs) == 0 {
		return result, nil
	}

	var rows []gormAclOwner
	if err := db.Where("acl_id IN ?", aclIDs).Find(&rows).Error; err != nil {
		return nil, err
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.PrincipalName)
	}
	var gps []gormPrincipal
	if len(names) > 0 {
		if err := db.Where("name IN ?", names).Find(&gps).Error; err != nil {
			return nil, err
		}
	}
	byName := make(map[string]acl.Principal, len(gps))
	for i := range gps {
		byName[gps[i].Name] = *toCorePrincipal(&gps[i])
	}

	for _, row := range rows {
		p, ok := byName[row.PrincipalName]
		if !ok {
			p = acl.Principal{Name: row.PrincipalName}
		}
		result[row.AclID] = append(result[row.AclID], p)
	}
	return result, nil
}

func findAcl(db *gorm.DB, resource acl.Resource) (*gormAcl, error) {
	var ga gormAcl
	err := db.First(&ga, "resource_type = ? AND resource_id = ?", resource.Type, resource.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", acl.ErrResourceNotFound, resource.Key())
	}
	if err != nil {
		return nil, err
	}
	return &ga, nil
}

// ---- Entries ----

func (r *Repository) CreateEntries(ctx context.Context, resource acl.Resource, principal string, permissions ...string) error {
	if len(permissions) == 0 {
		permissions = []string{""}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ga, err := findAcl(tx, resource)
		if err != nil {
			return err
		}

		var gp gormPrincipal
		err = tx.First(&gp, "name = ?", principal).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %q", acl.ErrPrincipalNotFound, principal)
		}
		if err != nil {
			return err
		}

		for _, perm := range permissions {
			ge := &gormAclEntry{
				ID:            entryID(ga.ID, gp.Name, perm),
				AclID:         ga.ID,
				ResourceType:  ga.ResourceType,
				ResourceID:    ga.ResourceID,
				PrincipalName: gp.Name,
				Permission:    perm,
			}
			// Duplicate grants coalesce on the deterministic primary key.
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoNothing: true,
			}).Create(ge).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) DeleteEntries(ctx context.Context, resource acl.Resource, principal string, permissions ...string) error {
	if len(permissions) == 0 {
		permissions = []string{""}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ga, err := findAcl(tx, resource)
		if errors.Is(err, acl.ErrResourceNotFound) {
			// Nothing to delete; the operation is idempotent.
			return nil
		}
		if err != nil {
			return err
		}

		return tx.Where("acl_id = ? AND principal_name = ? AND permission IN ?", ga.ID, principal, permissions).
			Delete(&gormAclEntry{}).Error
	})
}

func (r *Repository) ListEntries(ctx context.Context, resource acl.Resource, principal string, page acl.PageRequest) (*acl.Page[acl.Entry], error) {
	page = page.Normalize()
	db := r.db.WithContext(ctx)

	ga, err := findAcl(db, resource)
	if errors.Is(err, acl.ErrResourceNotFound) {
		return &acl.Page[acl.Entry]{Items: []acl.Entry{}, Page: page.Page, Size: page.Size}, nil
	}
	if err != nil {
		return nil, err
	}

	query := db.Model(&gormAclEntry{}).Where("acl_id = ?", ga.ID)
	if principal != "" {
		query = query.Where("principal_name = ?", principal)
	}
	return r.entryPage(query, page)
}

func (r *Repository) ListPrincipalEntries(ctx context.Context, principal, resourceType, permission string, page acl.PageRequest) (*acl.Page[acl.Entry], error) {
	page = page.Normalize()

	query := r.db.WithContext(ctx).Model(&gormAclEntry{}).
		Where("resource_type = ? AND principal_name = ?", resourceType, principal)
	if permission != "" {
		query = query.Where("permission = ?", permission)
	}
	return r.entryPage(query, page)
}

func (r *Repository) entryPage(query *gorm.DB, page acl.PageRequest) (*acl.Page[acl.Entry], error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	var ges []gormAclEntry
	if err := query.Order("created_at").Scopes(paginate(page)).Find(&ges).Error; err != nil {
		return nil, err
	}

	items := make([]acl.Entry, len(ges))
	for i := range ges {
		items[i] = toCoreEntry(&ges[i])
	}
	return &acl.Page[acl.Entry]{Items: items, Total: total, Page: page.Page, Size: page.Size}, nil
}

// ---- Business payloads ----

// SetBizPayload attaches opaque domain payload text to an ACL.
func (r *Repository) SetBizPayload(ctx context.Context, resource acl.Resource, payload string) error {
	ga, err := findAcl(r.db.WithContext(ctx), resource)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(ga).Update("biz_payload", payload).Error
}

// BizPayloads fetches the payload text of a batch of ACL ids in one query.
// IDs without a payload are absent from the result.
func (r *Repository) BizPayloads(ctx context.Context, aclIDs ...string) (map[string]string, error) {
	result := make(map[string]string, len(aclIDs))
	if len(aclIDs) == 0 {
		return result, nil
	}

	var gas []gormAcl
	if err := r.db.WithContext(ctx).Where("id IN ?", aclIDs).Find(&gas).Error; err != nil {
		return nil, err
	}
	for i := range gas {
		if gas[i].BizPayload != "" {
			result[gas[i].ID] = gas[i].BizPayload
		}
	}
	return result, nil
}

// ---- Audit ----

func (r *Repository) SaveEvent(ctx context.Context, event *audit.Event) error {
	ge := fromCoreAuditEvent(event)
	if ge.ID == "" {
		ge.ID = uuid.NewString()
		event.ID = ge.ID
	}
	return r.db.WithContext(ctx).Create(ge).Error
}

func (r *Repository) Query(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	query := applyAuditFilter(r.db.WithContext(ctx).Model(&gormAuditEvent{}), filter)
	query = query.Order("created_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var ges []gormAuditEvent
	if err := query.Find(&ges).Error; err != nil {
		return nil, err
	}
	events := make([]audit.Event, len(ges))
	for i := range ges {
		events[i] = toCoreAuditEvent(&ges[i])
	}
	return events, nil
}

func (r *Repository) Count(ctx context.Context, filter audit.Filter) (int64, error) {
	var total int64
	err := applyAuditFilter(r.db.WithContext(ctx).Model(&gormAuditEvent{}), filter).Count(&total).Error
	return total, err
}

func applyAuditFilter(query *gorm.DB, filter audit.Filter) *gorm.DB {
	if len(filter.Types) > 0 {
		query = query.Where("type IN ?", filter.Types)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		query = query.Where("resource_id = ?", filter.ResourceID)
	}
	if filter.Principal != "" {
		query = query.Where("principal = ?", filter.Principal)
	}
	if !filter.StartTime.IsZero() {
		query = query.Where("created_at >= ?", filter.StartTime)
	}
	if !filter.EndTime.IsZero() {
		query = query.Where("created_at <= ?", filter.EndTime)
	}
	return query
}

// Compile-time interface checks
var (
	_ acl.Store   = (*Repository)(nil)
	_ audit.Store = (*Repository)(nil)
)
