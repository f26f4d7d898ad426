package wgorm

import (
	"github.com/getwarden/warden/acl"
	"gorm.io/gorm"
)

// paginate applies a normalized page request as a gorm scope.
func paginate(page acl.PageRequest) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(page.Offset()).Limit(page.Size)
	}
}
