package wgorm

import (
	"fmt"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DialectorOpener is an alias for a function that returns a gorm.Dialector
// for a given DSN.
type DialectorOpener = func(string) gorm.Dialector

var (
	registryMu sync.RWMutex
	openers    = make(map[string]DialectorOpener)
)

func init() {
	Register("sqlite", sqlite.Open)
	Register("postgres", postgres.Open)
	Register("mysql", mysql.Open)
}

// Register adds a database opener to the registry.
func Register(name string, opener DialectorOpener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	openers[name] = opener
}

// Open connects to the named database, migrates the ACL tables unless
// skipMigrate is set, and returns a repository.
func Open(name, dsn string, cfg *gorm.Config, skipMigrate bool) (*Repository, error) {
	registryMu.RLock()
	opener, ok := openers[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("wgorm: unknown database %q", name)
	}

	if cfg == nil {
		cfg = &gorm.Config{}
	}
	db, err := gorm.Open(opener(dsn), cfg)
	if err != nil {
		return nil, err
	}

	repo := NewRepository(db)
	if !skipMigrate {
		if err := repo.AutoMigrate(); err != nil {
			return nil, err
		}
	}
	return repo, nil
}
