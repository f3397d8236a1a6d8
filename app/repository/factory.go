package repository

import (
	"errors"
	"sync"

	"gorm.io/gorm"
)

var ErrFactoryNotInitialized = errors.New("repository factory not initialized")

// Factory builds the repository set for one database handle once and hands
// out the same instance afterwards.
type Factory struct {
	db    *gorm.DB
	once  sync.Once
	repos *Repositories
}

func NewFactory(db *gorm.DB) *Factory {
	return &Factory{db: db}
}

func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() { f.repos = NewRepositories(f.db) })
	return f.repos
}

var (
	globalMu      sync.RWMutex
	globalFactory *Factory
)

// InitializeFactory installs the process-wide factory. Later calls are ignored.
func InitializeFactory(db *gorm.DB) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalFactory == nil {
		globalFactory = NewFactory(db)
	}
}

// GetGlobalRepositories returns the shared repositories, or
// ErrFactoryNotInitialized before InitializeFactory ran.
func GetGlobalRepositories() (*Repositories, error) {
	globalMu.RLock()
	f := globalFactory
	globalMu.RUnlock()
	if f == nil {
		return nil, ErrFactoryNotInitialized
	}
	return f.GetRepositories(), nil
}
