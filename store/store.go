package store

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hrygo/timetable/internal/profile"
	"github.com/hrygo/timetable/store/cache"
)

// sharedLoadTimeout bounds a snapshot load shared by several callers. The
// load runs detached from any single caller's context.
const sharedLoadTimeout = 30 * time.Second

// Store provides access to schedule records through a driver, with a
// per-term snapshot cache in front of it.
type Store struct {
	profile *profile.Profile
	driver  Driver

	snapshotTTL   time.Duration
	snapshotCache *cache.Cache // term -> []Record
	loadGroup     singleflight.Group
	// invalidateMu orders cache writes against invalidations.
	invalidateMu sync.Mutex
	// generation is bumped on every invalidation. A load only populates the
	// cache if no invalidation happened while it was reading.
	generation atomic.Uint64
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	ttl := 30 * time.Second
	if profile != nil && profile.SnapshotTTL > 0 {
		ttl = profile.SnapshotTTL
	}

	return &Store{
		driver:      driver,
		profile:     profile,
		snapshotTTL: ttl,
		snapshotCache: cache.New(cache.Config{
			DefaultTTL:      ttl,
			CleanupInterval: time.Minute,
			MaxItems:        64,
		}),
	}
}

func (s *Store) Close() error {
	s.snapshotCache.Close()
	return s.driver.Close()
}
