package application

import (
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/example/community-gate/internal/curfew"
)

// tenantSnapshot is an immutable compiled view of one tenant. Refreshes build a
// new value and replace the cache entry; readers keep whatever pointer they got.
type tenantSnapshot struct {
	tenantID string
	zone     string
	location *time.Location
	snapshot *curfew.Snapshot
	version  string
	loadedAt time.Time
}

// snapshotCache holds the most recently used tenant snapshots. Tenants with a
// load in flight carry a generation that invalidation bumps, so a load started
// before an invalidation cannot store its result afterwards. Nothing is kept
// for tenants that are neither cached nor loading.
type snapshotCache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, *tenantSnapshot]
	epoch   uint64
	pending map[string]*pendingLoad
}

type pendingLoad struct {
	generation uint64
	waiters    int
}

func newSnapshotCache(size int) (*snapshotCache, error) {
	if size <= 0 {
		size = 1024
	}
	entries, err := lru.New[string, *tenantSnapshot](size)
	if err != nil {
		return nil, err
	}
	return &snapshotCache{entries: entries, pending: make(map[string]*pendingLoad)}, nil
}

func (c *snapshotCache) Get(tenantID string) (*tenantSnapshot, bool) {
	return c.entries.Get(tenantID)
}

// acquire registers a caller waiting on a load of the tenant and returns the
// generation token the load must present to StoreIfCurrent. Every acquire is
// paired with a release once the load has finished.
func (c *snapshotCache) acquire(tenantID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	load, ok := c.pending[tenantID]
	if !ok {
		load = &pendingLoad{}
		c.pending[tenantID] = load
	}
	load.waiters++
	return c.tokenLocked(tenantID)
}

func (c *snapshotCache) release(tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	load, ok := c.pending[tenantID]
	if !ok {
		return
	}
	load.waiters--
	if load.waiters <= 0 {
		delete(c.pending, tenantID)
	}
}

func (c *snapshotCache) tokenLocked(tenantID string) string {
	var generation uint64
	if load, ok := c.pending[tenantID]; ok {
		generation = load.generation
	}
	return strconv.FormatUint(c.epoch, 10) + "." + strconv.FormatUint(generation, 10)
}

// StoreIfCurrent stores entry unless the tenant was invalidated after the
// token was acquired. It reports whether the entry was stored.
func (c *snapshotCache) StoreIfCurrent(entry *tenantSnapshot, token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokenLocked(entry.tenantID) != token {
		return false
	}
	c.entries.Add(entry.tenantID, entry)
	return true
}

func (c *snapshotCache) Invalidate(tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if load, ok := c.pending[tenantID]; ok {
		load.generation++
	}
	c.entries.Remove(tenantID)
}

func (c *snapshotCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.entries.Purge()
}

// Tenants returns the cached tenant ids from oldest to newest use.
func (c *snapshotCache) Tenants() []string {
	return c.entries.Keys()
}

func (c *snapshotCache) Len() int {
	return c.entries.Len()
}

func (c *snapshotCache) pendingLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
