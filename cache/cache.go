package cache

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/dealscout/models"
)

// entry holds one aggregation result with its creation timestamp.
type entry struct {
	records   []models.ProductRecord
	createdAt time.Time
}

// Options configures a Cache.
type Options struct {
	TTL           time.Duration // default: 1h
	MaxEntries    int           // default: 1000
	SweepInterval time.Duration // default: 5m

	// Now replaces time.Now, for tests.
	Now func() time.Time
}

// Cache is an in-memory TTL cache of search results keyed by query and
// platform list. Entries expire lazily on read and in a periodic sweep.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a Cache and starts its background sweep. Call Stop to end it.
func New(opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 1000
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Cache{
		store:      make(map[string]*entry),
		ttl:        opts.TTL,
		maxEntries: opts.MaxEntries,
		now:        opts.Now,
		done:       make(chan struct{}),
	}
	go c.sweepLoop(opts.SweepInterval)
	return c
}

// Key builds the composite key "query|p1,p2": the query trimmed,
// lower-cased and whitespace-collapsed, the platforms lower-cased,
// deduplicated and sorted. Request order does not change the key.
func Key(query string, platforms []string) string {
	q := strings.Join(strings.Fields(strings.ToLower(query)), " ")

	seen := make(map[string]struct{}, len(platforms))
	ps := make([]string, 0, len(platforms))
	for _, p := range platforms {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		ps = append(ps, p)
	}
	slices.Sort(ps)
	return q + "|" + strings.Join(ps, ",")
}

// Get returns a copy of the records stored under key. An entry older than
// the TTL is a miss and is removed.
func (c *Cache) Get(key string) ([]models.ProductRecord, bool) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.expired(e) {
		c.mu.Lock()
		if cur, ok := c.store[key]; ok && cur == e {
			delete(c.store, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return slices.Clone(e.records), true
}

// Set stores a copy of records under key, replacing any previous entry.
// Empty results are never stored, so a transient failure cannot mask real
// results for the rest of the TTL. At capacity the oldest entry is evicted.
func (c *Cache) Set(key string, records []models.ProductRecord) {
	if len(records) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.store[key] = &entry{
		records:   slices.Clone(records),
		createdAt: c.now(),
	}
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Stats returns a snapshot for the health endpoint.
func (c *Cache) Stats() models.CacheStats {
	return models.CacheStats{
		Entries:    c.Len(),
		MaxEntries: c.maxEntries,
		TTL:        c.ttl.String(),
	}
}

// Stop ends the background sweep. It is safe to call more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

func (c *Cache) expired(e *entry) bool {
	return c.now().Sub(e.createdAt) >= c.ttl
}

func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.store {
		if oldestKey == "" || e.createdAt.Before(oldest) {
			oldestKey, oldest = k, e.createdAt
		}
	}
	delete(c.store, oldestKey)
}

// sweep removes every expired entry.
func (c *Cache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.store {
		if c.expired(e) {
			delete(c.store, k)
			n++
		}
	}
	return n
}

func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}
