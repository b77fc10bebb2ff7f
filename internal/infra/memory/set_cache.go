package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"exam-delivery-service/internal/app"
	"exam-delivery-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// SetCache wraps a repository and caches GetSet with a TTL to avoid repeated
// backend hits while students load exams. Writes that touch a set evict it.
type SetCache struct {
	app.Repository

	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand
	rndMu sync.Mutex

	mu       sync.RWMutex
	cache    map[string]cachedSet
	versions map[string]uint64 // bumped by every write to the set
}

type cachedSet struct {
	set       domain.Set
	expiresAt time.Time
}

func NewSetCache(next app.Repository, ttl time.Duration) *SetCache {
	return &SetCache{
		Repository: next,
		ttl:        ttl,
		clock:      time.Now,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:      make(map[string]cachedSet),
		versions:   make(map[string]uint64),
	}
}

func (c *SetCache) GetSet(ctx context.Context, setID string) (domain.Set, error) {
	if set, ok := c.lookup(setID); ok {
		return set, nil
	}

	result, err, _ := c.sf.Do(setID, func() (interface{}, error) {
		if set, ok := c.lookup(setID); ok {
			return set, nil
		}
		c.mu.RLock()
		version := c.versions[setID]
		c.mu.RUnlock()

		set, err := c.Repository.GetSet(ctx, setID)
		if err != nil {
			return domain.Set{}, err
		}
		c.mu.Lock()
		// a write landed during the read; the result may predate it
		if c.versions[setID] == version {
			c.cache[setID] = cachedSet{set: set, expiresAt: c.clock().Add(c.ttlWithJitter())}
		}
		c.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return domain.Set{}, err
	}
	return copySet(result.(domain.Set)), nil
}

func (c *SetCache) lookup(setID string) (domain.Set, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[setID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Set{}, false
	}
	return copySet(entry.set), true
}

func (c *SetCache) RenameSet(ctx context.Context, setID, name string) error {
	defer c.evict(setID)
	return c.Repository.RenameSet(ctx, setID, name)
}

func (c *SetCache) DeleteSet(ctx context.Context, setID string) error {
	defer c.evict(setID)
	return c.Repository.DeleteSet(ctx, setID)
}

func (c *SetCache) AddQuestion(ctx context.Context, setID string, question domain.Question) error {
	defer c.evict(setID)
	return c.Repository.AddQuestion(ctx, setID, question)
}

func (c *SetCache) DeleteQuestion(ctx context.Context, setID, questionID string) error {
	defer c.evict(setID)
	return c.Repository.DeleteQuestion(ctx, setID, questionID)
}

func (c *SetCache) evict(setID string) {
	c.mu.Lock()
	delete(c.cache, setID)
	c.versions[setID]++
	c.mu.Unlock()
	c.sf.Forget(setID)
}

func (c *SetCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
