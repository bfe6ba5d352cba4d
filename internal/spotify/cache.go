package spotify

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/models"
)

// Only single track lookups are worth keeping across runs.
const persistMarker = "tracks/"

// responseCache holds raw GET bodies keyed by request URL. Concurrent
// requests for the same key share one upstream call. Persistable entries
// remember when they were fetched so the ttl also bounds them after a
// restart.
type responseCache struct {
	store *ristretto.Cache[string, []byte]
	group singleflight.Group
	ttl   time.Duration

	mu        sync.Mutex
	persisted map[string]models.CacheEntry
}

func newResponseCache(ttl time.Duration, l *log.Logger) (*responseCache, error) {
	store, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 1e5,
		MaxCost:     64 << 20,
		BufferItems: 64,
		OnReject: func(item *ristretto.Item[[]byte]) {
			l.Debugf("cache item rejected: key=%v", item.Key)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}
	return &responseCache{
		store:     store,
		ttl:       ttl,
		persisted: make(map[string]models.CacheEntry),
	}, nil
}

// expired reports whether an entry fetched at fetched is past the ttl.
// A zero ttl never expires.
func (c *responseCache) expired(fetched time.Time) bool {
	return c.ttl > 0 && time.Since(fetched) >= c.ttl
}

func (c *responseCache) get(key string) ([]byte, bool) {
	if body, ok := c.store.Get(key); ok {
		return body, true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.persisted[key]
	if !ok {
		return nil, false
	}
	if c.expired(entry.FetchedAt) {
		delete(c.persisted, key)
		return nil, false
	}
	return entry.Body, true
}

func (c *responseCache) set(key string, body []byte) {
	c.put(key, models.CacheEntry{Body: body, FetchedAt: time.Now()})
}

func (c *responseCache) put(key string, entry models.CacheEntry) {
	ttl := c.ttl
	if ttl > 0 {
		ttl -= time.Since(entry.FetchedAt)
		if ttl <= 0 {
			return
		}
	}
	cost := int64(len(entry.Body))
	if cost < 1 {
		cost = 1
	}
	c.store.SetWithTTL(key, entry.Body, cost, ttl)
	c.store.Wait()

	if strings.Contains(key, persistMarker) {
		c.mu.Lock()
		c.persisted[key] = entry
		c.mu.Unlock()
	}
}

// getOrFetch returns the cached body or calls fetch once for all concurrent
// callers of the same key.
func (c *responseCache) getOrFetch(key string, fetch func() ([]byte, error)) ([]byte, error) {
	if body, ok := c.get(key); ok {
		return body, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if body, ok := c.get(key); ok {
			return body, nil
		}
		body, err := fetch()
		if err != nil {
			return nil, err
		}
		c.set(key, body)
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// entries returns the unexpired persistable entries with their original
// fetch times.
func (c *responseCache) entries() map[string]models.CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]models.CacheEntry, len(c.persisted))
	for k, v := range c.persisted {
		if c.expired(v.FetchedAt) {
			continue
		}
		out[k] = v
	}
	return out
}

func (c *responseCache) load(entries map[string]models.CacheEntry) {
	for key, entry := range entries {
		if entry.Body == nil || !strings.Contains(key, persistMarker) {
			continue
		}
		if entry.FetchedAt.IsZero() {
			entry.FetchedAt = time.Now()
		}
		c.put(key, entry)
	}
}

func (c *responseCache) close() {
	c.store.Close()
}
