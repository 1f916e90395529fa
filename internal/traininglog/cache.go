package traininglog

import (
	"encoding/json"
	"errors"
	"hash/maphash"
	"strconv"
	"sync"
	"time"

	"github.com/2beens/traininglog/internal/telemetry/metrics"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

const (
	prCacheKeyPrefix = "current-pr||"
	// generationSlots stripes the pair generations. Pairs sharing a slot only
	// skip each other's cache fills.
	generationSlots = 1024
)

// PRCache keeps recently read current PRs per pair. Writers invalidate the
// pair after commit. A reader takes the pair generation before reading the
// store and fills the cache only if no invalidation happened in between, so a
// holder read before a commit is never cached after it. A nil *PRCache is a
// disabled cache.
type PRCache struct {
	cache         *freecache.Cache
	expireSeconds int
	metrics       *metrics.Manager

	mu          sync.Mutex
	seed        maphash.Seed
	generations [generationSlots]uint64
}

func NewPRCache(sizeBytes int, ttl time.Duration, metricsManager *metrics.Manager) *PRCache {
	if ttl < time.Second {
		return nil
	}
	return &PRCache{
		cache:         freecache.NewCache(sizeBytes),
		expireSeconds: int(ttl.Seconds()),
		metrics:       metricsManager,
		seed:          maphash.MakeSeed(),
	}
}

// Generation returns the token a reader passes to Set after reading the
// store.
func (c *PRCache) Generation(pair Pair) uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[c.slot(pair)]
}

// Get returns the cached holder of pair. A cached nil (pair without entries)
// is reported as found.
func (c *PRCache) Get(pair Pair) (*Entry, bool) {
	if c == nil {
		return nil, false
	}

	val, err := c.cache.Get(prCacheKey(pair))
	if err != nil {
		if !errors.Is(err, freecache.ErrNotFound) {
			log.Warnf("pr cache get [%s]: %s", pair, err)
		}
		c.metrics.CounterPRCache.WithLabelValues("miss").Inc()
		return nil, false
	}

	var pr *Entry
	if err := json.Unmarshal(val, &pr); err != nil {
		log.Warnf("pr cache unmarshal [%s]: %s", pair, err)
		c.metrics.CounterPRCache.WithLabelValues("miss").Inc()
		return nil, false
	}

	c.metrics.CounterPRCache.WithLabelValues("hit").Inc()
	return pr, true
}

// Set caches pr for pair unless the pair was invalidated since generation
// was taken.
func (c *PRCache) Set(pair Pair, pr *Entry, generation uint64) {
	if c == nil {
		return
	}

	val, err := json.Marshal(pr)
	if err != nil {
		log.Warnf("pr cache marshal [%s]: %s", pair, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[c.slot(pair)] != generation {
		log.Tracef("pr cache fill skipped for [%s], invalidated meanwhile", pair)
		return
	}
	if err := c.cache.Set(prCacheKey(pair), val, c.expireSeconds); err != nil {
		log.Warnf("pr cache set [%s]: %s", pair, err)
	}
}

func (c *PRCache) Invalidate(pair Pair) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[c.slot(pair)]++
	c.cache.Del(prCacheKey(pair))
}

func (c *PRCache) slot(pair Pair) uint64 {
	return maphash.String(c.seed, string(prCacheKey(pair))) % generationSlots
}

// prCacheKey length-prefixes the user id, so ids containing the separator
// cannot make two pairs share a key.
func prCacheKey(pair Pair) []byte {
	return []byte(prCacheKeyPrefix + strconv.Itoa(len(pair.UserID)) + ":" + pair.UserID + "|" + pair.ExerciseID)
}
