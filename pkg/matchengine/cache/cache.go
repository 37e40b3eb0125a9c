// Package cache memoizes full pipeline output by request fingerprint.
package cache

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/jordigilh/matchengine/pkg/matchengine/model"
)

// DefaultTTL and DefaultSoftCap are the spec's defaults for cache.ttl_seconds
// and cache.soft_cap.
const (
	DefaultTTL     = 5 * time.Minute
	DefaultSoftCap = 1000
)

// entry is a cache slot: the payload plus its insertion time, used both
// for TTL expiry and for oldest-half eviction under capacity pressure.
type entry struct {
	response  model.MatchResponse
	insertedAt time.Time
}

// Cache memoizes MatchResponse by fingerprint. Writes serialize through an
// exclusive guard; reads may proceed concurrently with other reads.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	softCap int
	now     func() time.Time
}

// New builds a Cache with the given TTL and soft cap. A zero/negative TTL
// or soft cap falls back to the spec defaults.
func New(ttl time.Duration, softCap int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if softCap <= 0 {
		softCap = DefaultSoftCap
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		softCap: softCap,
		now:     time.Now,
	}
}

// Get returns the cached response for fingerprint, if present and not yet
// expired.
func (c *Cache) Get(fingerprint string) (model.MatchResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[fingerprint]
	if !ok {
		return model.MatchResponse{}, false
	}
	if c.now().Sub(e.insertedAt) > c.ttl {
		return model.MatchResponse{}, false
	}
	return e.response, true
}

// Set inserts or overwrites fingerprint's entry, evicting the oldest half
// of entries by insertion time if the soft cap is now exceeded.
func (c *Cache) Set(fingerprint string, response model.MatchResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[fingerprint] = entry{response: response, insertedAt: c.now()}

	if len(c.entries) > c.softCap {
		c.evictOldestHalfLocked()
	}
}

func (c *Cache) evictOldestHalfLocked() {
	type keyed struct {
		key       string
		insertedAt time.Time
	}
	ordered := make([]keyed, 0, len(c.entries))
	for k, e := range c.entries {
		ordered = append(ordered, keyed{k, e.insertedAt})
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].insertedAt.Before(ordered[j].insertedAt)
	})

	toEvict := len(ordered) / 2
	for i := 0; i < toEvict; i++ {
		delete(c.entries, ordered[i].key)
	}
}

// Len reports the current entry count, for observability.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Fingerprint derives the deterministic request identifier: the résumé's
// user identifier (model.Resume carries no separate résumé identifier, and
// the embedding itself is not hashed), offset, limit, location filter, the
// keyword list (order matters), the experience subset, and both blacklist
// sets (order does not matter — their union is sorted before hashing).
func Fingerprint(userID string, offset, limit int, loc *model.LocationFilter, keywords []string, experience []model.ExperienceLevel, blacklist model.BlacklistSet) string {
	var b strings.Builder

	b.WriteString(userID)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(offset))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(limit))
	b.WriteByte('|')
	writeLocation(&b, loc)
	b.WriteByte('|')
	for _, k := range keywords {
		b.WriteString(k)
		b.WriteByte(',')
	}
	b.WriteByte('|')

	exp := make([]string, len(experience))
	for i, e := range experience {
		exp[i] = string(e)
	}
	sort.Strings(exp)
	b.WriteString(strings.Join(exp, ","))
	b.WriteByte('|')

	union := blacklist.Union()
	sort.Strings(union)
	b.WriteString(strings.Join(union, ","))

	sum := xxhash.Sum64String(b.String())
	return fmt.Sprintf("%016x", sum)
}

func writeLocation(b *strings.Builder, loc *model.LocationFilter) {
	if loc == nil {
		return
	}
	b.WriteString(loc.Country)
	b.WriteByte(',')
	b.WriteString(loc.City)
	b.WriteByte(',')
	if r := loc.RadiusMeters(); r != nil {
		b.WriteString(strconv.FormatFloat(*r, 'f', -1, 64))
	}
	if loc.Latitude != nil {
		b.WriteString(strconv.FormatFloat(*loc.Latitude, 'f', -1, 64))
	}
	if loc.Longitude != nil {
		b.WriteString(strconv.FormatFloat(*loc.Longitude, 'f', -1, 64))
	}
}
