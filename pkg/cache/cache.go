// Package cache is an in-memory TTL cache of assistant answers keyed by the
// normalized guest prompt.
package cache

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pario-ai/bistro/pkg/fallback"
	"github.com/pario-ai/bistro/pkg/models"
)

// Options configures a ResponseCache.
type Options struct {
	TTL        time.Duration
	MaxEntries int
	// FallbackMatch makes Get answer misses from the fallback table.
	FallbackMatch bool
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Result is a successful lookup.
type Result struct {
	Text   string
	Source models.Source
	Topic  models.Topic
}

// entry is a stored answer. seq orders entries created within the same clock tick.
type entry struct {
	models.CacheEntry
	seq uint64
}

// ResponseCache maps prompt hashes to answers with TTL expiry and
// oldest-first eviction once MaxEntries is reached.
type ResponseCache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	nextSeq   uint64
	ttl       time.Duration
	max       int
	fbEnabled bool
	fb        *fallback.Responder
	now       func() time.Time

	hits      int64
	misses    int64
	evictions int64
}

// New creates a ResponseCache. fb may be nil when FallbackMatch is off.
func New(opts Options, fb *fallback.Responder) *ResponseCache {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	limit := opts.MaxEntries
	if limit <= 0 {
		limit = 1
	}
	return &ResponseCache{
		entries:   make(map[string]*entry),
		ttl:       opts.TTL,
		max:       limit,
		fbEnabled: opts.FallbackMatch && fb != nil,
		fb:        fb,
		now:       now,
	}
}

// Normalize lower-cases and trims a prompt.
func Normalize(prompt string) string {
	return strings.ToLower(strings.TrimSpace(prompt))
}

// HashPrompt computes the SHA-256 lookup key of a normalized prompt.
func HashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(Normalize(prompt)))
	return fmt.Sprintf("%x", sum[:])
}

// Get returns the cached answer for prompt. Expired entries are deleted.
// On a miss with fallback matching enabled, the fallback answer is returned
// but not stored.
func (c *ResponseCache) Get(prompt string) (Result, bool) {
	key := HashPrompt(prompt)

	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && c.now().Sub(entry.CreatedAt) > c.ttl {
		delete(c.entries, key)
		ok = false
	}
	if ok {
		entry.HitCount++
		c.hits++
		text := entry.Response
		c.mu.Unlock()
		return Result{Text: text, Source: models.SourceCache}, true
	}
	c.misses++
	c.mu.Unlock()

	if c.fbEnabled {
		if ans, ok := c.fb.Match(prompt); ok {
			return Result{Text: ans.Text, Source: models.SourceFallback, Topic: ans.Topic}, true
		}
	}
	return Result{}, false
}

// Set stores response for prompt. When the cache is full and the key is new,
// the entry with the oldest creation time is evicted first.
func (c *ResponseCache) Set(prompt, response string) {
	key := HashPrompt(prompt)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.max {
		c.evictOldest()
	}
	c.nextSeq++
	c.entries[key] = &entry{
		CacheEntry: models.CacheEntry{Response: response, CreatedAt: c.now()},
		seq:        c.nextSeq,
	}
}

// evictOldest removes the entry with the earliest CreatedAt, the first
// inserted one on ties. Callers hold mu.
func (c *ResponseCache) evictOldest() {
	var (
		oldestKey string
		oldest    *entry
	)
	for k, e := range c.entries {
		if oldest == nil || e.CreatedAt.Before(oldest.CreatedAt) ||
			(e.CreatedAt.Equal(oldest.CreatedAt) && e.seq < oldest.seq) {
			oldestKey, oldest = k, e
		}
	}
	if oldest != nil {
		delete(c.entries, oldestKey)
		c.evictions++
	}
}

// Entry returns a copy of the stored entry for prompt, ignoring expiry.
func (c *ResponseCache) Entry(prompt string) (models.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[HashPrompt(prompt)]
	if !ok {
		return models.CacheEntry{}, false
	}
	return e.CacheEntry, true
}

// Delete removes prompt from the cache.
func (c *ResponseCache) Delete(prompt string) {
	c.mu.Lock()
	delete(c.entries, HashPrompt(prompt))
	c.mu.Unlock()
}

// Len returns the number of stored entries, including expired ones not yet read.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear removes all entries. Counters are kept.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
}

// Stats returns cache performance metrics.
func (c *ResponseCache) Stats() models.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.CacheStats{
		Entries:   int64(len(c.entries)),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
