package cache

import (
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/georgeshao/fio-dashboard/internal/metrics"
)

// Class is a logical category of fetched data with its own TTL and key prefix.
type Class string

const (
	TestRuns      Class = "test-runs"
	FilterOptions Class = "filter-options"
	Users         Class = "users"
	Health        Class = "health"
	TimeSeries    Class = "time-series"
)

// Classes returns every resource class in a stable order.
func Classes() []Class {
	return []Class{TestRuns, FilterOptions, Users, Health, TimeSeries}
}

// DefaultTTLs returns the time-to-live of each resource class. Reference data
// that rarely changes tolerates more staleness than test runs.
func DefaultTTLs() map[Class]time.Duration {
	return map[Class]time.Duration{
		FilterOptions: 5 * time.Minute,
		TestRuns:      2 * time.Minute,
		Users:         10 * time.Minute,
		Health:        60 * time.Minute,
		TimeSeries:    2 * time.Minute,
	}
}

// Key builds the canonical cache key for a class and its query parameters.
// Parameter names are sorted and multi-values are sorted and comma-joined, so
// the same logical query always maps to the same key.
func Key(class Class, params url.Values) string {
	if len(params) == 0 {
		return string(class)
	}

	names := make([]string, 0, len(params))
	for name, values := range params {
		if len(values) == 0 {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return string(class)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(string(class))
	b.WriteByte('?')
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		values := append([]string(nil), params[name]...)
		sort.Strings(values)
		b.WriteString(url.QueryEscape(name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(strings.Join(values, ",")))
	}
	return b.String()
}

// ItemKey builds the key of a single-item fetch, e.g. "test-runs/42".
func ItemKey(class Class, id string) string {
	return string(class) + "/" + id
}

// ClassOf returns the resource class a key belongs to.
func ClassOf(key string) Class {
	if i := strings.IndexAny(key, "?/"); i >= 0 {
		return Class(key[:i])
	}
	return Class(key)
}

type Entry struct {
	Key      string
	Payload  any
	StoredAt time.Time
	Params   url.Values
}

// Age returns how old the entry is at now.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// Expired reports whether the entry is at least ttl old.
func (e *Entry) Expired(now time.Time, ttl time.Duration) bool {
	if e == nil {
		return true
	}
	return e.Age(now) >= ttl
}

type Option func(*Cache)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// Cache maps canonical keys to timestamped payloads. Expiry is lazy: stale
// entries are evicted when read and are never returned.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	now     func() time.Time
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the payload stored under key if it is younger than ttl.
func (c *Cache) Get(key string, ttl time.Duration) (any, bool) {
	entry, ok := c.Entry(key, ttl)
	if !ok {
		return nil, false
	}
	return entry.Payload, true
}

// Entry is Get returning the whole entry.
func (c *Cache) Entry(key string, ttl time.Duration) (*Entry, bool) {
	class := string(ClassOf(key))

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		metrics.RecordCacheLookup(class, "miss")
		return nil, false
	}
	if entry.Expired(c.now(), ttl) {
		delete(c.entries, key)
		metrics.RecordCacheLookup(class, "expired")
		return nil, false
	}

	metrics.RecordCacheLookup(class, "hit")
	copied := *entry
	return &copied, true
}

func (c *Cache) Set(key string, payload any, params url.Values) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &Entry{
		Key:      key,
		Payload:  payload,
		StoredAt: c.now(),
		Params:   params,
	}
}

// Invalidate removes every entry whose key starts with prefix and returns how
// many were removed.
func (c *Cache) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	metrics.RecordInvalidation(prefix, removed)
	return removed
}

// InvalidateClass removes all entries of the given classes.
func (c *Cache) InvalidateClass(classes ...Class) int {
	removed := 0
	for _, class := range classes {
		removed += c.Invalidate(string(class))
	}
	return removed
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Entry)
}

// Len returns the number of physically stored entries, stale ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
