// Package filter matches function names against user-supplied
// regular expressions, backing the --only selection of dumps and
// reports. Patterns are unanchored, so "main" matches "main" and
// "domain_update" alike.
package filter

import (
	"sync"

	"github.com/coregx/coregex"
)

// Filter is a compiled name filter. The zero pattern matches
// everything.
type Filter struct {
	pattern string
	re      *coregex.Regexp
}

// Compile builds a filter from pattern. An empty pattern yields a
// filter that matches every name.
func Compile(pattern string) (*Filter, error) {
	f := &Filter{pattern: pattern}
	if pattern == "" {
		return f, nil
	}
	re, err := coregex.Compile(pattern)
	if err != nil {
		return nil, err
	}
	f.re = re
	return f, nil
}

// MustCompile is like Compile but panics on an invalid pattern.
func MustCompile(pattern string) *Filter {
	f, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return f
}

// Pattern returns the original pattern string.
func (f *Filter) Pattern() string { return f.pattern }

// Match reports whether name passes the filter.
func (f *Filter) Match(name string) bool {
	if f.re == nil {
		return true
	}
	return f.re.MatchString(name)
}

// Cache holds compiled filters keyed by pattern, with FIFO eviction.
// Reads are lock-free via sync.Map; the eviction order is guarded
// separately.
type Cache struct {
	cache   sync.Map // map[string]*Filter
	orderMu sync.Mutex
	order   []string
	maxSize int
}

// NewCache creates a cache bounded to maxSize compiled filters.
func NewCache(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 64
	}
	return &Cache{order: make([]string, 0, maxSize), maxSize: maxSize}
}

// Get returns a compiled filter, compiling and caching if needed.
func (c *Cache) Get(pattern string) (*Filter, error) {
	if f, ok := c.cache.Load(pattern); ok {
		return f.(*Filter), nil
	}
	f, err := Compile(pattern)
	if err != nil {
		return nil, err
	}
	if existing, loaded := c.cache.LoadOrStore(pattern, f); loaded {
		return existing.(*Filter), nil
	}
	c.orderMu.Lock()
	c.order = append(c.order, pattern)
	for len(c.order) > c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		c.cache.Delete(oldest)
	}
	c.orderMu.Unlock()
	return f, nil
}

// Len returns the number of cached filters.
func (c *Cache) Len() int {
	c.orderMu.Lock()
	defer c.orderMu.Unlock()
	return len(c.order)
}

var defaultCache = NewCache(64)

// Cached compiles pattern through a process-wide cache.
func Cached(pattern string) (*Filter, error) {
	return defaultCache.Get(pattern)
}
