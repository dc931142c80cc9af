// Package routing implements the routing-table cache and the home-database
// cache that back cluster-aware (neo4j://) addressing (spec.md §4.5, §4.6).
package routing

import (
	"sync"
	"time"
)

// Table is one database's parsed ROUTE response: router/reader/writer
// lists with a monotonic expiry (spec.md §4.5).
type Table struct {
	Database string
	Routers  []string
	Readers  []string
	Writers  []string
	Deadline time.Time
}

func (t *Table) Expired(now time.Time) bool { return !now.Before(t.Deadline) }

// Cache holds one Table per database name, guarded by a short-critical-
// section mutex per spec.md §5 ("critical sections do not perform I/O").
type Cache struct {
	mu     sync.Mutex
	tables map[string]*Table
}

func NewCache() *Cache {
	return &Cache{tables: make(map[string]*Table)}
}

func (c *Cache) Get(database string) (*Table, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[database]
	return t, ok
}

func (c *Cache) Put(t *Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[t.Database] = t
}

// Invalidate drops a stale table, e.g. after a ROUTE round exhausts every
// router and the old table is already past its TTL (spec.md §4.5).
func (c *Cache) Invalidate(database string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tables, database)
}

// RemoveWriter evicts address from database's cached writer list without
// expiring the rest of the table, so the next acquire for a write picks a
// different writer instead of re-dialing the one that just rejected the
// request (spec.md §4.5, §8 scenario 3: a retry after the pool invalidates
// the writer must target a different one).
func (c *Cache) RemoveWriter(database, address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[database]
	if !ok {
		return
	}
	for i, w := range t.Writers {
		if w == address {
			t.Writers = append(t.Writers[:i:i], t.Writers[i+1:]...)
			return
		}
	}
}

// Addresses returns the candidate address list for a request's access
// mode.
func (t *Table) Addresses(write bool) []string {
	if write {
		return t.Writers
	}
	return t.Readers
}
