// Package bookmark implements the BookmarkManager contract that mediates
// causal chaining across sessions (spec.md §4.9 "Causal chaining").
package bookmark

import (
	"sync"

	"github.com/cuemby/warren-bolt/pkg/values"
)

// Manager is consulted before each unit of work for the bookmarks to union
// in, and notified after each commit with the bookmark the server returned
// (spec.md §4.9, §5 "user callbacks").
type Manager interface {
	GetBookmarks() (values.Bookmarks, error)
	UpdateBookmarks(previous, newBookmarks values.Bookmarks) error
}

// InMemory is the default Manager: a single process-wide bookmark set
// guarded by a mutex, matching the read-mostly-guard discipline spec.md §5
// prescribes for shared driver state.
type InMemory struct {
	mu    sync.RWMutex
	marks values.Bookmarks
}

func NewInMemory() *InMemory {
	return &InMemory{marks: values.NewBookmarks()}
}

func (m *InMemory) GetBookmarks() (values.Bookmarks, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.marks.Union(values.NewBookmarks()), nil
}

func (m *InMemory) UpdateBookmarks(previous, newBookmarks values.Bookmarks) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for b := range previous {
		delete(m.marks, b)
	}
	m.marks = m.marks.Union(newBookmarks)
	return nil
}
