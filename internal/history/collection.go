package history

import (
	"sync"

	"github.com/jenkinstray/jenkinstray/internal/config"
)

// Collection keeps the most recent entries in arrival order, dropping the oldest past the limit.
type Collection struct {
	mu      sync.RWMutex
	limit   int
	items   []Entry
	changes chan struct{}
}

func NewCollection(limit int) *Collection {
	return &Collection{
		limit:   normalizeLimit(limit),
		changes: make(chan struct{}, 1),
	}
}

// Load replaces the contents with items given oldest first.
func (c *Collection) Load(items []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make([]Entry, len(items))
	copy(c.items, items)
	c.trimLocked()
	c.notify()
}

func (c *Collection) Append(entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, entry)
	c.trimLocked()
	c.notify()
}

// Items returns a copy, oldest first.
func (c *Collection) Items() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, len(c.items))
	copy(out, c.items)

	return out
}

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

func (c *Collection) Limit() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.limit
}

func (c *Collection) SetLimit(limit int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limit = normalizeLimit(limit)
	if c.trimLocked() {
		c.notify()
	}
}

func (c *Collection) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.notify()
}

func (c *Collection) Changes() <-chan struct{} {
	return c.changes
}

func (c *Collection) trimLocked() bool {
	over := len(c.items) - c.limit
	if over <= 0 {
		return false
	}
	c.items = append([]Entry(nil), c.items[over:]...)

	return true
}

func (c *Collection) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

func normalizeLimit(limit int) int {
	if limit < config.MinDisplayHistoryCount {
		return config.MinDisplayHistoryCount
	}
	if limit > config.MaxDisplayHistoryCount {
		return config.MaxDisplayHistoryCount
	}

	return limit
}
