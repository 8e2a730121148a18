package scheduler

import "sync"

// seenCache remembers the most recent event ids, evicting the oldest once full
type seenCache struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	order []string
	next  int
}

func newSeenCache(size int) *seenCache {
	if size < 1 {
		size = 1
	}
	return &seenCache{
		ids:   make(map[string]struct{}, size),
		order: make([]string, 0, size),
	}
}

func (c *seenCache) Contains(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.ids[id]
	return ok
}

func (c *seenCache) Add(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.ids[id]; ok {
		return
	}
	if len(c.order) < cap(c.order) {
		c.order = append(c.order, id)
	} else {
		delete(c.ids, c.order[c.next])
		c.order[c.next] = id
		c.next = (c.next + 1) % len(c.order)
	}
	c.ids[id] = struct{}{}
}

func (c *seenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids)
}
