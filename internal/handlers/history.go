package handlers

import (
	"slices"
	"sync"
)

// History is a bounded set of IDs already acted on. The oldest entry is
// evicted when the size is exceeded.
type History struct {
	mu    sync.Mutex
	size  int
	order []string
	set   map[string]struct{}
}

// NewHistory creates a history holding at most size IDs.
func NewHistory(size int) *History {
	if size <= 0 {
		size = 1
	}
	return &History{size: size, set: make(map[string]struct{})}
}

// Add records id. Adding an existing id is a no-op.
func (h *History) Add(id string) {
	if id == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.set[id]; ok {
		return
	}
	h.set[id] = struct{}{}
	h.order = append(h.order, id)
	for len(h.order) > h.size {
		delete(h.set, h.order[0])
		h.order = h.order[1:]
	}
}

func (h *History) Contains(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.set[id]
	return ok
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.order)
}

// Items returns IDs oldest first.
func (h *History) Items() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.order)
}

// Clear empties the history.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.order = nil
	h.set = make(map[string]struct{})
}
