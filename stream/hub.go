// Package stream fans freshly appended events out to connected readers.
// Every reader (SSE, long-poll, websocket) owns a Poller holding its own
// resume boundary and polling the graph once per quantum; the Hub only
// carries wakeup signals so a local append is visible in the next read
// instead of the next tick.
package stream

import (
	"sync"

	"ginko-backend/types"
)

// Hub is the per-process registry of poll loops waiting on a graph.
type Hub struct {
	mu      sync.RWMutex
	waiters map[string]map[chan struct{}]bool
}

func NewHub() *Hub {
	return &Hub{waiters: make(map[string]map[chan struct{}]bool)}
}

// NotifyAppend wakes every poller waiting on graphID. Sends are
// non-blocking: a waiter that already holds a pending wakeup needs no
// second one.
func (h *Hub) NotifyAppend(graphID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.waiters[graphID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (h *Hub) register(graphID string) chan struct{} {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.waiters[graphID] == nil {
		h.waiters[graphID] = make(map[chan struct{}]bool)
	}
	h.waiters[graphID][ch] = true
	return ch
}

func (h *Hub) unregister(graphID string, ch chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.waiters[graphID]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(h.waiters, graphID)
		}
	}
}

// Filter narrows which events a reader receives. Boundary tracking in
// the poller always advances over the unfiltered stream so filtered-out
// events are never re-fetched.
type Filter struct {
	Categories []string
	AgentID    string
}

// Match reports whether a reader with this filter should see ev. The
// agent filter matches events the agent authored and status changes it
// performed.
func (f Filter) Match(ev types.Event) bool {
	if len(f.Categories) > 0 {
		ok := false
		for _, cat := range f.Categories {
			if types.EventCategory(cat) == ev.Category {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.AgentID != "" && ev.UserID != f.AgentID && ev.ChangedBy != f.AgentID {
		return false
	}
	return true
}
