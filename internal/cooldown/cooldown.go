// ABOUTME: Thread-safe TTL registry of recently aborted (conversation, agent) pairs
// ABOUTME: Suppresses immediate re-delegation to a pair that was just killed

package cooldown

import (
	"container/list"
	"sync"
	"time"
)

// entry stores the expiry bookkeeping for one suppressed pair.
type entry struct {
	addedAt time.Time
	element *list.Element
}

// Registry is a thread-safe, TTL-based, size-limited set of
// (conversation, agent) pairs that were recently aborted. Re-delegation
// logic consults it to avoid racing an in-flight teardown by immediately
// handing the same task back to a pair that was just killed.
// Uses a doubly-linked list to maintain insertion order for O(1) eviction.
type Registry struct {
	mu      sync.RWMutex
	pairs   map[string]*entry
	order   *list.List // keys in insertion order, oldest at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a cooldown registry with the given TTL and maximum size.
// A background goroutine periodically removes expired pairs.
func New(ttl time.Duration, maxSize int) *Registry {
	r := &Registry{
		pairs:   make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go r.cleanup()
	return r
}

// pairKey builds the map key for a (conversation, agent) pair.
func pairKey(conversationID, agentPubkey string) string {
	return conversationID + "|" + agentPubkey
}

// Add records that the pair was just aborted, starting its cooldown window.
// Re-adding an existing pair restarts the window.
func (r *Registry) Add(conversationID, agentPubkey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey(conversationID, agentPubkey)
	now := time.Now()

	if e, exists := r.pairs[key]; exists {
		e.addedAt = now
		r.order.MoveToBack(e.element)
		return
	}

	if len(r.pairs) >= r.maxSize {
		r.evictOldest()
	}

	elem := r.order.PushBack(key)
	r.pairs[key] = &entry{addedAt: now, element: elem}
}

// Active reports whether the pair is currently inside its cooldown window.
func (r *Registry) Active(conversationID, agentPubkey string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.pairs[pairKey(conversationID, agentPubkey)]
	if !ok {
		return false
	}
	return time.Since(e.addedAt) < r.ttl
}

// Len returns the number of tracked pairs, including not-yet-swept expired ones.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pairs)
}

// ClearAll removes every tracked pair. Test reset only.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pairs = make(map[string]*entry)
	r.order.Init()
}

// evictOldest removes the oldest pair. Must be called with mu held.
func (r *Registry) evictOldest() {
	front := r.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	r.order.Remove(front)
	delete(r.pairs, key)
}

// cleanup runs in a background goroutine, periodically removing expired pairs.
func (r *Registry) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.runCleanup()
		case <-r.done:
			return
		}
	}
}

// runCleanup removes all expired pairs.
func (r *Registry) runCleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for key, e := range r.pairs {
		if now.Sub(e.addedAt) > r.ttl {
			r.order.Remove(e.element)
			delete(r.pairs, key)
		}
	}
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.closed {
		close(r.done)
		r.closed = true
	}
}
