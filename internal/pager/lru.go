package pager

import (
	"fmt"

	"github.com/lindeneg/yarrd/internal/xerr"
)

// linkedNode is one slot of the circular use-sequence list. An empty slot
// (no key ever assigned, or evicted without replacement) has occupied=false.
type linkedNode[K comparable, V any] struct {
	occupied bool
	key      K
	value    V
	prev     int
	next     int
}

// Lru is a bounded, generic key-value cache. The use sequence is a circular
// doubly-linked list sized exactly to capacity; current points at the oldest
// slot, the next one to be evicted by Set.
type Lru[K comparable, V any] struct {
	keyLocation map[K]int
	seq         []linkedNode[K, V]
	current     int
}

// NewLru constructs an Lru with the given capacity. Capacity below 2 is
// rejected: a cache of size 0 or 1 can't usefully promote on get.
func NewLru[K comparable, V any](capacity int) (*Lru[K, V], error) {
	if capacity < 2 {
		return nil, fmt.Errorf("lru: capacity %d too small: %w", capacity, xerr.LRU)
	}
	seq := make([]linkedNode[K, V], capacity)
	for i := range seq {
		seq[i].prev = (i - 1 + capacity) % capacity
		seq[i].next = (i + 1) % capacity
	}
	return &Lru[K, V]{
		keyLocation: make(map[K]int, capacity),
		seq:         seq,
		current:     0,
	}, nil
}

// Len reports the number of resident entries.
func (l *Lru[K, V]) Len() int { return len(l.keyLocation) }

// Contains reports whether k is resident, without promoting it.
func (l *Lru[K, V]) Contains(k K) bool {
	_, ok := l.keyLocation[k]
	return ok
}

// Get returns k's value and promotes it to most-recently-used.
func (l *Lru[K, V]) Get(k K) (V, bool) {
	idx, ok := l.keyLocation[k]
	if !ok {
		var zero V
		return zero, false
	}
	l.bumpKey(idx)
	return l.seq[idx].value, true
}

// Peek returns k's value without promoting it.
func (l *Lru[K, V]) Peek(k K) (V, bool) {
	idx, ok := l.keyLocation[k]
	if !ok {
		var zero V
		return zero, false
	}
	return l.seq[idx].value, true
}

// Set inserts or updates k's value, promoting it to most-recently-used. If
// inserting caused an eviction of a different key, that (key, value) pair is
// returned with evicted=true.
func (l *Lru[K, V]) Set(k K, v V) (evictedKey K, evictedValue V, evicted bool) {
	if idx, ok := l.keyLocation[k]; ok {
		l.seq[idx].value = v
		l.bumpKey(idx)
		return
	}
	idx := l.current
	node := &l.seq[idx]
	if node.occupied {
		evictedKey = node.key
		evictedValue = node.value
		evicted = true
		delete(l.keyLocation, node.key)
	}
	node.occupied = true
	node.key = k
	node.value = v
	l.keyLocation[k] = idx
	l.incrementCurrent()
	return
}

// Each calls fn once for every resident (key, value) pair, in unspecified
// order. It is the caller's responsibility to use this for a final drain
// (e.g. flushing every cached page) rather than relying on iteration order.
func (l *Lru[K, V]) Each(fn func(k K, v V)) {
	for _, node := range l.seq {
		if node.occupied {
			fn(node.key, node.value)
		}
	}
}

// bumpKey marks the node at idx most-recently-used. If idx sits elsewhere in
// the sequence it is unlinked and relinked immediately before current; if it
// already sits at current, current itself is the one that must move on, so
// the touched slot stops being the next eviction target.
func (l *Lru[K, V]) bumpKey(idx int) {
	if idx == l.current {
		l.incrementCurrent()
		return
	}
	l.skipKey(idx)
	l.dragKeyBeforeCurrent(idx)
}

func (l *Lru[K, V]) skipKey(idx int) {
	p, n := l.seq[idx].prev, l.seq[idx].next
	l.seq[p].next = n
	l.seq[n].prev = p
}

func (l *Lru[K, V]) dragKeyBeforeCurrent(idx int) {
	before := l.seq[l.current].prev
	l.seq[before].next = idx
	l.seq[idx].prev = before
	l.seq[idx].next = l.current
	l.seq[l.current].prev = idx
}

func (l *Lru[K, V]) incrementCurrent() {
	l.current = l.seq[l.current].next
}
