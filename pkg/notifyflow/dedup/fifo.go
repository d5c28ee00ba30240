// Package dedup provides the bounded history and processing guard used to
// make tenant status transitions idempotent.
//
// Both types are safe for concurrent use and are meant to be owned by one
// long-lived detector instance rather than shared as package state.
package dedup

import (
	"container/list"
	"sync"
)

// DefaultCapacity is the history size used when none is configured.
const DefaultCapacity = 200

// FIFOSet is a set with a fixed capacity. When full, inserting a new key
// evicts the oldest one.
type FIFOSet struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

// NewFIFOSet creates a set holding at most capacity keys.
// A non-positive capacity uses DefaultCapacity.
func NewFIFOSet(capacity int) *FIFOSet {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &FIFOSet{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element, capacity),
	}
}

// Add inserts key. It returns false if the key was already present, in which
// case the set is unchanged.
func (s *FIFOSet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[key]; ok {
		return false
	}
	for s.order.Len() >= s.capacity {
		oldest := s.order.Front()
		s.order.Remove(oldest)
		delete(s.index, oldest.Value.(string))
	}
	s.index[key] = s.order.PushBack(key)
	return true
}

// Contains reports whether key is present.
func (s *FIFOSet) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[key]
	return ok
}

// Len returns the number of keys held.
func (s *FIFOSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Capacity returns the maximum number of keys held.
func (s *FIFOSet) Capacity() int {
	return s.capacity
}
