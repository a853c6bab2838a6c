// Package statestore provides a small observable state container: a mutable
// cell with get/set/subscribe. Domain logic stays in pure functions that
// receive values; only the wiring layer touches the container.
package statestore

import "sync"

// Store holds a single value of type T and notifies subscribers on change.
// Safe for concurrent use. Values should be treated as immutable once set.
type Store[T any] struct {
	mu     sync.RWMutex
	value  T
	subs   map[int]func(T)
	nextID int
}

// New creates a store holding the initial value.
func New[T any](initial T) *Store[T] {
	return &Store[T]{
		value: initial,
		subs:  make(map[int]func(T)),
	}
}

// Get returns the current value.
func (s *Store[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the value and synchronously notifies all subscribers with
// the new value, in no particular order. Subscribers run outside the lock
// so they may call Get or Subscribe.
func (s *Store[T]) Set(v T) {
	s.mu.Lock()
	s.value = v
	subs := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
}

// Subscribe registers fn to be called on every Set. It returns a cancel
// function that removes the subscription.
func (s *Store[T]) Subscribe(fn func(T)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}
