// Package store is a small typed key/value store with per-key subscribers,
// shared by the modules of one application root.
package store

import "sync"

// Handler receives the new value for a key.
type Handler[V any] func(V)

type subscription[V any] struct {
	id      uint64
	handler Handler[V]
}

// Store holds values keyed by K and notifies subscribers on Set.
type Store[K comparable, V any] struct {
	mu     sync.RWMutex
	values map[K]V
	subs   map[K][]subscription[V]
	nextID uint64
}

// New creates an empty store.
func New[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{
		values: make(map[K]V),
		subs:   make(map[K][]subscription[V]),
	}
}

// Set stores value and then calls the key's handlers in subscription order.
// Handlers run outside the lock and may call back into the store.
func (s *Store[K, V]) Set(key K, value V) {
	s.mu.Lock()
	s.values[key] = value
	subs := make([]subscription[V], len(s.subs[key]))
	copy(subs, s.subs[key])
	s.mu.Unlock()

	for _, sub := range subs {
		sub.handler(value)
	}
}

// Get returns the value for key.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Subscribe registers handler for key. The returned function removes it and
// is safe to call more than once.
func (s *Store[K, V]) Subscribe(key K, handler Handler[V]) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[key] = append(s.subs[key], subscription[V]{id: id, handler: handler})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			subs := s.subs[key]
			for i, sub := range subs {
				if sub.id == id {
					s.subs[key] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			if len(s.subs[key]) == 0 {
				delete(s.subs, key)
			}
		})
	}
}

// Subscribers returns the number of handlers registered for key.
func (s *Store[K, V]) Subscribers(key K) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[key])
}
