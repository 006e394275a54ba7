// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package kv

import (
	"sync"
	"time"
)

type inmemStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewInMemStore returns a Store useful as a test double. All operations are
// guarded by one mutex, which gives the same atomicity the SQL store gets
// from guarded updates.
func NewInMemStore() Store {
	return &inmemStore{
		entries: make(map[string]*Entry),
	}
}

func (s *inmemStore) Get(key string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	if !exists || entry.Expired(time.Now()) {
		return nil, nil
	}
	cp := *entry
	return &cp, nil
}

func (s *inmemStore) Put(key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var revision int64 = 1
	if prev, exists := s.entries[key]; exists {
		revision = prev.Revision + 1
	}
	s.entries[key] = &Entry{
		Value:     value,
		Revision:  revision,
		ExpiresAt: expiresAt(now, ttl),
	}
	return nil
}

func (s *inmemStore) CompareAndSwap(key string, value []byte, expected int64, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	current, exists := s.entries[key]
	if exists && current.Expired(now) {
		delete(s.entries, key)
		current, exists = nil, false
	}

	if expected == 0 {
		if exists {
			return false, nil
		}
		s.entries[key] = &Entry{Value: value, Revision: 1, ExpiresAt: expiresAt(now, ttl)}
		return true, nil
	}

	if !exists || current.Revision != expected {
		return false, nil
	}
	s.entries[key] = &Entry{Value: value, Revision: expected + 1, ExpiresAt: expiresAt(now, ttl)}
	return true, nil
}

func (s *inmemStore) CompareAndDelete(key string, expected int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.entries[key]
	if !exists || current.Expired(time.Now()) || current.Revision != expected {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

func (s *inmemStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}
