// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package kv is a small key-value store used for locks, rate-limit counters
// and handoff tokens. Writes carry a revision so callers can perform atomic
// compare-and-swap updates, and every key can carry an expiration.
//
// A SQL-backed implementation is used in production while an in-memory
// implementation exists for tests.
package kv

import (
	"time"
)

// Entry is a stored value along with its revision and expiration.
type Entry struct {
	Value     []byte
	Revision  int64
	ExpiresAt time.Time // zero means the key never expires
}

func (e *Entry) Expired(now time.Time) bool {
	if e == nil {
		return true
	}
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Store persists keyed values with revisions and optional TTLs.
type Store interface {
	// Get returns the current entry or nil when the key is absent or expired.
	Get(key string) (*Entry, error)

	// Put writes the value unconditionally. A zero ttl means no expiration.
	Put(key string, value []byte, ttl time.Duration) error

	// CompareAndSwap writes value only when the stored revision matches expected.
	// An expected revision of zero requires the key to be absent (or expired).
	// The boolean reports whether the swap happened.
	CompareAndSwap(key string, value []byte, expected int64, ttl time.Duration) (bool, error)

	// CompareAndDelete removes the key only when the stored revision matches
	// expected. The boolean reports whether the delete happened.
	CompareAndDelete(key string, expected int64) (bool, error)

	Delete(key string) error
}

func expiresAt(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
