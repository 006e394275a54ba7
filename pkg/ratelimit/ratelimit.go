// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package ratelimit bounds how often sensitive actions can be attempted.
// Attempts are tracked in a sliding window per (action, id); hitting the
// ceiling inside the window locks the pair out for an independent duration.
// State lives in the kv store so limits survive restarts and are shared by
// every process pointed at the same database.
package ratelimit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ledgerline/settler/pkg/config"
	"github.com/ledgerline/settler/pkg/kv"

	"github.com/go-kit/kit/log"
	kitprom "github.com/go-kit/kit/metrics/prometheus"
	stdprom "github.com/prometheus/client_golang/prometheus"
)

var (
	lockoutsTotal = kitprom.NewCounterFrom(stdprom.CounterOpts{
		Name: "ratelimit_lockouts",
		Help: "Count of (action, id) pairs locked out",
	}, []string{"action"})
)

// casRetries bounds optimistic concurrency retries before giving up
const casRetries = 5

// Decision reports whether an action may proceed.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	LockedOut bool
}

type Limiter struct {
	logger log.Logger
	store  kv.Store

	attempts int
	window   time.Duration
	lockout  time.Duration

	now func() time.Time
}

func NewLimiter(logger log.Logger, cfg config.RateLimit, store kv.Store) *Limiter {
	return &Limiter{
		logger:   logger,
		store:    store,
		attempts: cfg.Attempts(),
		window:   cfg.WindowDuration(),
		lockout:  cfg.LockoutDuration(),
		now:      time.Now,
	}
}

type windowState struct {
	Attempts []time.Time `json:"attempts"`
}

func (w *windowState) prune(cutoff time.Time) {
	kept := w.Attempts[:0]
	for _, at := range w.Attempts {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	w.Attempts = kept
}

func (w *windowState) resetAt(window time.Duration) time.Time {
	if len(w.Attempts) == 0 {
		return time.Time{}
	}
	return w.Attempts[0].Add(window)
}

func windowKey(action, id string) string {
	return fmt.Sprintf("ratelimit:%s:%s", action, id)
}

func lockoutKey(action, id string) string {
	return fmt.Sprintf("ratelimit:lockout:%s:%s", action, id)
}

// Check reports whether the action would be allowed right now. It never
// consumes an attempt.
func (l *Limiter) Check(action, id string) (*Decision, error) {
	now := l.now()

	locked, until, err := l.lockedOut(action, id)
	if err != nil {
		return nil, err
	}
	if locked {
		return &Decision{LockedOut: true, ResetAt: until}, nil
	}

	entry, err := l.store.Get(windowKey(action, id))
	if err != nil {
		return nil, err
	}
	state, _, err := decodeWindow(entry)
	if err != nil {
		return nil, err
	}
	state.prune(now.Add(-l.window))

	remaining := l.attempts - len(state.Attempts)
	if remaining <= 0 {
		return &Decision{Remaining: 0, ResetAt: state.resetAt(l.window)}, nil
	}
	return &Decision{Allowed: true, Remaining: remaining, ResetAt: state.resetAt(l.window)}, nil
}

// Record consumes an attempt. A successful attempt clears the window so
// later legitimate activity starts fresh; failures accumulate and trip the
// lockout at the ceiling.
func (l *Limiter) Record(action, id string, success bool) (*Decision, error) {
	if success {
		if err := l.store.Delete(windowKey(action, id)); err != nil {
			return nil, err
		}
		return &Decision{Allowed: true, Remaining: l.attempts}, nil
	}

	now := l.now()

	locked, until, err := l.lockedOut(action, id)
	if err != nil {
		return nil, err
	}
	if locked {
		return &Decision{LockedOut: true, ResetAt: until}, nil
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		entry, err := l.store.Get(windowKey(action, id))
		if err != nil {
			return nil, err
		}
		state, revision, err := decodeWindow(entry)
		if err != nil {
			return nil, err
		}
		state.prune(now.Add(-l.window))
		state.Attempts = append(state.Attempts, now)

		value, err := json.Marshal(state)
		if err != nil {
			return nil, err
		}
		swapped, err := l.store.CompareAndSwap(windowKey(action, id), value, revision, l.window)
		if err != nil {
			return nil, err
		}
		if !swapped {
			continue // lost a race, re-read and retry
		}

		if len(state.Attempts) >= l.attempts {
			if err := l.lock(action, id, now); err != nil {
				return nil, err
			}
			return &Decision{LockedOut: true, Remaining: 0, ResetAt: now.Add(l.lockout)}, nil
		}
		return &Decision{
			Allowed:   true,
			Remaining: l.attempts - len(state.Attempts),
			ResetAt:   state.resetAt(l.window),
		}, nil
	}
	return nil, fmt.Errorf("ratelimit: too much contention on %s/%s", action, id)
}

func (l *Limiter) lock(action, id string, now time.Time) error {
	until := now.Add(l.lockout)
	if err := l.store.Put(lockoutKey(action, id), []byte(until.Format(time.RFC3339)), l.lockout); err != nil {
		return err
	}
	lockoutsTotal.With("action", action).Add(1)
	l.logger.Log("ratelimit", "lockout", "action", action, "id", id, "until", until)
	return nil
}

func (l *Limiter) lockedOut(action, id string) (bool, time.Time, error) {
	entry, err := l.store.Get(lockoutKey(action, id))
	if err != nil {
		return false, time.Time{}, err
	}
	if entry == nil {
		return false, time.Time{}, nil
	}
	until, err := time.Parse(time.RFC3339, string(entry.Value))
	if err != nil {
		return true, time.Time{}, nil // unreadable lockouts still lock
	}
	return true, until, nil
}

func decodeWindow(entry *kv.Entry) (*windowState, int64, error) {
	if entry == nil {
		return &windowState{}, 0, nil
	}
	var state windowState
	if err := json.Unmarshal(entry.Value, &state); err != nil {
		return nil, 0, fmt.Errorf("ratelimit: unreadable window state: %v", err)
	}
	return &state, entry.Revision, nil
}
