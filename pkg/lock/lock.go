// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package lock provides named advisory locks on top of the kv store. A lock
// holder that dies without releasing is recovered automatically: once the
// lock is older than its max age any acquirer may force-release it, which is
// recorded on the audit stream. That is the only automatic recovery from a
// stuck lock.
package lock

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ledgerline/settler/pkg/kv"
	"github.com/ledgerline/settler/pkg/stream"

	"github.com/go-kit/kit/log"
	"github.com/moov-io/base"
)

// ErrHeld is returned when the lock is currently held and not stale.
var ErrHeld = fmt.Errorf("lock: already held")

type Locker struct {
	logger log.Logger
	store  kv.Store
	events *stream.Publisher

	now func() time.Time
}

func NewLocker(logger log.Logger, store kv.Store, events *stream.Publisher) *Locker {
	return &Locker{
		logger: logger,
		store:  store,
		events: events,
		now:    time.Now,
	}
}

// Lock is a held lock. Release it on every exit path.
type Lock struct {
	locker *Locker

	Name       string
	Holder     string
	AcquiredAt time.Time
}

type lockState struct {
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

func key(name string) string {
	return fmt.Sprintf("lock:%s", name)
}

// Acquire takes the named lock. When the current holder's claim is older
// than maxAge the lock is forcibly released and taken over.
func (l *Locker) Acquire(name string, maxAge time.Duration) (*Lock, error) {
	now := l.now()
	state := lockState{
		Holder:     base.ID(),
		AcquiredAt: now,
	}
	value, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}

	swapped, err := l.store.CompareAndSwap(key(name), value, 0, 0)
	if err != nil {
		return nil, err
	}
	if swapped {
		return &Lock{locker: l, Name: name, Holder: state.Holder, AcquiredAt: now}, nil
	}

	// contended: see whether the current claim went stale
	entry, err := l.store.Get(key(name))
	if err != nil {
		return nil, err
	}
	if entry == nil {
		// released between our attempts, try once more
		swapped, err := l.store.CompareAndSwap(key(name), value, 0, 0)
		if err != nil {
			return nil, err
		}
		if swapped {
			return &Lock{locker: l, Name: name, Holder: state.Holder, AcquiredAt: now}, nil
		}
		return nil, ErrHeld
	}

	var current lockState
	if err := json.Unmarshal(entry.Value, &current); err != nil {
		return nil, fmt.Errorf("lock: unreadable state for %s: %v", name, err)
	}
	if maxAge <= 0 || now.Sub(current.AcquiredAt) < maxAge {
		return nil, ErrHeld
	}

	// stale: take over atomically against the revision we read
	swapped, err = l.store.CompareAndSwap(key(name), value, entry.Revision, 0)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, ErrHeld
	}

	l.logger.Log("lock", "force released stale lock", "name", name, "holder", current.Holder, "age", now.Sub(current.AcquiredAt))
	if err := l.events.Publish(context.Background(), stream.Event{
		Type: "lock-force-released",
		Fields: map[string]string{
			"name":       name,
			"holder":     current.Holder,
			"acquiredAt": current.AcquiredAt.Format(time.RFC3339),
		},
	}); err != nil {
		l.logger.Log("lock", "audit publish failed", "name", name, "error", err)
	}

	return &Lock{locker: l, Name: name, Holder: state.Holder, AcquiredAt: now}, nil
}

// Release drops the lock. Only the holder can release; a lock that was
// forcibly taken over reports an error to its original holder. The delete
// is guarded by the revision we read so a claim that changes hands between
// the read and the delete stays intact.
func (lk *Lock) Release() error {
	entry, err := lk.locker.store.Get(key(lk.Name))
	if err != nil {
		return err
	}
	if entry == nil {
		return nil // already gone
	}
	var current lockState
	if err := json.Unmarshal(entry.Value, &current); err != nil {
		return fmt.Errorf("lock: unreadable state for %s: %v", lk.Name, err)
	}
	if current.Holder != lk.Holder {
		return fmt.Errorf("lock: %s is now held by another process", lk.Name)
	}
	deleted, err := lk.locker.store.CompareAndDelete(key(lk.Name), entry.Revision)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("lock: %s changed hands during release", lk.Name)
	}
	return nil
}
