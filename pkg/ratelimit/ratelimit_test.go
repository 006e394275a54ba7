// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package ratelimit

import (
	"testing"
	"time"

	"github.com/ledgerline/settler/pkg/config"
	"github.com/ledgerline/settler/pkg/kv"

	"github.com/go-kit/kit/log"
)

func testLimiter(t *testing.T) (*Limiter, *time.Time) {
	t.Helper()

	now := time.Date(2020, time.June, 3, 10, 0, 0, 0, time.UTC)
	limiter := NewLimiter(log.NewNopLogger(), config.RateLimit{
		MaxAttempts: 3,
		Window:      "10m",
		Lockout:     "30m",
	}, kv.NewInMemStore())
	limiter.now = func() time.Time { return now }
	return limiter, &now
}

func TestLimiter__allowsUnderCeiling(t *testing.T) {
	limiter, _ := testLimiter(t)

	decision, err := limiter.Check("handoff", "cust-1")
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Allowed || decision.Remaining != 3 {
		t.Errorf("got %#v", decision)
	}

	decision, err = limiter.Record("handoff", "cust-1", false)
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Allowed || decision.Remaining != 2 {
		t.Errorf("got %#v", decision)
	}
}

func TestLimiter__lockoutAtCeiling(t *testing.T) {
	limiter, _ := testLimiter(t)

	for i := 0; i < 2; i++ {
		if decision, _ := limiter.Record("handoff", "cust-1", false); !decision.Allowed {
			t.Fatalf("attempt %d: %#v", i+1, decision)
		}
	}

	// third failure in the window trips the lockout
	decision, err := limiter.Record("handoff", "cust-1", false)
	if err != nil {
		t.Fatal(err)
	}
	if !decision.LockedOut {
		t.Fatalf("got %#v", decision)
	}

	// checks and further attempts both refuse
	if decision, _ := limiter.Check("handoff", "cust-1"); !decision.LockedOut {
		t.Errorf("got %#v", decision)
	}
	if decision, _ := limiter.Record("handoff", "cust-1", false); !decision.LockedOut {
		t.Errorf("got %#v", decision)
	}

	// other ids are unaffected
	if decision, _ := limiter.Check("handoff", "cust-2"); !decision.Allowed {
		t.Errorf("got %#v", decision)
	}
}

func TestLimiter__windowSlides(t *testing.T) {
	limiter, now := testLimiter(t)

	for i := 0; i < 2; i++ {
		if _, err := limiter.Record("handoff", "cust-1", false); err != nil {
			t.Fatal(err)
		}
	}
	if decision, _ := limiter.Check("handoff", "cust-1"); decision.Remaining != 1 {
		t.Errorf("got %#v", decision)
	}

	// old attempts fall out of the window
	*now = now.Add(11 * time.Minute)
	decision, err := limiter.Check("handoff", "cust-1")
	if err != nil {
		t.Fatal(err)
	}
	if !decision.Allowed || decision.Remaining != 3 {
		t.Errorf("got %#v", decision)
	}
}

func TestLimiter__successClearsWindow(t *testing.T) {
	limiter, _ := testLimiter(t)

	for i := 0; i < 2; i++ {
		if _, err := limiter.Record("handoff", "cust-1", false); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := limiter.Record("handoff", "cust-1", true); err != nil {
		t.Fatal(err)
	}
	if decision, _ := limiter.Check("handoff", "cust-1"); decision.Remaining != 3 {
		t.Errorf("got %#v", decision)
	}
}

func TestLimiter__actionsAreIndependent(t *testing.T) {
	limiter, _ := testLimiter(t)

	for i := 0; i < 3; i++ {
		limiter.Record("handoff", "cust-1", false)
	}
	if decision, _ := limiter.Check("handoff", "cust-1"); !decision.LockedOut {
		t.Fatalf("got %#v", decision)
	}
	if decision, _ := limiter.Check("verification", "cust-1"); !decision.Allowed {
		t.Errorf("got %#v", decision)
	}
}
