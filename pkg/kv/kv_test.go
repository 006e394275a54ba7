// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package kv

import (
	"testing"
	"time"

	"github.com/ledgerline/settler/internal/database"
)

func forEachStore(t *testing.T, check func(t *testing.T, store Store)) {
	t.Helper()

	t.Run("inmem", func(t *testing.T) {
		check(t, NewInMemStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		db := database.CreateTestSqliteDB(t)
		defer db.Close()
		check(t, NewSQLStore(db.DB))
	})
}

func TestStore__GetPut(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		if entry, err := store.Get("missing"); entry != nil || err != nil {
			t.Fatalf("entry=%v err=%v", entry, err)
		}

		if err := store.Put("k", []byte("v1"), 0); err != nil {
			t.Fatal(err)
		}
		entry, err := store.Get("k")
		if err != nil {
			t.Fatal(err)
		}
		if string(entry.Value) != "v1" || entry.Revision != 1 {
			t.Errorf("entry=%#v", entry)
		}

		if err := store.Put("k", []byte("v2"), 0); err != nil {
			t.Fatal(err)
		}
		entry, _ = store.Get("k")
		if string(entry.Value) != "v2" || entry.Revision != 2 {
			t.Errorf("entry=%#v", entry)
		}
	})
}

func TestStore__CompareAndSwap(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		// insert requires the key be absent
		swapped, err := store.CompareAndSwap("k", []byte("v1"), 0, 0)
		if err != nil || !swapped {
			t.Fatalf("swapped=%v err=%v", swapped, err)
		}
		if swapped, _ := store.CompareAndSwap("k", []byte("v1"), 0, 0); swapped {
			t.Error("second insert should fail")
		}

		// swap against the current revision
		entry, _ := store.Get("k")
		if swapped, _ := store.CompareAndSwap("k", []byte("v2"), entry.Revision, 0); !swapped {
			t.Error("swap should succeed")
		}
		// stale revision loses
		if swapped, _ := store.CompareAndSwap("k", []byte("v3"), entry.Revision, 0); swapped {
			t.Error("stale swap should fail")
		}
	})
}

func TestStore__Expiry(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		if err := store.Put("k", []byte("v"), 50*time.Millisecond); err != nil {
			t.Fatal(err)
		}
		if entry, _ := store.Get("k"); entry == nil {
			t.Fatal("expected live entry")
		}

		time.Sleep(100 * time.Millisecond)

		if entry, _ := store.Get("k"); entry != nil {
			t.Errorf("expected expired entry, got %#v", entry)
		}
		// an expired key can be inserted fresh
		if swapped, err := store.CompareAndSwap("k", []byte("v2"), 0, 0); err != nil || !swapped {
			t.Errorf("swapped=%v err=%v", swapped, err)
		}
	})
}

func TestStore__CompareAndDelete(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		if err := store.Put("k", []byte("v1"), 0); err != nil {
			t.Fatal(err)
		}
		entry, _ := store.Get("k")

		// the value is replaced before our delete lands
		if err := store.Put("k", []byte("v2"), 0); err != nil {
			t.Fatal(err)
		}
		if deleted, err := store.CompareAndDelete("k", entry.Revision); err != nil || deleted {
			t.Errorf("deleted=%v err=%v", deleted, err)
		}
		if entry, _ := store.Get("k"); entry == nil || string(entry.Value) != "v2" {
			t.Fatalf("stale delete must not remove the new value: %#v", entry)
		}

		// deleting at the current revision works
		entry, _ = store.Get("k")
		if deleted, err := store.CompareAndDelete("k", entry.Revision); err != nil || !deleted {
			t.Errorf("deleted=%v err=%v", deleted, err)
		}
		if entry, _ := store.Get("k"); entry != nil {
			t.Errorf("expected deleted, got %#v", entry)
		}

		// absent keys report false, not an error
		if deleted, err := store.CompareAndDelete("missing", 1); err != nil || deleted {
			t.Errorf("deleted=%v err=%v", deleted, err)
		}
	})
}

func TestStore__Delete(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		if err := store.Put("k", []byte("v"), 0); err != nil {
			t.Fatal(err)
		}
		if err := store.Delete("k"); err != nil {
			t.Fatal(err)
		}
		if entry, _ := store.Get("k"); entry != nil {
			t.Errorf("expected deleted, got %#v", entry)
		}
	})
}
