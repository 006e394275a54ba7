// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package util

import "testing"

func TestUtil__Or(t *testing.T) {
	if v := Or("", " ", "b"); v != "b" {
		t.Errorf("got %q", v)
	}
	if v := Or("a", "b"); v != "a" {
		t.Errorf("got %q", v)
	}
	if v := Or(); v != "" {
		t.Errorf("got %q", v)
	}
}

func TestUtil__Yes(t *testing.T) {
	if !Yes("yes") || !Yes("true") || !Yes(" YES ") {
		t.Error("expected yes")
	}
	if Yes("no") || Yes("") || Yes("0") {
		t.Error("expected no")
	}
}
