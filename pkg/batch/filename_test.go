// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package batch

import (
	"testing"
	"time"
)

func TestFilename(t *testing.T) {
	when := time.Date(2020, time.August, 27, 9, 41, 5, 0, time.UTC)

	name, err := renderFilename("", when, filenameData{})
	if err != nil {
		t.Fatal(err)
	}
	if name != "settlement-20200827-094105.ach" {
		t.Errorf("got %q", name)
	}

	name, err = renderFilename(`{{ date "20060102" }}-{{ .RoutingNumber }}.ach`, when, filenameData{RoutingNumber: "231380104"})
	if err != nil {
		t.Fatal(err)
	}
	if name != "20200827-231380104.ach" {
		t.Errorf("got %q", name)
	}

	if _, err := renderFilename(`{{ bogus }}`, when, filenameData{}); err == nil {
		t.Error("expected error")
	}
}
