// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package verification

import (
	"testing"

	"github.com/ledgerline/settler/pkg/config"
	"github.com/ledgerline/settler/pkg/id"
	"github.com/ledgerline/settler/pkg/notify"

	"github.com/go-kit/kit/log"
)

func TestManual__startNotifiesOperator(t *testing.T) {
	repo, done := testRepository(t)
	defer done()

	sender := &notify.MockSender{}
	m := NewManual(log.NewNopLogger(), &config.Manual{NotifyOperator: true}, repo, sender)

	result, err := m.Start(id.Order("order-1"), id.Customer("cust-1"), testBankDetails())
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != StatusPending {
		t.Errorf("got %v", result.Status)
	}
	if !sender.InfoWasCalled() {
		t.Error("operator should be notified")
	}
	if msg := sender.CapturedMessage(); msg.Event != "verification-review" {
		t.Errorf("got %q", msg.Event)
	}
}

func TestManual__quietWithoutConfig(t *testing.T) {
	repo, done := testRepository(t)
	defer done()

	sender := &notify.MockSender{}
	m := NewManual(log.NewNopLogger(), &config.Manual{}, repo, sender)

	if _, err := m.Start(id.Order("order-1"), id.Customer("cust-1"), testBankDetails()); err != nil {
		t.Fatal(err)
	}
	if sender.InfoWasCalled() {
		t.Error("notification should be off by default")
	}
}

func TestManual__operatorDecision(t *testing.T) {
	repo, done := testRepository(t)
	defer done()

	m := NewManual(log.NewNopLogger(), &config.Manual{}, repo, nil)
	orderID := id.Order("order-1")
	if _, err := m.Start(orderID, id.Customer("cust-1"), testBankDetails()); err != nil {
		t.Fatal(err)
	}

	result, err := m.Complete(orderID, &Attempt{Approve: true, Note: "docs checked"})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Verified || result.Status != StatusVerified || result.Message != "docs checked" {
		t.Errorf("got %#v", result)
	}

	// decisions are final
	result, err = m.Complete(orderID, &Attempt{Approve: false})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Status.Terminal() || result.Verified {
		t.Errorf("got %#v", result)
	}
}

func TestManual__reject(t *testing.T) {
	repo, done := testRepository(t)
	defer done()

	m := NewManual(log.NewNopLogger(), &config.Manual{}, repo, nil)
	orderID := id.Order("order-1")
	if _, err := m.Start(orderID, id.Customer("cust-1"), testBankDetails()); err != nil {
		t.Fatal(err)
	}

	result, err := m.Complete(orderID, &Attempt{Approve: false, Note: "name mismatch"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Verified || result.Status != StatusRejected {
		t.Errorf("got %#v", result)
	}
}
