// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package verification

import (
	"testing"

	"github.com/ledgerline/settler/pkg/config"
	"github.com/ledgerline/settler/pkg/id"
	"github.com/ledgerline/settler/pkg/orders"
	"github.com/ledgerline/settler/pkg/secrets"

	"github.com/go-kit/kit/log"
)

type instantDeps struct {
	provider *MockProvider
	client   *orders.MockClient
	done     func()
}

func testInstant(t *testing.T) (*Instant, *instantDeps) {
	t.Helper()

	repo, done := testRepository(t)
	keeper := secrets.TestStringKeeper(t)
	provider := NewMockProvider()
	client := orders.NewMockClient()
	cfg := &config.Instant{
		Endpoint: "https://verify.example.com",
		ClientID: "client-id",
	}
	in := NewInstant(log.NewNopLogger(), cfg, repo, keeper, client, provider)
	return in, &instantDeps{
		provider: provider,
		client:   client,
		done: func() {
			keeper.Close()
			done()
		},
	}
}

func TestInstant__roundTrip(t *testing.T) {
	in, deps := testInstant(t)
	defer deps.done()

	orderID := id.Order("order-1")
	seedOrder(t, deps.client, orderID)
	deps.provider.Details = &orders.BankDetails{
		RoutingNumber: "021000021",
		AccountNumber: "445566",
		AccountType:   "savings",
		HolderName:    "Jane Doe",
	}

	result, err := in.Start(orderID, id.Customer("cust-1"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != StatusPending {
		t.Errorf("got %v", result.Status)
	}

	// session handle is stored encrypted
	record, _ := in.repo.Get(orderID)
	if record.Payload == "" || record.Payload == "session-1" {
		t.Errorf("payload %q should be encrypted", record.Payload)
	}

	complete, err := in.Complete(orderID, &Attempt{ProviderToken: "one-time-token"})
	if err != nil {
		t.Fatal(err)
	}
	if !complete.Verified || complete.Status != StatusVerified {
		t.Errorf("got %#v", complete)
	}

	// the provider's numbers replaced the order's bank details
	stored := deps.client.Details[orderID]
	if stored == nil || stored.RoutingNumber != "021000021" || stored.AccountNumber != "445566" {
		t.Errorf("got %#v", stored)
	}
	if order, _ := deps.client.Order(orderID); order.AccountMasked != "**5566" {
		t.Errorf("got %q", order.AccountMasked)
	}
}

func TestInstant__providerRejects(t *testing.T) {
	in, deps := testInstant(t)
	defer deps.done()

	deps.provider.Verified = false
	orderID := id.Order("order-1")
	seedOrder(t, deps.client, orderID)
	if _, err := in.Start(orderID, id.Customer("cust-1"), nil); err != nil {
		t.Fatal(err)
	}

	result, err := in.Complete(orderID, &Attempt{ProviderToken: "one-time-token"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Verified || result.Status != StatusRejected {
		t.Errorf("got %#v", result)
	}
}

func TestInstant__verifiedNeedsDetails(t *testing.T) {
	in, deps := testInstant(t)
	defer deps.done()

	deps.provider.Details = nil
	orderID := id.Order("order-1")
	seedOrder(t, deps.client, orderID)
	if _, err := in.Start(orderID, id.Customer("cust-1"), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := in.Complete(orderID, &Attempt{ProviderToken: "one-time-token"}); err == nil {
		t.Error("a verified exchange without bank details is an error")
	}
}

func TestInstant__requiresToken(t *testing.T) {
	in, deps := testInstant(t)
	defer deps.done()

	orderID := id.Order("order-1")
	seedOrder(t, deps.client, orderID)
	if _, err := in.Start(orderID, id.Customer("cust-1"), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := in.Complete(orderID, &Attempt{}); err == nil {
		t.Error("expected error")
	}
}

func TestInstant__availability(t *testing.T) {
	in, deps := testInstant(t)
	defer deps.done()

	if !in.IsAvailable() {
		t.Error("configured strategy should be available")
	}

	bare := NewInstant(log.NewNopLogger(), nil, in.repo, in.keeper, deps.client, in.provider)
	if bare.IsAvailable() {
		t.Error("unconfigured strategy should be unavailable")
	}
}
