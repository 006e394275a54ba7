// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package verification

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ledgerline/settler/pkg/orders"
	"github.com/ledgerline/settler/pkg/stream"

	"github.com/go-kit/kit/log"
)

func TestStreamOriginator(t *testing.T) {
	ctx := context.Background()

	topic, err := stream.Topic(ctx, "mem://originations")
	if err != nil {
		t.Fatal(err)
	}
	defer topic.Shutdown(ctx)
	sub, err := stream.Subscription(ctx, "mem://originations")
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Shutdown(ctx)

	originator := NewStreamOriginator(log.NewNopLogger(), stream.NewPublisher(topic))

	details := &orders.BankDetails{
		RoutingNumber: "231380104",
		AccountNumber: "18121",
		AccountType:   "checking",
		HolderName:    "Jane Smith",
	}
	if err := originator.SendDeposits("order-1", details, []int{7, 45}); err != nil {
		t.Fatal(err)
	}

	rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	msg, err := sub.Receive(rctx)
	if err != nil {
		t.Fatal(err)
	}
	msg.Ack()

	var event stream.Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		t.Fatal(err)
	}
	if event.Type != "micro-deposits-originate" {
		t.Errorf("got %q", event.Type)
	}
	if event.Fields["orderID"] != "order-1" {
		t.Errorf("got %q", event.Fields["orderID"])
	}
	if event.Fields["amountCents"] != "7,45" {
		t.Errorf("got %q", event.Fields["amountCents"])
	}
	// full account number never rides on the stream
	if event.Fields["accountMasked"] != "*8121" {
		t.Errorf("got %q", event.Fields["accountMasked"])
	}
	if strings.Contains(string(msg.Body), "18121") {
		t.Error("plaintext account number on the stream")
	}

	if err := originator.SendDeposits("order-2", nil, []int{7, 45}); err == nil {
		t.Error("expected error")
	}
}
