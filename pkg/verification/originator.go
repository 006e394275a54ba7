// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package verification

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledgerline/settler/pkg/id"
	"github.com/ledgerline/settler/pkg/mask"
	"github.com/ledgerline/settler/pkg/orders"
	"github.com/ledgerline/settler/pkg/stream"

	"github.com/go-kit/kit/log"
)

// StreamOriginator hands deposit origination to the funding rail over the
// event stream. The rail resolves the destination account from the order on
// its side; only masked account digits ride on the message.
type StreamOriginator struct {
	logger log.Logger
	events *stream.Publisher
}

func NewStreamOriginator(logger log.Logger, events *stream.Publisher) *StreamOriginator {
	return &StreamOriginator{logger: logger, events: events}
}

func (o *StreamOriginator) SendDeposits(orderID id.Order, details *orders.BankDetails, amountCents []int) error {
	if details == nil {
		return fmt.Errorf("originator: missing bank details")
	}

	amounts := make([]string, len(amountCents))
	for i := range amountCents {
		amounts[i] = fmt.Sprintf("%d", amountCents[i])
	}
	err := o.events.Publish(context.Background(), stream.Event{
		Type: "micro-deposits-originate",
		Fields: map[string]string{
			"orderID":       orderID.String(),
			"accountMasked": mask.AccountNumber(details.AccountNumber),
			"amountCents":   strings.Join(amounts, ","),
		},
	})
	if err != nil {
		return fmt.Errorf("originator: publish: %v", err)
	}
	o.logger.Log("verification", "originated micro-deposits", "orderID", orderID)
	return nil
}
