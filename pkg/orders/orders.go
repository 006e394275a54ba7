// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package orders is the settlement core's view of the commerce system's
// orders. The core never owns an order: it reads totals and verified bank
// details and writes back status and batch linkage through Client.
package orders

import (
	"time"

	"github.com/ledgerline/settler/pkg/id"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusUnverified Status = "unverified"
	StatusPending    Status = "pending"
	StatusVerified   Status = "verified"
	StatusRejected   Status = "rejected"
	StatusBatched    Status = "batched"
	StatusSettled    Status = "settled"
	StatusFailed     Status = "failed"
)

// BankDetails is the plaintext counterpart of an order's encrypted bank
// fields. Values only live in memory while a record is being built or a
// verification compared, they are never persisted or logged.
type BankDetails struct {
	RoutingNumber string
	AccountNumber string
	AccountType   string // checking or savings
	HolderName    string
}

type Order struct {
	ID          id.Order
	Total       decimal.Decimal
	BillingName string
	Status      Status
	BatchID     id.Batch

	// AccountMasked is all the account number an operator ever sees
	AccountMasked string

	Created     time.Time
	LastUpdated time.Time
}

// Client is the surface the settlement core consumes. Create exists for
// order intake; everything else is read plus status and batch linkage.
type Client interface {
	Create(order *Order, details *BankDetails) error

	Order(orderID id.Order) (*Order, error)
	VerifiedOrders() ([]*Order, error)

	VerifiedBankDetails(orderID id.Order) (*BankDetails, error)
	OrderTotal(orderID id.Order) (decimal.Decimal, error)
	BillingName(orderID id.Order) (string, error)

	// UpdateBankDetails replaces an order's bank details, e.g. with the
	// numbers an instant verification provider returned.
	UpdateBankDetails(orderID id.Order, details *BankDetails) error

	SetStatus(orderID id.Order, status Status, note string) error
	SetBatch(orderID id.Order, batchID id.Batch) error
}
