// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package verification confirms a customer controls the bank account on an
// order before it can settle. Every method of proving ownership is a
// Strategy; the Manager decides which strategy new verifications use and
// pins records already in flight to the strategy that started them.
package verification

import (
	"time"

	"github.com/ledgerline/settler/pkg/id"
	"github.com/ledgerline/settler/pkg/orders"
)

type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusPending    Status = "pending"
	StatusVerified   Status = "verified"
	StatusRejected   Status = "rejected"
	StatusCancelled  Status = "cancelled"
	StatusExpired    Status = "expired"
)

// Terminal reports whether a verification can never change state again.
func (s Status) Terminal() bool {
	switch s {
	case StatusVerified, StatusRejected, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Record is one order's verification state. Payload is strategy-private
// data, encrypted before it ever reaches the repository.
type Record struct {
	OrderID    id.Order
	CustomerID id.Customer
	Strategy   string
	Status     Status
	Attempts   int
	Payload    string

	Created     time.Time
	LastUpdated time.Time
}

// StartResult is returned when a verification begins.
type StartResult struct {
	Status Status

	// Message is shown to the customer, e.g. what to expect next
	Message string
}

// CompleteResult reports one completion attempt. Only Verified == true
// ever moves an order to verified.
type CompleteResult struct {
	Verified bool
	Status   Status
	Message  string
}

// Attempt carries the caller's proof. Which fields matter depends on the
// strategy that started the verification.
type Attempt struct {
	// AmountCents are micro-deposit guesses, order-insensitive
	AmountCents []int

	// Approve and Note are the operator's decision in manual review
	Approve bool
	Note    string

	// ProviderToken is the one-time credential from an instant provider
	ProviderToken string
}

// Strategy is one way of proving account ownership.
type Strategy interface {
	Name() string

	// IsAvailable reports whether the strategy is usable with the current
	// configuration
	IsAvailable() bool

	Start(orderID id.Order, customerID id.Customer, details *orders.BankDetails) (*StartResult, error)
	Complete(orderID id.Order, attempt *Attempt) (*CompleteResult, error)
	Status(orderID id.Order) (Status, error)
	Cancel(orderID id.Order) error
}
