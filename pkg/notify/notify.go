// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package notify delivers operational messages about settlement activity
// to operator channels. Senders are advisory: a delivery failure is logged
// and returned, never blocks a batch.
package notify

import (
	"github.com/ledgerline/settler/pkg/id"
)

type Message struct {
	// Event is a short machine name, e.g. "batch-uploaded" or
	// "verification-review"
	Event string

	Filename string
	BatchID  id.Batch
	OrderID  id.Order

	DebitTotal int64 // cents
	EntryCount int

	// Body carries free-form detail appended to the rendered message
	Body string

	Hostname string
}

type Sender interface {
	Info(msg *Message) error
	Critical(msg *Message) error
}
