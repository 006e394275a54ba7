// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package batch turns verified orders into settlement files. A Runner owns
// one run end to end: select orders, encode the file, retain it, upload it,
// and write back order state. Runs are serialized by a global lock so two
// processes never settle the same orders twice.
package batch

import (
	"time"

	"github.com/ledgerline/settler/pkg/id"
)

type Status string

const (
	// StatusProcessing is a batch whose file is still being built.
	StatusProcessing Status = "processing"
	// StatusExported has a generated file retained but not yet delivered.
	StatusExported Status = "exported"
	StatusUploaded Status = "uploaded"
	// StatusFailed batches keep their generated file for retried delivery.
	StatusFailed Status = "failed"
)

type Batch struct {
	ID id.Batch

	// ProfileName and ProfileVersion pin the mapping profile the file was
	// built with, so a later profile change never orphans a generated file.
	ProfileName    string
	ProfileVersion string

	Status   Status
	Filename string

	DebitTotal  int64 // cents
	CreditTotal int64 // cents
	EntryHash   int64
	EntryCount  int

	LastError string

	Created    time.Time
	ExportedAt time.Time
	UploadedAt time.Time
}

// Entry records what was encoded for one order.
type Entry struct {
	BatchID id.Batch
	OrderID id.Order

	AmountCents     int64
	TransactionCode string
	AccountMasked   string
	TraceNumber     string
}

// Result is what one run (or upload retry) reports back.
type Result struct {
	Success bool
	BatchID id.Batch

	// OrderCount is how many orders made it into the file.
	OrderCount int

	// Errors are operator-readable problems hit during the run. A successful
	// run can still carry advisory entries (skipped orders, retention
	// failures).
	Errors []string
}
