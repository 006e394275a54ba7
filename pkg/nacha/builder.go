// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package nacha assembles fixed-width interchange files from mapping
// profile output. The builder walks a strict state machine and keeps the
// running control totals itself; field values come from the profile so the
// codec never guesses processor-specific codes.
package nacha

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledgerline/settler/pkg/mapping"
)

type state int

const (
	stateIdle state = iota
	stateFileOpen
	stateBatchOpen
	stateBatchClosed
	stateFileClosed
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateFileOpen:
		return "file-open"
	case stateBatchOpen:
		return "batch-open"
	case stateBatchClosed:
		return "batch-closed"
	case stateFileClosed:
		return "file-closed"
	}
	return "unknown"
}

// BlockingFactor is the canonical records-per-block count. Files are padded
// with filler records so the total line count is a multiple of this.
const BlockingFactor = 10

// Entry reports what was encoded for one order.
type Entry struct {
	OrderID         string
	TraceNumber     string
	AmountCents     int64
	TransactionCode string
}

// Builder emits one interchange file. It is single-use: after CloseFile the
// builder can't be reopened.
type Builder struct {
	profile *mapping.Profile
	ctx     *mapping.Context

	odfiRouting string

	state state
	lines []string

	// file accumulators
	batchCount  int
	entryCount  int
	entryHash   int64
	debitTotal  int64
	creditTotal int64

	// batch accumulators
	batchEntryCount int
	batchHash       int64
	batchDebit      int64
	batchCredit     int64
	batchNumber     int

	// trace sequence, resets with each new file
	sequence int
}

// NewBuilder returns a Builder for one file. odfiRouting is the originating
// institution's 9 digit routing number used for trace numbers.
func NewBuilder(profile *mapping.Profile, odfiRouting string, ctx *mapping.Context) (*Builder, error) {
	if profile == nil {
		return nil, fmt.Errorf("nacha: nil profile")
	}
	if profile.RecordWidth <= 0 {
		return nil, fmt.Errorf("nacha: profile %s has no record width", profile.Name)
	}
	if n := utf8.RuneCountInString(odfiRouting); n != 9 {
		return nil, fmt.Errorf("nacha: odfi routing number has %d digits", n)
	}
	return &Builder{
		profile:     profile,
		ctx:         ctx,
		odfiRouting: odfiRouting,
		state:       stateIdle,
	}, nil
}

func (b *Builder) expect(allowed ...state) error {
	for i := range allowed {
		if b.state == allowed[i] {
			return nil
		}
	}
	return fmt.Errorf("nacha: operation invalid in state %v", b.state)
}

// field resolves a mapped field and verifies it occupies exactly width runes.
func (b *Builder) field(record mapping.RecordType, name string, order *mapping.OrderData, width int) (string, error) {
	v, err := mapping.Resolve(b.profile, record, name, order, b.ctx)
	if err != nil {
		return "", err
	}
	if n := utf8.RuneCountInString(v); n != width {
		return "", fmt.Errorf("nacha: %s.%s is %d runes, field allows %d", record, name, n, width)
	}
	return v, nil
}

func (b *Builder) emit(record string) error {
	if n := utf8.RuneCountInString(record); n != b.profile.RecordWidth {
		return fmt.Errorf("nacha: record is %d runes, profile %s requires %d", n, b.profile.Name, b.profile.RecordWidth)
	}
	b.lines = append(b.lines, record)
	return nil
}

// OpenFile writes the file header record.
func (b *Builder) OpenFile() error {
	if err := b.expect(stateIdle); err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("1")
	fields := []struct {
		name  string
		width int
	}{
		{"priorityCode", 2},
		{"immediateDestination", 10},
		{"immediateOrigin", 10},
		{"creationDate", 6},
		{"creationTime", 4},
		{"fileIDModifier", 1},
		{"recordSize", 3},
		{"blockingFactor", 2},
		{"formatCode", 1},
		{"destinationName", 23},
		{"originName", 23},
		{"referenceCode", 8},
	}
	for i := range fields {
		v, err := b.field(mapping.RecordFileHeader, fields[i].name, nil, fields[i].width)
		if err != nil {
			return err
		}
		sb.WriteString(v)
	}
	if err := b.emit(sb.String()); err != nil {
		return err
	}

	b.state = stateFileOpen
	b.sequence = 0
	return nil
}

// OpenBatch writes a batch header record.
func (b *Builder) OpenBatch() error {
	if err := b.expect(stateFileOpen, stateBatchClosed); err != nil {
		return err
	}

	b.batchNumber++
	b.batchEntryCount, b.batchHash, b.batchDebit, b.batchCredit = 0, 0, 0, 0

	var sb strings.Builder
	sb.WriteString("5")
	fields := []struct {
		name  string
		width int
	}{
		{"serviceClassCode", 3},
		{"companyName", 16},
		{"companyDiscretionaryData", 20},
		{"companyIdentification", 10},
		{"standardEntryClassCode", 3},
		{"companyEntryDescription", 10},
		{"companyDescriptiveDate", 6},
		{"effectiveEntryDate", 6},
		{"settlementDate", 3},
		{"originatorStatusCode", 1},
		{"odfiIdentification", 8},
	}
	for i := range fields {
		v, err := b.field(mapping.RecordBatchHeader, fields[i].name, nil, fields[i].width)
		if err != nil {
			return err
		}
		sb.WriteString(v)
	}
	sb.WriteString(fmt.Sprintf("%07d", b.batchNumber))

	if err := b.emit(sb.String()); err != nil {
		return err
	}
	b.state = stateBatchOpen
	return nil
}

// AddEntry writes one entry detail record for the order and returns what was
// encoded, including the assigned trace number.
func (b *Builder) AddEntry(order *mapping.OrderData) (*Entry, error) {
	if err := b.expect(stateBatchOpen); err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("nacha: nil order")
	}

	transactionCode, err := b.field(mapping.RecordEntryDetail, "transactionCode", order, 2)
	if err != nil {
		return nil, err
	}
	rdfi, err := b.field(mapping.RecordEntryDetail, "rdfiIdentification", order, 9)
	if err != nil {
		return nil, err
	}
	accountNumber, err := b.field(mapping.RecordEntryDetail, "accountNumber", order, 17)
	if err != nil {
		return nil, err
	}
	amount, err := b.field(mapping.RecordEntryDetail, "amount", order, 10)
	if err != nil {
		return nil, err
	}
	individualID, err := b.field(mapping.RecordEntryDetail, "individualID", order, 15)
	if err != nil {
		return nil, err
	}
	individualName, err := b.field(mapping.RecordEntryDetail, "individualName", order, 22)
	if err != nil {
		return nil, err
	}
	discretionary, err := b.field(mapping.RecordEntryDetail, "discretionaryData", order, 2)
	if err != nil {
		return nil, err
	}
	addenda, err := b.field(mapping.RecordEntryDetail, "addendaIndicator", order, 1)
	if err != nil {
		return nil, err
	}

	b.sequence++
	trace := TraceNumber(b.odfiRouting, b.sequence)

	var sb strings.Builder
	sb.WriteString("6")
	sb.WriteString(transactionCode)
	sb.WriteString(rdfi)
	sb.WriteString(accountNumber)
	sb.WriteString(amount)
	sb.WriteString(individualID)
	sb.WriteString(individualName)
	sb.WriteString(discretionary)
	sb.WriteString(addenda)
	sb.WriteString(trace)

	if err := b.emit(sb.String()); err != nil {
		return nil, err
	}

	cents, err := parseCents(amount)
	if err != nil {
		return nil, err
	}
	hash, err := parseHash(rdfi[:8])
	if err != nil {
		return nil, err
	}

	b.batchEntryCount++
	b.batchHash += hash
	if isDebit(transactionCode) {
		b.batchDebit += cents
	} else {
		b.batchCredit += cents
	}

	return &Entry{
		OrderID:         order.ID,
		TraceNumber:     trace,
		AmountCents:     cents,
		TransactionCode: transactionCode,
	}, nil
}

// CloseBatch writes the batch control record and folds the batch totals
// into the file accumulators.
func (b *Builder) CloseBatch() error {
	if err := b.expect(stateBatchOpen); err != nil {
		return err
	}

	serviceClass, err := b.field(mapping.RecordBatchHeader, "serviceClassCode", nil, 3)
	if err != nil {
		return err
	}
	companyID, err := b.field(mapping.RecordBatchHeader, "companyIdentification", nil, 10)
	if err != nil {
		return err
	}
	odfi, err := b.field(mapping.RecordBatchHeader, "odfiIdentification", nil, 8)
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("8")
	sb.WriteString(serviceClass)
	sb.WriteString(fmt.Sprintf("%06d", b.batchEntryCount))
	sb.WriteString(fmt.Sprintf("%010d", b.batchHash%1e10))
	sb.WriteString(fmt.Sprintf("%012d", b.batchDebit))
	sb.WriteString(fmt.Sprintf("%012d", b.batchCredit))
	sb.WriteString(companyID)
	sb.WriteString(strings.Repeat(" ", 19)) // message authentication code
	sb.WriteString(strings.Repeat(" ", 6))  // reserved
	sb.WriteString(odfi)
	sb.WriteString(fmt.Sprintf("%07d", b.batchNumber))

	if err := b.emit(sb.String()); err != nil {
		return err
	}

	b.batchCount++
	b.entryCount += b.batchEntryCount
	b.entryHash += b.batchHash
	b.debitTotal += b.batchDebit
	b.creditTotal += b.batchCredit

	b.state = stateBatchClosed
	return nil
}

// CloseFile writes the file control record, pads the file to a whole block
// and returns the file contents.
func (b *Builder) CloseFile() ([]byte, error) {
	if err := b.expect(stateBatchClosed, stateFileOpen); err != nil {
		return nil, err
	}

	// count includes the control record being written
	recordCount := len(b.lines) + 1
	blockCount := (recordCount + BlockingFactor - 1) / BlockingFactor

	var sb strings.Builder
	sb.WriteString("9")
	sb.WriteString(fmt.Sprintf("%06d", b.batchCount))
	sb.WriteString(fmt.Sprintf("%06d", blockCount))
	sb.WriteString(fmt.Sprintf("%08d", b.entryCount))
	sb.WriteString(fmt.Sprintf("%010d", b.entryHash%1e10))
	sb.WriteString(fmt.Sprintf("%012d", b.debitTotal))
	sb.WriteString(fmt.Sprintf("%012d", b.creditTotal))
	sb.WriteString(strings.Repeat(" ", 39)) // reserved

	if err := b.emit(sb.String()); err != nil {
		return nil, err
	}

	// pad the final block with filler records
	filler := strings.Repeat("9", b.profile.RecordWidth)
	for len(b.lines)%BlockingFactor != 0 {
		b.lines = append(b.lines, filler)
	}

	b.state = stateFileClosed
	return []byte(strings.Join(b.lines, "\n") + "\n"), nil
}

// Totals are the accumulated file control totals.
type Totals struct {
	Debit     int64
	Credit    int64
	EntryHash int64
	Entries   int
	Batches   int
}

// Totals reports the accumulated file control totals.
func (b *Builder) Totals() Totals {
	return Totals{
		Debit:     b.debitTotal,
		Credit:    b.creditTotal,
		EntryHash: b.entryHash % 1e10,
		Entries:   b.entryCount,
		Batches:   b.batchCount,
	}
}

func isDebit(transactionCode string) bool {
	// 2x credit codes end in 2/3 prenote aside; debit codes are 27, 28, 37, 38
	switch transactionCode {
	case "27", "28", "37", "38":
		return true
	}
	return false
}

func parseCents(amount string) (int64, error) {
	var cents int64
	for _, r := range amount {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("nacha: non-digit in amount %q", amount)
		}
		cents = cents*10 + int64(r-'0')
	}
	return cents, nil
}

func parseHash(aba8 string) (int64, error) {
	var hash int64
	for _, r := range aba8 {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("nacha: non-digit in routing prefix %q", aba8)
		}
		hash = hash*10 + int64(r-'0')
	}
	return hash, nil
}
