// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package nacha

import (
	"strings"
	"testing"
	"time"

	"github.com/ledgerline/settler/pkg/mapping"
	"github.com/shopspring/decimal"
)

func testProfile() *mapping.Profile {
	return mapping.DefaultProfile(map[string]string{
		"routingNumber":         "231380104",
		"origin":                "231380104",
		"originName":            "My ODFI",
		"destination":           "021000021",
		"destinationName":       "Federal Reserve",
		"companyName":           "Motor Spot",
		"companyIdentification": "0123456789",
	})
}

func testOrder(id, total string) *mapping.OrderData {
	amt, _ := decimal.NewFromString(total)
	return &mapping.OrderData{
		ID:            id,
		Total:         amt,
		BillingName:   "Jane Doe",
		RoutingNumber: "231380104",
		AccountNumber: "18121",
		AccountType:   "checking",
		HolderName:    "Jane Doe",
	}
}

func testContext() *mapping.Context {
	return &mapping.Context{Now: time.Date(2020, time.June, 3, 10, 0, 0, 0, time.UTC)}
}

func buildFile(t *testing.T, totals ...string) ([]byte, []*Entry) {
	t.Helper()

	b, err := NewBuilder(testProfile(), "231380104", testContext())
	if err != nil {
		t.Fatal(err)
	}
	if err := b.OpenFile(); err != nil {
		t.Fatal(err)
	}
	if err := b.OpenBatch(); err != nil {
		t.Fatal(err)
	}
	var entries []*Entry
	for i := range totals {
		entry, err := b.AddEntry(testOrder("order-"+totals[i], totals[i]))
		if err != nil {
			t.Fatal(err)
		}
		entries = append(entries, entry)
	}
	if err := b.CloseBatch(); err != nil {
		t.Fatal(err)
	}
	file, err := b.CloseFile()
	if err != nil {
		t.Fatal(err)
	}
	return file, entries
}

func TestBuilder__fileTotals(t *testing.T) {
	file, entries := buildFile(t, "10.00", "25.50", "5.00")

	lines := splitLines(file)
	if len(lines) != 10 {
		t.Fatalf("got %d lines", len(lines))
	}
	for i := range lines {
		if len(lines[i]) != 94 {
			t.Errorf("line %d is %d chars", i+1, len(lines[i]))
		}
	}

	// header, batch header, three entries, batch control, file control,
	// then filler out to a whole block
	fileControl := lines[6]
	if !strings.HasPrefix(fileControl, "9") {
		t.Fatalf("line 7 is not the file control: %q", fileControl)
	}
	if debit := fileControl[31:43]; debit != "000000004050" {
		t.Errorf("total debit field: got %q", debit)
	}
	if credit := fileControl[43:55]; credit != "000000000000" {
		t.Errorf("total credit field: got %q", credit)
	}
	if count := fileControl[13:21]; count != "00000003" {
		t.Errorf("entry count field: got %q", count)
	}
	for i := 7; i < 10; i++ {
		if lines[i] != strings.Repeat("9", 94) {
			t.Errorf("line %d is not filler", i+1)
		}
	}

	if len(entries) != 3 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[1].AmountCents != 2550 {
		t.Errorf("got %d", entries[1].AmountCents)
	}
	if entries[0].TransactionCode != "27" {
		t.Errorf("got %q", entries[0].TransactionCode)
	}
}

func TestBuilder__traceNumbers(t *testing.T) {
	_, entries := buildFile(t, "10.00", "25.50", "5.00")

	seen := make(map[string]bool)
	prev := ""
	for i := range entries {
		trace := entries[i].TraceNumber
		if len(trace) != 15 || !strings.HasPrefix(trace, "23138010") {
			t.Errorf("trace %q", trace)
		}
		if seen[trace] {
			t.Errorf("duplicate trace %q", trace)
		}
		seen[trace] = true
		if trace <= prev {
			t.Errorf("trace %q not increasing after %q", trace, prev)
		}
		prev = trace
	}

	// a second file restarts the sequence
	_, entries2 := buildFile(t, "1.00")
	if entries2[0].TraceNumber != entries[0].TraceNumber {
		t.Errorf("second file: got %q, want %q", entries2[0].TraceNumber, entries[0].TraceNumber)
	}
	if !strings.HasSuffix(entries2[0].TraceNumber, "0000001") {
		t.Errorf("sequence should restart at 1: %q", entries2[0].TraceNumber)
	}
}

func TestBuilder__stateMachine(t *testing.T) {
	b, err := NewBuilder(testProfile(), "231380104", testContext())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := b.AddEntry(testOrder("o", "1.00")); err == nil {
		t.Error("entry before file open must error")
	}
	if err := b.OpenBatch(); err == nil {
		t.Error("batch before file open must error")
	}
	if err := b.OpenFile(); err != nil {
		t.Fatal(err)
	}
	if err := b.OpenFile(); err == nil {
		t.Error("double file open must error")
	}
	if _, err := b.AddEntry(testOrder("o", "1.00")); err == nil {
		t.Error("entry outside a batch must error")
	}
	if err := b.CloseBatch(); err == nil {
		t.Error("closing an unopened batch must error")
	}
	if err := b.OpenBatch(); err != nil {
		t.Fatal(err)
	}
	if _, err := b.CloseFile(); err == nil {
		t.Error("closing the file with a batch open must error")
	}
	if err := b.CloseBatch(); err != nil {
		t.Fatal(err)
	}
	if _, err := b.CloseFile(); err != nil {
		t.Fatal(err)
	}
	if _, err := b.CloseFile(); err == nil {
		t.Error("double file close must error")
	}
	if err := b.OpenBatch(); err == nil {
		t.Error("builder can't be reopened after close")
	}
}

func TestBuilder__rejectsBadRouting(t *testing.T) {
	if _, err := NewBuilder(testProfile(), "12345", testContext()); err == nil {
		t.Error("expected error")
	}
	if _, err := NewBuilder(nil, "231380104", testContext()); err == nil {
		t.Error("expected error")
	}
}

func TestTraceNumber(t *testing.T) {
	if v := TraceNumber("231380104", 1); v != "231380100000001" {
		t.Errorf("got %q", v)
	}
	if v := TraceNumber("231380104", 42); v != "231380100000042" {
		t.Errorf("got %q", v)
	}
}
