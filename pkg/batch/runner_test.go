// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package batch

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"strings"
	"testing"

	"github.com/ledgerline/settler/pkg/config"
	"github.com/ledgerline/settler/pkg/id"
	"github.com/ledgerline/settler/pkg/kv"
	"github.com/ledgerline/settler/pkg/lock"
	"github.com/ledgerline/settler/pkg/mapping"
	"github.com/ledgerline/settler/pkg/notify"
	"github.com/ledgerline/settler/pkg/orders"
	"github.com/ledgerline/settler/pkg/upload"
	"github.com/ledgerline/settler/pkg/vault"

	"github.com/go-kit/kit/log"
	"github.com/shopspring/decimal"
)

type testDeps struct {
	Repo     Repository
	Orders   *orders.MockClient
	Locks    *lock.Locker
	Vault    *vault.Vault
	Agent    *upload.MockAgent
	Notifier *notify.MockSender
}

func testRunner(t *testing.T) (*Runner, *testDeps, func()) {
	t.Helper()

	repo, repoDone := testRepository(t)

	dir, err := ioutil.TempDir("", "settler-batch")
	if err != nil {
		repoDone()
		t.Fatal(err)
	}
	v, err := vault.New(log.NewNopLogger(), config.Storage{BaseDirectory: dir})
	if err != nil {
		t.Fatal(err)
	}

	profile := mapping.DefaultProfile(map[string]string{
		"destination":           "021000021",
		"destinationName":       "Federal Reserve Bank",
		"origin":                "231380104",
		"originName":            "Ledgerline",
		"companyName":           "Ledgerline",
		"companyIdentification": "1234567890",
		"routingNumber":         "231380104",
	})
	registry, err := mapping.NewRegistry(profile)
	if err != nil {
		t.Fatal(err)
	}

	deps := &testDeps{
		Repo:     repo,
		Orders:   orders.NewMockClient(),
		Locks:    lock.NewLocker(log.NewNopLogger(), kv.NewInMemStore(), nil),
		Vault:    v,
		Agent:    &upload.MockAgent{},
		Notifier: &notify.MockSender{},
	}

	runner, err := NewRunner(Environment{
		Logger:   log.NewNopLogger(),
		Config:   config.Batch{Profile: "default"},
		ODFI:     config.ODFI{RoutingNumber: "231380104"},
		Repo:     deps.Repo,
		Orders:   deps.Orders,
		Profiles: registry,
		Locks:    deps.Locks,
		Vault:    deps.Vault,
		Agent:    deps.Agent,
		Notifier: deps.Notifier,
	})
	if err != nil {
		t.Fatal(err)
	}

	cleanup := func() {
		repoDone()
		os.RemoveAll(dir)
	}
	return runner, deps, cleanup
}

func writeVerifiedOrder(t *testing.T, client *orders.MockClient, orderID, total string) {
	t.Helper()

	amt, err := decimal.NewFromString(total)
	if err != nil {
		t.Fatal(err)
	}
	err = client.Create(&orders.Order{
		ID:          id.Order(orderID),
		Total:       amt,
		BillingName: "Jane Smith",
		Status:      orders.StatusVerified,
	}, &orders.BankDetails{
		RoutingNumber: "231380104",
		AccountNumber: "18121",
		AccountType:   "checking",
		HolderName:    "Jane Smith",
	})
	if err != nil {
		t.Fatal(err)
	}
}

// fileControl finds the file control record in a generated file.
func fileControl(t *testing.T, data []byte) string {
	t.Helper()

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	filler := strings.Repeat("9", 94)
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i] != filler {
			return lines[i]
		}
	}
	t.Fatal("no file control record")
	return ""
}

func TestRunner__settlesVerifiedOrders(t *testing.T) {
	runner, deps, done := testRunner(t)
	defer done()

	writeVerifiedOrder(t, deps.Orders, "order-1", "10.00")
	writeVerifiedOrder(t, deps.Orders, "order-2", "25.50")
	writeVerifiedOrder(t, deps.Orders, "order-3", "5.00")

	result := runner.Run()
	if !result.Success {
		t.Fatalf("run failed: %v", result.Errors)
	}
	if result.OrderCount != 3 {
		t.Errorf("got %d orders", result.OrderCount)
	}
	if result.BatchID == "" {
		t.Error("missing batch ID")
	}

	if deps.Agent.UploadedFile == nil {
		t.Fatal("nothing uploaded")
	}
	bs, err := ioutil.ReadAll(deps.Agent.UploadedFile.Contents)
	if err != nil {
		t.Fatal(err)
	}
	control := fileControl(t, bs)
	if debit := control[31:43]; debit != "000000004050" {
		t.Errorf("got debit total %q", debit)
	}

	b, err := deps.Repo.Get(result.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != StatusUploaded {
		t.Errorf("got %v", b.Status)
	}
	if b.DebitTotal != 4050 || b.EntryCount != 3 {
		t.Errorf("debit=%d entries=%d", b.DebitTotal, b.EntryCount)
	}

	entries, err := deps.Repo.Entries(result.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries", len(entries))
	}
	for i := range entries {
		if entries[i].AccountMasked != "*8121" {
			t.Errorf("got %q", entries[i].AccountMasked)
		}
	}

	for _, orderID := range []id.Order{"order-1", "order-2", "order-3"} {
		order, err := deps.Orders.Order(orderID)
		if err != nil {
			t.Fatal(err)
		}
		if order.Status != orders.StatusSettled {
			t.Errorf("order %s is %v", orderID, order.Status)
		}
		if order.BatchID != result.BatchID {
			t.Errorf("order %s in batch %q", orderID, order.BatchID)
		}
	}

	if !deps.Notifier.InfoWasCalled() {
		t.Error("expected an upload notification")
	}
}

func TestRunner__noVerifiedOrders(t *testing.T) {
	runner, deps, done := testRunner(t)
	defer done()

	result := runner.Run()
	if !result.Success {
		t.Fatalf("run failed: %v", result.Errors)
	}
	if result.OrderCount != 0 || result.BatchID != "" {
		t.Errorf("got %#v", result)
	}
	if deps.Agent.UploadedFile != nil {
		t.Error("unexpected upload")
	}
}

func TestRunner__alreadyRunning(t *testing.T) {
	runner, deps, done := testRunner(t)
	defer done()

	writeVerifiedOrder(t, deps.Orders, "order-1", "10.00")

	lk, err := deps.Locks.Acquire(runnerLockName, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer lk.Release()

	result := runner.Run()
	if result.Success {
		t.Error("expected failure")
	}
	if result.OrderCount != 0 {
		t.Errorf("got %d orders", result.OrderCount)
	}
	if len(result.Errors) != 1 || result.Errors[0] != "already running" {
		t.Errorf("got %v", result.Errors)
	}
	if deps.Agent.UploadedFile != nil {
		t.Error("unexpected upload")
	}

	// once the other run releases, this runner can proceed
	if err := lk.Release(); err != nil {
		t.Fatal(err)
	}
	if result := runner.Run(); !result.Success {
		t.Errorf("run failed: %v", result.Errors)
	}
}

func TestRunner__lockedOrderSkipped(t *testing.T) {
	runner, deps, done := testRunner(t)
	defer done()

	writeVerifiedOrder(t, deps.Orders, "order-1", "10.00")
	writeVerifiedOrder(t, deps.Orders, "order-2", "25.50")

	lk, err := deps.Locks.Acquire("order:order-2", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer lk.Release()

	result := runner.Run()
	if !result.Success {
		t.Fatalf("run failed: %v", result.Errors)
	}
	if result.OrderCount != 1 {
		t.Errorf("got %d orders", result.OrderCount)
	}
	found := false
	for i := range result.Errors {
		if strings.Contains(result.Errors[i], "order-2 skipped") {
			found = true
		}
	}
	if !found {
		t.Errorf("got %v", result.Errors)
	}

	order, err := deps.Orders.Order(id.Order("order-2"))
	if err != nil {
		t.Fatal(err)
	}
	if order.Status != orders.StatusVerified || order.BatchID != "" {
		t.Errorf("got status=%v batch=%q", order.Status, order.BatchID)
	}
}

func TestRunner__uploadFailureAndRetry(t *testing.T) {
	runner, deps, done := testRunner(t)
	defer done()

	writeVerifiedOrder(t, deps.Orders, "order-1", "10.00")

	deps.Agent.Err = errors.New("connection reset")
	result := runner.Run()
	if result.Success {
		t.Error("expected failure")
	}

	b, err := deps.Repo.Get(result.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != StatusFailed {
		t.Errorf("got %v", b.Status)
	}
	if b.Filename == "" {
		t.Fatal("failed batch lost its filename")
	}
	// the generated file is retained for the retry
	if !deps.Vault.Exists(vaultCategory, b.Filename) {
		t.Error("retained file missing")
	}
	if !deps.Notifier.CriticalWasCalled() {
		t.Error("expected a failure notification")
	}

	// the order stays linked so another run can't pick it up again
	order, err := deps.Orders.Order(id.Order("order-1"))
	if err != nil {
		t.Fatal(err)
	}
	if order.BatchID != result.BatchID {
		t.Errorf("got batch %q", order.BatchID)
	}

	deps.Agent.Err = nil
	retry := runner.RetryUpload(result.BatchID)
	if !retry.Success {
		t.Fatalf("retry failed: %v", retry.Errors)
	}
	if retry.OrderCount != 1 {
		t.Errorf("got %d orders", retry.OrderCount)
	}

	b, err = deps.Repo.Get(result.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != StatusUploaded {
		t.Errorf("got %v", b.Status)
	}

	order, err = deps.Orders.Order(id.Order("order-1"))
	if err != nil {
		t.Fatal(err)
	}
	if order.Status != orders.StatusSettled {
		t.Errorf("got %v", order.Status)
	}
}

func TestRunner__retryRequiresFailedBatch(t *testing.T) {
	runner, deps, done := testRunner(t)
	defer done()

	writeVerifiedOrder(t, deps.Orders, "order-1", "10.00")
	result := runner.Run()
	if !result.Success {
		t.Fatalf("run failed: %v", result.Errors)
	}

	retry := runner.RetryUpload(result.BatchID)
	if retry.Success {
		t.Error("expected failure")
	}
	found := false
	for i := range retry.Errors {
		if strings.Contains(retry.Errors[i], "not failed") {
			found = true
		}
	}
	if !found {
		t.Errorf("got %v", retry.Errors)
	}

	if retry := runner.RetryUpload(id.Batch("missing")); retry.Success || len(retry.Errors) == 0 {
		t.Errorf("got %#v", retry)
	}
}

func TestRunner__unknownProfile(t *testing.T) {
	runner, deps, done := testRunner(t)
	defer done()

	writeVerifiedOrder(t, deps.Orders, "order-1", "10.00")

	runner.env.Config.Profile = "wells-fargo"
	result := runner.Run()
	if result.Success {
		t.Error("expected failure")
	}
	if len(result.Errors) == 0 || !strings.Contains(result.Errors[0], "unknown profile") {
		t.Errorf("got %v", result.Errors)
	}
}

func TestRunner__traceNumbers(t *testing.T) {
	runner, deps, done := testRunner(t)
	defer done()

	for i := 1; i <= 3; i++ {
		writeVerifiedOrder(t, deps.Orders, fmt.Sprintf("order-%d", i), "10.00")
	}

	result := runner.Run()
	if !result.Success {
		t.Fatalf("run failed: %v", result.Errors)
	}

	entries, err := deps.Repo.Entries(result.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries", len(entries))
	}
	for i := range entries {
		want := fmt.Sprintf("23138010%07d", i+1)
		if entries[i].TraceNumber != want {
			t.Errorf("entry %d trace %q, want %q", i, entries[i].TraceNumber, want)
		}
	}
}
