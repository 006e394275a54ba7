// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package batch

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"strings"
	"time"

	"github.com/ledgerline/settler/pkg/audittrail"
	"github.com/ledgerline/settler/pkg/config"
	"github.com/ledgerline/settler/pkg/id"
	"github.com/ledgerline/settler/pkg/lock"
	"github.com/ledgerline/settler/pkg/mapping"
	"github.com/ledgerline/settler/pkg/nacha"
	"github.com/ledgerline/settler/pkg/notify"
	"github.com/ledgerline/settler/pkg/orders"
	"github.com/ledgerline/settler/pkg/stream"
	"github.com/ledgerline/settler/pkg/upload"
	"github.com/ledgerline/settler/pkg/vault"

	"github.com/go-kit/kit/log"
	kitprom "github.com/go-kit/kit/metrics/prometheus"
	"github.com/moov-io/base"
	stdprom "github.com/prometheus/client_golang/prometheus"
)

var (
	batchesCreated = kitprom.NewCounterFrom(stdprom.CounterOpts{
		Name: "batches_created",
		Help: "Number of settlement batches created",
	}, nil)
	batchesFailed = kitprom.NewCounterFrom(stdprom.CounterOpts{
		Name: "batches_failed",
		Help: "Number of settlement batches that failed",
	}, []string{"stage"})
	ordersSettled = kitprom.NewCounterFrom(stdprom.CounterOpts{
		Name: "orders_settled",
		Help: "Number of orders delivered in an uploaded batch",
	}, nil)
)

// runnerLockName serializes whole runs across processes.
const runnerLockName = "batch-runner"

// vaultCategory is where generated files are retained for upload retries.
const vaultCategory = "batches"

// Environment bundles the collaborators a Runner needs.
type Environment struct {
	Logger log.Logger

	Config config.Batch
	ODFI   config.ODFI

	Repo     Repository
	Orders   orders.Client
	Profiles *mapping.Registry
	Locks    *lock.Locker
	Vault    *vault.Vault
	Trail    audittrail.Storage
	Agent    upload.Agent
	Events   *stream.Publisher
	Notifier notify.Sender
}

// Runner executes settlement runs. It is safe to share across goroutines;
// the global lock (not the Runner) serializes runs.
type Runner struct {
	env Environment

	now func() time.Time
}

func NewRunner(env Environment) (*Runner, error) {
	if env.Repo == nil || env.Orders == nil || env.Profiles == nil || env.Locks == nil || env.Vault == nil || env.Agent == nil {
		return nil, fmt.Errorf("batch: incomplete environment")
	}
	if env.Logger == nil {
		env.Logger = log.NewNopLogger()
	}
	if env.Trail == nil {
		env.Trail = &audittrail.MockStorage{}
	}
	if env.Notifier == nil {
		env.Notifier = &notify.MockSender{}
	}
	return &Runner{env: env, now: time.Now}, nil
}

// Run performs one settlement run over every eligible order. A concurrent
// run (the global lock is held and fresh) reports already-running with zero
// orders rather than waiting.
func (r *Runner) Run() *Result {
	lk, err := r.env.Locks.Acquire(runnerLockName, r.env.Config.RunnerLockAge())
	if err != nil {
		if err == lock.ErrHeld {
			r.env.Logger.Log("batch", "run skipped, already running")
			return &Result{Success: false, Errors: []string{"already running"}}
		}
		return &Result{Success: false, Errors: []string{fmt.Sprintf("acquire run lock: %v", err)}}
	}
	defer func() {
		if err := lk.Release(); err != nil {
			r.env.Logger.Log("batch", "release run lock", "error", err)
		}
	}()

	return r.run()
}

func (r *Runner) run() *Result {
	verified, err := r.env.Orders.VerifiedOrders()
	if err != nil {
		return &Result{Success: false, Errors: []string{fmt.Sprintf("list verified orders: %v", err)}}
	}
	if len(verified) == 0 {
		r.env.Logger.Log("batch", "no verified orders, nothing to settle")
		return &Result{Success: true}
	}

	profile, err := r.env.Profiles.Get(r.env.Config.Profile)
	if err != nil {
		return &Result{Success: false, Errors: []string{fmt.Sprintf("resolve profile: %v", err)}}
	}

	batchID := id.Batch(base.ID())
	if err := r.env.Repo.Create(&Batch{
		ID:             batchID,
		ProfileName:    profile.Name,
		ProfileVersion: profile.Version,
		Status:         StatusProcessing,
	}); err != nil {
		return &Result{Success: false, Errors: []string{fmt.Sprintf("create batch: %v", err)}}
	}
	batchesCreated.Add(1)

	result := &Result{BatchID: batchID}

	data, entries, included, fileTotals, buildErr := r.build(batchID, profile, verified, result)
	if buildErr != nil {
		r.fail(batchID, "build", buildErr, result)
		return result
	}
	if len(entries) == 0 {
		// every order was locked by someone else this run
		r.fail(batchID, "build", fmt.Errorf("no orders available"), result)
		return result
	}

	filename, err := renderFilename(r.env.Config.FilenamePattern, r.now(), filenameData{
		BatchID:       batchID.String(),
		RoutingNumber: r.env.ODFI.RoutingNumber,
	})
	if err != nil {
		r.fail(batchID, "filename", err, result)
		return result
	}

	if _, err := r.env.Vault.Write(vaultCategory, filename, data); err != nil {
		r.fail(batchID, "retain", err, result)
		return result
	}
	if err := r.env.Repo.SaveEntries(entries); err != nil {
		r.fail(batchID, "persist", err, result)
		return result
	}

	totals := Totals{
		Debit:     fileTotals.Debit,
		Credit:    fileTotals.Credit,
		EntryHash: fileTotals.EntryHash,
		Entries:   fileTotals.Entries,
	}
	if err := r.env.Repo.MarkExported(batchID, filename, totals); err != nil {
		r.fail(batchID, "persist", err, result)
		return result
	}

	// advisory validation never blocks the export
	if issues := nacha.Validate(data, profile.RecordWidth); len(issues) > 0 {
		r.env.Logger.Log("batch", "validation findings", "batchID", batchID, "count", len(issues))
		r.notifyInfo(&notify.Message{
			Event:    "validation-findings",
			BatchID:  batchID,
			Filename: filename,
			Body:     strings.Join(issues, "\n"),
		})
		result.Errors = append(result.Errors, issues...)
	}

	if err := r.env.Trail.SaveFile(filename, data); err != nil {
		// retention is advisory at run time, the vault copy is authoritative
		r.env.Logger.Log("batch", "audit trail save failed", "batchID", batchID, "error", err)
		result.Errors = append(result.Errors, fmt.Sprintf("audit trail: %v", err))
	}

	for i := range included {
		orderID := included[i]
		if err := r.env.Orders.SetBatch(orderID, batchID); err != nil {
			r.fail(batchID, "persist", fmt.Errorf("link order %s: %v", orderID, err), result)
			return result
		}
		if err := r.env.Orders.SetStatus(orderID, orders.StatusBatched, fmt.Sprintf("batch %s", batchID)); err != nil {
			r.fail(batchID, "persist", fmt.Errorf("mark order %s batched: %v", orderID, err), result)
			return result
		}
	}
	result.OrderCount = len(included)

	r.publish("batch-exported", map[string]string{
		"batchID":  batchID.String(),
		"filename": filename,
		"entries":  fmt.Sprintf("%d", totals.Entries),
	})

	if err := r.deliver(batchID, filename, data, included, totals, result); err != nil {
		return result
	}

	result.Success = true
	return result
}

// build encodes every eligible order into one file. Orders whose lock is
// held elsewhere are skipped for this run; any encode error fails the build.
func (r *Runner) build(batchID id.Batch, profile *mapping.Profile, verified []*orders.Order, result *Result) (data []byte, entries []*Entry, included []id.Order, totals nacha.Totals, err error) {
	builder, err := nacha.NewBuilder(profile, r.env.ODFI.RoutingNumber, &mapping.Context{Now: r.now()})
	if err != nil {
		return nil, nil, nil, totals, err
	}
	if err := builder.OpenFile(); err != nil {
		return nil, nil, nil, totals, err
	}
	if err := builder.OpenBatch(); err != nil {
		return nil, nil, nil, totals, err
	}

	var held []*lock.Lock
	defer func() {
		for i := range held {
			if err := held[i].Release(); err != nil {
				r.env.Logger.Log("batch", "release order lock", "name", held[i].Name, "error", err)
			}
		}
	}()

	for i := range verified {
		order := verified[i]

		lk, lockErr := r.env.Locks.Acquire(fmt.Sprintf("order:%s", order.ID), r.env.Config.PerOrderLockAge())
		if lockErr != nil {
			if lockErr == lock.ErrHeld {
				r.env.Logger.Log("batch", "order locked elsewhere, skipping", "orderID", order.ID)
				result.Errors = append(result.Errors, fmt.Sprintf("order %s skipped: locked", order.ID))
				continue
			}
			return nil, nil, nil, totals, lockErr
		}
		held = append(held, lk)

		details, err := r.env.Orders.VerifiedBankDetails(order.ID)
		if err != nil {
			return nil, nil, nil, totals, fmt.Errorf("bank details for order %s: %v", order.ID, err)
		}

		entry, err := builder.AddEntry(&mapping.OrderData{
			ID:            order.ID.String(),
			Total:         order.Total,
			BillingName:   order.BillingName,
			RoutingNumber: details.RoutingNumber,
			AccountNumber: details.AccountNumber,
			AccountType:   details.AccountType,
			HolderName:    details.HolderName,
		})
		if err != nil {
			return nil, nil, nil, totals, fmt.Errorf("encode order %s: %v", order.ID, err)
		}

		entries = append(entries, &Entry{
			BatchID:         batchID,
			OrderID:         order.ID,
			AmountCents:     entry.AmountCents,
			TransactionCode: entry.TransactionCode,
			AccountMasked:   order.AccountMasked,
			TraceNumber:     entry.TraceNumber,
		})
		included = append(included, order.ID)
	}

	if len(entries) == 0 {
		return nil, nil, nil, totals, nil
	}

	if err := builder.CloseBatch(); err != nil {
		return nil, nil, nil, totals, err
	}
	data, err = builder.CloseFile()
	if err != nil {
		return nil, nil, nil, totals, err
	}

	return data, entries, included, builder.Totals(), nil
}

// deliver uploads a generated file and settles the orders behind it.
func (r *Runner) deliver(batchID id.Batch, filename string, data []byte, included []id.Order, totals Totals, result *Result) error {
	err := r.env.Agent.UploadFile(upload.File{
		Filename: filename,
		Contents: ioutil.NopCloser(bytes.NewReader(data)),
	})
	if err != nil {
		r.env.Logger.Log("batch", "upload failed", "batchID", batchID, "filename", filename, "error", err)
		batchesFailed.With("stage", "upload").Add(1)
		if markErr := r.env.Repo.MarkFailed(batchID, fmt.Sprintf("upload: %v", err)); markErr != nil {
			r.env.Logger.Log("batch", "mark failed", "batchID", batchID, "error", markErr)
		}
		r.notifyCritical(&notify.Message{
			Event:      "batch-upload-failed",
			BatchID:    batchID,
			Filename:   filename,
			DebitTotal: totals.Debit,
			EntryCount: totals.Entries,
			Body:       err.Error(),
		})
		r.publish("batch-upload-failed", map[string]string{
			"batchID":  batchID.String(),
			"filename": filename,
		})
		result.Errors = append(result.Errors, fmt.Sprintf("upload: %v", err))
		return err
	}

	if err := r.env.Repo.MarkUploaded(batchID); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("mark uploaded: %v", err))
		return err
	}
	for i := range included {
		if err := r.env.Orders.SetStatus(included[i], orders.StatusSettled, fmt.Sprintf("uploaded in batch %s", batchID)); err != nil {
			r.env.Logger.Log("batch", "mark order settled", "orderID", included[i], "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("order %s: %v", included[i], err))
		}
	}
	ordersSettled.Add(float64(len(included)))

	r.notifyInfo(&notify.Message{
		Event:      "batch-uploaded",
		BatchID:    batchID,
		Filename:   filename,
		DebitTotal: totals.Debit,
		EntryCount: totals.Entries,
	})
	r.publish("batch-uploaded", map[string]string{
		"batchID":  batchID.String(),
		"filename": filename,
	})
	return nil
}

// RetryUpload re-sends a failed batch's retained file. The file is read
// back from the vault, never rebuilt: the original trace numbers and totals
// are part of what was already reported to the institution.
func (r *Runner) RetryUpload(batchID id.Batch) *Result {
	lk, err := r.env.Locks.Acquire(runnerLockName, r.env.Config.RunnerLockAge())
	if err != nil {
		if err == lock.ErrHeld {
			return &Result{BatchID: batchID, Errors: []string{"already running"}}
		}
		return &Result{BatchID: batchID, Errors: []string{fmt.Sprintf("acquire run lock: %v", err)}}
	}
	defer func() {
		if err := lk.Release(); err != nil {
			r.env.Logger.Log("batch", "release run lock", "error", err)
		}
	}()

	result := &Result{BatchID: batchID}

	b, err := r.env.Repo.Get(batchID)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	if b.Status != StatusFailed {
		result.Errors = append(result.Errors, fmt.Sprintf("batch is %s, not failed", b.Status))
		return result
	}
	if b.Filename == "" {
		result.Errors = append(result.Errors, "batch has no retained file")
		return result
	}

	data, err := r.env.Vault.Read(vaultCategory, b.Filename)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("read retained file: %v", err))
		return result
	}

	entries, err := r.env.Repo.Entries(batchID)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	var included []id.Order
	for i := range entries {
		included = append(included, entries[i].OrderID)
	}
	result.OrderCount = len(included)

	totals := Totals{Debit: b.DebitTotal, Credit: b.CreditTotal, EntryHash: b.EntryHash, Entries: b.EntryCount}
	if err := r.deliver(batchID, b.Filename, data, included, totals, result); err != nil {
		return result
	}

	result.Success = true
	return result
}

func (r *Runner) fail(batchID id.Batch, stage string, err error, result *Result) {
	r.env.Logger.Log("batch", "run failed", "batchID", batchID, "stage", stage, "error", err)
	batchesFailed.With("stage", stage).Add(1)
	if markErr := r.env.Repo.MarkFailed(batchID, err.Error()); markErr != nil {
		r.env.Logger.Log("batch", "mark failed", "batchID", batchID, "error", markErr)
	}
	r.notifyCritical(&notify.Message{
		Event:   "batch-failed",
		BatchID: batchID,
		Body:    err.Error(),
	})
	result.Errors = append(result.Errors, err.Error())
}

func (r *Runner) notifyInfo(msg *notify.Message) {
	if err := r.env.Notifier.Info(msg); err != nil {
		r.env.Logger.Log("batch", "notify failed", "event", msg.Event, "error", err)
	}
}

func (r *Runner) notifyCritical(msg *notify.Message) {
	if err := r.env.Notifier.Critical(msg); err != nil {
		r.env.Logger.Log("batch", "notify failed", "event", msg.Event, "error", err)
	}
}

func (r *Runner) publish(eventType string, fields map[string]string) {
	if err := r.env.Events.Publish(context.Background(), stream.Event{Type: eventType, Fields: fields}); err != nil {
		r.env.Logger.Log("batch", "audit publish failed", "event", eventType, "error", err)
	}
}
