// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package batch

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerline/settler/pkg/id"
)

var ErrNotFound = errors.New("batch: not found")

type Repository interface {
	Create(b *Batch) error
	Get(batchID id.Batch) (*Batch, error)

	MarkExported(batchID id.Batch, filename string, totals Totals) error
	MarkUploaded(batchID id.Batch) error
	MarkFailed(batchID id.Batch, reason string) error

	SaveEntries(entries []*Entry) error
	Entries(batchID id.Batch) ([]*Entry, error)
}

// Totals is what a finished file reports into the batch row.
type Totals struct {
	Debit     int64
	Credit    int64
	EntryHash int64
	Entries   int
}

func NewRepository(db *sql.DB) Repository {
	return &sqlRepository{db: db}
}

type sqlRepository struct {
	db *sql.DB
}

func (r *sqlRepository) Create(b *Batch) error {
	if b == nil || b.ID == "" {
		return fmt.Errorf("batch: missing batch")
	}
	query := `insert into batches (batch_id, profile_name, profile_version, status, filename, debit_total, credit_total, entry_hash, entry_count, last_error, created_at) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	status := b.Status
	if status == "" {
		status = StatusProcessing
	}
	if b.Created.IsZero() {
		b.Created = time.Now()
	}
	_, err = stmt.Exec(b.ID.String(), b.ProfileName, b.ProfileVersion, status, b.Filename, b.DebitTotal, b.CreditTotal, b.EntryHash, b.EntryCount, b.LastError, b.Created)
	return err
}

func (r *sqlRepository) Get(batchID id.Batch) (*Batch, error) {
	query := `select batch_id, profile_name, profile_version, status, filename, debit_total, credit_total, entry_hash, entry_count, last_error, created_at, exported_at, uploaded_at from batches where batch_id = ? and deleted_at is null limit 1;`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var b Batch
	var filename, lastError sql.NullString
	var exportedAt, uploadedAt sql.NullTime
	row := stmt.QueryRow(batchID.String())
	if err := row.Scan(&b.ID, &b.ProfileName, &b.ProfileVersion, &b.Status, &filename, &b.DebitTotal, &b.CreditTotal, &b.EntryHash, &b.EntryCount, &lastError, &b.Created, &exportedAt, &uploadedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	b.Filename = filename.String
	b.LastError = lastError.String
	b.ExportedAt = exportedAt.Time
	b.UploadedAt = uploadedAt.Time
	return &b, nil
}

func (r *sqlRepository) MarkExported(batchID id.Batch, filename string, totals Totals) error {
	query := `update batches set status = ?, filename = ?, debit_total = ?, credit_total = ?, entry_hash = ?, entry_count = ?, last_error = '', exported_at = ? where batch_id = ? and deleted_at is null;`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	res, err := stmt.Exec(StatusExported, filename, totals.Debit, totals.Credit, totals.EntryHash, totals.Entries, time.Now(), batchID.String())
	if err != nil {
		return err
	}
	return requireHit(res)
}

func (r *sqlRepository) MarkUploaded(batchID id.Batch) error {
	query := `update batches set status = ?, last_error = '', uploaded_at = ? where batch_id = ? and deleted_at is null;`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	res, err := stmt.Exec(StatusUploaded, time.Now(), batchID.String())
	if err != nil {
		return err
	}
	return requireHit(res)
}

func (r *sqlRepository) MarkFailed(batchID id.Batch, reason string) error {
	query := `update batches set status = ?, last_error = ? where batch_id = ? and deleted_at is null;`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	res, err := stmt.Exec(StatusFailed, reason, batchID.String())
	if err != nil {
		return err
	}
	return requireHit(res)
}

func (r *sqlRepository) SaveEntries(entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}
	query := `insert into batch_entries (batch_id, order_id, amount, transaction_code, account_number_masked, trace_number, created_at) values (?, ?, ?, ?, ?, ?, ?);`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for i := range entries {
		e := entries[i]
		if _, err := stmt.Exec(e.BatchID.String(), e.OrderID.String(), e.AmountCents, e.TransactionCode, e.AccountMasked, e.TraceNumber, now); err != nil {
			return fmt.Errorf("batch: save entry for order %s: %v", e.OrderID, err)
		}
	}
	return nil
}

func (r *sqlRepository) Entries(batchID id.Batch) ([]*Entry, error) {
	query := `select batch_id, order_id, amount, transaction_code, account_number_masked, trace_number from batch_entries where batch_id = ? order by trace_number asc;`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	rows, err := stmt.Query(batchID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.BatchID, &e.OrderID, &e.AmountCents, &e.TransactionCode, &e.AccountMasked, &e.TraceNumber); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func requireHit(res sql.Result) error {
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
