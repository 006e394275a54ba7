// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package verification

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ledgerline/settler/pkg/id"
)

// Repository persists verification records. There is at most one record
// per order.
type Repository interface {
	Get(orderID id.Order) (*Record, error)
	Upsert(record *Record) error
}

// ErrNotFound is returned when an order has no verification record.
var ErrNotFound = fmt.Errorf("verification not found")

func NewRepository(db *sql.DB) Repository {
	return &sqlRepository{db: db}
}

type sqlRepository struct {
	db *sql.DB
}

func (r *sqlRepository) Get(orderID id.Order) (*Record, error) {
	query := `select order_id, customer_id, strategy, status, attempts, payload, created_at, last_updated_at from verifications where order_id = ? limit 1;`
	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var record Record
	err = stmt.QueryRow(orderID.String()).Scan(
		&record.OrderID,
		&record.CustomerID,
		&record.Strategy,
		&record.Status,
		&record.Attempts,
		&record.Payload,
		&record.Created,
		&record.LastUpdated,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *sqlRepository) Upsert(record *Record) error {
	if record == nil {
		return fmt.Errorf("verification: nil record")
	}

	now := time.Now()
	record.LastUpdated = now
	if record.Created.IsZero() {
		// a fresh Start on an existing row begins a new cycle
		record.Created = now
	}

	update := `update verifications set customer_id = ?, strategy = ?, status = ?, attempts = ?, payload = ?, created_at = ?, last_updated_at = ? where order_id = ?;`
	stmt, err := r.db.Prepare(update)
	if err != nil {
		return err
	}
	res, err := stmt.Exec(record.CustomerID, record.Strategy, record.Status, record.Attempts, record.Payload, record.Created, record.LastUpdated, record.OrderID.String())
	stmt.Close()
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	insert := `insert into verifications (order_id, customer_id, strategy, status, attempts, payload, created_at, last_updated_at) values (?, ?, ?, ?, ?, ?, ?, ?);`
	stmt, err = r.db.Prepare(insert)
	if err != nil {
		return err
	}
	defer stmt.Close()
	_, err = stmt.Exec(record.OrderID.String(), record.CustomerID, record.Strategy, record.Status, record.Attempts, record.Payload, record.Created, record.LastUpdated)
	return err
}
