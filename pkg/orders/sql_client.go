// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package orders

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ledgerline/settler/pkg/id"
	"github.com/ledgerline/settler/pkg/mask"
	"github.com/ledgerline/settler/pkg/secrets"

	"github.com/go-kit/kit/log"
	"github.com/shopspring/decimal"
)

// NewClient returns a Client backed by the shared database. keeper encrypts
// bank details at rest.
func NewClient(logger log.Logger, db *sql.DB, keeper *secrets.StringKeeper) Client {
	return &sqlClient{
		db:     db,
		logger: logger,
		keeper: keeper,
	}
}

type sqlClient struct {
	db     *sql.DB
	logger log.Logger
	keeper *secrets.StringKeeper
}

// Create stores an order along with its encrypted bank details. It's called
// from order intake, before any verification has run.
func (c *sqlClient) Create(order *Order, details *BankDetails) error {
	if order == nil || details == nil {
		return fmt.Errorf("orders: missing order or bank details")
	}

	routing, err := c.keeper.EncryptString(details.RoutingNumber)
	if err != nil {
		return fmt.Errorf("orders: encrypt routing number: %v", err)
	}
	account, err := c.keeper.EncryptString(details.AccountNumber)
	if err != nil {
		return fmt.Errorf("orders: encrypt account number: %v", err)
	}

	query := `insert into orders (order_id, total, billing_name, account_type, holder_name, routing_number_encrypted, account_number_encrypted, account_number_masked, verification_status, batch_id, status_note, created_at, last_updated_at) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
	stmt, err := c.db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	status := order.Status
	if status == "" {
		status = StatusUnverified
	}
	_, err = stmt.Exec(
		order.ID.String(),
		order.Total.String(),
		order.BillingName,
		details.AccountType,
		details.HolderName,
		routing,
		account,
		mask.AccountNumber(details.AccountNumber),
		status,
		order.BatchID.String(),
		"",
		now,
		now,
	)
	return err
}

func (c *sqlClient) Order(orderID id.Order) (*Order, error) {
	query := `select order_id, total, billing_name, account_number_masked, verification_status, batch_id, created_at, last_updated_at from orders where order_id = ? and deleted_at is null limit 1;`
	stmt, err := c.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	return scanOrder(stmt.QueryRow(orderID.String()))
}

func (c *sqlClient) VerifiedOrders() ([]*Order, error) {
	query := `select order_id, total, billing_name, account_number_masked, verification_status, batch_id, created_at, last_updated_at from orders where verification_status = ? and (batch_id is null or batch_id = '') and deleted_at is null order by created_at asc;`
	stmt, err := c.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	rows, err := stmt.Query(StatusVerified)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row scanner) (*Order, error) {
	var order Order
	var total string
	var batchID sql.NullString
	if err := row.Scan(&order.ID, &total, &order.BillingName, &order.AccountMasked, &order.Status, &batchID, &order.Created, &order.LastUpdated); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("orders: order not found")
		}
		return nil, err
	}
	amt, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("orders: order %s has unreadable total: %v", order.ID, err)
	}
	order.Total = amt
	order.BatchID = id.Batch(batchID.String)
	return &order, nil
}

// VerifiedBankDetails decrypts the bank details for a verified order. Asking
// for an unverified order's details is an error, not an empty answer.
func (c *sqlClient) VerifiedBankDetails(orderID id.Order) (*BankDetails, error) {
	query := `select account_type, holder_name, routing_number_encrypted, account_number_encrypted, verification_status from orders where order_id = ? and deleted_at is null limit 1;`
	stmt, err := c.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var details BankDetails
	var routing, account string
	var status Status
	if err := stmt.QueryRow(orderID.String()).Scan(&details.AccountType, &details.HolderName, &routing, &account, &status); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("orders: order not found")
		}
		return nil, err
	}
	if status != StatusVerified {
		return nil, fmt.Errorf("orders: order %s is %s, not verified", orderID, status)
	}

	if details.RoutingNumber, err = c.keeper.DecryptString(routing); err != nil {
		return nil, fmt.Errorf("orders: decrypt routing number: %v", err)
	}
	if details.AccountNumber, err = c.keeper.DecryptString(account); err != nil {
		return nil, fmt.Errorf("orders: decrypt account number: %v", err)
	}
	return &details, nil
}

// UpdateBankDetails rewrites the encrypted bank fields and the masked
// reference. Like Create, plaintext never reaches the database.
func (c *sqlClient) UpdateBankDetails(orderID id.Order, details *BankDetails) error {
	if details == nil {
		return fmt.Errorf("orders: missing bank details")
	}

	routing, err := c.keeper.EncryptString(details.RoutingNumber)
	if err != nil {
		return fmt.Errorf("orders: encrypt routing number: %v", err)
	}
	account, err := c.keeper.EncryptString(details.AccountNumber)
	if err != nil {
		return fmt.Errorf("orders: encrypt account number: %v", err)
	}

	query := `update orders set routing_number_encrypted = ?, account_number_encrypted = ?, account_number_masked = ?, account_type = ?, holder_name = ?, last_updated_at = ? where order_id = ? and deleted_at is null;`
	stmt, err := c.db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	res, err := stmt.Exec(routing, account, mask.AccountNumber(details.AccountNumber), details.AccountType, details.HolderName, time.Now(), orderID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("orders: order not found")
	}
	return nil
}

func (c *sqlClient) OrderTotal(orderID id.Order) (decimal.Decimal, error) {
	order, err := c.Order(orderID)
	if err != nil {
		return decimal.Zero, err
	}
	return order.Total, nil
}

func (c *sqlClient) BillingName(orderID id.Order) (string, error) {
	order, err := c.Order(orderID)
	if err != nil {
		return "", err
	}
	return order.BillingName, nil
}

func (c *sqlClient) SetStatus(orderID id.Order, status Status, note string) error {
	query := `update orders set verification_status = ?, status_note = ?, last_updated_at = ? where order_id = ? and deleted_at is null;`
	stmt, err := c.db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	res, err := stmt.Exec(status, note, time.Now(), orderID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("orders: order not found")
	}
	return nil
}

func (c *sqlClient) SetBatch(orderID id.Order, batchID id.Batch) error {
	query := `update orders set batch_id = ?, last_updated_at = ? where order_id = ? and deleted_at is null;`
	stmt, err := c.db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	res, err := stmt.Exec(batchID.String(), time.Now(), orderID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("orders: order not found")
	}
	return nil
}
