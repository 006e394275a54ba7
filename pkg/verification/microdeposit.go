// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package verification

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ledgerline/settler/pkg/config"
	"github.com/ledgerline/settler/pkg/id"
	"github.com/ledgerline/settler/pkg/orders"
	"github.com/ledgerline/settler/pkg/secrets"

	"github.com/go-kit/kit/log"
)

// Originator moves the two test credits into the account under review.
// Implementations talk to whatever funding rail the deployment uses.
type Originator interface {
	SendDeposits(orderID id.Order, details *orders.BankDetails, amountCents []int) error
}

// MicroDeposits proves ownership by sending two small credits and asking
// the customer to report the amounts back. Guesses are order-insensitive
// and budgeted: once the budget is spent the verification is rejected for
// good, even if a later guess would have been right. A pending record that
// sits unconfirmed past its expiry becomes terminal too, though a new
// cycle can be started afterwards.
type MicroDeposits struct {
	logger      log.Logger
	repo        Repository
	keeper      *secrets.StringKeeper
	originator  Originator
	maxAttempts int
	expireAfter time.Duration

	now func() time.Time
}

func NewMicroDeposits(logger log.Logger, cfg *config.MicroDeposits, repo Repository, keeper *secrets.StringKeeper, originator Originator) *MicroDeposits {
	return &MicroDeposits{
		logger:      logger,
		repo:        repo,
		keeper:      keeper,
		originator:  originator,
		maxAttempts: cfg.Attempts(),
		expireAfter: cfg.Expiry(),
		now:         time.Now,
	}
}

func (md *MicroDeposits) Name() string { return "micro-deposits" }

func (md *MicroDeposits) IsAvailable() bool {
	return md.repo != nil && md.keeper != nil && md.originator != nil
}

type microDepositPayload struct {
	AmountCents []int `json:"amountCents"`
}

func (md *MicroDeposits) Start(orderID id.Order, customerID id.Customer, details *orders.BankDetails) (*StartResult, error) {
	if details == nil {
		return nil, fmt.Errorf("micro-deposits: missing bank details")
	}

	amounts, err := depositAmounts()
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(microDepositPayload{AmountCents: amounts})
	if err != nil {
		return nil, err
	}
	encrypted, err := md.keeper.EncryptString(string(payload))
	if err != nil {
		return nil, fmt.Errorf("micro-deposits: encrypt payload: %v", err)
	}

	if err := md.originator.SendDeposits(orderID, details, amounts); err != nil {
		return nil, fmt.Errorf("micro-deposits: originate: %v", err)
	}

	err = md.repo.Upsert(&Record{
		OrderID:    orderID,
		CustomerID: customerID,
		Strategy:   md.Name(),
		Status:     StatusPending,
		Payload:    encrypted,
	})
	if err != nil {
		return nil, err
	}

	return &StartResult{
		Status:  StatusPending,
		Message: "two small deposits will arrive within two banking days",
	}, nil
}

// depositAmounts picks two distinct amounts between 1 and 99 cents.
func depositAmounts() ([]int, error) {
	pick := func() (int, error) {
		n, err := rand.Int(rand.Reader, big.NewInt(99))
		if err != nil {
			return 0, err
		}
		return int(n.Int64()) + 1, nil
	}

	first, err := pick()
	if err != nil {
		return nil, err
	}
	for {
		second, err := pick()
		if err != nil {
			return nil, err
		}
		if second != first {
			return []int{first, second}, nil
		}
	}
}

// expire flips a pending record past its deadline to expired. The caller
// re-checks the status afterwards.
func (md *MicroDeposits) expire(record *Record) error {
	if record.Status != StatusPending || record.Created.IsZero() {
		return nil
	}
	if md.expireAfter <= 0 || md.now().Sub(record.Created) < md.expireAfter {
		return nil
	}
	record.Status = StatusExpired
	md.logger.Log("verification", "micro-deposit verification expired", "orderID", record.OrderID)
	return md.repo.Upsert(record)
}

func (md *MicroDeposits) Complete(orderID id.Order, attempt *Attempt) (*CompleteResult, error) {
	record, err := md.repo.Get(orderID)
	if err != nil {
		return nil, err
	}
	if err := md.expire(record); err != nil {
		return nil, err
	}
	if record.Status.Terminal() {
		return &CompleteResult{
			Status:  record.Status,
			Message: fmt.Sprintf("verification is already %s", record.Status),
		}, nil
	}
	if attempt == nil || len(attempt.AmountCents) != 2 {
		return nil, fmt.Errorf("micro-deposits: two amounts are required")
	}

	plaintext, err := md.keeper.DecryptString(record.Payload)
	if err != nil {
		return nil, fmt.Errorf("micro-deposits: decrypt payload: %v", err)
	}
	var payload microDepositPayload
	if err := json.Unmarshal([]byte(plaintext), &payload); err != nil {
		return nil, err
	}

	record.Attempts++
	if amountsMatch(payload.AmountCents, attempt.AmountCents) {
		record.Status = StatusVerified
		if err := md.repo.Upsert(record); err != nil {
			return nil, err
		}
		return &CompleteResult{Verified: true, Status: StatusVerified}, nil
	}

	if record.Attempts >= md.maxAttempts {
		record.Status = StatusRejected
		if err := md.repo.Upsert(record); err != nil {
			return nil, err
		}
		return &CompleteResult{
			Status:  StatusRejected,
			Message: "attempt budget exhausted",
		}, nil
	}

	if err := md.repo.Upsert(record); err != nil {
		return nil, err
	}
	return &CompleteResult{
		Status:  StatusPending,
		Message: fmt.Sprintf("amounts don't match, %d attempts remain", md.maxAttempts-record.Attempts),
	}, nil
}

func amountsMatch(expected, guessed []int) bool {
	if len(expected) != 2 || len(guessed) != 2 {
		return false
	}
	if expected[0] == guessed[0] && expected[1] == guessed[1] {
		return true
	}
	return expected[0] == guessed[1] && expected[1] == guessed[0]
}

func (md *MicroDeposits) Status(orderID id.Order) (Status, error) {
	record, err := md.repo.Get(orderID)
	if err != nil {
		if err == ErrNotFound {
			return StatusNotStarted, nil
		}
		return "", err
	}
	if err := md.expire(record); err != nil {
		return "", err
	}
	return record.Status, nil
}

func (md *MicroDeposits) Cancel(orderID id.Order) error {
	return cancelRecord(md.repo, orderID)
}

// cancelRecord is shared by strategies: pending verifications can be
// cancelled, terminal ones can't change.
func cancelRecord(repo Repository, orderID id.Order) error {
	record, err := repo.Get(orderID)
	if err != nil {
		return err
	}
	if record.Status.Terminal() {
		return fmt.Errorf("verification is already %s", record.Status)
	}
	record.Status = StatusCancelled
	return repo.Upsert(record)
}

// MockOriginator records deposits for tests.
type MockOriginator struct {
	Sent map[id.Order][]int
	Err  error
}

func NewMockOriginator() *MockOriginator {
	return &MockOriginator{Sent: make(map[id.Order][]int)}
}

func (o *MockOriginator) SendDeposits(orderID id.Order, details *orders.BankDetails, amountCents []int) error {
	if o.Err != nil {
		return o.Err
	}
	o.Sent[orderID] = amountCents
	return nil
}
