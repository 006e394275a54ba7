// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package verification

import (
	"fmt"

	"github.com/ledgerline/settler/pkg/config"
	"github.com/ledgerline/settler/pkg/id"
	"github.com/ledgerline/settler/pkg/notify"
	"github.com/ledgerline/settler/pkg/orders"

	"github.com/go-kit/kit/log"
)

// Manual queues the order for an operator, whose decision arrives through
// Complete. Nothing is stored beyond the record itself.
type Manual struct {
	logger   log.Logger
	cfg      *config.Manual
	repo     Repository
	notifier notify.Sender
}

// NewManual returns the operator review strategy. notifier may be nil when
// review notifications aren't configured.
func NewManual(logger log.Logger, cfg *config.Manual, repo Repository, notifier notify.Sender) *Manual {
	return &Manual{
		logger:   logger,
		cfg:      cfg,
		repo:     repo,
		notifier: notifier,
	}
}

func (m *Manual) Name() string { return "manual" }

func (m *Manual) IsAvailable() bool {
	return m.repo != nil
}

func (m *Manual) Start(orderID id.Order, customerID id.Customer, details *orders.BankDetails) (*StartResult, error) {
	err := m.repo.Upsert(&Record{
		OrderID:    orderID,
		CustomerID: customerID,
		Strategy:   m.Name(),
		Status:     StatusPending,
	})
	if err != nil {
		return nil, err
	}

	if m.cfg != nil && m.cfg.NotifyOperator && m.notifier != nil {
		msg := &notify.Message{
			Event:   "verification-review",
			OrderID: orderID,
			Body:    fmt.Sprintf("order %s is waiting on manual account review", orderID),
		}
		if err := m.notifier.Info(msg); err != nil {
			m.logger.Log("verification", "manual review notification failed", "orderID", orderID, "error", err)
		}
	}

	return &StartResult{
		Status:  StatusPending,
		Message: "an operator will review the account details",
	}, nil
}

func (m *Manual) Complete(orderID id.Order, attempt *Attempt) (*CompleteResult, error) {
	record, err := m.repo.Get(orderID)
	if err != nil {
		return nil, err
	}
	if record.Status.Terminal() {
		return &CompleteResult{
			Status:  record.Status,
			Message: fmt.Sprintf("verification is already %s", record.Status),
		}, nil
	}
	if attempt == nil {
		return nil, fmt.Errorf("manual: missing operator decision")
	}

	record.Attempts++
	if attempt.Approve {
		record.Status = StatusVerified
	} else {
		record.Status = StatusRejected
	}
	if err := m.repo.Upsert(record); err != nil {
		return nil, err
	}

	return &CompleteResult{
		Verified: attempt.Approve,
		Status:   record.Status,
		Message:  attempt.Note,
	}, nil
}

func (m *Manual) Status(orderID id.Order) (Status, error) {
	record, err := m.repo.Get(orderID)
	if err != nil {
		if err == ErrNotFound {
			return StatusNotStarted, nil
		}
		return "", err
	}
	return record.Status, nil
}

func (m *Manual) Cancel(orderID id.Order) error {
	return cancelRecord(m.repo, orderID)
}
