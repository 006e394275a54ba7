// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package verification

import (
	"fmt"
	"strings"

	"github.com/ledgerline/settler/pkg/config"
	"github.com/ledgerline/settler/pkg/id"
	"github.com/ledgerline/settler/pkg/orders"
	"github.com/ledgerline/settler/pkg/ratelimit"

	"github.com/go-kit/kit/log"
	kitprom "github.com/go-kit/kit/metrics/prometheus"
	stdprom "github.com/prometheus/client_golang/prometheus"
)

var (
	verificationsStarted = kitprom.NewCounterFrom(stdprom.CounterOpts{
		Name: "verifications_started",
		Help: "Count of verifications started",
	}, []string{"strategy"})

	verificationsCompleted = kitprom.NewCounterFrom(stdprom.CounterOpts{
		Name: "verifications_completed",
		Help: "Count of verification completion attempts",
	}, []string{"strategy", "status"})
)

// ErrRateLimited is returned when an order saw too many completion
// attempts inside the window.
var ErrRateLimited = fmt.Errorf("verification: too many completion attempts")

// completeAction keys the limiter window guessing completion proofs.
const completeAction = "verification-complete"

// Manager owns strategy selection. New verifications use the configured
// strategy; records already in flight are pinned to the strategy that
// started them, even if configuration changed since.
type Manager struct {
	logger     log.Logger
	repo       Repository
	orders     orders.Client
	limiter    *ratelimit.Limiter
	strategies map[string]Strategy
	configured string
}

func NewManager(logger log.Logger, cfg config.Verification, repo Repository, client orders.Client, limiter *ratelimit.Limiter, strategies ...Strategy) (*Manager, error) {
	m := &Manager{
		logger:     logger,
		repo:       repo,
		orders:     client,
		limiter:    limiter,
		strategies: make(map[string]Strategy),
		configured: strings.ToLower(cfg.Strategy),
	}
	if m.configured == "" {
		m.configured = "micro-deposits"
	}
	for i := range strategies {
		name := strategies[i].Name()
		if _, exists := m.strategies[name]; exists {
			return nil, fmt.Errorf("verification: duplicate strategy %s", name)
		}
		m.strategies[name] = strategies[i]
	}
	if _, exists := m.strategies[m.configured]; !exists {
		return nil, fmt.Errorf("verification: configured strategy %s is not registered", m.configured)
	}
	return m, nil
}

// Start begins verification for an order with the configured strategy.
// details are the plaintext bank details from intake; they are handed to
// the strategy and never stored by the manager.
func (m *Manager) Start(orderID id.Order, customerID id.Customer, details *orders.BankDetails) (*StartResult, error) {
	record, err := m.repo.Get(orderID)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	if record != nil {
		switch record.Status {
		case StatusCancelled, StatusExpired:
			// a fresh cycle is allowed
		default:
			return nil, fmt.Errorf("verification: order %s is already %s", orderID, record.Status)
		}
	}

	strategy := m.strategies[m.configured]
	if !strategy.IsAvailable() {
		return nil, fmt.Errorf("verification: strategy %s is not available", m.configured)
	}

	result, err := strategy.Start(orderID, customerID, details)
	if err != nil {
		return nil, err
	}
	verificationsStarted.With("strategy", strategy.Name()).Add(1)

	if err := m.orders.SetStatus(orderID, orders.StatusPending, "verification started"); err != nil {
		m.logger.Log("verification", "order status update failed", "orderID", orderID, "error", err)
	}
	return result, nil
}

// Complete routes the attempt to the strategy pinned on the record. Only a
// strategy-reported Verified moves the order to verified. Attempts are
// rate limited per order on top of any per-record budget the strategy
// keeps, so proofs can't be brute-forced by hammering this entry point.
func (m *Manager) Complete(orderID id.Order, attempt *Attempt) (*CompleteResult, error) {
	if m.limiter != nil {
		decision, err := m.limiter.Check(completeAction, orderID.String())
		if err != nil {
			return nil, err
		}
		if !decision.Allowed {
			return nil, ErrRateLimited
		}
	}

	record, err := m.repo.Get(orderID)
	if err != nil {
		return nil, err
	}
	strategy, exists := m.strategies[record.Strategy]
	if !exists {
		return nil, fmt.Errorf("verification: order %s was started with unregistered strategy %s", orderID, record.Strategy)
	}

	result, err := strategy.Complete(orderID, attempt)
	if err != nil {
		return nil, err
	}
	if m.limiter != nil {
		if _, err := m.limiter.Record(completeAction, orderID.String(), result.Verified); err != nil {
			m.logger.Log("verification", "record completion attempt", "orderID", orderID, "error", err)
		}
	}
	verificationsCompleted.With("strategy", strategy.Name(), "status", string(result.Status)).Add(1)

	if result.Verified {
		if err := m.orders.SetStatus(orderID, orders.StatusVerified, "account ownership verified"); err != nil {
			return nil, fmt.Errorf("verification: order %s verified but status update failed: %v", orderID, err)
		}
	} else if result.Status == StatusRejected {
		if err := m.orders.SetStatus(orderID, orders.StatusRejected, result.Message); err != nil {
			m.logger.Log("verification", "order status update failed", "orderID", orderID, "error", err)
		}
	}
	return result, nil
}

func (m *Manager) Status(orderID id.Order) (Status, error) {
	record, err := m.repo.Get(orderID)
	if err != nil {
		if err == ErrNotFound {
			return StatusNotStarted, nil
		}
		return "", err
	}
	return record.Status, nil
}

// Cancel stops a pending verification through its pinned strategy.
func (m *Manager) Cancel(orderID id.Order) error {
	record, err := m.repo.Get(orderID)
	if err != nil {
		return err
	}
	strategy, exists := m.strategies[record.Strategy]
	if !exists {
		return fmt.Errorf("verification: order %s was started with unregistered strategy %s", orderID, record.Strategy)
	}
	return strategy.Cancel(orderID)
}
