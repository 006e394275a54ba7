// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package verification

import (
	"fmt"

	"github.com/ledgerline/settler/pkg/config"
	"github.com/ledgerline/settler/pkg/id"
	"github.com/ledgerline/settler/pkg/orders"
	"github.com/ledgerline/settler/pkg/secrets"

	"github.com/go-kit/kit/log"
)

// ExchangeResult is what the provider hands back for a one-time token:
// whether ownership was confirmed and, when it was, the account and routing
// numbers on file with the institution.
type ExchangeResult struct {
	Verified bool
	Details  *orders.BankDetails
}

// Provider is an external account verification service. A session is opened
// per order; the customer authenticates with the provider out-of-band and
// comes back with a one-time token we exchange for the result.
type Provider interface {
	CreateSession(orderID id.Order, customerID id.Customer) (sessionID string, err error)
	ExchangeToken(sessionID, providerToken string) (*ExchangeResult, error)
}

// Instant verifies ownership through an external provider session. The
// session handle is strategy-private and stored encrypted; the bank details
// a successful exchange returns are written back onto the order, where the
// client encrypts them at rest.
type Instant struct {
	logger   log.Logger
	cfg      *config.Instant
	repo     Repository
	keeper   *secrets.StringKeeper
	client   orders.Client
	provider Provider
}

func NewInstant(logger log.Logger, cfg *config.Instant, repo Repository, keeper *secrets.StringKeeper, client orders.Client, provider Provider) *Instant {
	return &Instant{
		logger:   logger,
		cfg:      cfg,
		repo:     repo,
		keeper:   keeper,
		client:   client,
		provider: provider,
	}
}

func (in *Instant) Name() string { return "instant" }

func (in *Instant) IsAvailable() bool {
	if in.repo == nil || in.keeper == nil || in.client == nil || in.provider == nil {
		return false
	}
	return in.cfg != nil && in.cfg.Endpoint != "" && in.cfg.ClientID != ""
}

func (in *Instant) Start(orderID id.Order, customerID id.Customer, details *orders.BankDetails) (*StartResult, error) {
	sessionID, err := in.provider.CreateSession(orderID, customerID)
	if err != nil {
		return nil, fmt.Errorf("instant: create session: %v", err)
	}
	encrypted, err := in.keeper.EncryptString(sessionID)
	if err != nil {
		return nil, fmt.Errorf("instant: encrypt session: %v", err)
	}

	err = in.repo.Upsert(&Record{
		OrderID:    orderID,
		CustomerID: customerID,
		Strategy:   in.Name(),
		Status:     StatusPending,
		Payload:    encrypted,
	})
	if err != nil {
		return nil, err
	}

	return &StartResult{
		Status:  StatusPending,
		Message: "authenticate with your bank to finish verification",
	}, nil
}

func (in *Instant) Complete(orderID id.Order, attempt *Attempt) (*CompleteResult, error) {
	record, err := in.repo.Get(orderID)
	if err != nil {
		return nil, err
	}
	if record.Status.Terminal() {
		return &CompleteResult{
			Status:  record.Status,
			Message: fmt.Sprintf("verification is already %s", record.Status),
		}, nil
	}
	if attempt == nil || attempt.ProviderToken == "" {
		return nil, fmt.Errorf("instant: missing provider token")
	}

	sessionID, err := in.keeper.DecryptString(record.Payload)
	if err != nil {
		return nil, fmt.Errorf("instant: decrypt session: %v", err)
	}

	record.Attempts++
	exchange, err := in.provider.ExchangeToken(sessionID, attempt.ProviderToken)
	if err != nil {
		if uerr := in.repo.Upsert(record); uerr != nil {
			in.logger.Log("verification", "instant record update failed", "orderID", orderID, "error", uerr)
		}
		return nil, fmt.Errorf("instant: exchange token: %v", err)
	}

	if exchange.Verified {
		if exchange.Details == nil {
			return nil, fmt.Errorf("instant: provider verified order %s without bank details", orderID)
		}
		if err := in.client.UpdateBankDetails(orderID, exchange.Details); err != nil {
			return nil, fmt.Errorf("instant: store bank details: %v", err)
		}
		record.Status = StatusVerified
	} else {
		record.Status = StatusRejected
	}
	if err := in.repo.Upsert(record); err != nil {
		return nil, err
	}

	return &CompleteResult{
		Verified: exchange.Verified,
		Status:   record.Status,
	}, nil
}

func (in *Instant) Status(orderID id.Order) (Status, error) {
	record, err := in.repo.Get(orderID)
	if err != nil {
		if err == ErrNotFound {
			return StatusNotStarted, nil
		}
		return "", err
	}
	return record.Status, nil
}

func (in *Instant) Cancel(orderID id.Order) error {
	return cancelRecord(in.repo, orderID)
}

// MockProvider is an in-memory Provider for tests.
type MockProvider struct {
	Sessions map[string]id.Order
	Verified bool
	Details  *orders.BankDetails
	Err      error

	nextSession int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		Sessions: make(map[string]id.Order),
		Verified: true,
		Details: &orders.BankDetails{
			RoutingNumber: "231380104",
			AccountNumber: "18121",
			AccountType:   "checking",
			HolderName:    "Jane Doe",
		},
	}
}

func (p *MockProvider) CreateSession(orderID id.Order, customerID id.Customer) (string, error) {
	if p.Err != nil {
		return "", p.Err
	}
	p.nextSession++
	sessionID := fmt.Sprintf("session-%d", p.nextSession)
	p.Sessions[sessionID] = orderID
	return sessionID, nil
}

func (p *MockProvider) ExchangeToken(sessionID, providerToken string) (*ExchangeResult, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	if _, exists := p.Sessions[sessionID]; !exists {
		return nil, fmt.Errorf("unknown session %s", sessionID)
	}
	result := &ExchangeResult{Verified: p.Verified}
	if p.Verified {
		result.Details = p.Details
	}
	return result, nil
}
