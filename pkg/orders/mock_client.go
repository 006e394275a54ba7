// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package orders

import (
	"fmt"
	"sync"

	"github.com/ledgerline/settler/pkg/id"
	"github.com/ledgerline/settler/pkg/mask"
	"github.com/shopspring/decimal"
)

// MockClient is an in-memory Client for tests.
type MockClient struct {
	mu sync.Mutex

	Orders  map[id.Order]*Order
	Details map[id.Order]*BankDetails

	Err error
}

func NewMockClient() *MockClient {
	return &MockClient{
		Orders:  make(map[id.Order]*Order),
		Details: make(map[id.Order]*BankDetails),
	}
}

func (c *MockClient) Create(order *Order, details *BankDetails) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	cp := *order
	if cp.Status == "" {
		cp.Status = StatusUnverified
	}
	cp.AccountMasked = mask.AccountNumber(details.AccountNumber)
	c.Orders[order.ID] = &cp
	d := *details
	c.Details[order.ID] = &d
	return nil
}

func (c *MockClient) Order(orderID id.Order) (*Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	order, ok := c.Orders[orderID]
	if !ok {
		return nil, fmt.Errorf("orders: order not found")
	}
	cp := *order
	return &cp, nil
}

func (c *MockClient) VerifiedOrders() ([]*Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	var out []*Order
	for _, order := range c.Orders {
		if order.Status == StatusVerified && order.BatchID == "" {
			cp := *order
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (c *MockClient) VerifiedBankDetails(orderID id.Order) (*BankDetails, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	order, ok := c.Orders[orderID]
	if !ok {
		return nil, fmt.Errorf("orders: order not found")
	}
	if order.Status != StatusVerified {
		return nil, fmt.Errorf("orders: order %s is %s, not verified", orderID, order.Status)
	}
	d := *c.Details[orderID]
	return &d, nil
}

func (c *MockClient) UpdateBankDetails(orderID id.Order, details *BankDetails) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	order, ok := c.Orders[orderID]
	if !ok {
		return fmt.Errorf("orders: order not found")
	}
	if details == nil {
		return fmt.Errorf("orders: missing bank details")
	}
	d := *details
	c.Details[orderID] = &d
	order.AccountMasked = mask.AccountNumber(details.AccountNumber)
	return nil
}

func (c *MockClient) OrderTotal(orderID id.Order) (decimal.Decimal, error) {
	order, err := c.Order(orderID)
	if err != nil {
		return decimal.Zero, err
	}
	return order.Total, nil
}

func (c *MockClient) BillingName(orderID id.Order) (string, error) {
	order, err := c.Order(orderID)
	if err != nil {
		return "", err
	}
	return order.BillingName, nil
}

func (c *MockClient) SetStatus(orderID id.Order, status Status, note string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	order, ok := c.Orders[orderID]
	if !ok {
		return fmt.Errorf("orders: order not found")
	}
	order.Status = status
	return nil
}

func (c *MockClient) SetBatch(orderID id.Order, batchID id.Batch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	order, ok := c.Orders[orderID]
	if !ok {
		return fmt.Errorf("orders: order not found")
	}
	order.BatchID = batchID
	return nil
}
