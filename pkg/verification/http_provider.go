// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package verification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ledgerline/settler/pkg/config"
	"github.com/ledgerline/settler/pkg/id"
	"github.com/ledgerline/settler/pkg/orders"

	"github.com/go-kit/kit/log"
)

// HTTPProvider talks to an external account verification service over its
// JSON API. Credentials ride as basic auth on every call.
type HTTPProvider struct {
	logger log.Logger
	cfg    *config.Instant
	client *http.Client
}

func NewHTTPProvider(logger log.Logger, cfg *config.Instant) *HTTPProvider {
	return &HTTPProvider{
		logger: logger,
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPProvider) CreateSession(orderID id.Order, customerID id.Customer) (string, error) {
	var response struct {
		SessionID string `json:"sessionID"`
	}
	err := p.post("/sessions", map[string]string{
		"orderID":    orderID.String(),
		"customerID": customerID.String(),
	}, &response)
	if err != nil {
		return "", err
	}
	if response.SessionID == "" {
		return "", fmt.Errorf("provider returned no session")
	}
	return response.SessionID, nil
}

func (p *HTTPProvider) ExchangeToken(sessionID, providerToken string) (*ExchangeResult, error) {
	var response struct {
		Verified      bool   `json:"verified"`
		RoutingNumber string `json:"routingNumber"`
		AccountNumber string `json:"accountNumber"`
		AccountType   string `json:"accountType"`
		HolderName    string `json:"holderName"`
	}
	err := p.post(fmt.Sprintf("/sessions/%s/exchange", sessionID), map[string]string{
		"token": providerToken,
	}, &response)
	if err != nil {
		return nil, err
	}

	result := &ExchangeResult{Verified: response.Verified}
	if response.Verified {
		result.Details = &orders.BankDetails{
			RoutingNumber: response.RoutingNumber,
			AccountNumber: response.AccountNumber,
			AccountType:   response.AccountType,
			HolderName:    response.HolderName,
		}
	}
	return result, nil
}

func (p *HTTPProvider) post(path string, body map[string]string, out interface{}) error {
	if p.cfg == nil || p.cfg.Endpoint == "" {
		return fmt.Errorf("no provider endpoint configured")
	}

	bs, err := json.Marshal(body)
	if err != nil {
		return err
	}
	address := strings.TrimSuffix(p.cfg.Endpoint, "/") + path
	req, err := http.NewRequest("POST", address, bytes.NewReader(bs))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(p.cfg.ClientID, p.cfg.ClientSecret)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider responded %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
