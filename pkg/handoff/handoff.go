// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package handoff issues single-use tokens that let a customer continue a
// checkout on a second device. Tokens are random, carry no order data
// themselves and can be consumed exactly once; everything they reference
// lives server-side in the kv store.
package handoff

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ledgerline/settler/pkg/config"
	"github.com/ledgerline/settler/pkg/id"
	"github.com/ledgerline/settler/pkg/kv"
	"github.com/ledgerline/settler/pkg/ratelimit"

	"github.com/go-kit/kit/log"
)

var (
	// ErrInvalid covers unknown, expired and malformed tokens. Callers get
	// no more detail than this on purpose.
	ErrInvalid = fmt.Errorf("handoff: invalid token")

	// ErrConsumed is returned when a token was already used.
	ErrConsumed = fmt.Errorf("handoff: token already used")

	// ErrRateLimited is returned when the customer generated too many
	// tokens inside the window.
	ErrRateLimited = fmt.Errorf("handoff: rate limited")
)

const action = "handoff"

// Token is handed back to the caller at generation.
type Token struct {
	Token     id.Token
	URL       string
	ExpiresAt time.Time
}

// Claims is what a valid token refers to.
type Claims struct {
	OrderID    id.Order    `json:"orderID"`
	CustomerID id.Customer `json:"customerID"`
	Purpose    string      `json:"purpose"`
	Used       bool        `json:"used"`
	Created    time.Time   `json:"created"`
	ExpiresAt  time.Time   `json:"expiresAt"`
}

type Service struct {
	logger  log.Logger
	store   kv.Store
	limiter *ratelimit.Limiter

	baseURL string
	ttl     time.Duration

	now func() time.Time
}

func NewService(logger log.Logger, cfg config.Handoff, store kv.Store, limiter *ratelimit.Limiter) *Service {
	return &Service{
		logger:  logger,
		store:   store,
		limiter: limiter,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		ttl:     cfg.Expiry(),
		now:     time.Now,
	}
}

// Generate mints a fresh token for the order. Each generation counts
// against the customer's rate limit.
func (s *Service) Generate(orderID id.Order, customerID id.Customer, purpose string) (*Token, error) {
	decision, err := s.limiter.Record(action, customerID.String(), false)
	if err != nil {
		return nil, err
	}
	if decision.LockedOut || !decision.Allowed {
		return nil, ErrRateLimited
	}

	token, err := randomToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	claims := Claims{
		OrderID:    orderID,
		CustomerID: customerID,
		Purpose:    purpose,
		Created:    now,
		ExpiresAt:  now.Add(s.ttl),
	}
	value, err := json.Marshal(claims)
	if err != nil {
		return nil, err
	}

	// expected revision zero: a colliding token must never be overwritten
	swapped, err := s.store.CompareAndSwap(tokenKey(token), value, 0, s.ttl)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, fmt.Errorf("handoff: token collision")
	}

	return &Token{
		Token:     token,
		URL:       fmt.Sprintf("%s/%s", s.baseURL, token),
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// Validate looks the token up without consuming it.
func (s *Service) Validate(token id.Token) (*Claims, error) {
	claims, _, err := s.read(token)
	if err != nil {
		return nil, err
	}
	if claims.Used {
		return nil, ErrConsumed
	}
	return claims, nil
}

// Consume atomically marks the token used and returns its claims. Exactly
// one caller can win; every later attempt gets ErrConsumed.
func (s *Service) Consume(token id.Token) (*Claims, error) {
	claims, revision, err := s.read(token)
	if err != nil {
		return nil, err
	}
	if claims.Used {
		return nil, ErrConsumed
	}

	claims.Used = true
	value, err := json.Marshal(claims)
	if err != nil {
		return nil, err
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil, ErrInvalid
	}
	swapped, err := s.store.CompareAndSwap(tokenKey(token), value, revision, ttl)
	if err != nil {
		return nil, err
	}
	if !swapped {
		// someone else consumed it between our read and write
		return nil, ErrConsumed
	}

	if _, err := s.limiter.Record(action, claims.CustomerID.String(), true); err != nil {
		s.logger.Log("handoff", "rate limit reset failed", "customerID", claims.CustomerID, "error", err)
	}
	return claims, nil
}

func (s *Service) read(token id.Token) (*Claims, int64, error) {
	if len(token) != 64 {
		return nil, 0, ErrInvalid
	}
	entry, err := s.store.Get(tokenKey(token))
	if err != nil {
		return nil, 0, err
	}
	if entry == nil {
		return nil, 0, ErrInvalid
	}
	var claims Claims
	if err := json.Unmarshal(entry.Value, &claims); err != nil {
		return nil, 0, ErrInvalid
	}
	if s.now().After(claims.ExpiresAt) {
		return nil, 0, ErrInvalid
	}
	return &claims, entry.Revision, nil
}

func tokenKey(token id.Token) string {
	return fmt.Sprintf("handoff:token:%s", token)
}

func randomToken() (id.Token, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("handoff: entropy unavailable: %v", err)
	}
	return id.Token(hex.EncodeToString(buf)), nil
}
