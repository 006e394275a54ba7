// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"strings"
	"time"
)

type Verification struct {
	// Strategy names the verification strategy used for new starts. In-flight
	// verifications keep the strategy they started with.
	Strategy string `json:"strategy" yaml:"strategy"`

	Manual        *Manual        `json:"manual" yaml:"manual"`
	MicroDeposits *MicroDeposits `json:"microDeposits" yaml:"microDeposits"`
	Instant       *Instant       `json:"instant" yaml:"instant"`
}

func (cfg Verification) Validate() error {
	switch strings.ToLower(cfg.Strategy) {
	case "", "manual", "micro-deposits", "instant":
		return nil
	}
	return fmt.Errorf("unknown strategy %q", cfg.Strategy)
}

type Manual struct {
	// NotifyOperator sends a notification when an order enters pending review.
	NotifyOperator bool `json:"notifyOperator" yaml:"notifyOperator"`
}

type MicroDeposits struct {
	// MaxAttempts is how many confirmation guesses are allowed before the
	// verification cycle becomes terminal.
	MaxAttempts int `json:"maxAttempts" yaml:"maxAttempts"`

	// ExpireAfter bounds how long a pending verification waits for the
	// amounts to be confirmed before it expires.
	ExpireAfter string `json:"expireAfter" yaml:"expireAfter"`

	// Source funds the two test credits sent to the account under review.
	Source string `json:"source" yaml:"source"`
}

func (cfg *MicroDeposits) Attempts() int {
	if cfg == nil || cfg.MaxAttempts <= 0 {
		return 3
	}
	return cfg.MaxAttempts
}

func (cfg *MicroDeposits) Expiry() time.Duration {
	if cfg == nil {
		return 10 * 24 * time.Hour
	}
	return parseDuration(cfg.ExpireAfter, 10*24*time.Hour)
}

type Instant struct {
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
	ClientID     string `json:"clientID" yaml:"clientID"`
	ClientSecret string `json:"clientSecret" yaml:"clientSecret"`
}
