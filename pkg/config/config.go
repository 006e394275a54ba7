// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/spf13/viper"
)

type Config struct {
	Logger  log.Logger `yaml:"-" json:"-"`
	Logging Logging

	Admin Admin

	Database Database

	ODFI         ODFI
	Storage      Storage
	Verification Verification
	RateLimit    RateLimit
	Handoff      Handoff
	Batch        Batch
	Audit        Audit

	Notifications Notifications
}

type Logging struct {
	Format string
	Level  string
}

type Admin struct {
	BindAddress string `json:"bindAddress" yaml:"bindAddress"`
}

func Empty() *Config {
	return &Config{
		Logger: log.NewNopLogger(),
		Admin: Admin{
			BindAddress: ":9092",
		},
		Database: Database{
			// Default to a local database if no other is defined.
			SQLite: &SQLite{
				Path: "settler.db",
			},
		},
		Storage: Storage{
			BaseDirectory: "./storage",
		},
		Verification: Verification{
			Strategy: "micro-deposits",
			MicroDeposits: &MicroDeposits{
				MaxAttempts: 3,
			},
		},
		RateLimit: RateLimit{
			MaxAttempts: 5,
			Window:      "15m",
			Lockout:     "30m",
		},
		Handoff: Handoff{
			TTL: "15m",
		},
		Batch: Batch{
			Profile:         "default",
			MaxLockAge:      "30m",
			OrderLockAge:    "10m",
			BlockingFactor:  10,
			FilenamePattern: `settlement-{{ date "20060102-150405" }}.ach`,
		},
	}
}

func FromFile(path string) (*Config, error) {
	if path != "" {
		bs, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %v", path, err)
		}
		return Read(bs)
	}
	cfg := setupLogger(Empty())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Read(data []byte) (*Config, error) {
	vip := viper.New()
	vip.SetConfigType("yaml")
	if err := vip.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("problem reading config: %v", err)
	}

	cfg := Empty()
	if err := vip.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("problem unmarshaling config: %v", err)
	}

	cfg = setupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogger(cfg *Config) *Config {
	if strings.EqualFold(cfg.Logging.Format, "json") {
		cfg.Logger = log.NewJSONLogger(os.Stderr)
	} else {
		cfg.Logger = log.NewLogfmtLogger(os.Stderr)
	}
	cfg.Logger = log.With(cfg.Logger, "ts", log.DefaultTimestampUTC)
	cfg.Logger = log.With(cfg.Logger, "caller", log.DefaultCaller)
	return cfg
}

func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("missing Config")
	}
	if err := cfg.ODFI.Validate(); err != nil {
		return fmt.Errorf("odfi: %v", err)
	}
	if err := cfg.Verification.Validate(); err != nil {
		return fmt.Errorf("verification: %v", err)
	}
	if err := cfg.Batch.Validate(); err != nil {
		return fmt.Errorf("batch: %v", err)
	}
	return nil
}
