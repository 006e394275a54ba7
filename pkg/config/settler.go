// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"time"
)

type Storage struct {
	// BaseDirectory is where generated files and manifests are kept.
	BaseDirectory string `json:"baseDirectory" yaml:"baseDirectory"`
}

type RateLimit struct {
	MaxAttempts int    `json:"maxAttempts" yaml:"maxAttempts"`
	Window      string `json:"window" yaml:"window"`
	Lockout     string `json:"lockout" yaml:"lockout"`
}

func (cfg RateLimit) Attempts() int {
	if cfg.MaxAttempts <= 0 {
		return 5
	}
	return cfg.MaxAttempts
}

func (cfg RateLimit) WindowDuration() time.Duration {
	return parseDuration(cfg.Window, 15*time.Minute)
}

func (cfg RateLimit) LockoutDuration() time.Duration {
	return parseDuration(cfg.Lockout, 30*time.Minute)
}

type Handoff struct {
	// BaseURL prefixes generated continuation links handed to a second device.
	BaseURL string `json:"baseURL" yaml:"baseURL"`
	TTL     string `json:"ttl" yaml:"ttl"`
}

func (cfg Handoff) Expiry() time.Duration {
	return parseDuration(cfg.TTL, 15*time.Minute)
}

type Batch struct {
	// Profile names the active mapping profile used for new batches.
	Profile string `json:"profile" yaml:"profile"`

	MaxLockAge   string `json:"maxLockAge" yaml:"maxLockAge"`
	OrderLockAge string `json:"orderLockAge" yaml:"orderLockAge"`

	BlockingFactor  int    `json:"blockingFactor" yaml:"blockingFactor"`
	FilenamePattern string `json:"filenamePattern" yaml:"filenamePattern"`
}

func (cfg Batch) Validate() error {
	if cfg.BlockingFactor != 0 && cfg.BlockingFactor != 10 {
		return errors.New("blocking factor must be 10")
	}
	return nil
}

func (cfg Batch) RunnerLockAge() time.Duration {
	return parseDuration(cfg.MaxLockAge, 30*time.Minute)
}

func (cfg Batch) PerOrderLockAge() time.Duration {
	return parseDuration(cfg.OrderLockAge, 10*time.Minute)
}

type Audit struct {
	Trail  *AuditTrail `json:"trail" yaml:"trail"`
	Stream *Stream     `json:"stream" yaml:"stream"`
}

type AuditTrail struct {
	// BucketURI is a gocloud.dev/blob URI, e.g. file:///var/lib/settler/audit
	BucketURI string `json:"bucketURI" yaml:"bucketURI"`

	GPG *GPG `json:"gpg" yaml:"gpg"`
}

type GPG struct {
	KeyFile string `json:"keyFile" yaml:"keyFile"`
}

type Stream struct {
	InMem *InMemStream `json:"inmem" yaml:"inmem"`
	Kafka *KafkaStream `json:"kafka" yaml:"kafka"`
}

type InMemStream struct {
	URL string `json:"url" yaml:"url"`
}

type KafkaStream struct {
	Brokers []string `json:"brokers" yaml:"brokers"`
	Group   string   `json:"group" yaml:"group"`
	Topic   string   `json:"topic" yaml:"topic"`
}

type Notifications struct {
	Email     *Email     `json:"email" yaml:"email"`
	PagerDuty *PagerDuty `json:"pagerduty" yaml:"pagerduty"`
	Slack     *Slack     `json:"slack" yaml:"slack"`
}

type Email struct {
	From string   `json:"from" yaml:"from"`
	To   []string `json:"to" yaml:"to"`

	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`

	CompanyName string `json:"companyName" yaml:"companyName"`
}

type PagerDuty struct {
	ApiKey     string `json:"apiKey" yaml:"apiKey"`
	RoutingKey string `json:"routingKey" yaml:"routingKey"`
}

type Slack struct {
	WebhookURL string `json:"webhookURL" yaml:"webhookURL"`
}

func parseDuration(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	if dur, err := time.ParseDuration(v); err == nil && dur > 0 {
		return dur
	}
	return def
}
