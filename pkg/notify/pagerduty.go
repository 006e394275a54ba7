// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"fmt"

	"github.com/ledgerline/settler/pkg/config"

	"github.com/PagerDuty/go-pagerduty"
)

type PagerDuty struct {
	cfg    *config.PagerDuty
	client *pagerduty.Client
}

func NewPagerDuty(cfg *config.PagerDuty) (*PagerDuty, error) {
	if cfg == nil || cfg.ApiKey == "" || cfg.RoutingKey == "" {
		return nil, fmt.Errorf("pagerduty: incomplete config")
	}
	return &PagerDuty{
		cfg:    cfg,
		client: pagerduty.NewClient(cfg.ApiKey),
	}, nil
}

func (pd *PagerDuty) Info(msg *Message) error {
	return pd.event("info", msg)
}

func (pd *PagerDuty) Critical(msg *Message) error {
	return pd.event("critical", msg)
}

func (pd *PagerDuty) event(severity string, msg *Message) error {
	_, err := pagerduty.ManageEvent(pagerduty.V2Event{
		RoutingKey: pd.cfg.RoutingKey,
		Action:     "trigger",
		Payload: &pagerduty.V2Payload{
			Summary:  summary(msg),
			Source:   msg.Hostname,
			Severity: severity,
		},
	})
	return err
}

func summary(msg *Message) string {
	if msg.Filename != "" {
		return fmt.Sprintf("%s: %s", msg.Event, msg.Filename)
	}
	return msg.Event
}
