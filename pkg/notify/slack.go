// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ledgerline/settler/pkg/config"
)

type Slack struct {
	cfg    *config.Slack
	client *http.Client
}

func NewSlack(cfg *config.Slack) (*Slack, error) {
	if cfg == nil || cfg.WebhookURL == "" {
		return nil, fmt.Errorf("slack: incomplete config")
	}
	return &Slack{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

func (s *Slack) Info(msg *Message) error {
	return s.post(":white_check_mark: " + slackMessage(msg))
}

func (s *Slack) Critical(msg *Message) error {
	return s.post(":warning: " + slackMessage(msg))
}

type slackWebhook struct {
	Text string `json:"text"`
}

func (s *Slack) post(text string) error {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(slackWebhook{Text: text}); err != nil {
		return err
	}
	resp, err := s.client.Post(s.cfg.WebhookURL, "application/json", &body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack: webhook returned %s", resp.Status)
	}
	return nil
}

func slackMessage(msg *Message) string {
	out := msg.Event
	if msg.Filename != "" {
		out += fmt.Sprintf(" %s", msg.Filename)
	}
	if msg.EntryCount > 0 {
		out += fmt.Sprintf(" (%d entries, %d cents of debits)", msg.EntryCount, msg.DebitTotal)
	}
	if msg.Body != "" {
		out += "\n" + msg.Body
	}
	return out
}
