// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package notify

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/ledgerline/settler/pkg/config"

	"github.com/ory/mail/v3"
)

var emailTemplate = template.Must(template.New("email").Parse(`A settlement event occurred on {{ .Hostname }}.

Event: {{ .Event }}
{{- if .Filename }}
File: {{ .Filename }}{{ end }}
{{- if .BatchID }}
Batch: {{ .BatchID }}{{ end }}
{{- if .EntryCount }}
Entries: {{ .EntryCount }} totaling {{ .DebitTotal }} cents of debits{{ end }}
{{- if .Body }}

{{ .Body }}{{ end }}

- {{ .CompanyName }}
`))

type emailTemplateData struct {
	*Message
	CompanyName string
}

type Email struct {
	cfg    *config.Email
	dialer *mail.Dialer
}

func NewEmail(cfg *config.Email) (*Email, error) {
	if cfg == nil || cfg.Host == "" || cfg.From == "" || len(cfg.To) == 0 {
		return nil, fmt.Errorf("email: incomplete config")
	}
	return &Email{
		cfg:    cfg,
		dialer: mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}, nil
}

func (mailer *Email) Info(msg *Message) error {
	return mailer.send("Settlement update", msg)
}

func (mailer *Email) Critical(msg *Message) error {
	return mailer.send("Settlement PROBLEM", msg)
}

func (mailer *Email) send(subject string, msg *Message) error {
	body, err := marshalEmail(mailer.cfg, msg)
	if err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetHeader("From", mailer.cfg.From)
	m.SetHeader("To", mailer.cfg.To...)
	m.SetHeader("Subject", fmt.Sprintf("%s: %s", subject, msg.Event))
	m.SetBody("text/plain", body)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return mailer.dialer.DialAndSend(ctx, m)
}

func marshalEmail(cfg *config.Email, msg *Message) (string, error) {
	var buf bytes.Buffer
	err := emailTemplate.Execute(&buf, emailTemplateData{
		Message:     msg,
		CompanyName: cfg.CompanyName,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
