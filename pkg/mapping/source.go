// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package mapping

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type SourceType string

const (
	// SourceFixed uses a literal value from the profile.
	SourceFixed SourceType = "fixed"
	// SourceSetting looks up a named profile setting.
	SourceSetting SourceType = "setting"
	// SourceOrder derives the value from the order under encode.
	SourceOrder SourceType = "order"
	// SourceComputed evaluates a named computation against the call context.
	SourceComputed SourceType = "computed"
)

// Source is a tagged union: exactly the field matching Type is read.
// Keeping sources as data (instead of callbacks) keeps profiles
// serializable and auditable.
type Source struct {
	Type SourceType `json:"type" yaml:"type"`

	Value     string `json:"value,omitempty" yaml:"value,omitempty"`
	Setting   string `json:"setting,omitempty" yaml:"setting,omitempty"`
	Attribute string `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Compute   string `json:"compute,omitempty" yaml:"compute,omitempty"`
}

// OrderData carries the order values a profile may reference. Bank numbers
// are plaintext only for the duration of the encode.
type OrderData struct {
	ID          string
	Total       decimal.Decimal
	BillingName string

	RoutingNumber string
	AccountNumber string
	AccountType   string // checking | savings
	HolderName    string
}

// Context carries per-call values for computed sources.
type Context struct {
	Now time.Time

	// Values are free-form overrides, e.g. a batch number.
	Values map[string]string
}

func (ctx *Context) now() (time.Time, error) {
	if ctx == nil || ctx.Now.IsZero() {
		return time.Time{}, fmt.Errorf("missing required context time")
	}
	return ctx.Now, nil
}

func evaluate(p *Profile, src Source, order *OrderData, ctx *Context) (string, error) {
	switch src.Type {
	case SourceFixed:
		return src.Value, nil

	case SourceSetting:
		return p.Setting(src.Setting)

	case SourceOrder:
		if order == nil {
			return "", fmt.Errorf("order attribute %q requested without an order", src.Attribute)
		}
		return orderAttribute(src.Attribute, order)

	case SourceComputed:
		return compute(src.Compute, ctx)
	}
	return "", fmt.Errorf("unknown source type %q", src.Type)
}

func orderAttribute(attribute string, order *OrderData) (string, error) {
	switch attribute {
	case "id":
		return order.ID, nil
	case "total":
		return order.Total.String(), nil
	case "billingName":
		return order.BillingName, nil
	case "routingNumber":
		return order.RoutingNumber, nil
	case "accountNumber":
		return order.AccountNumber, nil
	case "accountType":
		return order.AccountType, nil
	case "holderName":
		return order.HolderName, nil
	case "debitTransactionCode":
		// 27 debits a checking account, 37 a savings account
		switch strings.ToLower(order.AccountType) {
		case "checking", "":
			return "27", nil
		case "savings":
			return "37", nil
		}
		return "", fmt.Errorf("unknown account type %q", order.AccountType)
	}
	return "", fmt.Errorf("unknown order attribute %q", attribute)
}

func compute(name string, ctx *Context) (string, error) {
	switch name {
	case "creationDate":
		now, err := ctx.now()
		if err != nil {
			return "", err
		}
		return now.Format("060102"), nil
	case "creationTime":
		now, err := ctx.now()
		if err != nil {
			return "", err
		}
		return now.Format("1504"), nil
	case "blank":
		return "", nil
	}
	if ctx != nil && ctx.Values != nil {
		if v, exists := ctx.Values[name]; exists {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown computed value %q", name)
}
