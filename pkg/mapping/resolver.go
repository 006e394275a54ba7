// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package mapping

import (
	"fmt"
)

// Resolve evaluates one record field against a profile: the source is read
// and every formatter in the chain is applied in order.
//
// Any unknown field, source type or formatter is an error. Missing context
// (no order for an order-sourced field, no time for a computed date) is also
// an error rather than a silent default.
func Resolve(p *Profile, record RecordType, fieldName string, order *OrderData, ctx *Context) (string, error) {
	if p == nil {
		return "", fmt.Errorf("nil profile")
	}
	field, err := p.field(record, fieldName)
	if err != nil {
		return "", err
	}

	value, err := evaluate(p, field.Source, order, ctx)
	if err != nil {
		return "", fmt.Errorf("%s.%s: %v", record, fieldName, err)
	}
	for i := range field.Formatters {
		value, err = format(field.Formatters[i], value)
		if err != nil {
			return "", fmt.Errorf("%s.%s formatter #%d: %v", record, fieldName, i, err)
		}
	}
	return value, nil
}
