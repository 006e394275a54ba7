// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package mapping

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/moov-io/base"
	"github.com/shopspring/decimal"
)

// Formatter is one step of a field's formatting chain.
type Formatter struct {
	Name string `json:"name" yaml:"name"`

	// Width and Fill apply to padLeft / padRight.
	Width int    `json:"width,omitempty" yaml:"width,omitempty"`
	Fill  string `json:"fill,omitempty" yaml:"fill,omitempty"`

	// Start and End apply to substr.
	Start int `json:"start,omitempty" yaml:"start,omitempty"`
	End   int `json:"end,omitempty" yaml:"end,omitempty"`
}

func format(f Formatter, value string) (string, error) {
	switch f.Name {
	case "padLeft":
		return pad(value, f.Width, fill(f.Fill, "0"), true)
	case "padRight":
		return pad(value, f.Width, fill(f.Fill, " "), false)
	case "upper":
		return strings.ToUpper(value), nil
	case "digits":
		return digitsOnly(value), nil
	case "substr":
		return substr(value, f.Start, f.End)
	case "cents":
		return cents(value)
	case "checkDigit":
		return withCheckDigit(value)
	case "settlementDay":
		return nextSettlementDay(value)
	}
	return "", fmt.Errorf("unknown formatter %q", f.Name)
}

func fill(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func pad(value string, width int, fill string, left bool) (string, error) {
	if width <= 0 {
		return "", fmt.Errorf("pad: missing width")
	}
	n := utf8.RuneCountInString(value)
	if n > width {
		return "", fmt.Errorf("value %q exceeds width %d", value, width)
	}
	padding := strings.Repeat(fill, width-n)
	if left {
		return padding + value, nil
	}
	return value + padding, nil
}

func digitsOnly(value string) string {
	var sb strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func substr(value string, start, end int) (string, error) {
	if start < 0 || end < start {
		return "", fmt.Errorf("substr: invalid range [%d,%d)", start, end)
	}
	if start >= len(value) {
		return "", nil
	}
	if end > len(value) {
		end = len(value)
	}
	return value[start:end], nil
}

// cents encodes a decimal dollar amount as a zero-padded 10 digit count of
// cents, e.g. '25.50' => '0000002550'. Amounts are unsigned in records.
func cents(value string) (string, error) {
	amt, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("cents: bad amount %q: %v", value, err)
	}
	if amt.IsNegative() {
		return "", fmt.Errorf("cents: negative amount %q", value)
	}
	n := amt.Shift(2)
	if !n.Equal(n.Truncate(0)) {
		return "", fmt.Errorf("cents: sub-cent amount %q", value)
	}
	out := n.Truncate(0).String()
	if len(out) > 10 {
		return "", fmt.Errorf("cents: amount %q exceeds 10 digits", value)
	}
	return strings.Repeat("0", 10-len(out)) + out, nil
}

// CheckDigit computes the checksum digit for an 8 digit routing number
// prefix using the ABA weighted sum (weights 3, 7, 1).
func CheckDigit(routing8 string) (int, error) {
	if len(routing8) != 8 {
		return 0, fmt.Errorf("check digit needs 8 digits, have %q", routing8)
	}
	weights := []int{3, 7, 1, 3, 7, 1, 3, 7}
	sum := 0
	for i, r := range routing8 {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("check digit: non-digit in %q", routing8)
		}
		sum += weights[i] * int(r-'0')
	}
	return (10 - sum%10) % 10, nil
}

// withCheckDigit appends the computed ninth digit to an 8 digit routing
// number. Nine digit input is re-derived from its first 8 digits, which
// makes the formatter idempotent.
func withCheckDigit(value string) (string, error) {
	switch len(value) {
	case 8:
		// fall through to derive
	case 9:
		value = value[:8]
	default:
		return "", fmt.Errorf("check digit: routing number %q has %d digits", value, len(value))
	}
	digit, err := CheckDigit(value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d", value, digit), nil
}

// nextSettlementDay advances a YYMMDD date to the next banking day,
// skipping weekends and federal holidays.
func nextSettlementDay(value string) (string, error) {
	when, err := time.Parse("060102", value)
	if err != nil {
		return "", fmt.Errorf("settlementDay: bad date %q: %v", value, err)
	}
	return base.NewTime(when).AddBankingDay(1).Format("060102"), nil
}
