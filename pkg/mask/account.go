// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package mask

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// AccountNumber returns a display-safe reference for an account number
// keeping only the last four digits, e.g. '******1234'.
func AccountNumber(num string) string {
	runes := []rune(num)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return fmt.Sprintf("%s%s", strings.Repeat("*", len(runes)-4), string(runes[len(runes)-4:]))
}

// Last4 returns only the trailing four digits of an account number.
func Last4(num string) string {
	if runes := []rune(num); len(runes) > 4 {
		return string(runes[len(runes)-4:])
	}
	return num
}

// HashAccountNumber returns a hex encoded sha256 hash of an account number.
// Used to compare account numbers without retaining their plaintext.
func HashAccountNumber(num string) (string, error) {
	ss := sha256.New()
	n, err := ss.Write([]byte(num))
	if n == 0 || err != nil {
		return "", fmt.Errorf("sha256: n=%d: %v", n, err)
	}
	return hex.EncodeToString(ss.Sum(nil)), nil
}

// Password masks all but the first and last characters of a secret value.
func Password(s string) string {
	runes := []rune(s)
	if len(runes) < 3 {
		return "**" // too short, we can't mask anything
	}
	return fmt.Sprintf("%c%s%c", runes[0], strings.Repeat("*", len(runes)-2), runes[len(runes)-1])
}
