// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package nacha

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/moov-io/ach"
)

// Validate runs the advisory checks over a finished file. Findings don't
// block an export, they're surfaced so an operator can review the file
// before the processor rejects it.
func Validate(data []byte, recordWidth int) []string {
	var issues []string

	lines := splitLines(data)
	if len(lines) == 0 {
		return []string{"file is empty"}
	}

	for i := range lines {
		if n := utf8.RuneCountInString(lines[i]); n != recordWidth {
			issues = append(issues, fmt.Sprintf("line %d is %d characters, expected %d", i+1, n, recordWidth))
		}
	}

	filler := strings.Repeat("9", recordWidth)
	if !strings.HasPrefix(lines[0], "1") {
		issues = append(issues, "first record is not a file header")
	}
	var last string
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i] != filler {
			last = lines[i]
			break
		}
	}
	if !strings.HasPrefix(last, "9") {
		issues = append(issues, "last record is not a file control")
	}
	if len(lines)%BlockingFactor != 0 {
		issues = append(issues, fmt.Sprintf("%d records is not a whole number of blocks", len(lines)))
	}

	// independent re-parse catches anything the structural checks miss
	if _, err := ach.NewReader(bytes.NewReader(data)).Read(); err != nil {
		issues = append(issues, fmt.Sprintf("reparse: %v", err))
	}

	return issues
}

func splitLines(data []byte) []string {
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
