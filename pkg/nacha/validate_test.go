// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package nacha

import (
	"strings"
	"testing"
)

func TestValidate__builtFile(t *testing.T) {
	file, _ := buildFile(t, "10.00", "25.50", "5.00")

	if issues := Validate(file, 94); len(issues) != 0 {
		t.Errorf("unexpected issues: %v", issues)
	}
}

func TestValidate__findsProblems(t *testing.T) {
	if issues := Validate(nil, 94); len(issues) == 0 {
		t.Error("empty file should be flagged")
	}

	file, _ := buildFile(t, "10.00")
	lines := splitLines(file)

	// short record
	broken := strings.Join(append([]string{lines[0][:90]}, lines[1:]...), "\n")
	if issues := Validate([]byte(broken), 94); len(issues) == 0 {
		t.Error("short record should be flagged")
	}

	// drop the file header
	if issues := Validate([]byte(strings.Join(lines[1:], "\n")), 94); len(issues) == 0 {
		t.Error("missing header should be flagged")
	}

	// drop the filler, leaving a partial block
	if issues := Validate([]byte(strings.Join(lines[:5], "\n")), 94); len(issues) == 0 {
		t.Error("partial block should be flagged")
	}
}
