// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package batch

import (
	"strings"
	"text/template"
	"time"
)

// defaultFilenamePattern names generated files with their creation time so
// repeated runs on the same day never collide.
const defaultFilenamePattern = `settlement-{{ date "20060102-150405" }}.ach`

type filenameData struct {
	BatchID       string
	RoutingNumber string
}

// renderFilename evaluates the configured filename template. The "date"
// function formats the run's timestamp with a Go reference layout.
func renderFilename(pattern string, when time.Time, data filenameData) (string, error) {
	if pattern == "" {
		pattern = defaultFilenamePattern
	}
	tmpl, err := template.New("filename").Funcs(template.FuncMap{
		"date": func(layout string) string {
			return when.Format(layout)
		},
	}).Parse(pattern)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", err
	}
	return out.String(), nil
}
