// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package nacha

import (
	"fmt"
)

// TraceNumber builds a 15 character trace number: the first eight digits of
// the originating routing number followed by a seven digit sequence. The
// sequence restarts at 1 with every file.
func TraceNumber(odfiRouting string, sequence int) string {
	prefix := odfiRouting
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("%8s%07d", prefix, sequence%1e7)
}
