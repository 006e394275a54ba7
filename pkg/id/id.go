// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package id

import "strings"

type Order string

func (o Order) String() string {
	return string(o)
}

type Customer string

func (c Customer) String() string {
	return string(c)
}

type Batch string

func (b Batch) String() string {
	return string(b)
}

func (b Batch) Equal(s string) bool {
	return strings.EqualFold(string(b), s)
}

type Token string

func (t Token) String() string {
	return string(t)
}
