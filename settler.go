// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package settler holds build metadata for the settlement engine.
package settler

// Version is the semantic version of this build.
var Version = "v0.5.0-dev"
