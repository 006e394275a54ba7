// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package audittrail retains a copy of every generated settlement file for
// records retention. This is often a requirement of originator agreements.
//
// File retention after upload is not part of this storage.
package audittrail

import (
	"errors"

	"github.com/ledgerline/settler/pkg/config"
)

// Storage saves (and optionally encrypts) generated files to the
// configured bucket.
type Storage interface {
	SaveFile(filename string, data []byte) error

	Close() error
}

func NewStorage(cfg *config.AuditTrail) (Storage, error) {
	if cfg == nil {
		return &MockStorage{}, nil
	}
	if cfg.BucketURI != "" {
		return newBlobStorage(cfg)
	}
	return nil, errors.New("unknown storage config")
}
