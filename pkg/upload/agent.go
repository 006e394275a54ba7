// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package upload delivers generated settlement files to the originating
// institution over the configured transfer channel. Agents connect on
// demand and reconnect transparently when a session drops.
package upload

import (
	"fmt"
	"io"

	"github.com/ledgerline/settler/pkg/config"

	"github.com/go-kit/kit/log"
)

// File is one outbound settlement file.
type File struct {
	Filename string
	Contents io.ReadCloser
}

func (f File) Close() error {
	if f.Contents != nil {
		return f.Contents.Close()
	}
	return nil
}

// Agent is a connection to the institution's drop location.
type Agent interface {
	UploadFile(f File) error
	Delete(path string) error

	OutboundPath() string

	Ping() error
	Close() error
}

// New resolves the configured transfer channel. Exactly one of the FTP or
// SFTP sections must be present.
func New(logger log.Logger, cfg config.ODFI) (Agent, error) {
	switch {
	case cfg.FTP != nil && cfg.SFTP != nil:
		return nil, fmt.Errorf("upload: both ftp and sftp configured")
	case cfg.FTP != nil:
		return newFTPTransferAgent(logger, cfg)
	case cfg.SFTP != nil:
		return newSFTPTransferAgent(logger, cfg)
	}
	return nil, fmt.Errorf("upload: no transfer channel configured")
}
