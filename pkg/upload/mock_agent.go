// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package upload

import (
	"bytes"
	"io/ioutil"
	"sync"
)

type MockAgent struct {
	UploadedFile *File  // non-nil on file upload
	DeletedFile  string // filepath of last deleted file
	mu           sync.RWMutex

	Err error
}

func (a *MockAgent) UploadFile(f File) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.Err != nil {
		f.Close()
		return a.Err
	}

	// read f.Contents before callers close the underlying file descriptor
	bs, _ := ioutil.ReadAll(f.Contents)
	a.UploadedFile = &f
	a.UploadedFile.Contents = ioutil.NopCloser(bytes.NewReader(bs))
	return nil
}

func (a *MockAgent) Delete(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.DeletedFile = path
	return a.Err
}

func (a *MockAgent) OutboundPath() string {
	return "outbound/"
}

func (a *MockAgent) Ping() error {
	return a.Err
}

func (a *MockAgent) Close() error {
	return nil
}
