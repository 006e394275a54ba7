// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package upload

import (
	"bytes"
	"io/ioutil"
	"testing"

	"github.com/ledgerline/settler/pkg/config"

	"github.com/go-kit/kit/log"
)

func TestNew__resolution(t *testing.T) {
	logger := log.NewNopLogger()

	if _, err := New(logger, config.ODFI{}); err == nil {
		t.Error("no channel configured should error")
	}
	cfg := config.ODFI{
		FTP:  &config.FTP{Hostname: "localhost:2121"},
		SFTP: &config.SFTP{Hostname: "localhost:22"},
	}
	if _, err := New(logger, cfg); err == nil {
		t.Error("both channels configured should error")
	}
}

func TestMockAgent(t *testing.T) {
	agent := &MockAgent{}

	file := File{
		Filename: "20200603-settlement.ach",
		Contents: ioutil.NopCloser(bytes.NewReader([]byte("101 ..."))),
	}
	if err := agent.UploadFile(file); err != nil {
		t.Fatal(err)
	}
	if agent.UploadedFile == nil || agent.UploadedFile.Filename != "20200603-settlement.ach" {
		t.Errorf("got %#v", agent.UploadedFile)
	}
	bs, _ := ioutil.ReadAll(agent.UploadedFile.Contents)
	if string(bs) != "101 ..." {
		t.Errorf("got %q", string(bs))
	}

	if err := agent.Delete("outbound/20200603-settlement.ach"); err != nil {
		t.Fatal(err)
	}
	if agent.DeletedFile != "outbound/20200603-settlement.ach" {
		t.Errorf("got %q", agent.DeletedFile)
	}
}
