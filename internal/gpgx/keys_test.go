// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package gpgx

import (
	"bytes"
	"path/filepath"
	"testing"
)

var (
	password = []byte("")
)

func TestGPG__roundTrip(t *testing.T) {
	pubKey, err := ReadArmoredKeyFile(filepath.Join("testdata", "ledgerline.pub"))
	if err != nil {
		t.Fatal(err)
	}

	msg, err := Encrypt([]byte("hello, world"), pubKey)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(msg, []byte("hello, world")) {
		t.Error("message wasn't encrypted")
	}

	privKey, err := ReadPrivateKeyFile(filepath.Join("testdata", "ledgerline.key"), password)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Decrypt(msg, privKey)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, []byte("hello, world")) {
		t.Errorf("got %q", string(out))
	}
}

func TestGPG__missingFile(t *testing.T) {
	if _, err := ReadArmoredKeyFile(filepath.Join("testdata", "missing.pub")); err == nil {
		t.Error("expected error")
	}
}

func TestGPG__decryptRequiresPrivateKey(t *testing.T) {
	pubKey, err := ReadArmoredKeyFile(filepath.Join("testdata", "ledgerline.pub"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decrypt([]byte("junk"), pubKey); err == nil {
		t.Error("expected error")
	}
}
