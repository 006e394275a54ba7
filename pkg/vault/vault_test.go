// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package vault

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/ledgerline/settler/pkg/config"

	"github.com/go-kit/kit/log"
)

func testVault(t *testing.T) (*Vault, func()) {
	t.Helper()

	dir, err := ioutil.TempDir("", "settler-vault")
	if err != nil {
		t.Fatal(err)
	}

	v, err := New(log.NewNopLogger(), config.Storage{BaseDirectory: dir})
	if err != nil {
		os.RemoveAll(dir)
		t.Fatal(err)
	}
	return v, func() { os.RemoveAll(dir) }
}

func TestVault__WriteRead(t *testing.T) {
	v, cleanup := testVault(t)
	defer cleanup()

	path, err := v.Write("outbound", "20200601-101000.ach", []byte("101 ..."))
	if err != nil {
		t.Fatal(err)
	}
	if !v.Exists("outbound", "20200601-101000.ach") {
		t.Error("expected file")
	}
	bs, err := v.Read("outbound", "20200601-101000.ach")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(bs, []byte("101 ...")) {
		t.Errorf("got %q", string(bs))
	}

	// directory is provisioned with blockers
	dir := filepath.Dir(path)
	if _, err := os.Stat(filepath.Join(dir, ".htaccess")); err != nil {
		t.Errorf("missing .htaccess: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "index.html")); err != nil {
		t.Errorf("missing index.html: %v", err)
	}
	if info, _ := os.Stat(dir); info.Mode().Perm() != 0700 {
		t.Errorf("dir mode %v", info.Mode().Perm())
	}
}

func TestVault__List(t *testing.T) {
	v, cleanup := testVault(t)
	defer cleanup()

	v.Write("outbound", "a.ach", []byte("1"))
	v.Write("outbound", "b.ach", []byte("2"))
	v.Write("outbound", "manifest.json", []byte("{}"))

	names, err := v.List("outbound", "*.ach")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 {
		t.Errorf("got %v", names)
	}
	// blockers never show up
	all, _ := v.List("outbound", "")
	for i := range all {
		if all[i] == "index.html" || all[i] == ".htaccess" {
			t.Errorf("blocker listed: %v", all)
		}
	}
	if names, _ := v.List("missing-category", "*"); len(names) != 0 {
		t.Errorf("got %v", names)
	}
}

func TestVault__Delete(t *testing.T) {
	v, cleanup := testVault(t)
	defer cleanup()

	where, err := v.Write("outbound", "secret.ach", []byte("6 sensitive record"))
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Delete("outbound", "secret.ach", true); err != nil {
		t.Fatal(err)
	}
	if v.Exists("outbound", "secret.ach") {
		t.Error("expected deletion")
	}
	if _, err := os.Stat(where); !os.IsNotExist(err) {
		t.Errorf("err=%v", err)
	}
}

func TestVault__CleanFilename(t *testing.T) {
	valid := []string{"20200601.ach", "batch-manifest.json", "a"}
	for i := range valid {
		if _, err := CleanFilename(valid[i]); err != nil {
			t.Errorf("%q: %v", valid[i], err)
		}
	}

	invalid := []string{
		"",
		"../../etc/passwd",
		"dir/file.ach",
		`dir\file.ach`,
		".hidden",
		"run.sh",
		"page.php",
		"null\x00byte.ach",
	}
	for i := range invalid {
		if _, err := CleanFilename(invalid[i]); err == nil {
			t.Errorf("%q should be rejected", invalid[i])
		}
	}
}
