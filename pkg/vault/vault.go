// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package vault stores generated interchange files and manifests where no
// untrusted party can read them. Directories are provisioned lazily with
// restrictive permissions and access blockers, filenames are sanitized, and
// deletes can overwrite contents first.
//
// Overwrite-before-delete is defense in depth for retention cleanup, not a
// substitute for the encryption of sensitive fields.
package vault

import (
	"crypto/rand"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/ledgerline/settler/pkg/config"

	"github.com/go-kit/kit/log"
)

// maxOverwriteBytes bounds secure-delete I/O on unexpectedly large files.
const maxOverwriteBytes = 16 << 20

type Vault struct {
	baseDir string
	logger  log.Logger
}

func New(logger log.Logger, cfg config.Storage) (*Vault, error) {
	if cfg.BaseDirectory == "" {
		return nil, fmt.Errorf("vault: missing base directory")
	}
	dir, err := filepath.Abs(cfg.BaseDirectory)
	if err != nil {
		return nil, fmt.Errorf("vault: %v", err)
	}
	return &Vault{
		baseDir: dir,
		logger:  logger,
	}, nil
}

// Write persists data under the category's directory and returns the path.
func (v *Vault) Write(category, filename string, data []byte) (string, error) {
	name, err := CleanFilename(filename)
	if err != nil {
		return "", err
	}
	dir, err := v.provision(category)
	if err != nil {
		return "", err
	}
	where := filepath.Join(dir, name)
	if err := ioutil.WriteFile(where, data, 0600); err != nil {
		return "", fmt.Errorf("vault: write %s: %v", name, err)
	}
	return where, nil
}

func (v *Vault) Read(category, filename string) ([]byte, error) {
	name, err := CleanFilename(filename)
	if err != nil {
		return nil, err
	}
	return ioutil.ReadFile(filepath.Join(v.baseDir, category, name))
}

func (v *Vault) Exists(category, filename string) bool {
	name, err := CleanFilename(filename)
	if err != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(v.baseDir, category, name))
	return err == nil && !info.IsDir()
}

// List returns filenames in a category matching pattern (filepath.Match
// syntax). Provisioning blocker files are never listed.
func (v *Vault) List(category, pattern string) ([]string, error) {
	infos, err := ioutil.ReadDir(filepath.Join(v.baseDir, category))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for i := range infos {
		name := infos[i].Name()
		if infos[i].IsDir() || name == "index.html" || name[0] == '.' {
			continue
		}
		if pattern != "" {
			if ok, err := filepath.Match(pattern, name); err != nil || !ok {
				continue
			}
		}
		out = append(out, name)
	}
	return out, nil
}

// Delete removes a stored file, optionally overwriting its contents first.
func (v *Vault) Delete(category, filename string, secureOverwrite bool) error {
	name, err := CleanFilename(filename)
	if err != nil {
		return err
	}
	where := filepath.Join(v.baseDir, category, name)
	if secureOverwrite {
		if err := overwrite(where); err != nil {
			return fmt.Errorf("vault: overwrite %s: %v", name, err)
		}
	}
	return os.Remove(where)
}

// provision creates the category directory on first use with permissions and
// blocker files denying any other reader.
func (v *Vault) provision(category string) (string, error) {
	dir := filepath.Join(v.baseDir, category)
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir, nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("vault: mkdir %s: %v", category, err)
	}
	// Block web servers which might be pointed at the storage directory.
	if err := ioutil.WriteFile(filepath.Join(dir, ".htaccess"), []byte("Deny from all\n"), 0600); err != nil {
		return "", err
	}
	if err := ioutil.WriteFile(filepath.Join(dir, "index.html"), nil, 0600); err != nil {
		return "", err
	}
	v.logger.Log("vault", fmt.Sprintf("provisioned category=%s", category))
	return dir, nil
}

// overwrite writes random bytes and then zeros over a file's current
// contents, bounded to avoid unbounded I/O on huge files.
func overwrite(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	size := info.Size()
	if size > maxOverwriteBytes {
		size = maxOverwriteBytes
	}

	fd, err := os.OpenFile(path, os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer fd.Close()

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return err
	}
	if _, err := fd.WriteAt(buf, 0); err != nil {
		return err
	}
	for i := range buf {
		buf[i] = 0x00
	}
	if _, err := fd.WriteAt(buf, 0); err != nil {
		return err
	}
	return fd.Sync()
}
