// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package vault

import (
	"fmt"
	"path/filepath"
	"strings"
)

// disallowedExtensions would let a stored file execute if the storage
// directory ever ended up under a web root.
var disallowedExtensions = map[string]bool{
	".bat": true,
	".cgi": true,
	".com": true,
	".exe": true,
	".js":  true,
	".php": true,
	".pl":  true,
	".py":  true,
	".sh":  true,
}

// CleanFilename verifies a filename is safe to write under a managed
// directory. The name comes back unchanged when it's acceptable.
func CleanFilename(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty filename")
	}
	if strings.ContainsRune(name, 0x00) {
		return "", fmt.Errorf("filename contains NUL byte")
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("filename %q attempts traversal", name)
	}
	if strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("hidden filename %q rejected", name)
	}
	if ext := strings.ToLower(filepath.Ext(name)); disallowedExtensions[ext] {
		return "", fmt.Errorf("filename %q has executable extension", name)
	}
	return name, nil
}
