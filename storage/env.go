// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"os"
	"path/filepath"
	"strings"
)

// defaultStorageDir is used when EnvStoragePath is unset.
const defaultStorageDir = ".clblast"

// ResolveDir returns the directory holding per-device ".kdb" files, honoring
// EnvStoragePath when set and falling back to $HOME/.clblast otherwise.
func ResolveDir() string {
	if dir := os.Getenv(EnvStoragePath); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultStorageDir
	}
	return filepath.Join(home, defaultStorageDir)
}

// FileName builds the ".kdb" file name for a device identity string.
// Characters other than ASCII letters, digits, '-' and '_' are folded
// to "_" so vendor/chip strings containing spaces or slashes stay a single
// path component.
func FileName(deviceIdentity string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, deviceIdentity)
	return clean + ".kdb"
}

// Path joins ResolveDir and FileName, and ensures the directory exists.
func Path(deviceIdentity string) (string, error) {
	dir := ResolveDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName(deviceIdentity)), nil
}
