// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Keystore abstracts the platform's secure, account-bound key storage. The
// backing store is expected to release the key only after the device has been
// unlocked at least once since boot, and to replicate it across the user's
// own devices through the platform's end-to-end protected account store.
//
// Load returns (nil, nil) when no key has been persisted yet.
type Keystore interface {
	Load() ([]byte, error)
	Save(key []byte) error
}

// fileKeystore is the file-backed Keystore used on platforms without a native
// keychain and in tests. Keys are stored base64-encoded in a 0600 file scoped
// by service and account identifiers, mirroring the keychain addressing
// scheme.
type fileKeystore struct {
	path string
}

// NewFileKeystore constructs a Keystore rooted at dir for the given service
// and account identifiers.
func NewFileKeystore(dir, service, account string) Keystore {
	name := fmt.Sprintf("%s.%s.key", sanitize(service), sanitize(account))
	return &fileKeystore{path: filepath.Join(dir, name)}
}

func (f *fileKeystore) Load() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrKeychainReadFailed, err)
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt key file: %v", ErrKeychainReadFailed, err)
	}
	return key, nil
}

func (f *fileKeystore) Save(key []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrKeychainWriteFailed, err)
	}

	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(f.path, []byte(encoded), 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrKeychainWriteFailed, err)
	}
	return nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
