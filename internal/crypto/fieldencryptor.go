// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

const keySize = 32 // 256 bits

// FieldEncryptor provides authenticated encryption for sensitive field values
// crossing the trust boundary to the remote store. Output blobs are
// self-contained: nonce (12 bytes) ‖ ciphertext ‖ tag, so decryption needs
// nothing beyond the key.
//
// The key is read-only after construction; a FieldEncryptor may be shared
// across goroutines without coordination.
type FieldEncryptor struct {
	aead cipher.AEAD
}

// NewFieldEncryptor loads the symmetric key from ks, generating and
// persisting a fresh 256-bit key first if none exists yet. The key is
// persisted before the constructor returns so a crash between generate and
// first use cannot orphan ciphertexts.
//
// Key I/O failures surface as ErrKeychainReadFailed / ErrKeychainWriteFailed
// and should abort sync startup; they are never grounds to continue without
// encryption.
func NewFieldEncryptor(ks Keystore) (*FieldEncryptor, error) {
	key, err := ks.Load()
	if err != nil {
		return nil, err
	}

	if key == nil {
		key = make([]byte, keySize)
		if _, err = io.ReadFull(rand.Reader, key); err != nil {
			return nil, fmt.Errorf("%w: generate key: %v", ErrKeychainWriteFailed, err)
		}
		if err = ks.Save(key); err != nil {
			return nil, err
		}
	}

	return newWithKey(key)
}

// NewFieldEncryptorFromPassphrase derives the key from a user passphrase with
// Argon2id (OWASP 2024 parameters, matching the key-derivation settings used
// elsewhere in the codebase) and persists it to ks. Used when importing the
// key onto a new device from a recovery passphrase instead of the synced
// keystore.
func NewFieldEncryptorFromPassphrase(ks Keystore, passphrase string, salt []byte) (*FieldEncryptor, error) {
	key := argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, keySize)
	if err := ks.Save(key); err != nil {
		return nil, err
	}
	return newWithKey(key)
}

func newWithKey(key []byte) (*FieldEncryptor, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("%w: key length %d, want %d", ErrKeychainReadFailed, len(key), keySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealingFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealingFailed, err)
	}

	return &FieldEncryptor{aead: gcm}, nil
}

// Encrypt seals UTF-8 text. The blob embeds everything needed to decrypt
// given the key.
func (f *FieldEncryptor) Encrypt(plaintext string) ([]byte, error) {
	return f.EncryptData([]byte(plaintext))
}

// Decrypt opens a blob produced by Encrypt. Returns ErrDecodingFailed when
// the recovered bytes are not valid UTF-8; an authentication failure from the
// AEAD (tampered or corrupted data) propagates as its own error.
func (f *FieldEncryptor) Decrypt(ciphertext []byte) (string, error) {
	plain, err := f.DecryptData(ciphertext)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plain) {
		return "", fmt.Errorf("%w: plaintext is not valid UTF-8", ErrDecodingFailed)
	}
	return string(plain), nil
}

// EncryptData is the binary-safe analogue of Encrypt, used for payloads such
// as photo blobs destined for sync.
func (f *FieldEncryptor) EncryptData(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, f.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: generate nonce: %v", ErrSealingFailed, err)
	}

	// Prepend the nonce so DecryptData can split it out.
	ciphertext := f.aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, ciphertext...), nil
}

// DecryptData opens a blob produced by EncryptData.
func (f *FieldEncryptor) DecryptData(blob []byte) ([]byte, error) {
	nonceSize := f.aead.NonceSize()
	if len(blob) < nonceSize {
		return nil, fmt.Errorf("%w: blob too short", ErrDecodingFailed)
	}

	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]

	// An error here means the blob was tampered with or corrupted in
	// transit; the tag did not verify.
	plain, err := f.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed payload: %w", err)
	}
	return plain, nil
}
