package crypto

import "errors"

// Error taxonomy for the field-encryption subsystem. Key I/O failures are
// fatal to sync startup (no sync without a key) but must never crash the host
// app; sealing/decoding failures are surfaced to the caller and never
// silently swallowed.
var (
	// ErrSealingFailed indicates the AEAD primitive could not produce a
	// combined nonce-ciphertext-tag representation.
	ErrSealingFailed = errors.New("sealing failed")
	// ErrDecodingFailed indicates decrypted bytes were not valid UTF-8 text,
	// or the blob was too short to contain a nonce.
	ErrDecodingFailed = errors.New("decoding failed")
	// ErrKeychainReadFailed indicates the device keystore could not be read.
	ErrKeychainReadFailed = errors.New("keychain read failed")
	// ErrKeychainWriteFailed indicates the generated key could not be
	// persisted to the device keystore.
	ErrKeychainWriteFailed = errors.New("keychain write failed")
)
