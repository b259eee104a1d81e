package vault

import "errors"

var (
	// ErrWrongCredentials is returned when the AEAD tag does not verify under
	// the key derived from the supplied pin and password.
	ErrWrongCredentials = errors.New("wrong credentials")

	// ErrCorruption is returned for a truncated file, bad magic, an unknown
	// version or KDF parameters that differ from the configured set.
	ErrCorruption = errors.New("vault file corrupted")

	// ErrIO wraps filesystem failures.
	ErrIO = errors.New("vault I/O failure")

	// ErrCrypto is returned when key derivation or encryption fails for a
	// reason other than wrong credentials.
	ErrCrypto = errors.New("vault cryptographic failure")

	// ErrNotFound is returned when the vault file does not exist.
	ErrNotFound = errors.New("vault not found")
)
