package cryptoutils

import "errors"

var (
	// ErrEmptyCredential is returned when a pin, password or token is empty.
	ErrEmptyCredential = errors.New("credential is empty")

	// ErrInvalidPin is returned when a pin is not made of digits or is too short.
	ErrInvalidPin = errors.New("invalid pin")

	// ErrWeakPassword is returned when a password fails the credential policy.
	ErrWeakPassword = errors.New("password does not satisfy policy")

	// ErrDecryption is returned when AEAD authentication fails: wrong key or
	// tampered ciphertext.
	ErrDecryption = errors.New("decryption failed")

	// ErrInvalidKDFParams is returned for out-of-range key-derivation settings.
	ErrInvalidKDFParams = errors.New("invalid key derivation parameters")

	// ErrInvalidAccessToken is returned when a token cannot be parsed.
	ErrInvalidAccessToken = errors.New("invalid access token")
)
