package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// NonceSize is the AES-GCM nonce length used throughout the kernel.
const NonceSize = 12

// Seal encrypts plaintext under key with a fresh random nonce and binds aad.
func Seal(key Secret, plaintext, aad []byte) (nonce, ciphertext []byte, err error) {
	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return nonce, aesGCM.Seal(nil, nonce, plaintext, aad), nil
}

// Open authenticates and decrypts; any tag mismatch is ErrDecryption.
func Open(key Secret, nonce, ciphertext, aad []byte) ([]byte, error) {
	aesGCM, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: nonce is %d bytes", ErrDecryption, len(nonce))
	}

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

// SealWithNonce returns nonce || ciphertext.
func SealWithNonce(key Secret, plaintext, aad []byte) ([]byte, error) {
	nonce, ciphertext, err := Seal(key, plaintext, aad)
	if err != nil {
		return nil, err
	}
	return append(nonce, ciphertext...), nil
}

// OpenWithNonce reverses SealWithNonce.
func OpenWithNonce(key Secret, sealed, aad []byte) ([]byte, error) {
	if len(sealed) < NonceSize {
		return nil, fmt.Errorf("%w: sealed data too short", ErrDecryption)
	}
	return Open(key, sealed[:NonceSize], sealed[NonceSize:], aad)
}

func newGCM(key Secret) (cipher.AEAD, error) {
	if len(key) == 0 {
		return nil, errors.New("empty encryption key")
	}
	aesBlock, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(aesBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}
