package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// GuardianPubkey is a recovery guardian's P-256 public key in PEM format.
// Shares handed to a guardian are encrypted to this key.
type GuardianPubkey []byte

// NewGuardianPubkey creates a public key object from PEM-encoded data with validation.
func NewGuardianPubkey(data []byte) (GuardianPubkey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "PUBLIC KEY" {
		return GuardianPubkey{}, errors.New("invalid public key: not in PEM format or not a public key")
	}

	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return GuardianPubkey{}, fmt.Errorf("invalid public key structure: %w", err)
	}
	if _, ok := key.(*ecdsa.PublicKey); !ok {
		return GuardianPubkey{}, errors.New("invalid public key: not an ECDSA key")
	}

	return GuardianPubkey(data), nil
}

// Validate checks if the public key is properly formed.
func (pub GuardianPubkey) Validate() error {
	_, err := NewGuardianPubkey(pub)
	return err
}

// ECDSA returns the parsed public key.
func (pub GuardianPubkey) ECDSA() (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(pub)
	if block == nil {
		return nil, errors.New("failed to decode public key PEM")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	ecKey, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("not an ECDSA public key")
	}
	return ecKey, nil
}

// GuardianPrivkey is a guardian's EC private key in PEM format. It never
// reaches the kernel in normal operation; guardians decrypt offline.
type GuardianPrivkey []byte

func (priv GuardianPrivkey) String() string { return redacted }

// ECDSA returns the parsed private key.
func (priv GuardianPrivkey) ECDSA() (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(priv)
	if block == nil {
		return nil, errors.New("failed to decode private key PEM")
	}

	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("not an ECDSA private key")
	}
	return ecKey, nil
}

// RandomGuardianKeypair generates a fresh P-256 keypair.
func RandomGuardianKeypair() (GuardianPubkey, GuardianPrivkey, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	privateKeyBytes, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return nil, nil, err
	}

	privateKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "EC PRIVATE KEY",
		Bytes: privateKeyBytes,
	})

	pubkeyBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, nil, err
	}

	pubkeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubkeyBytes,
	})

	return GuardianPubkey(pubkeyPEM), GuardianPrivkey(privateKeyPEM), nil
}
