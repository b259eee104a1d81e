package cryptoutils

import (
	"fmt"

	"golang.org/x/crypto/argon2"
)

// KDFParams fixes the Argon2id cost and output sizes. One parameter set is
// used per configuration; vault headers that disagree with it are rejected.
type KDFParams struct {
	Time      uint32 `mapstructure:"time"`
	MemoryKiB uint32 `mapstructure:"memory_kib"`
	Threads   uint8  `mapstructure:"threads"`
	KeyLen    uint32 `mapstructure:"key_len"`
	SaltLen   int    `mapstructure:"salt_len"`
}

// DefaultKDFParams matches the Argon2id profile used for disk keys:
// time=1, memory=64MiB, threads=4, keyLen=32.
var DefaultKDFParams = KDFParams{
	Time:      1,
	MemoryKiB: 64 * 1024,
	Threads:   4,
	KeyLen:    32,
	SaltLen:   32,
}

// TestKDFParams is a cheap profile for tests only.
var TestKDFParams = KDFParams{
	Time:      1,
	MemoryKiB: 64,
	Threads:   1,
	KeyLen:    32,
	SaltLen:   16,
}

func (p KDFParams) Validate() error {
	if p.Time == 0 {
		return fmt.Errorf("%w: time must be positive", ErrInvalidKDFParams)
	}
	if p.Threads == 0 {
		return fmt.Errorf("%w: threads must be positive", ErrInvalidKDFParams)
	}
	if p.MemoryKiB < 8*uint32(p.Threads) {
		return fmt.Errorf("%w: memory must be at least %d KiB", ErrInvalidKDFParams, 8*uint32(p.Threads))
	}
	switch p.KeyLen {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%w: key length %d is not an AES key size", ErrInvalidKDFParams, p.KeyLen)
	}
	if p.SaltLen < 16 || p.SaltLen > 255 {
		return fmt.Errorf("%w: salt length %d out of range [16,255]", ErrInvalidKDFParams, p.SaltLen)
	}
	return nil
}

// DeriveKey runs Argon2id over material and salt.
func DeriveKey(material Secret, salt EncryptionSalt, params KDFParams) (Secret, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(salt.Secret) != params.SaltLen {
		return nil, fmt.Errorf("%w: salt is %d bytes, expected %d", ErrInvalidKDFParams, len(salt.Secret), params.SaltLen)
	}
	key := argon2.IDKey(material, salt.Reveal(), params.Time, params.MemoryKiB, params.Threads, params.KeyLen)
	return Secret(key), nil
}

// CredentialMaterial joins pin and password into the KDF input
// (pin || 0x00 || password). The result must be zeroed by the caller.
func CredentialMaterial(pin EncryptionPin, password PlainPassword) Secret {
	material := make([]byte, 0, pin.Len()+1+password.Len())
	material = append(material, pin.Reveal()...)
	material = append(material, 0)
	material = append(material, password.Reveal()...)
	return Secret(material)
}
