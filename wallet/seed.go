package wallet

import (
	"fmt"
	"strings"

	"github.com/ruteri/wallet-kernel/cryptoutils"
	"github.com/tyler-smith/go-bip39"
)

// MnemonicBits is the entropy size of generated mnemonics (24 words).
const MnemonicBits = 256

type seedKind int

const (
	seedRandom seedKind = iota
	seedMnemonic
	seedEntropy
)

// SeedSource says where a new wallet's BIP-39 entropy comes from.
type SeedSource struct {
	kind     seedKind
	bits     int
	mnemonic cryptoutils.Secret
	entropy  cryptoutils.Secret
}

// RandomSeed generates fresh entropy of the given size (128 to 256 bits in
// steps of 32).
func RandomSeed(bits int) SeedSource {
	return SeedSource{kind: seedRandom, bits: bits}
}

// MnemonicSeed imports an existing mnemonic. Extra whitespace and letter case
// are ignored.
func MnemonicSeed(mnemonic cryptoutils.Secret) SeedSource {
	return SeedSource{kind: seedMnemonic, mnemonic: mnemonic}
}

// EntropySeed rebuilds a wallet from raw entropy, such as the secret
// reconstructed from shares.
func EntropySeed(entropy cryptoutils.Secret) SeedSource {
	return SeedSource{kind: seedEntropy, entropy: entropy}
}

func (s SeedSource) resolveEntropy() (cryptoutils.Secret, error) {
	switch s.kind {
	case seedRandom:
		entropy, err := bip39.NewEntropy(s.bits)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
		}
		return cryptoutils.Secret(entropy), nil
	case seedMnemonic:
		normalized := strings.Join(strings.Fields(strings.ToLower(string(s.mnemonic.Reveal()))), " ")
		entropy, err := bip39.EntropyFromMnemonic(normalized)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
		}
		return cryptoutils.Secret(entropy), nil
	case seedEntropy:
		if err := validEntropyLength(s.entropy.Len()); err != nil {
			return nil, err
		}
		return s.entropy.Clone(), nil
	default:
		return nil, fmt.Errorf("%w: unknown seed source", ErrInvalidMnemonic)
	}
}

func validEntropyLength(n int) error {
	bits := n * 8
	if bits < 128 || bits > 256 || bits%32 != 0 {
		return fmt.Errorf("%w: entropy of %d bits", ErrInvalidMnemonic, bits)
	}
	return nil
}

// ValidateMnemonic reports whether mnemonic is a well-formed BIP-39 phrase.
func ValidateMnemonic(mnemonic cryptoutils.Secret) error {
	entropy, err := MnemonicSeed(mnemonic).resolveEntropy()
	if err != nil {
		return err
	}
	entropy.Zero()
	return nil
}
