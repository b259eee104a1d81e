package wallet

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/wallet-kernel/cryptoutils"
	"github.com/ruteri/wallet-kernel/interfaces"
	"github.com/tyler-smith/go-bip39"
)

const (
	payloadVersion = 1

	purposeBIP44 = 44
	purposeBIP84 = 84
	coinTypeETH  = 60
)

// noCopy makes go vet flag copies of Wallet.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Wallet is the decrypted wallet state. It is only reachable through a
// *Borrow and must not be retained after the borrow is released.
type Wallet struct {
	_ noCopy

	entropy  cryptoutils.Secret
	mnemonic cryptoutils.Secret
	seed     cryptoutils.Secret

	addressIndex map[string]uint32
}

func newWallet(entropy cryptoutils.Secret) (*Wallet, error) {
	if err := validEntropyLength(entropy.Len()); err != nil {
		return nil, err
	}
	mnemonic, err := bip39.NewMnemonic(entropy.Reveal())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	return &Wallet{
		entropy:      entropy,
		mnemonic:     cryptoutils.SecretFromString(mnemonic),
		seed:         cryptoutils.Secret(bip39.NewSeed(mnemonic, "")),
		addressIndex: map[string]uint32{},
	}, nil
}

// Mnemonic returns a copy of the recovery phrase.
func (w *Wallet) Mnemonic() cryptoutils.Secret {
	return w.mnemonic.Clone()
}

// Entropy returns a copy of the BIP-39 entropy. This is the secret that is
// split into shares.
func (w *Wallet) Entropy() cryptoutils.Secret {
	return w.entropy.Clone()
}

// AddressIndex is the index of the current receive address on network.
func (w *Wallet) AddressIndex(networkID string) uint32 {
	return w.addressIndex[networkID]
}

// CurrentAddress derives the receive address at the current index.
func (w *Wallet) CurrentAddress(network interfaces.Network) (string, error) {
	return w.DeriveAddress(network, w.addressIndex[network.ID])
}

// NextAddress advances the receive index for network and returns the new
// address. The caller persists the change with Borrow.Save.
func (w *Wallet) NextAddress(network interfaces.Network) (string, error) {
	next := w.addressIndex[network.ID] + 1
	address, err := w.DeriveAddress(network, next)
	if err != nil {
		return "", err
	}
	w.addressIndex[network.ID] = next
	return address, nil
}

// DeriveAddress derives the external address at index. EVM networks use
// m/44'/coin'/0'/0/index, UTXO networks native segwit m/84'/coin'/0'/0/index.
func (w *Wallet) DeriveAddress(network interfaces.Network, index uint32) (string, error) {
	if index >= hdkeychain.HardenedKeyStart {
		return "", fmt.Errorf("address index %d out of range", index)
	}

	params, purpose, coin, err := derivationFor(network)
	if err != nil {
		return "", err
	}

	master, err := hdkeychain.NewMaster(w.seed, params)
	if err != nil {
		return "", fmt.Errorf("failed to create master key: %w", err)
	}

	key := master
	for _, child := range []uint32{
		hdkeychain.HardenedKeyStart + purpose,
		hdkeychain.HardenedKeyStart + coin,
		hdkeychain.HardenedKeyStart,
		0,
		index,
	} {
		next, err := key.Derive(child)
		key.Zero()
		if err != nil {
			return "", fmt.Errorf("failed to derive child key: %w", err)
		}
		key = next
	}
	defer key.Zero()

	pub, err := key.ECPubKey()
	if err != nil {
		return "", fmt.Errorf("failed to derive public key: %w", err)
	}

	switch network.Type {
	case interfaces.NetworkTypeEVM:
		return crypto.PubkeyToAddress(*pub.ToECDSA()).Hex(), nil
	default:
		addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pub.SerializeCompressed()), params)
		if err != nil {
			return "", fmt.Errorf("failed to encode address: %w", err)
		}
		return addr.EncodeAddress(), nil
	}
}

func derivationFor(network interfaces.Network) (params *chaincfg.Params, purpose, coin uint32, err error) {
	switch network.Type {
	case interfaces.NetworkTypeEVM:
		coin = network.CoinType
		if coin == 0 {
			coin = coinTypeETH
		}
		return &chaincfg.MainNetParams, purposeBIP44, coin, nil
	case interfaces.NetworkTypeUTXO:
		switch network.Chain {
		case "mainnet":
			params = &chaincfg.MainNetParams
		case "testnet":
			params = &chaincfg.TestNet3Params
		case "regtest":
			params = &chaincfg.RegressionNetParams
		case "signet":
			params = &chaincfg.SigNetParams
		default:
			return nil, 0, 0, fmt.Errorf("%w: utxo chain %q", ErrUnsupportedNetwork, network.Chain)
		}
		return params, purposeBIP84, network.CoinType, nil
	default:
		return nil, 0, 0, fmt.Errorf("%w: type %q", ErrUnsupportedNetwork, network.Type)
	}
}

// zero scrubs all key material. The wallet is unusable afterwards.
func (w *Wallet) zero() {
	w.entropy.Zero()
	w.mnemonic.Zero()
	w.seed.Zero()
	clear(w.addressIndex)
}

type walletPayload struct {
	Version      int               `json:"version"`
	Entropy      []byte            `json:"entropy"`
	AddressIndex map[string]uint32 `json:"address_index,omitempty"`
}

// marshal encodes the state stored in the vault. Mnemonic and seed are
// derived from the entropy on load and never stored.
func (w *Wallet) marshal() (cryptoutils.Secret, error) {
	data, err := json.Marshal(walletPayload{
		Version:      payloadVersion,
		Entropy:      w.entropy.Reveal(),
		AddressIndex: maps.Clone(w.addressIndex),
	})
	if err != nil {
		return nil, err
	}
	return cryptoutils.Secret(data), nil
}

func unmarshalWallet(data cryptoutils.Secret) (*Wallet, error) {
	var p walletPayload
	if err := json.Unmarshal(data.Reveal(), &p); err != nil {
		return nil, fmt.Errorf("failed to decode wallet payload: %w", err)
	}
	if p.Version != payloadVersion {
		cryptoutils.ZeroBytes(p.Entropy)
		return nil, fmt.Errorf("unsupported wallet payload version %d", p.Version)
	}

	w, err := newWallet(cryptoutils.Secret(p.Entropy))
	if err != nil {
		cryptoutils.ZeroBytes(p.Entropy)
		return nil, err
	}
	if p.AddressIndex != nil {
		w.addressIndex = p.AddressIndex
	}
	return w, nil
}
