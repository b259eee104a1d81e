package wallet

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/wallet-kernel/interfaces"
)

// ErrInvalidAddress is returned for a recipient address that does not belong
// to the network.
var ErrInvalidAddress = errors.New("invalid address")

// ValidateAddress checks that address is well formed for network. EVM
// addresses are 20-byte hex, UTXO addresses must decode for the network's
// chain parameters.
func ValidateAddress(network interfaces.Network, address string) error {
	params, _, _, err := derivationFor(network)
	if err != nil {
		return err
	}

	switch network.Type {
	case interfaces.NetworkTypeEVM:
		if !common.IsHexAddress(address) {
			return fmt.Errorf("%w: %q is not an EVM address", ErrInvalidAddress, address)
		}
		if common.HexToAddress(address) == (common.Address{}) {
			return fmt.Errorf("%w: zero address", ErrInvalidAddress)
		}
		return nil
	default:
		addr, err := btcutil.DecodeAddress(address, params)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		if !addr.IsForNet(params) {
			return fmt.Errorf("%w: %q is not a %s address", ErrInvalidAddress, address, network.Chain)
		}
		return nil
	}
}
