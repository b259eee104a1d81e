package sdk

import (
	"context"
	"fmt"

	"github.com/ruteri/wallet-kernel/cryptoutils"
	"github.com/ruteri/wallet-kernel/interfaces"
	"github.com/ruteri/wallet-kernel/wallet"
)

// GetNetworks lists the configured networks.
func (s *Sdk) GetNetworks(ctx context.Context) ([]interfaces.Network, error) {
	return append([]interfaces.Network(nil), s.cfg.Networks...), nil
}

// SetNetwork selects the network used by address and transfer operations.
func (s *Sdk) SetNetwork(ctx context.Context, id string) error {
	n, ok := s.cfg.Network(id)
	if !ok {
		return wrap("set_network", fmt.Errorf("%w: %q", ErrNetworkNotFound, id))
	}
	s.mu.Lock()
	s.network = &n
	s.mu.Unlock()
	return nil
}

// Network returns the selected network.
func (s *Sdk) Network() (interfaces.Network, error) {
	n, err := s.currentNetwork()
	return n, wrap("network", err)
}

// GenerateNewAddress advances the receive index on the selected network,
// persists it and returns the new address.
func (s *Sdk) GenerateNewAddress(ctx context.Context, pin cryptoutils.EncryptionPin) (string, error) {
	const op = "generate_new_address"
	network, err := s.currentNetwork()
	if err != nil {
		return "", wrap(op, err)
	}
	username, password, err := s.walletCredentials(ctx, pin)
	if err != nil {
		return "", wrap(op, err)
	}
	defer password.Zero()

	var address string
	err = s.wallets.WithOpenWallet(ctx, username, pin, password, func(b *wallet.Borrow) error {
		var err error
		if address, err = b.Wallet().NextAddress(network); err != nil {
			return err
		}
		return b.Save(ctx, pin, password)
	})
	if err != nil {
		return "", wrap(op, err)
	}
	return address, nil
}
