package wallet

import (
	"context"

	"github.com/ruteri/wallet-kernel/cryptoutils"
	"go.uber.org/atomic"
)

// Borrow is an exclusive lease on a loaded wallet. Release must be called
// when done; Manager.WithBorrow does this on every exit path.
type Borrow struct {
	manager  *Manager
	username string
	wallet   *Wallet
	released atomic.Bool
}

func (m *Manager) newBorrow(username string, w *Wallet) *Borrow {
	return &Borrow{
		manager:  m,
		username: username,
		wallet:   w,
	}
}

func (b *Borrow) Username() string { return b.username }

// Wallet returns the borrowed wallet. Using a released borrow is a
// programming error and panics.
func (b *Borrow) Wallet() *Wallet {
	if b.released.Load() {
		panic("wallet: use of released borrow for " + b.username)
	}
	return b.wallet
}

// Save writes the borrowed wallet's current state to the vault under the
// given credentials.
func (b *Borrow) Save(ctx context.Context, pin cryptoutils.EncryptionPin, password cryptoutils.PlainPassword) error {
	w := b.Wallet()
	v, err := b.manager.vaultFor(b.username)
	if err != nil {
		return err
	}
	return saveWallet(ctx, v, w, pin, password)
}

// Release returns the wallet to the manager. It is safe to call more than once.
func (b *Borrow) Release() {
	if !b.released.CompareAndSwap(false, true) {
		return
	}
	b.manager.release(b.username)
}

// Released reports whether Release has been called.
func (b *Borrow) Released() bool {
	return b.released.Load()
}
