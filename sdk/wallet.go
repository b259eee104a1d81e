package sdk

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ruteri/wallet-kernel/cryptoutils"
	"github.com/ruteri/wallet-kernel/interfaces"
	"github.com/ruteri/wallet-kernel/sharing"
	"github.com/ruteri/wallet-kernel/wallet"
)

// CreateWalletFromNewMnemonic creates a wallet from fresh 256-bit entropy and
// returns its 24-word mnemonic. This is the only time the mnemonic is handed
// out; the caller must Zero it after showing it to the user.
func (s *Sdk) CreateWalletFromNewMnemonic(ctx context.Context, pin cryptoutils.EncryptionPin) (cryptoutils.Secret, error) {
	const op = "create_wallet_from_new_mnemonic"
	username, err := s.createWallet(ctx, pin, wallet.RandomSeed(wallet.MnemonicBits))
	if err != nil {
		return nil, wrap(op, err)
	}

	var mnemonic cryptoutils.Secret
	err = s.wallets.WithBorrow(username, func(b *wallet.Borrow) error {
		mnemonic = b.Wallet().Mnemonic()
		return nil
	})
	return mnemonic, wrap(op, err)
}

// CreateWalletFromMnemonic restores a wallet from an existing BIP-39 phrase.
func (s *Sdk) CreateWalletFromMnemonic(ctx context.Context, pin cryptoutils.EncryptionPin, mnemonic cryptoutils.Secret) error {
	_, err := s.createWallet(ctx, pin, wallet.MnemonicSeed(mnemonic))
	return wrap("create_wallet_from_mnemonic", err)
}

// CreateWalletFromShares reconstructs the wallet entropy from at least
// threshold shares of one split and creates the wallet from it.
func (s *Sdk) CreateWalletFromShares(ctx context.Context, pin cryptoutils.EncryptionPin, shares []sharing.Share) error {
	const op = "create_wallet_from_shares"
	entropy, err := sharing.Reconstruct(shares)
	s.metrics.ShareOp("reconstruct", err)
	if err != nil {
		return wrap(op, err)
	}
	defer entropy.Zero()

	_, err = s.createWallet(ctx, pin, wallet.EntropySeed(entropy))
	return wrap(op, err)
}

// CreateWalletFromRecovery creates the wallet from a Recovery that has
// collected enough shares.
func (s *Sdk) CreateWalletFromRecovery(ctx context.Context, pin cryptoutils.EncryptionPin, r *sharing.Recovery) error {
	const op = "create_wallet_from_recovery"
	entropy, ok := r.Secret()
	if !ok {
		return wrap(op, fmt.Errorf("%w: recovery incomplete", sharing.ErrInsufficientShares))
	}
	defer entropy.Zero()

	_, err := s.createWallet(ctx, pin, wallet.EntropySeed(entropy))
	return wrap(op, err)
}

func (s *Sdk) createWallet(ctx context.Context, pin cryptoutils.EncryptionPin, seed wallet.SeedSource) (string, error) {
	user, password, err := s.credentials(ctx, pin)
	if err != nil {
		return "", err
	}
	defer password.Zero()

	if err := s.wallets.CreateWallet(ctx, user.Username, pin, password, seed); err != nil {
		return "", err
	}
	return user.Username, nil
}

// DeleteWallet removes the active user's wallet after checking pin.
func (s *Sdk) DeleteWallet(ctx context.Context, pin cryptoutils.EncryptionPin) error {
	const op = "delete_wallet"
	user, password, err := s.credentials(ctx, pin)
	if err != nil {
		return wrap(op, err)
	}
	password.Zero()
	return wrap(op, s.wallets.DeleteWallet(ctx, user.Username))
}

// CreateWalletShares splits the wallet entropy into total shares of which
// any threshold recover the wallet. The caller must Zero the result.
func (s *Sdk) CreateWalletShares(ctx context.Context, pin cryptoutils.EncryptionPin, total, threshold int) (*sharing.GeneratedShares, error) {
	const op = "create_wallet_shares"
	if total > s.cfg.Sharing.MaxShares {
		return nil, wrap(op, fmt.Errorf("%w: at most %d shares allowed, requested %d", sharing.ErrInvalidParameters, s.cfg.Sharing.MaxShares, total))
	}

	entropy, err := s.walletEntropy(ctx, pin)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer entropy.Zero()

	shares, err := sharing.Split(entropy, total, threshold)
	s.metrics.ShareOp("split", err)
	if err != nil {
		return nil, wrap(op, err)
	}
	return shares, nil
}

// CreateWalletSharesForGuardians splits the wallet entropy into one share
// per guardian and seals each share to that guardian's key. The result is
// in guardian order and safe to hand to untrusted transport.
func (s *Sdk) CreateWalletSharesForGuardians(ctx context.Context, pin cryptoutils.EncryptionPin, threshold int, guardians []cryptoutils.GuardianPubkey) ([][]byte, error) {
	const op = "create_wallet_shares_for_guardians"
	for _, g := range guardians {
		if err := g.Validate(); err != nil {
			return nil, wrap(op, fmt.Errorf("%w: %w", sharing.ErrInvalidParameters, err))
		}
	}

	shares, err := s.CreateWalletShares(ctx, pin, len(guardians), threshold)
	if err != nil {
		return nil, err
	}
	defer shares.Zero()

	sealed := make([][]byte, len(guardians))
	for i, g := range guardians {
		sealed[i], err = sharing.SealForGuardian(shares.Shares[i], g)
		if err != nil {
			return nil, wrap(op, err)
		}
	}
	return sealed, nil
}

func (s *Sdk) walletEntropy(ctx context.Context, pin cryptoutils.EncryptionPin) (cryptoutils.Secret, error) {
	username, password, err := s.walletCredentials(ctx, pin)
	if err != nil {
		return nil, err
	}
	defer password.Zero()

	var entropy cryptoutils.Secret
	err = s.wallets.WithOpenWallet(ctx, username, pin, password, func(b *wallet.Borrow) error {
		entropy = b.Wallet().Entropy()
		return nil
	})
	return entropy, err
}

// BackupWallet stores the encrypted vault in the configured backup storage
// and returns its content id. The backup opens with the credentials current
// at backup time.
func (s *Sdk) BackupWallet(ctx context.Context, pin cryptoutils.EncryptionPin) (interfaces.ContentID, error) {
	const op = "backup_wallet"
	if s.backups == nil {
		return interfaces.ContentID{}, wrap(op, fmt.Errorf("%w: backup storage", ErrNotConfigured))
	}
	username, password, err := s.walletCredentials(ctx, pin)
	if err != nil {
		return interfaces.ContentID{}, wrap(op, err)
	}
	password.Zero()

	blob, err := s.wallets.Backup(ctx, username)
	if err != nil {
		return interfaces.ContentID{}, wrap(op, err)
	}
	id, err := s.backups.Store(ctx, blob, interfaces.BackupType)
	if err != nil {
		return interfaces.ContentID{}, wrap(op, err)
	}

	s.log.Info("wallet backed up", slog.String("username", username), slog.String("id", id.String()), slog.String("storage", s.backups.Name()))
	return id, nil
}

// RestoreWalletBackup fetches a backup by id and installs it as the active
// user's wallet, replacing any existing vault.
func (s *Sdk) RestoreWalletBackup(ctx context.Context, pin cryptoutils.EncryptionPin, id interfaces.ContentID) error {
	const op = "restore_wallet_backup"
	if s.backups == nil {
		return wrap(op, fmt.Errorf("%w: backup storage", ErrNotConfigured))
	}
	user, password, err := s.credentials(ctx, pin)
	if err != nil {
		return wrap(op, err)
	}
	defer password.Zero()

	blob, err := s.backups.Fetch(ctx, id, interfaces.BackupType)
	if err != nil {
		return wrap(op, err)
	}
	if err := s.wallets.RestoreWallet(ctx, user.Username, blob, pin, password); err != nil {
		return wrap(op, err)
	}
	return nil
}
