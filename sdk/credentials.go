package sdk

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ruteri/wallet-kernel/cryptoutils"
	"github.com/ruteri/wallet-kernel/interfaces"
	"github.com/ruteri/wallet-kernel/wallet"
)

// SetWalletPassword stores password wrapped under pin. If a password is
// already set, pin must unwrap it and the wallet vault is re-encrypted under
// the new password.
func (s *Sdk) SetWalletPassword(ctx context.Context, pin cryptoutils.EncryptionPin, password cryptoutils.PlainPassword) error {
	const op = "set_wallet_password"
	user, err := s.activeUser(ctx)
	if err != nil {
		return wrap(op, err)
	}

	if !user.HasPassword() {
		return wrap(op, s.storePassword(ctx, user, pin, password))
	}

	_, oldPassword, err := s.credentials(ctx, pin)
	if err != nil {
		return wrap(op, err)
	}
	defer oldPassword.Zero()

	return wrap(op, s.rekey(ctx, user, pin, oldPassword, pin, password))
}

// IsWalletPasswordSet reports whether the active user has set a password.
func (s *Sdk) IsWalletPasswordSet(ctx context.Context) (bool, error) {
	user, err := s.activeUser(ctx)
	if err != nil {
		return false, wrap("is_wallet_password_set", err)
	}
	return user.HasPassword(), nil
}

// VerifyPin checks pin against the stored password wrap.
func (s *Sdk) VerifyPin(ctx context.Context, pin cryptoutils.EncryptionPin) error {
	_, password, err := s.credentials(ctx, pin)
	if err != nil {
		return wrap("verify_pin", err)
	}
	password.Zero()
	return nil
}

// ChangePin re-wraps the password and re-encrypts the vault under newPin.
func (s *Sdk) ChangePin(ctx context.Context, oldPin, newPin cryptoutils.EncryptionPin) error {
	const op = "change_pin"
	user, password, err := s.credentials(ctx, oldPin)
	if err != nil {
		return wrap(op, err)
	}
	defer password.Zero()

	return wrap(op, s.rekey(ctx, user, oldPin, password, newPin, password))
}

// rekey moves the vault and the password wrap to new credentials. The vault
// goes first; if the user record cannot be updated the vault is moved back
// so both stay readable with the same pin.
func (s *Sdk) rekey(ctx context.Context, user *interfaces.UserEntity, oldPin cryptoutils.EncryptionPin, oldPassword cryptoutils.PlainPassword, newPin cryptoutils.EncryptionPin, newPassword cryptoutils.PlainPassword) error {
	hasWallet, err := s.wallets.Exists(user.Username)
	if err != nil {
		return err
	}
	if hasWallet {
		if err := s.wallets.ChangeCredentials(ctx, user.Username, oldPin, oldPassword, newPin, newPassword); err != nil {
			return err
		}
	}

	if err := s.storePassword(ctx, user, newPin, newPassword); err != nil {
		if hasWallet {
			rollbackErr := s.wallets.ChangeCredentials(context.WithoutCancel(ctx), user.Username, newPin, newPassword, oldPin, oldPassword)
			if rollbackErr != nil {
				s.log.Error("failed to roll back vault credentials", slog.String("username", user.Username), "err", rollbackErr)
				return errors.Join(err, rollbackErr)
			}
		}
		return err
	}

	s.log.Info("wallet credentials changed", slog.String("username", user.Username))
	return nil
}

func (s *Sdk) storePassword(ctx context.Context, user *interfaces.UserEntity, pin cryptoutils.EncryptionPin, password cryptoutils.PlainPassword) error {
	salt, err := cryptoutils.NewEncryptionSalt(s.cfg.KDF.SaltLen)
	if err != nil {
		return err
	}
	wrapped, err := cryptoutils.EncryptPassword(password, pin, salt, s.cfg.KDF)
	if err != nil {
		return err
	}
	user.EncryptedPassword = wrapped.Reveal()
	user.Salt = salt.Reveal()
	return s.users.Update(ctx, user)
}

// walletCredentials is credentials for operations that also need the wallet
// to exist.
func (s *Sdk) walletCredentials(ctx context.Context, pin cryptoutils.EncryptionPin) (string, cryptoutils.PlainPassword, error) {
	user, password, err := s.credentials(ctx, pin)
	if err != nil {
		return "", cryptoutils.PlainPassword{}, err
	}
	exists, err := s.wallets.Exists(user.Username)
	if err == nil && !exists {
		err = wallet.ErrWalletNotFound
	}
	if err != nil {
		password.Zero()
		return "", cryptoutils.PlainPassword{}, err
	}
	return user.Username, password, nil
}
