package sdk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ruteri/wallet-kernel/cryptoutils"
	"github.com/ruteri/wallet-kernel/interfaces"
	"github.com/ruteri/wallet-kernel/wallet"
)

// CreateNewUser registers username. It does not make the user active.
func (s *Sdk) CreateNewUser(ctx context.Context, username string) error {
	const op = "create_new_user"
	if err := wallet.ValidateUsername(username); err != nil {
		return wrap(op, err)
	}
	if err := s.users.Create(ctx, &interfaces.UserEntity{Username: username}); err != nil {
		return wrap(op, err)
	}
	s.log.Info("user created", slog.String("username", username))
	return nil
}

// InitUser makes username the active user, logging out any previous one,
// and selects the configured default network.
func (s *Sdk) InitUser(ctx context.Context, username string) error {
	const op = "init_user"
	if _, err := s.users.Get(ctx, username); err != nil {
		return wrap(op, err)
	}

	s.mu.Lock()
	previous := s.active
	s.active = &activeUser{username: username}
	s.network = nil
	if n, ok := s.cfg.Network(s.cfg.DefaultNetwork); ok {
		s.network = &n
	}
	s.mu.Unlock()

	if previous != nil && previous.username != username {
		s.unload(previous.username)
	}
	s.log.Debug("user initialized", slog.String("username", username))
	return nil
}

// Logout clears the session and scrubs the user's loaded wallet.
func (s *Sdk) Logout(ctx context.Context) error {
	s.mu.Lock()
	previous := s.active
	s.active = nil
	s.network = nil
	if s.token != nil {
		s.token.Zero()
		s.token = nil
	}
	s.mu.Unlock()

	if previous == nil {
		return wrap("logout", ErrUserNotInitialized)
	}
	s.unload(previous.username)
	return nil
}

// unload scrubs the wallet unless a borrow is live; the borrower's release
// leaves it loaded and it is scrubbed on the next Close.
func (s *Sdk) unload(username string) {
	if err := s.wallets.Unload(username); err != nil {
		s.log.Warn("wallet still borrowed at logout", slog.String("username", username), "err", err)
	}
}

// DeleteUser removes the active user's wallet and user record after
// checking pin. Users that never set a password are deleted without a pin
// check.
func (s *Sdk) DeleteUser(ctx context.Context, pin cryptoutils.EncryptionPin) error {
	const op = "delete_user"
	user, err := s.activeUser(ctx)
	if err != nil {
		return wrap(op, err)
	}
	if user.HasPassword() {
		_, password, err := s.credentials(ctx, pin)
		if err != nil {
			return wrap(op, err)
		}
		password.Zero()
	}

	if err := s.wallets.DeleteWallet(ctx, user.Username); err != nil && !errors.Is(err, wallet.ErrWalletNotFound) {
		return wrap(op, err)
	}
	if err := s.users.Delete(ctx, user.Username); err != nil {
		return wrap(op, err)
	}

	s.mu.Lock()
	if s.active != nil && s.active.username == user.Username {
		s.active = nil
		s.network = nil
	}
	s.mu.Unlock()

	s.log.Info("user deleted", slog.String("username", user.Username))
	return nil
}

// RefreshAccessToken installs a new backend token. Tokens that are already
// expired are rejected.
func (s *Sdk) RefreshAccessToken(ctx context.Context, token string) error {
	const op = "refresh_access_token"
	t, err := cryptoutils.NewAccessToken(token)
	if err != nil {
		return wrap(op, err)
	}
	if _, _, err := t.ExpiresAt(); err != nil && looksLikeJWT(token) {
		return wrap(op, err)
	}
	if t.Expired(s.now()) {
		t.Zero()
		return wrap(op, fmt.Errorf("%w: token already expired", cryptoutils.ErrInvalidAccessToken))
	}

	s.mu.Lock()
	if s.token != nil {
		s.token.Zero()
	}
	s.token = &t
	s.mu.Unlock()
	return nil
}

func (s *Sdk) accessToken() (cryptoutils.AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil || s.token.Expired(s.now()) {
		return cryptoutils.AccessToken{}, ErrMissingAccessToken
	}
	return cryptoutils.AccessToken{Secret: s.token.Clone()}, nil
}

// looksLikeJWT is true for three dot-separated segments; opaque tokens are
// accepted without parsing.
func looksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}
