package sdk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ruteri/wallet-kernel/config"
	"github.com/ruteri/wallet-kernel/cryptoutils"
	"github.com/ruteri/wallet-kernel/interfaces"
	"github.com/ruteri/wallet-kernel/metrics"
	"github.com/ruteri/wallet-kernel/wallet"
)

// Options wires an Sdk. Config and Users are required; the collaborators and
// Backups may be nil, in which case the operations that need them fail with
// ErrNotConfigured.
type Options struct {
	Config    *config.Config
	Log       *slog.Logger
	Metrics   *metrics.KernelMetrics
	Users     interfaces.UserRepository
	Backups   interfaces.StorageBackend
	Submitter interfaces.TransactionSubmitter
	Kyc       interfaces.KycProvider

	// Now is used for token expiry and transaction dates. Defaults to time.Now.
	Now func() time.Time
}

type activeUser struct {
	username string
}

// Sdk is one wallet session: at most one active user with a selected
// network and access token. Session fields are guarded by mu; wallet state
// lives in the Manager, so key derivation and vault I/O run without mu.
type Sdk struct {
	cfg       *config.Config
	log       *slog.Logger
	metrics   *metrics.KernelMetrics
	users     interfaces.UserRepository
	backups   interfaces.StorageBackend
	submitter interfaces.TransactionSubmitter
	kyc       interfaces.KycProvider
	wallets   *wallet.Manager
	now       func() time.Time

	mu      sync.Mutex
	active  *activeUser
	network *interfaces.Network
	token   *cryptoutils.AccessToken
}

func New(opts Options) (*Sdk, error) {
	if opts.Config == nil {
		return nil, errors.New("sdk: config is required")
	}
	if opts.Users == nil {
		return nil, errors.New("sdk: user repository is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, wrap("new", err)
	}

	log := opts.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	manager, err := wallet.NewManager(opts.Config.VaultDir(), opts.Config.KDF, log, opts.Metrics)
	if err != nil {
		return nil, wrap("new", err)
	}

	return &Sdk{
		cfg:       opts.Config,
		log:       log,
		metrics:   opts.Metrics,
		users:     opts.Users,
		backups:   opts.Backups,
		submitter: opts.Submitter,
		kyc:       opts.Kyc,
		wallets:   manager,
		now:       now,
	}, nil
}

// Close logs out and scrubs every loaded wallet.
func (s *Sdk) Close() {
	s.mu.Lock()
	s.active = nil
	s.network = nil
	if s.token != nil {
		s.token.Zero()
		s.token = nil
	}
	s.mu.Unlock()

	s.wallets.Close()
}

// Wallets exposes the underlying manager for callers that borrow wallets
// directly.
func (s *Sdk) Wallets() *wallet.Manager { return s.wallets }

func (s *Sdk) Config() *config.Config { return s.cfg }

// ParsePin validates a pin against the configured credential policy.
func (s *Sdk) ParsePin(pin string) (cryptoutils.EncryptionPin, error) {
	p, err := s.cfg.Credentials.NewEncryptionPin(pin)
	return p, wrap("parse_pin", err)
}

// ParsePassword validates a password against the configured credential policy.
func (s *Sdk) ParsePassword(password string) (cryptoutils.PlainPassword, error) {
	p, err := s.cfg.Credentials.NewPlainPassword(password)
	return p, wrap("parse_password", err)
}

func (s *Sdk) activeUsername() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return "", ErrUserNotInitialized
	}
	return s.active.username, nil
}

func (s *Sdk) activeUser(ctx context.Context) (*interfaces.UserEntity, error) {
	username, err := s.activeUsername()
	if err != nil {
		return nil, err
	}
	return s.users.Get(ctx, username)
}

func (s *Sdk) currentNetwork() (interfaces.Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.network == nil {
		return interfaces.Network{}, ErrMissingNetwork
	}
	return *s.network, nil
}

// credentials resolves the wallet password of the active user from pin.
// The caller owns the returned password and must Zero it.
func (s *Sdk) credentials(ctx context.Context, pin cryptoutils.EncryptionPin) (*interfaces.UserEntity, cryptoutils.PlainPassword, error) {
	user, err := s.activeUser(ctx)
	if err != nil {
		return nil, cryptoutils.PlainPassword{}, err
	}
	if !user.HasPassword() {
		return nil, cryptoutils.PlainPassword{}, ErrPasswordNotSet
	}
	password, err := cryptoutils.EncryptedPasswordFromBytes(user.EncryptedPassword).
		Decrypt(pin, cryptoutils.EncryptionSaltFromBytes(user.Salt), s.cfg.KDF)
	if err != nil {
		if errors.Is(err, cryptoutils.ErrDecryption) {
			return nil, cryptoutils.PlainPassword{}, fmt.Errorf("pin rejected: %w", err)
		}
		return nil, cryptoutils.PlainPassword{}, err
	}
	return user, password, nil
}
