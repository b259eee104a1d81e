package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/ruteri/wallet-kernel/cryptoutils"
	"github.com/ruteri/wallet-kernel/metrics"
	"github.com/ruteri/wallet-kernel/vault"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@+-]{0,63}$`)

// ValidateUsername rejects names that cannot safely name a vault file.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}
	return nil
}

type entryState int

const (
	// stateBusy marks a create, open, delete, rekey or restore in flight.
	stateBusy entryState = iota
	stateLoaded
	stateBorrowed
)

type entry struct {
	state  entryState
	wallet *Wallet
}

// Manager owns every decrypted wallet in the process and hands out exclusive
// borrows. A username without an entry is Unloaded. The mutex only guards the
// entry map; key derivation and disk I/O run without it, so operations on
// different usernames proceed in parallel.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
	closed  bool

	vaultDir string
	params   cryptoutils.KDFParams
	log      *slog.Logger
	metrics  *metrics.KernelMetrics
}

func NewManager(vaultDir string, params cryptoutils.KDFParams, log *slog.Logger, m *metrics.KernelMetrics) (*Manager, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		entries:  map[string]*entry{},
		vaultDir: vaultDir,
		params:   params,
		log:      log,
		metrics:  m,
	}, nil
}

func (m *Manager) vaultFor(username string) (*vault.Vault, error) {
	return vault.New(filepath.Join(m.vaultDir, username+".vault"), m.params, m.log, m.metrics)
}

// reserve marks username busy. With requireLoaded the entry must exist and be
// idle; otherwise a missing entry is created in the busy state.
func (m *Manager) reserve(username string, requireLoaded bool) (*entry, bool, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, false, ErrManagerClosed
	}

	e, ok := m.entries[username]
	if !ok {
		if requireLoaded {
			return nil, false, ErrNotLoaded
		}
		e = &entry{state: stateBusy}
		m.entries[username] = e
		return e, false, nil
	}
	if e.state != stateLoaded {
		m.metrics.Contention()
		return nil, false, ErrAlreadyBorrowed
	}
	e.state = stateBusy
	return e, true, nil
}

// settle ends a busy period. A nil wallet drops the entry, so passing
// e.wallet restores whatever was there before reserve. If the manager was
// closed meanwhile, a wallet headed for the loaded state is scrubbed instead
// and ErrManagerClosed is returned; a borrowed one is scrubbed on release.
func (m *Manager) settle(username string, e *entry, w *Wallet, state entryState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w == nil || (m.closed && state == stateLoaded) {
		if e.wallet != nil {
			e.wallet.zero()
			m.metrics.WalletUnloaded()
		}
		delete(m.entries, username)
		if w == nil {
			return nil
		}
		if w != e.wallet {
			w.zero()
		}
		return ErrManagerClosed
	}

	if e.wallet == nil {
		m.metrics.WalletLoaded()
	} else if e.wallet != w {
		e.wallet.zero()
	}
	e.wallet = w
	e.state = state
	return nil
}

// CreateWallet encrypts a new wallet under the credentials. On success the
// wallet is loaded but not borrowed.
func (m *Manager) CreateWallet(ctx context.Context, username string, pin cryptoutils.EncryptionPin, password cryptoutils.PlainPassword, seed SeedSource) error {
	e, wasLoaded, err := m.reserve(username, false)
	if err != nil {
		return err
	}
	if wasLoaded {
		m.settle(username, e, e.wallet, stateLoaded)
		return ErrWalletExists
	}

	w, err := m.createWallet(ctx, username, pin, password, seed)
	if err != nil {
		m.settle(username, e, nil, stateLoaded)
		return err
	}
	if err := m.settle(username, e, w, stateLoaded); err != nil {
		return err
	}

	m.log.Info("wallet created", slog.String("username", username))
	return nil
}

func (m *Manager) createWallet(ctx context.Context, username string, pin cryptoutils.EncryptionPin, password cryptoutils.PlainPassword, seed SeedSource) (*Wallet, error) {
	v, err := m.vaultFor(username)
	if err != nil {
		return nil, err
	}
	exists, err := v.Exists()
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrWalletExists
	}

	entropy, err := seed.resolveEntropy()
	if err != nil {
		return nil, err
	}
	w, err := newWallet(entropy)
	if err != nil {
		entropy.Zero()
		return nil, err
	}

	if err := saveWallet(ctx, v, w, pin, password); err != nil {
		w.zero()
		return nil, err
	}
	return w, nil
}

func saveWallet(ctx context.Context, v *vault.Vault, w *Wallet, pin cryptoutils.EncryptionPin, password cryptoutils.PlainPassword) error {
	payload, err := w.marshal()
	if err != nil {
		return err
	}
	defer payload.Zero()
	return v.Save(ctx, payload, pin, password)
}

// OpenWallet decrypts the user's vault and returns an exclusive borrow. The
// credentials are checked against the vault even if the wallet is already
// loaded.
func (m *Manager) OpenWallet(ctx context.Context, username string, pin cryptoutils.EncryptionPin, password cryptoutils.PlainPassword) (*Borrow, error) {
	e, wasLoaded, err := m.reserve(username, false)
	if err != nil {
		return nil, err
	}

	w, err := m.openWallet(ctx, username, pin, password)
	if err != nil {
		m.settle(username, e, e.wallet, stateLoaded)
		return nil, err
	}

	if wasLoaded {
		// keep the in-memory state, it may hold changes not yet saved
		w.zero()
		w = e.wallet
	}
	m.settle(username, e, w, stateBorrowed)
	return m.newBorrow(username, w), nil
}

func (m *Manager) openWallet(ctx context.Context, username string, pin cryptoutils.EncryptionPin, password cryptoutils.PlainPassword) (*Wallet, error) {
	v, err := m.vaultFor(username)
	if err != nil {
		return nil, err
	}
	payload, err := v.Open(ctx, pin, password)
	if err != nil {
		if errors.Is(err, vault.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrWalletNotFound, err)
		}
		return nil, err
	}
	defer payload.Zero()

	w, err := unmarshalWallet(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vault.ErrCorruption, err)
	}
	return w, nil
}

// Borrow leases a loaded wallet without blocking. It fails with
// ErrAlreadyBorrowed if another borrow is live or an operation is in flight,
// and with ErrNotLoaded if the wallet has not been opened.
func (m *Manager) Borrow(username string) (*Borrow, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	e, ok := m.entries[username]
	if !ok {
		return nil, ErrNotLoaded
	}
	if e.state != stateLoaded {
		m.metrics.Contention()
		return nil, ErrAlreadyBorrowed
	}
	e.state = stateBorrowed
	return m.newBorrow(username, e.wallet), nil
}

// release is called exactly once per borrow.
func (m *Manager) release(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[username]
	if !ok || e.state != stateBorrowed {
		return
	}
	if m.closed {
		e.wallet.zero()
		m.metrics.WalletUnloaded()
		delete(m.entries, username)
		return
	}
	e.state = stateLoaded
}

// DeleteWallet removes the vault file and scrubs the loaded wallet. It fails
// with ErrAlreadyBorrowed while a borrow is outstanding and with
// ErrWalletNotFound if there is no vault.
func (m *Manager) DeleteWallet(ctx context.Context, username string) error {
	e, _, err := m.reserve(username, false)
	if err != nil {
		return err
	}

	v, err := m.vaultFor(username)
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		err = v.Remove()
	}
	if err != nil {
		m.settle(username, e, e.wallet, stateLoaded)
		if errors.Is(err, vault.ErrNotFound) {
			return ErrWalletNotFound
		}
		return err
	}

	m.settle(username, e, nil, stateLoaded)
	m.log.Info("wallet deleted", slog.String("username", username))
	return nil
}

// ChangeCredentials re-encrypts the vault. The loaded wallet, if any, stays
// loaded.
func (m *Manager) ChangeCredentials(ctx context.Context, username string, oldPin cryptoutils.EncryptionPin, oldPassword cryptoutils.PlainPassword, newPin cryptoutils.EncryptionPin, newPassword cryptoutils.PlainPassword) error {
	e, _, err := m.reserve(username, false)
	if err != nil {
		return err
	}
	defer m.settle(username, e, e.wallet, stateLoaded)

	v, err := m.vaultFor(username)
	if err != nil {
		return err
	}
	err = v.ChangeCredentials(ctx, oldPin, oldPassword, newPin, newPassword)
	if errors.Is(err, vault.ErrNotFound) {
		return ErrWalletNotFound
	}
	return err
}

// Backup returns the encrypted vault bytes for off-site storage.
func (m *Manager) Backup(ctx context.Context, username string) ([]byte, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	v, err := m.vaultFor(username)
	if err != nil {
		return nil, err
	}
	blob, err := v.ReadRaw(ctx)
	if errors.Is(err, vault.ErrNotFound) {
		return nil, ErrWalletNotFound
	}
	return blob, err
}

// RestoreWallet installs a vault backup after checking that the credentials
// open it. The restored wallet replaces any loaded state.
func (m *Manager) RestoreWallet(ctx context.Context, username string, blob []byte, pin cryptoutils.EncryptionPin, password cryptoutils.PlainPassword) error {
	e, _, err := m.reserve(username, false)
	if err != nil {
		return err
	}

	w, err := m.restoreWallet(ctx, username, blob, pin, password)
	if err != nil {
		m.settle(username, e, e.wallet, stateLoaded)
		return err
	}
	if err := m.settle(username, e, w, stateLoaded); err != nil {
		return err
	}
	m.log.Info("wallet restored from backup", slog.String("username", username))
	return nil
}

func (m *Manager) restoreWallet(ctx context.Context, username string, blob []byte, pin cryptoutils.EncryptionPin, password cryptoutils.PlainPassword) (*Wallet, error) {
	v, err := m.vaultFor(username)
	if err != nil {
		return nil, err
	}
	payload, err := v.Restore(ctx, blob, pin, password)
	if err != nil {
		return nil, err
	}
	defer payload.Zero()

	w, err := unmarshalWallet(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vault.ErrCorruption, err)
	}
	return w, nil
}

// Exists reports whether a vault is stored for username.
func (m *Manager) Exists(username string) (bool, error) {
	if err := ValidateUsername(username); err != nil {
		return false, err
	}
	v, err := m.vaultFor(username)
	if err != nil {
		return false, err
	}
	return v.Exists()
}

// IsLoaded reports whether the wallet is decrypted in memory.
func (m *Manager) IsLoaded(username string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[username]
	return ok
}

// Unload scrubs a loaded wallet. Unloading an unloaded wallet is a no-op.
func (m *Manager) Unload(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[username]
	if !ok {
		return nil
	}
	if e.state != stateLoaded {
		return ErrAlreadyBorrowed
	}
	e.wallet.zero()
	m.metrics.WalletUnloaded()
	delete(m.entries, username)
	return nil
}

// Close scrubs every idle wallet and rejects further operations. Borrowed
// wallets are scrubbed when their borrow is released, and wallets still being
// created, opened or restored are scrubbed when that operation finishes.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for username, e := range m.entries {
		if e.state != stateLoaded {
			continue
		}
		e.wallet.zero()
		m.metrics.WalletUnloaded()
		delete(m.entries, username)
	}
}

// WithBorrow runs fn with the loaded wallet and releases the borrow on every
// exit path. A panic in fn propagates after the release.
func (m *Manager) WithBorrow(username string, fn func(*Borrow) error) error {
	b, err := m.Borrow(username)
	if err != nil {
		return err
	}
	defer b.Release()
	return fn(b)
}

// WithOpenWallet is WithBorrow for a wallet that may not be loaded yet.
func (m *Manager) WithOpenWallet(ctx context.Context, username string, pin cryptoutils.EncryptionPin, password cryptoutils.PlainPassword, fn func(*Borrow) error) error {
	b, err := m.OpenWallet(ctx, username, pin, password)
	if err != nil {
		return err
	}
	defer b.Release()
	return fn(b)
}
