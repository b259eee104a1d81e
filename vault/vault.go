package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ruteri/wallet-kernel/cryptoutils"
	"github.com/ruteri/wallet-kernel/metrics"
)

// Vault is one encrypted wallet file. It holds no key material between calls;
// every operation derives the key from the credentials it is given.
type Vault struct {
	path    string
	params  cryptoutils.KDFParams
	log     *slog.Logger
	metrics *metrics.KernelMetrics

	// ReadRetries bounds retries of transient read failures.
	ReadRetries uint64
}

// New returns a vault bound to path. The file is not touched.
func New(path string, params cryptoutils.KDFParams, log *slog.Logger, m *metrics.KernelMetrics) (*Vault, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty vault path", ErrIO)
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Vault{
		path:        path,
		params:      params,
		log:         log.With("vault", filepath.Base(path)),
		metrics:     m,
		ReadRetries: 3,
	}, nil
}

func (v *Vault) Path() string { return v.path }

// Exists reports whether the vault file is present.
func (v *Vault) Exists() (bool, error) {
	_, err := os.Stat(v.path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrIO, err)
	}
}

// Open decrypts the vault. A wrong pin or password yields ErrWrongCredentials
// and leaves the file untouched.
func (v *Vault) Open(ctx context.Context, pin cryptoutils.EncryptionPin, password cryptoutils.PlainPassword) (payload cryptoutils.Secret, err error) {
	defer func() { v.metrics.VaultOp("open", err) }()

	blob, err := v.read(ctx)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err = Decrypt(blob, pin, password, v.params)
	if err != nil {
		if errors.Is(err, ErrWrongCredentials) {
			v.log.Warn("vault open rejected", "err", err)
		}
		return nil, err
	}
	return payload, nil
}

// Save encrypts payload under the credentials with a fresh salt and nonce and
// atomically replaces the vault file.
func (v *Vault) Save(ctx context.Context, payload []byte, pin cryptoutils.EncryptionPin, password cryptoutils.PlainPassword) (err error) {
	defer func() { v.metrics.VaultOp("save", err) }()

	if err := ctx.Err(); err != nil {
		return err
	}

	blob, err := seal(payload, pin, password, v.params)
	if err != nil {
		return err
	}
	return v.writeAtomic(ctx, blob)
}

// ChangeCredentials re-encrypts the vault under new credentials. Nothing is
// written unless the old credentials open the vault.
func (v *Vault) ChangeCredentials(ctx context.Context, oldPin cryptoutils.EncryptionPin, oldPassword cryptoutils.PlainPassword, newPin cryptoutils.EncryptionPin, newPassword cryptoutils.PlainPassword) (err error) {
	defer func() { v.metrics.VaultOp("rekey", err) }()

	payload, err := v.Open(ctx, oldPin, oldPassword)
	if err != nil {
		return err
	}
	defer payload.Zero()

	blob, err := seal(payload, newPin, newPassword, v.params)
	if err != nil {
		return err
	}
	if err := v.writeAtomic(ctx, blob); err != nil {
		return err
	}

	v.log.Info("vault credentials changed")
	return nil
}

// ReadRaw returns the encrypted file contents for off-site backup.
func (v *Vault) ReadRaw(ctx context.Context) ([]byte, error) {
	blob, err := v.read(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := parse(blob); err != nil {
		return nil, err
	}
	return blob, nil
}

// Restore installs a backup blob after checking that the credentials open it.
// The decrypted payload is returned so the caller does not have to open the
// vault a second time.
func (v *Vault) Restore(ctx context.Context, blob []byte, pin cryptoutils.EncryptionPin, password cryptoutils.PlainPassword) (payload cryptoutils.Secret, err error) {
	defer func() { v.metrics.VaultOp("restore", err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	payload, err = Decrypt(blob, pin, password, v.params)
	if err != nil {
		return nil, err
	}
	if err := v.writeAtomic(ctx, blob); err != nil {
		payload.Zero()
		return nil, err
	}
	return payload, nil
}

// Remove deletes the vault file. A missing file is ErrNotFound.
func (v *Vault) Remove() error {
	err := os.Remove(v.path)
	switch {
	case err == nil:
		v.log.Info("vault removed")
		return syncDir(filepath.Dir(v.path))
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	default:
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
}

// read loads the file, retrying transient failures. A missing file or a
// cancelled context is never retried.
func (v *Vault) read(ctx context.Context) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 20 * time.Millisecond
	policy.MaxInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = 2 * time.Second

	var blob []byte
	operation := func() error {
		data, err := os.ReadFile(v.path)
		switch {
		case err == nil:
			blob = data
			return nil
		case errors.Is(err, fs.ErrNotExist):
			return backoff.Permanent(ErrNotFound)
		case errors.Is(err, fs.ErrPermission):
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrIO, err))
		default:
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
	}
	notify := func(err error, wait time.Duration) {
		v.log.Debug("retrying vault read", "err", err, "wait", wait)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(policy, v.ReadRetries), ctx), notify)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return blob, nil
}

// writeAtomic writes blob to a temp file in the vault directory, syncs it and
// renames it over the vault. Readers see either the old or the new file.
func (v *Vault) writeAtomic(ctx context.Context, blob []byte) error {
	dir := filepath.Dir(v.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(v.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, v.path); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	committed = true

	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}
