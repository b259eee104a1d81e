package vault

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/wallet-kernel/cryptoutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPin(t *testing.T, pin string) cryptoutils.EncryptionPin {
	p, err := cryptoutils.NewEncryptionPin(pin)
	require.NoError(t, err)
	return p
}

func mustPassword(t *testing.T, pw string) cryptoutils.PlainPassword {
	p, err := cryptoutils.NewPlainPassword(pw)
	require.NoError(t, err)
	return p
}

func newTestVault(t *testing.T) *Vault {
	v, err := New(filepath.Join(t.TempDir(), "vaults", "alice.vault"), cryptoutils.TestKDFParams, nil, nil)
	require.NoError(t, err)
	return v
}

func TestVaultRoundTrip(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)

	exists, err := v.Exists()
	require.NoError(t, err)
	assert.False(t, exists)

	payload := []byte(`{"entropy":"c2VjcmV0"}`)
	require.NoError(t, v.Save(ctx, payload, mustPin(t, "1234"), mustPassword(t, "Str0ng!P@55")))

	exists, err = v.Exists()
	require.NoError(t, err)
	assert.True(t, exists)

	info, err := os.Stat(v.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	opened, err := v.Open(ctx, mustPin(t, "1234"), mustPassword(t, "Str0ng!P@55"))
	require.NoError(t, err)
	assert.Equal(t, payload, opened.Reveal())

	entries, err := os.ReadDir(filepath.Dir(v.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "No temp files should be left behind")
}

func TestVaultWrongCredentialsDoNotWrite(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)
	require.NoError(t, v.Save(ctx, []byte("payload"), mustPin(t, "1234"), mustPassword(t, "Str0ng!P@55")))

	before, err := os.ReadFile(v.Path())
	require.NoError(t, err)

	tests := []struct {
		name     string
		pin      string
		password string
	}{
		{name: "wrong pin", pin: "4321", password: "Str0ng!P@55"},
		{name: "wrong password", pin: "1234", password: "Str0ng!P@56"},
		{name: "both wrong", pin: "0000", password: "another1Pass"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Open(ctx, mustPin(t, tt.pin), mustPassword(t, tt.password))
			require.ErrorIs(t, err, ErrWrongCredentials)

			err = v.ChangeCredentials(ctx, mustPin(t, tt.pin), mustPassword(t, tt.password), mustPin(t, "9999"), mustPassword(t, "N3wPassword"))
			require.ErrorIs(t, err, ErrWrongCredentials)

			after, err := os.ReadFile(v.Path())
			require.NoError(t, err)
			assert.Equal(t, before, after, "Vault file must be byte-identical after a failed open")
		})
	}
}

func TestVaultChangeCredentials(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)
	payload := []byte("seed material")
	require.NoError(t, v.Save(ctx, payload, mustPin(t, "1234"), mustPassword(t, "Str0ng!P@55")))

	before, err := os.ReadFile(v.Path())
	require.NoError(t, err)

	require.NoError(t, v.ChangeCredentials(ctx,
		mustPin(t, "1234"), mustPassword(t, "Str0ng!P@55"),
		mustPin(t, "567890"), mustPassword(t, "Diff3rent!pw")))

	after, err := os.ReadFile(v.Path())
	require.NoError(t, err)
	assert.NotEqual(t, before[fixedHeaderSize:fixedHeaderSize+cryptoutils.TestKDFParams.SaltLen],
		after[fixedHeaderSize:fixedHeaderSize+cryptoutils.TestKDFParams.SaltLen], "Rekey must use a fresh salt")

	opened, err := v.Open(ctx, mustPin(t, "567890"), mustPassword(t, "Diff3rent!pw"))
	require.NoError(t, err)
	assert.Equal(t, payload, opened.Reveal())

	_, err = v.Open(ctx, mustPin(t, "1234"), mustPassword(t, "Str0ng!P@55"))
	require.ErrorIs(t, err, ErrWrongCredentials)
}

func TestVaultCorruption(t *testing.T) {
	ctx := context.Background()
	pin, password := mustPin(t, "1234"), mustPassword(t, "Str0ng!P@55")

	v := newTestVault(t)
	require.NoError(t, v.Save(ctx, []byte("payload"), pin, password))
	good, err := os.ReadFile(v.Path())
	require.NoError(t, err)

	mutate := func(f func(b []byte) []byte) []byte {
		return f(append([]byte(nil), good...))
	}

	tests := []struct {
		name    string
		content []byte
		wantErr error
	}{
		{name: "empty", content: []byte{}, wantErr: ErrCorruption},
		{name: "truncated header", content: good[:10], wantErr: ErrCorruption},
		{name: "truncated body", content: good[:fixedHeaderSize+cryptoutils.TestKDFParams.SaltLen+4], wantErr: ErrCorruption},
		{name: "bad magic", content: mutate(func(b []byte) []byte { b[0] = 'X'; return b }), wantErr: ErrCorruption},
		{name: "bad version", content: mutate(func(b []byte) []byte { b[4] = 9; return b }), wantErr: ErrCorruption},
		{name: "other kdf params", content: mutate(func(b []byte) []byte { b[9]++; return b }), wantErr: ErrCorruption},
		{name: "flipped ciphertext", content: mutate(func(b []byte) []byte { b[len(b)-1] ^= 1; return b }), wantErr: ErrWrongCredentials},
		{name: "flipped salt", content: mutate(func(b []byte) []byte { b[fixedHeaderSize] ^= 1; return b }), wantErr: ErrWrongCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(v.Path(), tt.content, 0o600))
			_, err := v.Open(ctx, pin, password)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVaultNotFoundAndRemove(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)

	_, err := v.Open(ctx, mustPin(t, "1234"), mustPassword(t, "Str0ng!P@55"))
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, v.Remove(), ErrNotFound)

	require.NoError(t, v.Save(ctx, []byte("x"), mustPin(t, "1234"), mustPassword(t, "Str0ng!P@55")))
	require.NoError(t, v.Remove())
	require.ErrorIs(t, v.Remove(), ErrNotFound)
}

func TestVaultBackupRestore(t *testing.T) {
	ctx := context.Background()
	pin, password := mustPin(t, "1234"), mustPassword(t, "Str0ng!P@55")

	src := newTestVault(t)
	require.NoError(t, src.Save(ctx, []byte("backed up"), pin, password))
	blob, err := src.ReadRaw(ctx)
	require.NoError(t, err)

	dst := newTestVault(t)
	_, err = dst.Restore(ctx, blob, mustPin(t, "0000"), password)
	require.ErrorIs(t, err, ErrWrongCredentials)
	exists, err := dst.Exists()
	require.NoError(t, err)
	assert.False(t, exists, "A backup that does not open must not be installed")

	restored, err := dst.Restore(ctx, blob, pin, password)
	require.NoError(t, err)
	assert.Equal(t, []byte("backed up"), restored.Reveal())

	opened, err := dst.Open(ctx, pin, password)
	require.NoError(t, err)
	assert.Equal(t, []byte("backed up"), opened.Reveal())
}

func TestVaultCancelledContext(t *testing.T) {
	v := newTestVault(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := v.Save(ctx, []byte("x"), mustPin(t, "1234"), mustPassword(t, "Str0ng!P@55"))
	require.ErrorIs(t, err, context.Canceled)

	exists, err := v.Exists()
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestNewRejectsBadParams(t *testing.T) {
	_, err := New("", cryptoutils.TestKDFParams, nil, nil)
	require.ErrorIs(t, err, ErrIO)

	params := cryptoutils.TestKDFParams
	params.KeyLen = 7
	_, err = New("/tmp/x.vault", params, nil, nil)
	require.ErrorIs(t, err, ErrCrypto)
}
