package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/wallet-kernel/common"
	"github.com/ruteri/wallet-kernel/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	backend, err := NewFileBackend(dir, common.DiscardLogger())
	require.NoError(t, err)
	assert.True(t, backend.Available(ctx))
	assert.Equal(t, "file://"+dir, backend.LocationURI())

	blob := []byte("encrypted vault bytes")
	id, err := backend.Store(ctx, blob, interfaces.BackupType)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ComputeID(blob), id)

	again, err := backend.Store(ctx, blob, interfaces.BackupType)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	info, err := os.Stat(filepath.Join(dir, "backups", id.String()))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	fetched, err := backend.Fetch(ctx, id, interfaces.BackupType)
	require.NoError(t, err)
	assert.Equal(t, blob, fetched)

	_, err = backend.Fetch(ctx, id, interfaces.ShareType)
	require.ErrorIs(t, err, interfaces.ErrContentNotFound, "Content types are separate namespaces")
}

func TestStorageBackendFactory(t *testing.T) {
	factory := NewStorageBackendFactory(common.DiscardLogger())
	dir := t.TempDir()

	loc, err := interfaces.NewStorageBackendLocation("file://" + dir)
	require.NoError(t, err)
	backend, err := factory.StorageBackendFor(loc)
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, backend)

	s3loc, err := interfaces.NewStorageBackendLocation("s3://AKID:SECRET@wallet-backups/prod?region=eu-central-1")
	require.NoError(t, err)
	backend, err = factory.StorageBackendFor(s3loc)
	require.NoError(t, err)
	assert.Equal(t, "s3-wallet-backups", backend.Name())
	assert.NotContains(t, backend.LocationURI(), "SECRET")

	ipfsloc, err := interfaces.NewStorageBackendLocation("ipfs://localhost:5001/wallets?timeout=5s")
	require.NoError(t, err)
	backend, err = factory.StorageBackendFor(ipfsloc)
	require.NoError(t, err)
	assert.Equal(t, "ipfs-localhost-5001", backend.Name())

	vaultloc, err := interfaces.NewStorageBackendLocation("vault://vault.internal:8200/secret/wallet-backups")
	require.NoError(t, err)
	backend, err = factory.StorageBackendFor(vaultloc)
	require.NoError(t, err)
	assert.Equal(t, "vault-secret-wallet-backups", backend.Name())

	_, err = interfaces.NewStorageBackendLocation("github://owner/repo")
	require.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	multi, err := factory.CreateMultiBackend([]interfaces.StorageBackendLocation{loc, s3loc})
	require.NoError(t, err)
	assert.Contains(t, multi.LocationURI(), "file://"+dir)
}
