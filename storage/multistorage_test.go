package storage

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/ruteri/wallet-kernel/common"
	"github.com/ruteri/wallet-kernel/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStorageBackend mocks interfaces.StorageBackend
type MockStorageBackend struct {
	mock.Mock
	name string
}

func (m *MockStorageBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	args := m.Called(ctx, id, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStorageBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	args := m.Called(ctx, data, contentType)
	return args.Get(0).(interfaces.ContentID), args.Error(1)
}

func (m *MockStorageBackend) Available(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *MockStorageBackend) Name() string        { return m.name }
func (m *MockStorageBackend) LocationURI() string { return "mock://" + m.name }

func replica(name string, available bool) *MockStorageBackend {
	m := &MockStorageBackend{name: name}
	m.On("Available", mock.Anything).Return(available).Maybe()
	return m
}

func backends(mocks ...*MockStorageBackend) []interfaces.StorageBackend {
	out := make([]interfaces.StorageBackend, len(mocks))
	for i, m := range mocks {
		out[i] = m
	}
	return out
}

// an encrypted vault blob as BackupWallet would hand it over
var backupBlob = []byte("WKV1\x01\x01opaque-ciphertext")

func TestMultiStorageAvailable(t *testing.T) {
	tests := []struct {
		name      string
		available []bool
		want      bool
	}{
		{"all up", []bool{true, true}, true},
		{"one up", []bool{false, true, false}, true},
		{"all down", []bool{false, false}, false},
		{"none configured", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mocks []*MockStorageBackend
			for i, up := range tt.available {
				mocks = append(mocks, replica(string(rune('a'+i)), up))
			}
			multi := NewMultiStorageBackend(backends(mocks...), common.DiscardLogger())
			assert.Equal(t, tt.want, multi.Available(context.Background()))
		})
	}
}

func TestMultiStorageFetch(t *testing.T) {
	id := interfaces.ComputeID(backupBlob)
	tampered := append([]byte{}, backupBlob...)
	tampered[len(tampered)-1] ^= 0xff

	tests := []struct {
		name    string
		setup   func() []*MockStorageBackend
		wantErr error
	}{
		{
			name: "first replica answers",
			setup: func() []*MockStorageBackend {
				a := replica("a", true)
				a.On("Fetch", mock.Anything, id, interfaces.BackupType).Return(backupBlob, nil)
				return []*MockStorageBackend{a, replica("b", true)}
			},
		},
		{
			name: "unavailable replica is skipped",
			setup: func() []*MockStorageBackend {
				b := replica("b", true)
				b.On("Fetch", mock.Anything, id, interfaces.BackupType).Return(backupBlob, nil)
				return []*MockStorageBackend{replica("a", false), b}
			},
		},
		{
			name: "tampered replica does not shadow a good one",
			setup: func() []*MockStorageBackend {
				a := replica("a", true)
				a.On("Fetch", mock.Anything, id, interfaces.BackupType).Return(tampered, nil)
				b := replica("b", true)
				b.On("Fetch", mock.Anything, id, interfaces.BackupType).Return(backupBlob, nil)
				return []*MockStorageBackend{a, b}
			},
		},
		{
			name: "missing everywhere is not found",
			setup: func() []*MockStorageBackend {
				a := replica("a", true)
				a.On("Fetch", mock.Anything, id, interfaces.BackupType).Return(nil, interfaces.ErrContentNotFound)
				b := replica("b", true)
				b.On("Fetch", mock.Anything, id, interfaces.BackupType).Return(nil, interfaces.ErrContentNotFound)
				return []*MockStorageBackend{a, b}
			},
			wantErr: interfaces.ErrContentNotFound,
		},
		{
			name: "nothing reachable",
			setup: func() []*MockStorageBackend {
				return []*MockStorageBackend{replica("a", false), replica("b", false)}
			},
			wantErr: interfaces.ErrBackendUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mocks := tt.setup()
			multi := NewMultiStorageBackend(backends(mocks...), common.DiscardLogger())

			data, err := multi.Fetch(context.Background(), id, interfaces.BackupType)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, backupBlob, data)
			for _, m := range mocks {
				m.AssertExpectations(t)
			}
		})
	}

	t.Run("mixed failures are reported", func(t *testing.T) {
		a := replica("a", true)
		a.On("Fetch", mock.Anything, id, interfaces.BackupType).Return(nil, errors.New("connection reset"))
		b := replica("b", true)
		b.On("Fetch", mock.Anything, id, interfaces.BackupType).Return(nil, interfaces.ErrContentNotFound)

		_, err := NewMultiStorageBackend(backends(a, b), common.DiscardLogger()).Fetch(context.Background(), id, interfaces.BackupType)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "a: connection reset")
		assert.Contains(t, err.Error(), "b: content not found")
	})
}

func TestMultiStorageStore(t *testing.T) {
	id := interfaces.ComputeID(backupBlob)

	t.Run("replicates to every available backend", func(t *testing.T) {
		a := replica("a", true)
		a.On("Store", mock.Anything, backupBlob, interfaces.BackupType).Return(id, nil).Once()
		b := replica("b", true)
		b.On("Store", mock.Anything, backupBlob, interfaces.BackupType).Return(id, nil).Once()
		c := replica("c", false)

		got, err := NewMultiStorageBackend(backends(a, b, c), common.DiscardLogger()).Store(context.Background(), backupBlob, interfaces.BackupType)
		require.NoError(t, err)
		assert.Equal(t, id, got)
		a.AssertExpectations(t)
		b.AssertExpectations(t)
		c.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("one replica is enough", func(t *testing.T) {
		a := replica("a", true)
		a.On("Store", mock.Anything, backupBlob, interfaces.BackupType).Return(interfaces.ContentID{}, errors.New("quota exceeded"))
		b := replica("b", true)
		b.On("Store", mock.Anything, backupBlob, interfaces.BackupType).Return(id, nil)

		got, err := NewMultiStorageBackend(backends(a, b), common.DiscardLogger()).Store(context.Background(), backupBlob, interfaces.BackupType)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})

	t.Run("a backend reporting another id counts as failed", func(t *testing.T) {
		a := replica("a", true)
		a.On("Store", mock.Anything, backupBlob, interfaces.BackupType).Return(interfaces.ComputeID([]byte("other")), nil)

		_, err := NewMultiStorageBackend(backends(a), common.DiscardLogger()).Store(context.Background(), backupBlob, interfaces.BackupType)
		assert.ErrorContains(t, err, "backend returned id")
	})

	t.Run("all replicas down", func(t *testing.T) {
		_, err := NewMultiStorageBackend(backends(replica("a", false), replica("b", false)), common.DiscardLogger()).
			Store(context.Background(), backupBlob, interfaces.BackupType)
		assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
	})
}

func TestMultiStorageFileReplicas(t *testing.T) {
	ctx := context.Background()
	first, err := NewFileBackend(t.TempDir(), common.DiscardLogger())
	require.NoError(t, err)
	second, err := NewFileBackend(t.TempDir(), common.DiscardLogger())
	require.NoError(t, err)

	multi := NewMultiStorageBackend([]interfaces.StorageBackend{first, second}, common.DiscardLogger())
	id, err := multi.Store(ctx, backupBlob, interfaces.BackupType)
	require.NoError(t, err)

	for _, b := range []*FileBackend{first, second} {
		data, err := b.Fetch(ctx, id, interfaces.BackupType)
		require.NoError(t, err)
		assert.Equal(t, backupBlob, data)
	}

	// corrupt the first replica on disk; reads fall through to the second
	require.NoError(t, os.WriteFile(first.getFilePath(id, interfaces.BackupType), []byte("garbage"), 0o600))
	data, err := multi.Fetch(ctx, id, interfaces.BackupType)
	require.NoError(t, err)
	assert.Equal(t, backupBlob, data)

	_, err = multi.Fetch(ctx, id, interfaces.ShareType)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}
