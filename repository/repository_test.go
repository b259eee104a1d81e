package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ruteri/wallet-kernel/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repositories(t *testing.T) map[string]interfaces.UserRepository {
	t.Helper()

	sqlite, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]interfaces.UserRepository{
		"sqlite": sqlite,
		"memory": NewMemoryRepository(),
	}
}

func TestUserRepository_Lifecycle(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			user := &interfaces.UserEntity{Username: "alice"}
			require.NoError(t, repo.Create(ctx, user))
			assert.False(t, user.CreatedAt.IsZero())

			err := repo.Create(ctx, &interfaces.UserEntity{Username: "alice"})
			assert.ErrorIs(t, err, interfaces.ErrUserExists)

			got, err := repo.Get(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, "alice", got.Username)
			assert.False(t, got.HasPassword())
			assert.Equal(t, interfaces.KycUndefined, got.KycStatus)

			got.EncryptedPassword = []byte{1, 2, 3}
			got.Salt = []byte{4, 5}
			got.KycStatus = interfaces.KycVerified
			require.NoError(t, repo.Update(ctx, got))

			got, err = repo.Get(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, []byte{1, 2, 3}, got.EncryptedPassword)
			assert.Equal(t, []byte{4, 5}, got.Salt)
			assert.Equal(t, interfaces.KycVerified, got.KycStatus)

			require.NoError(t, repo.Create(ctx, &interfaces.UserEntity{Username: "bob"}))
			names, err := repo.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"alice", "bob"}, names)

			require.NoError(t, repo.Delete(ctx, "alice"))
			assert.ErrorIs(t, repo.Delete(ctx, "alice"), interfaces.ErrUserNotFound)

			_, err = repo.Get(ctx, "alice")
			assert.ErrorIs(t, err, interfaces.ErrUserNotFound)

			err = repo.Update(ctx, &interfaces.UserEntity{Username: "alice"})
			assert.ErrorIs(t, err, interfaces.ErrUserNotFound)
		})
	}
}

func TestUserRepository_WalletTransactions(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Create(ctx, &interfaces.UserEntity{Username: "alice"}))

			date := time.Date(2026, 3, 1, 12, 30, 0, 123, time.UTC)
			txs := []interfaces.WalletTxInfo{
				{Date: date, TransactionID: "0x01", Receiver: "0xabc", Amount: "1.5", Network: "eth", Status: "pending"},
				{Date: date.Add(time.Hour), TransactionID: "0x02", Incoming: true, Amount: "0.25", Network: "eth", Status: "confirmed", BlockID: "42"},
			}
			for _, tx := range txs {
				require.NoError(t, repo.AppendWalletTransaction(ctx, "alice", tx))
			}

			got, err := repo.Get(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, txs, got.WalletTransactions)

			// Update leaves the history alone.
			got.WalletTransactions = nil
			require.NoError(t, repo.Update(ctx, got))
			got, err = repo.Get(ctx, "alice")
			require.NoError(t, err)
			assert.Len(t, got.WalletTransactions, 2)

			err = repo.AppendWalletTransaction(ctx, "nobody", txs[0])
			assert.ErrorIs(t, err, interfaces.ErrUserNotFound)
		})
	}
}

func TestSQLiteRepository_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.db")

	repo, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, &interfaces.UserEntity{Username: "alice", EncryptedPassword: []byte("sealed")}))
	require.NoError(t, repo.AppendWalletTransaction(ctx, "alice", interfaces.WalletTxInfo{
		Date: time.Now().UTC(), TransactionID: "0x01", Amount: "1", Network: "eth",
	}))
	require.NoError(t, repo.Close())

	// Reopening re-runs migrations as a no-op.
	repo, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer repo.Close()

	got, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []byte("sealed"), got.EncryptedPassword)
	assert.Len(t, got.WalletTransactions, 1)

	// Deleting a user cascades to the history.
	require.NoError(t, repo.Delete(ctx, "alice"))
	var n int
	require.NoError(t, repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM wallet_transactions`).Scan(&n))
	assert.Zero(t, n)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.Create(ctx, &interfaces.UserEntity{Username: "alice", Salt: []byte{1}}))

	got, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	got.Salt[0] = 9

	again, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, again.Salt)
}
