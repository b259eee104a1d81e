package sdk

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ruteri/wallet-kernel/common"
	"github.com/ruteri/wallet-kernel/config"
	"github.com/ruteri/wallet-kernel/cryptoutils"
	"github.com/ruteri/wallet-kernel/interfaces"
	"github.com/ruteri/wallet-kernel/repository"
	"github.com/ruteri/wallet-kernel/sharing"
	"github.com/ruteri/wallet-kernel/storage"
	"github.com/ruteri/wallet-kernel/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	alice         = "alice"
	alicePin      = "1234"
	alicePassword = "Str0ng!P@55"
	ethRecipient  = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
)

type fixture struct {
	sdk       *Sdk
	users     *repository.MemoryRepository
	submitter *MockTransactionSubmitter
	kyc       *MockKycProvider
}

func newFixture(t *testing.T, withBackups bool) *fixture {
	t.Helper()

	cfg := config.Default(t.TempDir())
	cfg.KDF = cryptoutils.TestKDFParams

	f := &fixture{
		users:     repository.NewMemoryRepository(),
		submitter: new(MockTransactionSubmitter),
		kyc:       new(MockKycProvider),
	}
	opts := Options{
		Config:    cfg,
		Log:       common.DiscardLogger(),
		Users:     f.users,
		Submitter: f.submitter,
		Kyc:       f.kyc,
	}
	if withBackups {
		backups, err := storage.NewFileBackend(t.TempDir(), common.DiscardLogger())
		require.NoError(t, err)
		opts.Backups = backups
	}

	s, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	f.sdk = s
	return f
}

func pin(t *testing.T, s string) cryptoutils.EncryptionPin {
	t.Helper()
	p, err := cryptoutils.NewEncryptionPin(s)
	require.NoError(t, err)
	return p
}

func password(t *testing.T, s string) cryptoutils.PlainPassword {
	t.Helper()
	p, err := cryptoutils.NewPlainPassword(s)
	require.NoError(t, err)
	return p
}

// withAlice registers alice, makes her active and sets her password.
func (f *fixture) withAlice(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.sdk.CreateNewUser(ctx, alice))
	require.NoError(t, f.sdk.InitUser(ctx, alice))
	require.NoError(t, f.sdk.SetWalletPassword(ctx, pin(t, alicePin), password(t, alicePassword)))
}

func (f *fixture) mnemonic(t *testing.T) string {
	t.Helper()
	var m string
	require.NoError(t, f.sdk.Wallets().WithBorrow(alice, func(b *wallet.Borrow) error {
		m = string(b.Wallet().Mnemonic().Reveal())
		return nil
	}))
	return m
}

func TestAliceShareRecovery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.withAlice(t)

	mnemonic, err := f.sdk.CreateWalletFromNewMnemonic(ctx, pin(t, alicePin))
	require.NoError(t, err)
	words := strings.Fields(string(mnemonic.Reveal()))
	require.Len(t, words, 24)

	shares, err := f.sdk.CreateWalletShares(ctx, pin(t, alicePin), 5, 3)
	require.NoError(t, err)
	require.Len(t, shares.Shares, 5)
	assert.Equal(t, 3, shares.Threshold)

	require.NoError(t, f.sdk.DeleteWallet(ctx, pin(t, alicePin)))

	err = f.sdk.CreateWalletFromShares(ctx, pin(t, alicePin), []sharing.Share{shares.Shares[0], shares.Shares[2]})
	assert.ErrorIs(t, err, sharing.ErrInsufficientShares)
	assert.Equal(t, KindShare, KindOf(err))

	subset := []sharing.Share{shares.Shares[0], shares.Shares[2], shares.Shares[4]}
	require.NoError(t, f.sdk.CreateWalletFromShares(ctx, pin(t, alicePin), subset))
	assert.Equal(t, string(mnemonic.Reveal()), f.mnemonic(t))
}

func TestUserLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	err := f.sdk.VerifyPin(ctx, pin(t, alicePin))
	assert.ErrorIs(t, err, ErrUserNotInitialized)
	assert.Equal(t, KindState, KindOf(err))

	err = f.sdk.CreateNewUser(ctx, "../etc")
	assert.Equal(t, KindValidation, KindOf(err))

	require.NoError(t, f.sdk.CreateNewUser(ctx, alice))
	err = f.sdk.CreateNewUser(ctx, alice)
	assert.Equal(t, KindConflict, KindOf(err))

	err = f.sdk.InitUser(ctx, "bob")
	assert.Equal(t, KindNotFound, KindOf(err))

	require.NoError(t, f.sdk.InitUser(ctx, alice))
	set, err := f.sdk.IsWalletPasswordSet(ctx)
	require.NoError(t, err)
	assert.False(t, set)

	err = f.sdk.VerifyPin(ctx, pin(t, alicePin))
	assert.ErrorIs(t, err, ErrPasswordNotSet)

	require.NoError(t, f.sdk.SetWalletPassword(ctx, pin(t, alicePin), password(t, alicePassword)))
	set, err = f.sdk.IsWalletPasswordSet(ctx)
	require.NoError(t, err)
	assert.True(t, set)

	stored, err := f.users.Get(ctx, alice)
	require.NoError(t, err)
	assert.NotContains(t, string(stored.EncryptedPassword), alicePassword)

	require.NoError(t, f.sdk.Logout(ctx))
	assert.Equal(t, KindState, KindOf(f.sdk.Logout(ctx)))

	require.NoError(t, f.sdk.InitUser(ctx, alice))
	_, err = f.sdk.CreateWalletFromNewMnemonic(ctx, pin(t, alicePin))
	require.NoError(t, err)

	err = f.sdk.DeleteUser(ctx, pin(t, "9999"))
	assert.True(t, IsWrongCredentials(err))

	require.NoError(t, f.sdk.DeleteUser(ctx, pin(t, alicePin)))
	exists, err := f.sdk.Wallets().Exists(alice)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, KindNotFound, KindOf(f.sdk.InitUser(ctx, alice)))
}

func TestPinAndPassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.withAlice(t)

	require.NoError(t, f.sdk.VerifyPin(ctx, pin(t, alicePin)))

	err := f.sdk.VerifyPin(ctx, pin(t, "9999"))
	assert.True(t, IsWrongCredentials(err))
	assert.Equal(t, KindCrypto, KindOf(err))

	_, err = f.sdk.CreateWalletFromNewMnemonic(ctx, pin(t, alicePin))
	require.NoError(t, err)
	before := f.mnemonic(t)

	t.Run("change pin", func(t *testing.T) {
		require.NoError(t, f.sdk.ChangePin(ctx, pin(t, alicePin), pin(t, "567890")))
		assert.True(t, IsWrongCredentials(f.sdk.VerifyPin(ctx, pin(t, alicePin))))
		require.NoError(t, f.sdk.VerifyPin(ctx, pin(t, "567890")))

		_, err := f.sdk.GenerateNewAddress(ctx, pin(t, "567890"))
		require.NoError(t, err)

		require.NoError(t, f.sdk.Wallets().Unload(alice))
		b, err := f.sdk.Wallets().OpenWallet(ctx, alice, pin(t, alicePin), password(t, alicePassword))
		assert.True(t, IsWrongCredentials(err))
		assert.Nil(t, b)

		b, err = f.sdk.Wallets().OpenWallet(ctx, alice, pin(t, "567890"), password(t, alicePassword))
		require.NoError(t, err)
		b.Release()
	})

	t.Run("change password", func(t *testing.T) {
		assert.True(t, IsWrongCredentials(f.sdk.SetWalletPassword(ctx, pin(t, alicePin), password(t, "N3w-Passw0rd"))))
		require.NoError(t, f.sdk.SetWalletPassword(ctx, pin(t, "567890"), password(t, "N3w-Passw0rd")))

		require.NoError(t, f.sdk.Wallets().Unload(alice))
		_, err := f.sdk.Wallets().OpenWallet(ctx, alice, pin(t, "567890"), password(t, alicePassword))
		assert.True(t, IsWrongCredentials(err))

		b, err := f.sdk.Wallets().OpenWallet(ctx, alice, pin(t, "567890"), password(t, "N3w-Passw0rd"))
		require.NoError(t, err)
		b.Release()
	})

	assert.Equal(t, before, f.mnemonic(t))
}

func TestCreateWalletFromMnemonic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.withAlice(t)

	const phrase = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

	err := f.sdk.CreateWalletFromMnemonic(ctx, pin(t, alicePin), cryptoutils.SecretFromString("abandon abandon abandon"))
	assert.ErrorIs(t, err, wallet.ErrInvalidMnemonic)
	assert.Equal(t, KindCrypto, KindOf(err))

	require.NoError(t, f.sdk.CreateWalletFromMnemonic(ctx, pin(t, alicePin), cryptoutils.SecretFromString(phrase)))
	assert.Equal(t, phrase, f.mnemonic(t))

	err = f.sdk.CreateWalletFromMnemonic(ctx, pin(t, alicePin), cryptoutils.SecretFromString(phrase))
	assert.Equal(t, KindConflict, KindOf(err))

	address, err := f.sdk.GenerateNewAddress(ctx, pin(t, alicePin))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(address, "0x"))

	require.NoError(t, f.sdk.SetNetwork(ctx, "btc"))
	address, err = f.sdk.GenerateNewAddress(ctx, pin(t, alicePin))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(address, "bc1q"))

	assert.Equal(t, KindNotFound, KindOf(f.sdk.SetNetwork(ctx, "doge")))

	networks, err := f.sdk.GetNetworks(ctx)
	require.NoError(t, err)
	assert.Len(t, networks, 2)
}

func TestDeleteWalletTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.withAlice(t)

	_, err := f.sdk.CreateWalletFromNewMnemonic(ctx, pin(t, alicePin))
	require.NoError(t, err)

	require.NoError(t, f.sdk.DeleteWallet(ctx, pin(t, alicePin)))
	err = f.sdk.DeleteWallet(ctx, pin(t, alicePin))
	assert.ErrorIs(t, err, wallet.ErrWalletNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestBorrowContention(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.withAlice(t)

	_, err := f.sdk.CreateWalletFromNewMnemonic(ctx, pin(t, alicePin))
	require.NoError(t, err)

	b, err := f.sdk.Wallets().Borrow(alice)
	require.NoError(t, err)

	_, err = f.sdk.GenerateNewAddress(ctx, pin(t, alicePin))
	assert.ErrorIs(t, err, wallet.ErrAlreadyBorrowed)
	assert.Equal(t, KindConflict, KindOf(err))

	b.Release()
	_, err = f.sdk.GenerateNewAddress(ctx, pin(t, alicePin))
	require.NoError(t, err)
}

func TestGuardianShares(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.withAlice(t)

	_, err := f.sdk.CreateWalletFromNewMnemonic(ctx, pin(t, alicePin))
	require.NoError(t, err)
	before := f.mnemonic(t)

	var (
		pubs  []cryptoutils.GuardianPubkey
		privs []cryptoutils.GuardianPrivkey
	)
	for i := 0; i < 3; i++ {
		pub, priv, err := cryptoutils.RandomGuardianKeypair()
		require.NoError(t, err)
		pubs = append(pubs, pub)
		privs = append(privs, priv)
	}

	sealed, err := f.sdk.CreateWalletSharesForGuardians(ctx, pin(t, alicePin), 2, pubs)
	require.NoError(t, err)
	require.Len(t, sealed, 3)

	var opened []sharing.Share
	for _, i := range []int{2, 0} {
		share, err := sharing.OpenSealedShare(sealed[i], privs[i])
		require.NoError(t, err)
		opened = append(opened, share)
	}

	_, err = sharing.OpenSealedShare(sealed[1], privs[0])
	assert.Error(t, err)

	require.NoError(t, f.sdk.DeleteWallet(ctx, pin(t, alicePin)))
	require.NoError(t, f.sdk.CreateWalletFromShares(ctx, pin(t, alicePin), opened))
	assert.Equal(t, before, f.mnemonic(t))

	_, err = f.sdk.CreateWalletShares(ctx, pin(t, alicePin), 17, 2)
	assert.Equal(t, KindShare, KindOf(err))
}

func TestBackupRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("not configured", func(t *testing.T) {
		f := newFixture(t, false)
		f.withAlice(t)
		_, err := f.sdk.BackupWallet(ctx, pin(t, alicePin))
		assert.ErrorIs(t, err, ErrNotConfigured)
		assert.Equal(t, KindState, KindOf(err))
	})

	f := newFixture(t, true)
	f.withAlice(t)

	_, err := f.sdk.BackupWallet(ctx, pin(t, alicePin))
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = f.sdk.CreateWalletFromNewMnemonic(ctx, pin(t, alicePin))
	require.NoError(t, err)
	before := f.mnemonic(t)

	id, err := f.sdk.BackupWallet(ctx, pin(t, alicePin))
	require.NoError(t, err)

	require.NoError(t, f.sdk.DeleteWallet(ctx, pin(t, alicePin)))
	require.NoError(t, f.sdk.RestoreWalletBackup(ctx, pin(t, alicePin), id))
	assert.Equal(t, before, f.mnemonic(t))

	err = f.sdk.RestoreWalletBackup(ctx, pin(t, alicePin), interfaces.ComputeID([]byte("nothing")))
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestSendAmountAndTransactionList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.withAlice(t)

	_, err := f.sdk.SendAmount(ctx, pin(t, alicePin), ethRecipient, "1", nil)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = f.sdk.CreateWalletFromNewMnemonic(ctx, pin(t, alicePin))
	require.NoError(t, err)

	invalid := []struct {
		name    string
		address string
		amount  string
	}{
		{"bad address", "0x1234", "1"},
		{"btc address on evm", "bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu", "1"},
		{"zero amount", ethRecipient, "0"},
		{"negative amount", ethRecipient, "-1"},
		{"exponent", ethRecipient, "1e3"},
		{"too precise", ethRecipient, "0.0000000000000000001"},
		{"not a number", ethRecipient, "ten"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.sdk.SendAmount(ctx, pin(t, alicePin), tt.address, tt.amount, nil)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}

	submitted := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	f.submitter.On("SubmitTransaction", mock.Anything, mock.MatchedBy(func(tx interfaces.Transaction) bool {
		return tx.To == ethRecipient && tx.Username == alice && tx.Network.ID == "eth" && strings.HasPrefix(tx.From, "0x")
	})).Return(interfaces.TxInfo{TransactionID: "0xaa", Status: "pending", Date: submitted}, nil).Times(3)

	for _, amount := range []string{"1", "0.5", "2.25"} {
		info, err := f.sdk.SendAmount(ctx, pin(t, alicePin), ethRecipient, amount, []byte("memo"))
		require.NoError(t, err)
		assert.Equal(t, "0xaa", info.TransactionID)
	}
	f.submitter.AssertExpectations(t)

	page, err := f.sdk.GetWalletTransactionList(ctx, pin(t, alicePin), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, "0.5", page.Transactions[0].Amount)
	assert.Equal(t, ethRecipient, page.Transactions[0].Receiver)
	assert.Equal(t, "https://etherscan.io/tx/0xaa", page.Transactions[0].ExplorerURL)
	assert.False(t, page.Transactions[0].Incoming)

	page, err = f.sdk.GetWalletTransactionList(ctx, pin(t, alicePin), 0, 10)
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 3)

	page, err = f.sdk.GetWalletTransactionList(ctx, pin(t, alicePin), 10, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Transactions)
	assert.Equal(t, 3, page.Total)

	_, err = f.sdk.GetWalletTransactionList(ctx, pin(t, alicePin), 0, 0)
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = f.sdk.GetWalletTransactionList(ctx, pin(t, "9999"), 0, 10)
	assert.True(t, IsWrongCredentials(err))
}

func TestSendAmountCollaboratorFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.withAlice(t)

	_, err := f.sdk.CreateWalletFromNewMnemonic(ctx, pin(t, alicePin))
	require.NoError(t, err)

	f.submitter.On("SubmitTransaction", mock.Anything, mock.Anything).
		Return(interfaces.TxInfo{}, errors.New("node unreachable")).Once()

	_, err = f.sdk.SendAmount(ctx, pin(t, alicePin), ethRecipient, "1", nil)
	assert.ErrorIs(t, err, ErrExternal)
	assert.Equal(t, KindExternal, KindOf(err))

	page, err := f.sdk.GetWalletTransactionList(ctx, pin(t, alicePin), 0, 10)
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	// the wallet was released before the collaborator was called
	b, err := f.sdk.Wallets().Borrow(alice)
	require.NoError(t, err)
	b.Release()
}

type failingHistory struct {
	*repository.MemoryRepository
}

func (failingHistory) AppendWalletTransaction(context.Context, string, interfaces.WalletTxInfo) error {
	return errors.New("disk full")
}

func TestSendAmountRecordFailureReturnsTxInfo(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default(t.TempDir())
	cfg.KDF = cryptoutils.TestKDFParams
	submitter := new(MockTransactionSubmitter)

	s, err := New(Options{
		Config:    cfg,
		Log:       common.DiscardLogger(),
		Users:     failingHistory{repository.NewMemoryRepository()},
		Submitter: submitter,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.CreateNewUser(ctx, alice))
	require.NoError(t, s.InitUser(ctx, alice))
	require.NoError(t, s.SetWalletPassword(ctx, pin(t, alicePin), password(t, alicePassword)))
	_, err = s.CreateWalletFromNewMnemonic(ctx, pin(t, alicePin))
	require.NoError(t, err)

	submitter.On("SubmitTransaction", mock.Anything, mock.Anything).
		Return(interfaces.TxInfo{TransactionID: "0xbb", Status: "pending"}, nil).Once()

	info, err := s.SendAmount(ctx, pin(t, alicePin), ethRecipient, "1", nil)
	require.Error(t, err)
	assert.NotEqual(t, KindExternal, KindOf(err), "The transfer itself succeeded")
	assert.Equal(t, "0xbb", info.TransactionID, "The submitted transfer is reported alongside the error")
	submitter.AssertExpectations(t)
}

func TestKycStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.withAlice(t)

	_, err := f.sdk.GetKycStatus(ctx)
	assert.ErrorIs(t, err, ErrMissingAccessToken)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("test"))
	require.NoError(t, err)
	assert.Equal(t, KindValidation, KindOf(f.sdk.RefreshAccessToken(ctx, expired)))
	assert.Equal(t, KindValidation, KindOf(f.sdk.RefreshAccessToken(ctx, "a.b.c")))

	valid, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test"))
	require.NoError(t, err)
	require.NoError(t, f.sdk.RefreshAccessToken(ctx, valid))

	f.kyc.On("FetchKycStatus", mock.Anything, alice).Return(interfaces.ViviswapKycStatus{
		FullName:           "Alice",
		VerificationStatus: interfaces.ViviswapVerified,
	}, nil).Once()

	verified, err := f.sdk.IsKycVerified(ctx)
	require.NoError(t, err)
	assert.True(t, verified)

	user, err := f.users.Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, interfaces.KycVerified, user.KycStatus)

	f.kyc.On("FetchKycStatus", mock.Anything, alice).Return(interfaces.ViviswapKycStatus{}, errors.New("partner down")).Once()
	_, err = f.sdk.GetKycStatus(ctx)
	assert.Equal(t, KindExternal, KindOf(err))
	f.kyc.AssertExpectations(t)
}

func TestCreateWalletFromRecovery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.withAlice(t)

	_, err := f.sdk.CreateWalletFromNewMnemonic(ctx, pin(t, alicePin))
	require.NoError(t, err)
	before := f.mnemonic(t)

	shares, err := f.sdk.CreateWalletShares(ctx, pin(t, alicePin), 3, 2)
	require.NoError(t, err)
	require.NoError(t, f.sdk.DeleteWallet(ctx, pin(t, alicePin)))

	r := sharing.NewRecovery()
	err = f.sdk.CreateWalletFromRecovery(ctx, pin(t, alicePin), r)
	assert.ErrorIs(t, err, sharing.ErrInsufficientShares)

	for _, i := range []int{1, 2} {
		_, err := r.Submit(shares.Shares[i])
		require.NoError(t, err)
	}
	require.NoError(t, f.sdk.CreateWalletFromRecovery(ctx, pin(t, alicePin), r))
	assert.Equal(t, before, f.mnemonic(t))
}
