package sdk

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ruteri/wallet-kernel/cryptoutils"
	"github.com/ruteri/wallet-kernel/interfaces"
	"github.com/ruteri/wallet-kernel/sharing"
	"github.com/ruteri/wallet-kernel/vault"
	"github.com/ruteri/wallet-kernel/wallet"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		kind Kind
	}{
		{cryptoutils.ErrInvalidPin, KindValidation},
		{cryptoutils.ErrWeakPassword, KindValidation},
		{wallet.ErrInvalidUsername, KindValidation},
		{interfaces.ErrUserNotFound, KindNotFound},
		{wallet.ErrWalletNotFound, KindNotFound},
		{wallet.ErrNotLoaded, KindNotFound},
		{wallet.ErrAlreadyBorrowed, KindConflict},
		{wallet.ErrWalletExists, KindConflict},
		{interfaces.ErrUserExists, KindConflict},
		{vault.ErrWrongCredentials, KindCrypto},
		{cryptoutils.ErrDecryption, KindCrypto},
		{vault.ErrCorruption, KindCorruption},
		{sharing.ErrInsufficientShares, KindShare},
		{sharing.ErrInconsistentShares, KindShare},
		{sharing.ErrInvalidParameters, KindShare},
		{vault.ErrIO, KindIo},
		{ErrUserNotInitialized, KindState},
		{wallet.ErrManagerClosed, KindState},
		{external(errors.New("boom")), KindExternal},
		{context.Canceled, KindIo},
		{errors.New("unclassified"), KindIo},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, tt.kind, KindOf(fmt.Errorf("context: %w", tt.err)))

			wrapped := wrap("op", tt.err)
			var e *Error
			assert.ErrorAs(t, wrapped, &e)
			assert.Equal(t, tt.kind, e.Kind)
			assert.ErrorIs(t, wrapped, tt.err)
		})
	}
}

func TestWrap(t *testing.T) {
	assert.NoError(t, wrap("op", nil))

	inner := wrap("inner", vault.ErrCorruption)
	outer := wrap("outer", fmt.Errorf("more: %w", inner))
	var e *Error
	assert.ErrorAs(t, outer, &e)
	assert.Equal(t, "inner", e.Op)
	assert.Equal(t, KindCorruption, e.Kind)

	assert.Equal(t, "open: crypto: wrong credentials", wrap("open", vault.ErrWrongCredentials).Error())
}

func TestIsWrongCredentials(t *testing.T) {
	assert.True(t, IsWrongCredentials(wrap("open", vault.ErrWrongCredentials)))
	assert.True(t, IsWrongCredentials(fmt.Errorf("pin rejected: %w", cryptoutils.ErrDecryption)))
	assert.False(t, IsWrongCredentials(vault.ErrCorruption))
	assert.False(t, IsWrongCredentials(nil))
}
