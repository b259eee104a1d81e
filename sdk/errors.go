package sdk

import (
	"context"
	"errors"
	"fmt"

	"github.com/ruteri/wallet-kernel/config"
	"github.com/ruteri/wallet-kernel/cryptoutils"
	"github.com/ruteri/wallet-kernel/interfaces"
	"github.com/ruteri/wallet-kernel/sharing"
	"github.com/ruteri/wallet-kernel/vault"
	"github.com/ruteri/wallet-kernel/wallet"
)

// Kind classifies every error leaving the SDK.
type Kind int

const (
	KindIo Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindCrypto
	KindCorruption
	KindShare
	KindState
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindCrypto:
		return "crypto"
	case KindCorruption:
		return "corruption"
	case KindShare:
		return "share"
	case KindState:
		return "state"
	case KindExternal:
		return "external"
	default:
		return "io"
	}
}

var (
	// ErrUserNotInitialized is returned when no user has been selected with InitUser.
	ErrUserNotInitialized = errors.New("user not initialized")

	// ErrMissingNetwork is returned when an operation needs a network and none is selected.
	ErrMissingNetwork = errors.New("no network selected")

	// ErrMissingAccessToken is returned when a backend-facing call has no valid token.
	ErrMissingAccessToken = errors.New("missing or expired access token")

	// ErrPasswordNotSet is returned for wallet operations before SetWalletPassword.
	ErrPasswordNotSet = errors.New("wallet password not set")

	// ErrNotConfigured is returned when an optional collaborator or backup
	// storage was not provided.
	ErrNotConfigured = errors.New("collaborator not configured")

	// ErrNetworkNotFound is returned by SetNetwork for an unknown id.
	ErrNetworkNotFound = errors.New("network not found")

	// ErrInvalidAmount is returned for amounts that are not positive decimals
	// within the network's precision.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidArgument is returned for out-of-range paging or share counts.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrExternal marks failures reported by a collaborator.
	ErrExternal = errors.New("collaborator failure")
)

// Error is the single error type returned by Sdk methods. Err keeps the
// component error, so errors.Is still matches component sentinels.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, KindIo for errors the SDK did not produce.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return classify(err)
}

// IsWrongCredentials reports whether err means the pin or password did not
// open the wallet.
func IsWrongCredentials(err error) bool {
	return errors.Is(err, vault.ErrWrongCredentials) || errors.Is(err, cryptoutils.ErrDecryption)
}

// wrap turns a component error into an *Error. Errors that already carry a
// kind keep it.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Op: op, Kind: classify(err), Err: err}
}

func external(err error) error {
	return fmt.Errorf("%w: %w", ErrExternal, err)
}

var kindTable = []struct {
	kind      Kind
	sentinels []error
}{
	{KindExternal, []error{ErrExternal}},
	{KindState, []error{
		ErrUserNotInitialized, ErrMissingNetwork, ErrMissingAccessToken,
		ErrPasswordNotSet, ErrNotConfigured, wallet.ErrManagerClosed,
	}},
	{KindCorruption, []error{vault.ErrCorruption}},
	{KindCrypto, []error{
		vault.ErrWrongCredentials, vault.ErrCrypto, cryptoutils.ErrDecryption,
		cryptoutils.ErrInvalidKDFParams, wallet.ErrInvalidMnemonic,
	}},
	{KindShare, []error{
		sharing.ErrInvalidParameters, sharing.ErrInsufficientShares,
		sharing.ErrInconsistentShares, sharing.ErrMalformedShare, sharing.ErrRecoveryComplete,
	}},
	{KindConflict, []error{wallet.ErrAlreadyBorrowed, wallet.ErrWalletExists, interfaces.ErrUserExists}},
	{KindNotFound, []error{
		wallet.ErrWalletNotFound, wallet.ErrNotLoaded, vault.ErrNotFound,
		interfaces.ErrUserNotFound, interfaces.ErrContentNotFound, ErrNetworkNotFound,
	}},
	{KindValidation, []error{
		cryptoutils.ErrEmptyCredential, cryptoutils.ErrInvalidPin, cryptoutils.ErrWeakPassword,
		cryptoutils.ErrInvalidAccessToken, wallet.ErrInvalidUsername, wallet.ErrUnsupportedNetwork,
		wallet.ErrInvalidAddress, interfaces.ErrInvalidLocationURI, config.ErrInvalidConfig,
		config.ErrMalformedConfig, ErrInvalidAmount, ErrInvalidArgument,
	}},
	{KindIo, []error{vault.ErrIO, interfaces.ErrBackendUnavailable, context.Canceled, context.DeadlineExceeded}},
}

func classify(err error) Kind {
	for _, row := range kindTable {
		for _, sentinel := range row.sentinels {
			if errors.Is(err, sentinel) {
				return row.kind
			}
		}
	}
	return KindIo
}
