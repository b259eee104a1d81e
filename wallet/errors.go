package wallet

import "errors"

var (
	// ErrAlreadyBorrowed is returned when a wallet is borrowed or has an
	// operation in flight. Callers may retry later.
	ErrAlreadyBorrowed = errors.New("wallet already borrowed")

	// ErrWalletExists is returned when creating a wallet for a username that
	// already has one.
	ErrWalletExists = errors.New("wallet already exists")

	// ErrWalletNotFound is returned when no vault exists for the username.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrNotLoaded is returned by Borrow when the wallet has not been opened.
	ErrNotLoaded = errors.New("wallet not loaded")

	// ErrInvalidMnemonic is returned for a mnemonic with a bad checksum or
	// unknown words and for entropy of an unsupported length.
	ErrInvalidMnemonic = errors.New("invalid mnemonic or seed entropy")

	// ErrInvalidUsername is returned for usernames that cannot name a vault file.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrUnsupportedNetwork is returned for networks the wallet cannot derive
	// addresses for.
	ErrUnsupportedNetwork = errors.New("unsupported network")

	// ErrManagerClosed is returned after Close.
	ErrManagerClosed = errors.New("wallet manager closed")
)
