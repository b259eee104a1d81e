/*
Package wallet holds decrypted wallets in memory and enforces exclusive,
non-blocking access to them.

A wallet moves through these states per username:

	Unloaded -> Loaded -> Borrowed -> Loaded -> ... -> Unloaded
	                 \-> Deleted

Create, open, delete, rekey and restore hold a transient busy marker while
they derive keys and touch the disk. Any Borrow attempted against a busy or
borrowed wallet fails at once with ErrAlreadyBorrowed; nothing ever waits.

Wallets are built from BIP-39 entropy. Only the entropy and the per-network
address indices are stored in the vault; the mnemonic and seed are derived
on load.
*/
package wallet
