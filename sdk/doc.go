// Package sdk is the API boundary of the wallet kernel.
//
// An Sdk holds one session: the active user chosen with InitUser, the
// selected network and the backend access token. Wallet operations take the
// user's pin; the wallet password is stored wrapped under the pin by
// SetWalletPassword and unwrapped per call, so the pin alone unlocks the
// vault. Decrypted wallets live in a wallet.Manager and are only touched
// through scoped borrows that are released before a method returns.
//
// Every method returns either nil or an *Error whose Kind classifies the
// failure. The component sentinel stays in the chain:
//
//	err := s.VerifyPin(ctx, pin)
//	if sdk.IsWrongCredentials(err) {
//		// ask again
//	}
//	if sdk.KindOf(err) == sdk.KindState {
//		// call InitUser first
//	}
//
// Transfers and KYC checks are delegated to the TransactionSubmitter and
// KycProvider collaborators.
package sdk
