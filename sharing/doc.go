// Package sharing implements threshold secret sharing for wallet seed backup.
//
// Split divides a secret into N shares with threshold K using Shamir's scheme
// over GF(2^8) (hashicorp/vault/shamir): any K shares reconstruct the secret
// and fewer reveal nothing about it. Every Share carries the SplitID of the
// call that produced it, its 1-based Index, K and N, so Reconstruct can tell
// shares of different splits apart instead of silently producing garbage.
//
// Shares are exchanged out of band in the text form produced by Share.Encode,
// optionally sealed to a guardian's public key with SealForGuardian. Recovery
// accumulates shares submitted one at a time.
//
// All functions are pure over their inputs and safe for concurrent use;
// Recovery guards its own state.
package sharing
