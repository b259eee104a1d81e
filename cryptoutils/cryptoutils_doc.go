// Package cryptoutils provides the credential types and cryptographic
// primitives used by the wallet kernel.
//
// # Credential Types
//
// Every secret-carrying value is a newtype over Secret:
//
//   - EncryptionPin: numeric pin entered for every wallet operation
//   - PlainPassword: the wallet password in clear
//   - EncryptedPassword: the password sealed under a pin-derived key
//   - EncryptionSalt: random KDF salt
//   - AccessToken: bearer token for the wallet backend
//
// All of them redact themselves under fmt, encoding/json, encoding.TextMarshaler
// and log/slog, compare in constant time, and can be scrubbed with Zero.
// Raw bytes are only reachable through Reveal or Use.
//
// Zeroing under a garbage collector is best effort. Strings passed to the
// constructors, and any copy the runtime made while growing slices, cannot be
// scrubbed. Treat this as a residual risk.
//
// # Key Derivation and Encryption
//
// Keys are derived with Argon2id (DeriveKey, KDFParams) and data is sealed
// with AES-256-GCM using 12-byte random nonces (Seal, Open). Authentication
// failures surface as ErrDecryption and nothing more specific.
//
// # Guardian Encryption
//
// Recovery shares can be handed to guardians encrypted to their P-256 public
// keys with ECIES (EncryptForGuardian, DecryptAsGuardian). The binary format is:
//
//	[ephemeral key length (2 bytes)][ephemeral key][nonce (12 bytes)][ciphertext]
//
// # Usage Example
//
//	pin, err := cryptoutils.NewEncryptionPin("1234")
//	password, err := cryptoutils.NewPlainPassword("Str0ng!P@55")
//	salt, err := cryptoutils.NewEncryptionSalt(params.SaltLen)
//
//	material := cryptoutils.CredentialMaterial(pin, password)
//	defer material.Zero()
//	key, err := cryptoutils.DeriveKey(material, salt, params)
//	defer key.Zero()
package cryptoutils
