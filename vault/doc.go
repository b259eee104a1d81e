/*
Package vault implements the encrypted wallet file.

A vault file is laid out as

	magic "WKV1" | version | kdf id | time u32 | memory KiB u32 |
	threads | key length | salt length | salt | nonce (12) | ciphertext+tag

All integers are big endian. Everything up to and including the salt is
bound to the ciphertext as AES-GCM additional data, so editing the header is
detected just like editing the ciphertext. The key is Argon2id over
pin || 0x00 || password with the stored salt.

Writes go through a temp file in the same directory that is synced and
renamed over the vault, followed by a sync of the directory. A wrong pin or
password never causes a write.
*/
package vault
