// Package storage keeps off-site copies of encrypted wallet backups and
// encoded shares in pluggable, content-addressed backends.
//
// Blobs handed to this package are already encrypted (vault files) or
// guardian-sealed (shares); the backends never see key material. Each blob is
// identified by the SHA-256 hash of its bytes, so a backup ID can be written
// down and the blob fetched from any replica later.
//
// # Storage URI Format
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - file:///mnt/usb/wallet-backups
//   - s3://ACCESS:SECRET@bucket-name/prefix?region=eu-central-1&endpoint=minio:9000
//   - ipfs://localhost:5001/wallet-kernel?timeout=30s
//   - vault://TOKEN@vault.example.com:8200/secret/wallet-backups
//
// # Redundancy
//
// MultiStorageBackend writes to every available backend and reads from the
// first replica whose bytes hash to the requested ID.
package storage
