// Command walletd serves one wallet session over a local HTTP API.
//
// Configuration comes from an optional file given with --config, overridden
// by WALLETD_* environment variables (WALLETD_DATA_DIR,
// WALLETD_DEFAULT_NETWORK, ...). A config file that cannot be parsed stops
// the daemon at startup.
//
// Users are kept in a SQLite database and vaults in per-user files, both
// under data_dir. When storage_backends are configured, encrypted backups
// are written to them; more than one backend is wrapped in a multi-backend
// that writes to all and reads from the first that answers.
//
// Example:
//
//	walletd --config /etc/walletd.yaml --listen-addr 127.0.0.1:8080 --log-color
package main
