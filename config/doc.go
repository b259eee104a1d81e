// Package config loads the daemon and SDK configuration.
//
// A Config is read once with Load and never modified afterwards. Values come
// from built-in defaults, then the configuration file (YAML, JSON or TOML by
// extension), then WALLETD_* environment variables. A file that cannot be
// parsed, carries unknown keys, or fails Validate is fatal to the caller.
//
// Example:
//
//	data_dir: /var/lib/walletd
//	kdf:
//	  time: 3
//	  memory_kib: 65536
//	sharing:
//	  max_shares: 10
//	networks:
//	  - id: sepolia
//	    type: evm
//	    chain_id: 11155111
//	    coin_type: 60
//	    currency: ETH
//	    decimals: 18
//	storage_backends:
//	  - file:///var/backups/walletd
package config
