package config

import (
	"github.com/ruteri/wallet-kernel/cryptoutils"
	"github.com/ruteri/wallet-kernel/interfaces"
	"github.com/spf13/viper"
)

var defaultSharing = SharingConfig{
	MaxShares:        16,
	DefaultTotal:     5,
	DefaultThreshold: 3,
}

var defaultCurrencies = []string{"ETH", "BTC"}

var defaultNetworks = []interfaces.Network{
	{
		ID:               "eth",
		Name:             "Ethereum",
		Type:             interfaces.NetworkTypeEVM,
		Currency:         "ETH",
		Decimals:         18,
		CoinType:         60,
		ChainID:          1,
		NodeURL:          "https://ethereum-rpc.publicnode.com",
		BlockExplorerURL: "https://etherscan.io/tx/",
	},
	{
		ID:               "btc",
		Name:             "Bitcoin",
		Type:             interfaces.NetworkTypeUTXO,
		Currency:         "BTC",
		Decimals:         8,
		CoinType:         0,
		Chain:            "mainnet",
		BlockExplorerURL: "https://mempool.space/tx/",
	},
}

func setDefaults(v *viper.Viper) {
	kdf := cryptoutils.DefaultKDFParams
	v.SetDefault("kdf.time", kdf.Time)
	v.SetDefault("kdf.memory_kib", kdf.MemoryKiB)
	v.SetDefault("kdf.threads", kdf.Threads)
	v.SetDefault("kdf.key_len", kdf.KeyLen)
	v.SetDefault("kdf.salt_len", kdf.SaltLen)

	cred := cryptoutils.DefaultCredentialPolicy
	v.SetDefault("credentials.min_pin_length", cred.MinPinLength)
	v.SetDefault("credentials.max_pin_length", cred.MaxPinLength)
	v.SetDefault("credentials.min_password_length", cred.MinPasswordLength)
	v.SetDefault("credentials.min_password_classes", cred.MinPasswordClasses)

	v.SetDefault("sharing.max_shares", defaultSharing.MaxShares)
	v.SetDefault("sharing.default_total", defaultSharing.DefaultTotal)
	v.SetDefault("sharing.default_threshold", defaultSharing.DefaultThreshold)

	v.SetDefault("data_dir", "./walletd-data")
	v.SetDefault("backend_url", "")
	v.SetDefault("default_network", defaultNetworks[0].ID)
	v.SetDefault("networks", networkMaps(defaultNetworks))
	v.SetDefault("currencies", defaultCurrencies)
	v.SetDefault("storage_backends", []string{})
}

// networkMaps renders networks in the shape a config file decodes to, so
// defaults and file values go through the same decoder.
func networkMaps(networks []interfaces.Network) []map[string]any {
	out := make([]map[string]any, 0, len(networks))
	for _, n := range networks {
		out = append(out, map[string]any{
			"id":                 n.ID,
			"name":               n.Name,
			"type":               string(n.Type),
			"currency":           n.Currency,
			"decimals":           n.Decimals,
			"coin_type":          n.CoinType,
			"chain_id":           n.ChainID,
			"chain":              n.Chain,
			"node_url":           n.NodeURL,
			"block_explorer_url": n.BlockExplorerURL,
		})
	}
	return out
}
