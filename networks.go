package x402

import "math/big"

// Cronos networks accepted by the facilitator
const (
	NetworkCronosMainnet Network = "cronos-mainnet"
	NetworkCronosTestnet Network = "cronos-testnet"
)

// DefaultNetwork is used when no network is configured.
const DefaultNetwork = NetworkCronosTestnet

// AssetInfo describes the stablecoin charged on a network.
type AssetInfo struct {
	Address  string
	Name     string
	Decimals int32
	// EIP-712 domain of the token contract
	DomainName    string
	DomainVersion string
}

// NetworkConfig holds per-network constants.
type NetworkConfig struct {
	ChainID      *big.Int
	DefaultAsset AssetInfo
}

// NetworkConfigs lists the supported Cronos networks.
var NetworkConfigs = map[Network]NetworkConfig{
	NetworkCronosMainnet: {
		ChainID: big.NewInt(25),
		DefaultAsset: AssetInfo{
			Address:       "0xf951eC28187D9E5Ca673Da8FE6757E6f0Be5F77C",
			Name:          "USDCe",
			Decimals:      6,
			DomainName:    "Bridged USDC (Stargate)",
			DomainVersion: "1",
		},
	},
	NetworkCronosTestnet: {
		ChainID: big.NewInt(338),
		DefaultAsset: AssetInfo{
			Address:       "0xc01efAaF7C5C61bEbFAeb358E1161b537b8bC0e0",
			Name:          "devUSDCe",
			Decimals:      6,
			DomainName:    "Bridged USDC (Stargate)",
			DomainVersion: "1",
		},
	},
}

// GetNetworkConfig returns the constants for a network.
func GetNetworkConfig(network Network) (NetworkConfig, bool) {
	cfg, ok := NetworkConfigs[network]
	return cfg, ok
}

// DefaultAssetFor returns the default asset address for a network, or "" if
// the network is unknown.
func DefaultAssetFor(network Network) string {
	cfg, ok := NetworkConfigs[network]
	if !ok {
		return ""
	}
	return cfg.DefaultAsset.Address
}
