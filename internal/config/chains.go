package config

import "fmt"

// Supported EVM chain IDs.
const (
	ChainIDEthereum uint64 = 1
	ChainIDBase     uint64 = 8453
)

// Canonical chain names used as config keys and API identifiers.
const (
	ChainNameEthereum = "ethereum"
	ChainNameBase     = "base"
)

// Chain describes a supported EVM chain.
type Chain struct {
	// ID is the EVM chain ID.
	ID uint64

	// Name is the canonical chain name.
	Name string

	// DefaultOrderbookURL is the settlement orderbook for this chain,
	// used when the config does not override it.
	DefaultOrderbookURL string
}

var chains = map[uint64]*Chain{
	ChainIDEthereum: {
		ID:                  ChainIDEthereum,
		Name:                ChainNameEthereum,
		DefaultOrderbookURL: "https://api.cow.fi/mainnet",
	},
	ChainIDBase: {
		ID:                  ChainIDBase,
		Name:                ChainNameBase,
		DefaultOrderbookURL: "https://api.cow.fi/base",
	},
}

// ChainByID returns the chain registered for an EVM chain ID.
func ChainByID(chainID uint64) (*Chain, error) {
	ch, ok := chains[chainID]
	if !ok {
		return nil, fmt.Errorf("unsupported chain id: %d", chainID)
	}
	return ch, nil
}

// ChainByName returns the chain registered under a canonical name.
func ChainByName(name string) (*Chain, error) {
	for _, ch := range chains {
		if ch.Name == name {
			return ch, nil
		}
	}
	return nil, fmt.Errorf("unsupported chain: %s", name)
}

// IsSupportedChain reports whether a chain ID is in the supported set.
func IsSupportedChain(chainID uint64) bool {
	_, ok := chains[chainID]
	return ok
}

// SupportedChainIDs returns all supported chain IDs.
func SupportedChainIDs() []uint64 {
	ids := make([]uint64, 0, len(chains))
	for id := range chains {
		ids = append(ids, id)
	}
	return ids
}
