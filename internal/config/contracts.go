package config

import "github.com/ethereum/go-ethereum/common"

// Protocol contract addresses. The settlement contract, its vault relayer,
// Multicall3, and the CBBTC token are deployed at the same address on every
// supported chain.
var (
	// GPv2Settlement is the settlement contract that verifies order
	// signatures and executes trades.
	GPv2Settlement = common.HexToAddress("0x9008D19f58AAbD9eD0D60971565AA8510560ab41")

	// VaultRelayer is the contract that pulls sell tokens during
	// settlement. It is the spender in every permit.
	VaultRelayer = common.HexToAddress("0xC92E8bdf79f0507f65a392b0ab4667716BFE0110")

	// CBBTCToken is the Coinbase Wrapped BTC token.
	CBBTCToken = common.HexToAddress("0xcbB7C0000aB88B473b1f5aFd9ef808440eed33Bf")

	// Multicall3 is the batched read-call aggregator.
	Multicall3 = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")

	// NativeSentinel is the pseudo-address the orderbook uses for the
	// native token (ETH) as a buy token.
	NativeSentinel = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")
)

// CBBTC token parameters.
const (
	// CBBTCDecimals is the CBBTC token decimal count.
	CBBTCDecimals uint8 = 8

	// CBBTCPermitName is the EIP-2612 domain name of the CBBTC token.
	CBBTCPermitName = "Coinbase Wrapped BTC"

	// CBBTCPermitVersion is the EIP-2612 domain version of the CBBTC token.
	CBBTCPermitVersion = "2"
)

// Settlement domain parameters for order signing.
const (
	// SettlementDomainName is the EIP-712 domain name of the settlement
	// contract.
	SettlementDomainName = "Gnosis Protocol"

	// SettlementDomainVersion is the EIP-712 domain version of the
	// settlement contract.
	SettlementDomainVersion = "v2"
)
