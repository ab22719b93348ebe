package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/vaultswap/vaultswapd/internal/config"
)

// BatchSize caps the number of calls bundled into one aggregate3 request.
// RPC providers start rejecting larger payloads well before the contract
// itself would.
const BatchSize = 7500

// Multicall3 aggregate3 fragment; the only function we use.
const multicall3ABI = `[{"inputs":[{"components":[{"internalType":"address","name":"target","type":"address"},{"internalType":"bool","name":"allowFailure","type":"bool"},{"internalType":"bytes","name":"callData","type":"bytes"}],"internalType":"struct Multicall3.Call3[]","name":"calls","type":"tuple[]"}],"name":"aggregate3","outputs":[{"components":[{"internalType":"bool","name":"success","type":"bool"},{"internalType":"bytes","name":"returnData","type":"bytes"}],"internalType":"struct Multicall3.Result[]","name":"returnData","type":"tuple[]"}],"stateMutability":"payable","type":"function"}]`

var multicallABI = mustParseABI(multicall3ABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid ABI: %v", err))
	}
	return parsed
}

// Call3 is one aggregate3 sub-call.
type Call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

// Result is one aggregate3 sub-result.
type Result struct {
	Success    bool
	ReturnData []byte
}

// Aggregate3 bundles calls into a single eth_call against Multicall3.
// Callers set AllowFailure per sub-call; a whole-batch failure is returned
// as an error.
func (c *Client) Aggregate3(ctx context.Context, calls []Call3) ([]Result, error) {
	data, err := multicallABI.Pack("aggregate3", calls)
	if err != nil {
		return nil, fmt.Errorf("failed to pack aggregate3: %w", err)
	}

	ret, err := c.call(ctx, config.Multicall3, data)
	if err != nil {
		return nil, fmt.Errorf("aggregate3 call failed: %w", err)
	}

	out, err := multicallABI.Unpack("aggregate3", ret)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack aggregate3: %w", err)
	}

	results := *abi.ConvertType(out[0], new([]Result)).(*[]Result)
	if len(results) != len(calls) {
		return nil, fmt.Errorf("aggregate3 returned %d results for %d calls", len(results), len(calls))
	}
	return results, nil
}

// BalancesOf reads the ERC-20 balance of token at every owner, preserving
// input order. Owners are chunked at BatchSize per request. A sub-call that
// reverts yields a zero balance; only a whole-batch RPC failure errors.
func (c *Client) BalancesOf(ctx context.Context, token common.Address, owners []common.Address) ([]*big.Int, error) {
	balances := make([]*big.Int, 0, len(owners))

	for _, chunk := range chunkAddresses(owners, BatchSize) {
		calls := make([]Call3, len(chunk))
		for i, owner := range chunk {
			calls[i] = Call3{
				Target:       token,
				AllowFailure: true,
				CallData:     PackBalanceOf(owner),
			}
		}

		results, err := c.Aggregate3(ctx, calls)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			balances = append(balances, decodeBalance(r))
		}
	}

	return balances, nil
}

// decodeBalance turns one sub-result into a balance; failures count as zero.
func decodeBalance(r Result) *big.Int {
	if !r.Success || len(r.ReturnData) == 0 {
		return new(big.Int)
	}
	return new(big.Int).SetBytes(r.ReturnData)
}

func chunkAddresses(addrs []common.Address, size int) [][]common.Address {
	var chunks [][]common.Address
	for len(addrs) > size {
		chunks = append(chunks, addrs[:size])
		addrs = addrs[size:]
	}
	if len(addrs) > 0 {
		chunks = append(chunks, addrs)
	}
	return chunks
}
