// Package evm provides read-only chain access: batched CBBTC balance reads
// for deposit detection and permit nonce lookups for order signing.
package evm

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client wraps an ethclient connection to one chain.
type Client struct {
	client  *ethclient.Client
	chainID uint64
}

// Dial connects to an RPC endpoint and verifies it serves the expected
// chain. A mismatch is an error; pointing a poller at the wrong chain
// would silently miss every deposit.
func Dial(ctx context.Context, rpcURL string, chainID uint64) (*Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	got, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	if got.Uint64() != chainID {
		client.Close()
		return nil, fmt.Errorf("RPC serves chain %d, expected %d", got.Uint64(), chainID)
	}

	return &Client{
		client:  client,
		chainID: chainID,
	}, nil
}

// Close closes the underlying RPC connection.
func (c *Client) Close() {
	c.client.Close()
}

// ChainID returns the chain ID this client is connected to.
func (c *Client) ChainID() uint64 {
	return c.chainID
}

// call performs an eth_call against the latest block.
func (c *Client) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{
		To:   &to,
		Data: data,
	}
	return c.client.CallContract(ctx, msg, nil)
}
