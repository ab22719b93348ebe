package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ERC-20 / EIP-2612 function selectors.
var (
	// balanceOf(address) = 0x70a08231
	selectorBalanceOf = []byte{0x70, 0xa0, 0x82, 0x31}

	// nonces(address) = 0x7ecebe00
	selectorNonces = []byte{0x7e, 0xce, 0xbe, 0x00}

	// permit(address,address,uint256,uint256,uint8,bytes32,bytes32) = 0xd505accf
	selectorPermit = []byte{0xd5, 0x05, 0xac, 0xcf}
)

// PackBalanceOf encodes a balanceOf(owner) call.
func PackBalanceOf(owner common.Address) []byte {
	data := make([]byte, 0, 36)
	data = append(data, selectorBalanceOf...)
	data = append(data, common.LeftPadBytes(owner.Bytes(), 32)...)
	return data
}

// PackNonces encodes a nonces(owner) call.
func PackNonces(owner common.Address) []byte {
	data := make([]byte, 0, 36)
	data = append(data, selectorNonces...)
	data = append(data, common.LeftPadBytes(owner.Bytes(), 32)...)
	return data
}

// PackPermit encodes a permit(owner, spender, value, deadline, v, r, s)
// call. This is the calldata the solver executes as a pre-hook.
func PackPermit(owner, spender common.Address, value, deadline *big.Int, v uint8, r, s [32]byte) []byte {
	data := make([]byte, 0, 4+7*32)
	data = append(data, selectorPermit...)
	data = append(data, common.LeftPadBytes(owner.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(spender.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(value.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(deadline.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes([]byte{v}, 32)...)
	data = append(data, r[:]...)
	data = append(data, s[:]...)
	return data
}

// BalanceOf reads the ERC-20 balance of owner via a single eth_call.
func (c *Client) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	ret, err := c.call(ctx, token, PackBalanceOf(owner))
	if err != nil {
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}
	return new(big.Int).SetBytes(ret), nil
}

// PermitNonce reads the EIP-2612 nonces(owner) counter from a token.
func (c *Client) PermitNonce(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	ret, err := c.call(ctx, token, PackNonces(owner))
	if err != nil {
		return nil, fmt.Errorf("nonces call failed: %w", err)
	}
	if len(ret) == 0 {
		return nil, fmt.Errorf("nonces returned no data; token %s may not support permit", token.Hex())
	}
	return new(big.Int).SetBytes(ret), nil
}
