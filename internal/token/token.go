// Package token models the buy-side asset of a swap: either an ERC-20
// contract or the chain's native ether.
package token

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vaultswap/vaultswapd/internal/config"
)

// Kind discriminates the two buy-token forms.
type Kind string

const (
	// KindERC20 is a standard ERC-20 token identified by contract address.
	KindERC20 Kind = "erc20"

	// KindEther is the chain's native token.
	KindEther Kind = "ether"
)

// Token identifies a buy-side asset.
type Token struct {
	Kind    Kind
	Address common.Address // zero for ether
}

// ERC20 returns a Token for an ERC-20 contract.
func ERC20(addr common.Address) Token {
	return Token{Kind: KindERC20, Address: addr}
}

// Ether returns the native-token Token.
func Ether() Token {
	return Token{Kind: KindEther}
}

// Valid reports whether the token carries a known kind. The zero value is
// invalid: it is what an absent wire field decodes to, since a missing key
// never reaches UnmarshalJSON.
func (t Token) Valid() bool {
	return t.Kind == KindERC20 || t.Kind == KindEther
}

// IsNative reports whether the token is native ether.
func (t Token) IsNative() bool {
	return t.Kind == KindEther
}

// OrderbookAddress returns the address used when placing orders: the
// contract address for ERC-20 tokens, the native sentinel for ether.
func (t Token) OrderbookAddress() common.Address {
	if t.IsNative() {
		return config.NativeSentinel
	}
	return t.Address
}

// String returns the persisted form: "native" for ether, the checksummed
// address for ERC-20 tokens.
func (t Token) String() string {
	if t.IsNative() {
		return "native"
	}
	return t.Address.Hex()
}

// FromString parses the persisted form produced by String.
func FromString(s string) (Token, error) {
	if s == "native" {
		return Ether(), nil
	}
	if !common.IsHexAddress(s) {
		return Token{}, fmt.Errorf("invalid token address: %s", s)
	}
	return ERC20(common.HexToAddress(s)), nil
}

// wireToken is the JSON representation.
type wireToken struct {
	Type    string `json:"type"`
	Address string `json:"address,omitempty"`
}

// MarshalJSON encodes the token as {"type":"erc20","address":"0x..."} or
// {"type":"ether"}.
func (t Token) MarshalJSON() ([]byte, error) {
	w := wireToken{Type: string(t.Kind)}
	if t.Kind == KindERC20 {
		w.Address = t.Address.Hex()
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes and validates the wire form. ERC-20 tokens require
// a well-formed address; ether must not carry one.
func (t *Token) UnmarshalJSON(data []byte) error {
	var w wireToken
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	switch Kind(strings.ToLower(w.Type)) {
	case KindERC20:
		if !common.IsHexAddress(w.Address) {
			return fmt.Errorf("invalid erc20 token address: %q", w.Address)
		}
		addr := common.HexToAddress(w.Address)
		if addr == (common.Address{}) {
			return fmt.Errorf("erc20 token address must not be zero")
		}
		*t = ERC20(addr)
		return nil
	case KindEther:
		if w.Address != "" {
			return fmt.Errorf("ether token must not carry an address")
		}
		*t = Ether()
		return nil
	default:
		return fmt.Errorf("unknown token type: %q", w.Type)
	}
}
