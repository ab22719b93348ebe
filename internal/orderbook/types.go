// Package orderbook is a thin client for the external settlement
// orderbook's HTTP API: quoting, app-data upload, order submission, and
// order/trade lookups.
package orderbook

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Canonical order statuses. The upstream API reports camelCase variants;
// the client normalizes before returning.
const (
	OrderStatusPresignaturePending = "PRESIGNATURE_PENDING"
	OrderStatusOpen                = "OPEN"
	OrderStatusFulfilled           = "FULFILLED"
	OrderStatusCancelled           = "CANCELLED"
	OrderStatusExpired             = "EXPIRED"
)

// Order field constants. Every order this daemon signs is a full-fill sell
// order settled from ERC-20 balances.
const (
	OrderKindSell       = "sell"
	BalanceERC20        = "erc20"
	SigningSchemeEIP712 = "eip712"
)

// QuoteRequest asks the orderbook to price a sell order.
type QuoteRequest struct {
	SellToken  common.Address
	BuyToken   common.Address
	From       common.Address
	SellAmount *big.Int
}

// Quote is the orderbook's priced response.
type Quote struct {
	QuoteID    int64
	SellAmount *big.Int
	BuyAmount  *big.Int
	FeeAmount  *big.Int
	ValidTo    uint32
}

// Order is a GPv2 order ready for signing and submission.
type Order struct {
	SellToken         common.Address
	BuyToken          common.Address
	Receiver          common.Address
	SellAmount        *big.Int
	BuyAmount         *big.Int
	ValidTo           uint32
	AppData           common.Hash
	FeeAmount         *big.Int
	Kind              string
	PartiallyFillable bool
	SellTokenBalance  string
	BuyTokenBalance   string
}

// OrderStatus is the current orderbook view of a submitted order.
type OrderStatus struct {
	Status             string
	ExecutedBuyAmount  *big.Int
	ExecutedSellAmount *big.Int
}

// Trade is one settled fill of an order.
type Trade struct {
	TxHash      string
	SellAmount  *big.Int
	BuyAmount   *big.Int
	BlockNumber uint64
}

// UpstreamError preserves the orderbook's own error response so callers can
// forward it verbatim.
type UpstreamError struct {
	StatusCode int
	ErrorType  string
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		if e.ErrorType != "" {
			return fmt.Sprintf("orderbook: %s: %s", e.ErrorType, e.Message)
		}
		return fmt.Sprintf("orderbook: %s", e.Message)
	}
	return fmt.Sprintf("orderbook: unexpected status %d", e.StatusCode)
}
