package api

import (
	"github.com/vaultswap/vaultswapd/internal/storage"
	"github.com/vaultswap/vaultswapd/internal/token"
)

// ---------------------------------------------------------------------------
// Request / response types
// ---------------------------------------------------------------------------

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// QuoteRequest is the POST /quote body. SellAmount is a decimal string in
// CBBTC base units.
type QuoteRequest struct {
	ChainID    uint64      `json:"chainId"`
	BuyToken   token.Token `json:"buyToken"`
	SellAmount string      `json:"sellAmount"`
}

// QuoteResponse is the POST /quote response. A rejected quote carries
// CanFill false and the orderbook's message verbatim.
type QuoteResponse struct {
	CanFill    bool   `json:"canFill"`
	SellAmount string `json:"sellAmount,omitempty"`
	BuyAmount  string `json:"buyAmount,omitempty"`
	FeeAmount  string `json:"feeAmount,omitempty"`
	Message    string `json:"message,omitempty"`
}

// CreateSwapRequest is the POST /swap body.
type CreateSwapRequest struct {
	ChainID          uint64      `json:"chainId"`
	BuyToken         token.Token `json:"buyToken"`
	RecipientAddress string      `json:"recipientAddress"`
	RefundAddress    string      `json:"refundAddress"`
}

// CreateSwapResponse is the POST /swap response. The user sends CBBTC to
// VaultAddress before ExpiresAt.
type CreateSwapResponse struct {
	SwapID       string `json:"swapId"`
	ChainID      uint64 `json:"chainId"`
	VaultAddress string `json:"vaultAddress"`
	SellToken    string `json:"sellToken"`
	BuyToken     string `json:"buyToken"`
	CreatedAt    int64  `json:"createdAt"`
	ExpiresAt    int64  `json:"expiresAt"`
}

// SwapStatusResponse is the GET /swap/{id} response. The vault salt is
// never exposed.
type SwapStatusResponse struct {
	SwapID           string `json:"swapId"`
	ChainID          uint64 `json:"chainId"`
	VaultAddress     string `json:"vaultAddress"`
	SellToken        string `json:"sellToken"`
	BuyToken         string `json:"buyToken"`
	RecipientAddress string `json:"recipientAddress"`
	RefundAddress    string `json:"refundAddress"`
	Status           string `json:"status"`

	DepositAmount    string `json:"depositAmount,omitempty"`
	OrderUID         string `json:"orderUid,omitempty"`
	OrderStatus      string `json:"orderStatus,omitempty"`
	SettlementTxHash string `json:"settlementTxHash,omitempty"`
	ActualBuyAmount  string `json:"actualBuyAmount,omitempty"`
	RefundTxHash     string `json:"refundTxHash,omitempty"`
	RefundAmount     string `json:"refundAmount,omitempty"`
	FailureReason    string `json:"failureReason,omitempty"`

	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`
	ExpiresAt int64 `json:"expiresAt"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// swapStatusResponse maps a stored record to the public view.
func swapStatusResponse(rec *storage.SwapRecord) *SwapStatusResponse {
	return &SwapStatusResponse{
		SwapID:           rec.ID,
		ChainID:          rec.ChainID,
		VaultAddress:     rec.VaultAddress,
		SellToken:        rec.SellToken,
		BuyToken:         rec.BuyToken,
		RecipientAddress: rec.RecipientAddress,
		RefundAddress:    rec.RefundAddress,
		Status:           string(rec.Status),
		DepositAmount:    rec.DepositAmount,
		OrderUID:         rec.OrderUID,
		OrderStatus:      rec.OrderStatus,
		SettlementTxHash: rec.SettlementTxHash,
		ActualBuyAmount:  rec.ActualBuyAmount,
		RefundTxHash:     rec.RefundTxHash,
		RefundAmount:     rec.RefundAmount,
		FailureReason:    rec.FailureReason,
		CreatedAt:        rec.CreatedAt.Unix(),
		UpdatedAt:        rec.UpdatedAt.Unix(),
		ExpiresAt:        rec.ExpiresAt.Unix(),
	}
}
