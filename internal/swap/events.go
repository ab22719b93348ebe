package swap

// Lifecycle event names broadcast on the status feed.
const (
	EventDepositDetected = "deposit_detected"
	EventOrderSubmitted  = "order_submitted"
	EventSwapCompleted   = "swap_completed"
	EventSwapFailed      = "swap_failed"
	EventRefundPending   = "refund_pending"
	EventSwapsExpired    = "swaps_expired"
)

// SwapEvent is the payload attached to per-swap lifecycle events.
type SwapEvent struct {
	SwapID  string `json:"swap_id"`
	ChainID uint64 `json:"chain_id"`
	Status  string `json:"status"`

	DepositAmount    string `json:"deposit_amount,omitempty"`
	OrderUID         string `json:"order_uid,omitempty"`
	SettlementTxHash string `json:"settlement_tx_hash,omitempty"`
	ActualBuyAmount  string `json:"actual_buy_amount,omitempty"`
	FailureReason    string `json:"failure_reason,omitempty"`
}
