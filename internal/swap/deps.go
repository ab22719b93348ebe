// Package swap is the lifecycle engine: per-chain deposit pollers detect
// funded vaults, the orchestrator turns a funded vault into a signed and
// submitted order, and the settlement poller tracks submitted orders to a
// terminal state. All state advances through status-gated store updates,
// so overlapping ticks and duplicate dispatches degrade to no-ops.
package swap

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vaultswap/vaultswapd/internal/keyvault"
	"github.com/vaultswap/vaultswapd/internal/metrics"
	"github.com/vaultswap/vaultswapd/internal/orderbook"
	"github.com/vaultswap/vaultswapd/internal/storage"
)

// Store is the persistence surface the engine drives the state machine
// through.
type Store interface {
	GetPendingSwapsByChain(chainID uint64) ([]*storage.SwapRecord, error)
	GetExecutingSwaps() ([]*storage.SwapRecord, error)
	RecordDeposit(id, txHash, depositor, amount string) error
	MarkExecuting(id string) error
	SaveOrderUID(id, uid string) error
	UpdateOrderStatus(id, orderStatus, settlementTxHash, actualBuyAmount string) error
	MarkFailed(id, reason string) error
	ExpireOverdue() (int64, error)
	FailStuckExecuting(cutoff time.Time) (int64, error)
	CountSwapsByStatusAndChain() ([]storage.StatusCount, error)
}

// BalanceReader reads vault balances and permit nonces on one chain.
type BalanceReader interface {
	BalancesOf(ctx context.Context, token common.Address, owners []common.Address) ([]*big.Int, error)
	PermitNonce(ctx context.Context, token, owner common.Address) (*big.Int, error)
}

// Orderbook is the settlement orderbook surface for one chain.
type Orderbook interface {
	Quote(ctx context.Context, req *orderbook.QuoteRequest) (*orderbook.Quote, error)
	UploadAppData(ctx context.Context, hash common.Hash, document string) error
	Submit(ctx context.Context, order *orderbook.Order, signature []byte, from common.Address) (string, error)
	OrderStatus(ctx context.Context, uid string) (*orderbook.OrderStatus, error)
	Trades(ctx context.Context, uid string) ([]orderbook.Trade, error)
}

// KeyDeriver recomputes vault keys from persisted salts.
type KeyDeriver interface {
	Derive(salt []byte) (*keyvault.DerivedKey, error)
}

// SlippageSource resolves per-market slippage tolerances.
type SlippageSource interface {
	BpsForMarket(ctx context.Context, chainID uint64, sellToken, buyToken string) int64
}

// EventSink receives swap lifecycle events for the status feed. A nil-safe
// no-op sink is used when no feed is wired.
type EventSink interface {
	Broadcast(event string, data any)
}

// ChainBackend bundles the per-chain collaborators.
type ChainBackend struct {
	ChainID      uint64
	SellToken    common.Address
	Reader       BalanceReader
	Orderbook    Orderbook
	PollInterval time.Duration
}

// Deps is the constructor-injected bundle shared by the orchestrator and
// both pollers.
type Deps struct {
	Store    Store
	Vault    KeyDeriver
	Slippage SlippageSource
	Metrics  *metrics.Metrics
	Events   EventSink

	// OrderValidFor is the signed order validity window.
	OrderValidFor time.Duration

	// StuckGrace is how long an executing swap may sit without an order
	// UID before the settlement sweep fails it.
	StuckGrace time.Duration
}

// nopSink drops events.
type nopSink struct{}

func (nopSink) Broadcast(string, any) {}

// events returns the configured sink or a no-op.
func (d *Deps) events() EventSink {
	if d.Events == nil {
		return nopSink{}
	}
	return d.Events
}
