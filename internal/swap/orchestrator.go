package swap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vaultswap/vaultswapd/internal/config"
	"github.com/vaultswap/vaultswapd/internal/metrics"
	"github.com/vaultswap/vaultswapd/internal/orderbook"
	"github.com/vaultswap/vaultswapd/internal/signing"
	"github.com/vaultswap/vaultswapd/internal/slippage"
	"github.com/vaultswap/vaultswapd/internal/storage"
	"github.com/vaultswap/vaultswapd/internal/token"
	"github.com/vaultswap/vaultswapd/pkg/helpers"
	"github.com/vaultswap/vaultswapd/pkg/logging"
)

// ErrChainNotConfigured means a swap row references a chain with no
// configured backend.
var ErrChainNotConfigured = errors.New("chain not configured")

// Orchestrator turns a funded vault into a submitted order: permit,
// app-data, fresh quote, signature, submission, UID persistence.
type Orchestrator struct {
	deps   *Deps
	chains map[uint64]*ChainBackend
	log    *logging.Logger
}

// NewOrchestrator creates the orchestrator.
func NewOrchestrator(deps *Deps, chains map[uint64]*ChainBackend) *Orchestrator {
	return &Orchestrator{
		deps:   deps,
		chains: chains,
		log:    logging.Component("orchestrator"),
	}
}

// Execute advances one funded swap from pending_deposit to a submitted
// order. It is safe to call concurrently for the same swap: the
// MarkExecuting gate lets exactly one caller through. Any failure after
// the gate moves the swap to failed; the deposit stays in the vault for
// out-of-band recovery.
func (o *Orchestrator) Execute(ctx context.Context, rec *storage.SwapRecord, balance *big.Int) {
	log := o.log.With("swap_id", rec.ID, "chain_id", rec.ChainID)

	backend, ok := o.chains[rec.ChainID]
	if !ok {
		log.Error("Swap references unconfigured chain")
		return
	}

	// The balance poll does not attribute the depositor; tx hash and
	// depositor stay empty.
	if err := o.deps.Store.RecordDeposit(rec.ID, "", "", balance.String()); err != nil {
		if !errors.Is(err, storage.ErrStateConflict) {
			log.Error("Failed to record deposit", "error", err)
			return
		}
	}

	if err := o.deps.Store.MarkExecuting(rec.ID); err != nil {
		if errors.Is(err, storage.ErrStateConflict) {
			// Another dispatch won the race.
			log.Debug("Swap already dispatched")
			return
		}
		log.Error("Failed to mark swap executing", "error", err)
		return
	}

	log.Info("Deposit detected, executing swap",
		"amount", balance.String(),
		"amount_btc", helpers.FormatAmount(balance, config.CBBTCDecimals))
	o.deps.Metrics.DepositsDetected.WithLabelValues(metrics.ChainLabel(rec.ChainID)).Inc()
	o.deps.events().Broadcast(EventDepositDetected, &SwapEvent{
		SwapID:        rec.ID,
		ChainID:       rec.ChainID,
		Status:        string(storage.StatusExecuting),
		DepositAmount: balance.String(),
	})

	uid, err := o.submitOrder(ctx, rec, backend, balance)
	if err != nil {
		o.fail(rec, err)
		return
	}

	if err := o.deps.Store.SaveOrderUID(rec.ID, uid); err != nil {
		// The order is live but the UID write lost; the stuck sweep will
		// surface the row. Nothing to retract from here.
		log.Error("Failed to save order uid", "uid", uid, "error", err)
		return
	}

	log.Info("Order submitted", "uid", uid)
	o.deps.Metrics.OrdersSubmitted.WithLabelValues(metrics.ChainLabel(rec.ChainID)).Inc()
	o.deps.events().Broadcast(EventOrderSubmitted, &SwapEvent{
		SwapID:   rec.ID,
		ChainID:  rec.ChainID,
		Status:   string(storage.StatusExecuting),
		OrderUID: uid,
	})
}

// submitOrder runs the signing pipeline and returns the orderbook UID.
func (o *Orchestrator) submitOrder(ctx context.Context, rec *storage.SwapRecord, backend *ChainBackend, balance *big.Int) (string, error) {
	salt, err := helpers.HexToBytes(rec.VaultSalt)
	if err != nil {
		return "", fmt.Errorf("invalid vault salt: %w", err)
	}

	key, err := o.deps.Vault.Derive(salt)
	if err != nil {
		return "", fmt.Errorf("failed to derive vault key: %w", err)
	}
	defer key.Destroy()

	vaultAddr := common.HexToAddress(rec.VaultAddress)
	if key.Address() != vaultAddr {
		return "", fmt.Errorf("derived address %s does not match vault %s", key.Address().Hex(), rec.VaultAddress)
	}

	buyToken, err := token.FromString(rec.BuyToken)
	if err != nil {
		return "", fmt.Errorf("invalid buy token: %w", err)
	}

	nonce, err := backend.Reader.PermitNonce(ctx, backend.SellToken, vaultAddr)
	if err != nil {
		return "", fmt.Errorf("failed to read permit nonce: %w", err)
	}

	permit, err := signing.SignPermit(key, rec.ChainID, backend.SellToken, nonce)
	if err != nil {
		return "", err
	}

	bps := o.deps.Slippage.BpsForMarket(ctx, rec.ChainID, rec.SellToken, rec.BuyToken)

	appData, err := signing.BuildAppData(backend.SellToken, permit.Calldata(), bps)
	if err != nil {
		return "", err
	}

	// Quote against the actual deposited balance; the quote shown at
	// request time was advisory only.
	quote, err := backend.Orderbook.Quote(ctx, &orderbook.QuoteRequest{
		SellToken:  backend.SellToken,
		BuyToken:   buyToken.OrderbookAddress(),
		From:       vaultAddr,
		SellAmount: balance,
	})
	if err != nil {
		return "", err
	}

	order := &orderbook.Order{
		SellToken:         backend.SellToken,
		BuyToken:          buyToken.OrderbookAddress(),
		Receiver:          common.HexToAddress(rec.RecipientAddress),
		SellAmount:        quote.SellAmount,
		BuyAmount:         slippage.ApplyToBuyAmount(quote.BuyAmount, bps),
		ValidTo:           uint32(time.Now().Add(o.deps.OrderValidFor).Unix()),
		AppData:           appData.Hash(),
		FeeAmount:         big.NewInt(0),
		Kind:              orderbook.OrderKindSell,
		PartiallyFillable: false,
		SellTokenBalance:  orderbook.BalanceERC20,
		BuyTokenBalance:   orderbook.BalanceERC20,
	}

	signature, err := signing.SignOrder(key, rec.ChainID, order)
	if err != nil {
		return "", err
	}

	if err := backend.Orderbook.UploadAppData(ctx, appData.Hash(), appData.JSON()); err != nil {
		return "", fmt.Errorf("failed to upload app data: %w", err)
	}

	return backend.Orderbook.Submit(ctx, order, signature, vaultAddr)
}

// fail moves an executing swap to failed with a trimmed diagnostic.
func (o *Orchestrator) fail(rec *storage.SwapRecord, cause error) {
	reason := strings.TrimSpace(cause.Error())
	o.log.Error("Swap execution failed", "swap_id", rec.ID, "reason", reason)

	if err := o.deps.Store.MarkFailed(rec.ID, reason); err != nil {
		o.log.Error("Failed to mark swap failed", "swap_id", rec.ID, "error", err)
		return
	}

	o.deps.Metrics.SwapsFailed.WithLabelValues(metrics.ChainLabel(rec.ChainID)).Inc()
	o.deps.events().Broadcast(EventSwapFailed, &SwapEvent{
		SwapID:        rec.ID,
		ChainID:       rec.ChainID,
		Status:        string(storage.StatusFailed),
		FailureReason: reason,
	})
}
