package swap

import (
	"context"
	"time"

	"github.com/vaultswap/vaultswapd/internal/metrics"
	"github.com/vaultswap/vaultswapd/internal/orderbook"
	"github.com/vaultswap/vaultswapd/internal/storage"
	"github.com/vaultswap/vaultswapd/pkg/logging"
)

// SettlementPoller is the single process-wide sweep: it expires stale
// pending swaps, fails executing rows that never got an order UID,
// refreshes the status gauges, and advances every executing swap by its
// orderbook status.
type SettlementPoller struct {
	deps     *Deps
	chains   map[uint64]*ChainBackend
	interval time.Duration
	log      *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSettlementPoller creates the settlement poller.
func NewSettlementPoller(deps *Deps, chains map[uint64]*ChainBackend, interval time.Duration) *SettlementPoller {
	ctx, cancel := context.WithCancel(context.Background())
	return &SettlementPoller{
		deps:     deps,
		chains:   chains,
		interval: interval,
		log:      logging.Component("settlement-poller"),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins the polling loop.
func (p *SettlementPoller) Start() {
	go p.run()
	p.log.Info("Settlement poller started", "interval", p.interval)
}

// Stop cancels the loop and waits for the current tick to finish.
func (p *SettlementPoller) Stop() {
	p.cancel()
	<-p.done
	p.log.Info("Settlement poller stopped")
}

func (p *SettlementPoller) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

// tick runs one sweep. Per-swap errors are logged and counted but never
// stop the sweep.
func (p *SettlementPoller) tick() {
	p.expireOverdue()
	p.failStuck()
	p.refreshGauges()

	executing, err := p.deps.Store.GetExecutingSwaps()
	if err != nil {
		p.log.Error("Failed to load executing swaps", "error", err)
		p.deps.Metrics.PollerErrors.WithLabelValues("settlement").Inc()
		return
	}

	for _, rec := range executing {
		if rec.OrderUID == "" {
			// Between MarkExecuting and SaveOrderUID. The stuck sweep
			// picks it up if the gap outlives the grace window.
			continue
		}
		if err := p.advance(rec); err != nil {
			p.log.Warn("Failed to advance swap", "swap_id", rec.ID, "error", err)
			p.deps.Metrics.PollerErrors.WithLabelValues("settlement").Inc()
		}
	}
}

func (p *SettlementPoller) expireOverdue() {
	count, err := p.deps.Store.ExpireOverdue()
	if err != nil {
		p.log.Error("Failed to expire overdue swaps", "error", err)
		p.deps.Metrics.PollerErrors.WithLabelValues("settlement").Inc()
		return
	}
	if count > 0 {
		p.log.Info("Expired overdue swaps", "count", count)
		p.deps.Metrics.SwapsExpired.Add(float64(count))
		p.deps.events().Broadcast(EventSwapsExpired, map[string]int64{"count": count})
	}
}

// failStuck sweeps executing rows with no order UID that are older than
// the grace window. Order submission died between MarkExecuting and
// SaveOrderUID; without a UID the settlement sweep can never advance
// them, so they are failed for operator recovery.
func (p *SettlementPoller) failStuck() {
	if p.deps.StuckGrace <= 0 {
		return
	}
	count, err := p.deps.Store.FailStuckExecuting(time.Now().Add(-p.deps.StuckGrace))
	if err != nil {
		p.log.Error("Failed to sweep stuck swaps", "error", err)
		p.deps.Metrics.PollerErrors.WithLabelValues("settlement").Inc()
		return
	}
	if count > 0 {
		p.log.Warn("Failed stuck executing swaps without order uid", "count", count)
	}
}

func (p *SettlementPoller) refreshGauges() {
	counts, err := p.deps.Store.CountSwapsByStatusAndChain()
	if err != nil {
		p.log.Error("Failed to count swaps", "error", err)
		return
	}

	matrix := make(map[uint64]map[string]int64)
	for _, c := range counts {
		byStatus, ok := matrix[c.ChainID]
		if !ok {
			byStatus = make(map[string]int64)
			matrix[c.ChainID] = byStatus
		}
		byStatus[string(c.Status)] = c.Count
	}
	p.deps.Metrics.SetStatusGauge(matrix)
}

// advance fetches one order's status and applies the terminal mapping.
func (p *SettlementPoller) advance(rec *storage.SwapRecord) error {
	backend, ok := p.chains[rec.ChainID]
	if !ok {
		return ErrChainNotConfigured
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.interval)
	defer cancel()

	status, err := backend.Orderbook.OrderStatus(ctx, rec.OrderUID)
	if err != nil {
		return err
	}

	switch status.Status {
	case orderbook.OrderStatusFulfilled:
		return p.complete(ctx, rec, backend, status)

	case orderbook.OrderStatusExpired, orderbook.OrderStatusCancelled:
		if err := p.deps.Store.UpdateOrderStatus(rec.ID, status.Status, "", ""); err != nil {
			return err
		}
		p.log.Info("Order did not fill, refund pending", "swap_id", rec.ID, "order_status", status.Status)
		p.deps.Metrics.SwapsFailed.WithLabelValues(metrics.ChainLabel(rec.ChainID)).Inc()
		p.deps.events().Broadcast(EventRefundPending, &SwapEvent{
			SwapID:  rec.ID,
			ChainID: rec.ChainID,
			Status:  string(storage.StatusRefundPending),
		})
		return nil

	default:
		// OPEN or PRESIGNATURE_PENDING: persist the sub-status only when
		// it changed.
		if status.Status == rec.OrderStatus {
			return nil
		}
		return p.deps.Store.UpdateOrderStatus(rec.ID, status.Status, "", "")
	}
}

// complete records the settled fill: first settled trade's tx hash plus
// the executed buy amount.
func (p *SettlementPoller) complete(ctx context.Context, rec *storage.SwapRecord, backend *ChainBackend, status *orderbook.OrderStatus) error {
	trades, err := backend.Orderbook.Trades(ctx, rec.OrderUID)
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		// Fulfilled but the trade is not indexed yet; retry next tick.
		p.log.Debug("Order fulfilled, waiting for trade", "swap_id", rec.ID)
		return nil
	}

	txHash := trades[0].TxHash
	buyAmount := ""
	if status.ExecutedBuyAmount != nil {
		buyAmount = status.ExecutedBuyAmount.String()
	} else if trades[0].BuyAmount != nil {
		buyAmount = trades[0].BuyAmount.String()
	}
	if buyAmount == "" {
		// A complete row always carries its executed amount; wait for the
		// orderbook to report it.
		p.log.Debug("Order fulfilled, waiting for executed amount", "swap_id", rec.ID)
		return nil
	}

	if err := p.deps.Store.UpdateOrderStatus(rec.ID, orderbook.OrderStatusFulfilled, txHash, buyAmount); err != nil {
		return err
	}

	elapsed := time.Since(rec.CreatedAt)
	p.log.Info("Swap complete", "swap_id", rec.ID, "tx", txHash, "buy_amount", buyAmount, "elapsed", elapsed.Round(time.Second))
	p.deps.Metrics.SwapsCompleted.WithLabelValues(metrics.ChainLabel(rec.ChainID)).Inc()
	p.deps.Metrics.CompletionSeconds.Observe(elapsed.Seconds())
	p.deps.events().Broadcast(EventSwapCompleted, &SwapEvent{
		SwapID:           rec.ID,
		ChainID:          rec.ChainID,
		Status:           string(storage.StatusComplete),
		SettlementTxHash: txHash,
		ActualBuyAmount:  buyAmount,
	})
	return nil
}
