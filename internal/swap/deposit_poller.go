package swap

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vaultswap/vaultswapd/pkg/logging"
)

// DepositPoller watches one chain's pending vaults for incoming balance.
// Each tick batch-reads every pending vault's CBBTC balance and dispatches
// funded swaps to the orchestrator without blocking the loop.
type DepositPoller struct {
	deps    *Deps
	backend *ChainBackend
	orch    *Orchestrator
	log     *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// wg tracks in-flight dispatches so Stop can drain them.
	wg sync.WaitGroup
}

// NewDepositPoller creates a poller for one chain.
func NewDepositPoller(deps *Deps, backend *ChainBackend, orch *Orchestrator) *DepositPoller {
	ctx, cancel := context.WithCancel(context.Background())
	return &DepositPoller{
		deps:    deps,
		backend: backend,
		orch:    orch,
		log:     logging.Component("deposit-poller").With("chain_id", backend.ChainID),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins the polling loop.
func (p *DepositPoller) Start() {
	go p.run()
	p.log.Info("Deposit poller started", "interval", p.backend.PollInterval)
}

// Stop cancels the loop and waits for in-flight dispatches to finish.
func (p *DepositPoller) Stop() {
	p.cancel()
	p.wg.Wait()
	p.log.Info("Deposit poller stopped")
}

func (p *DepositPoller) run() {
	ticker := time.NewTicker(p.backend.PollInterval)
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

// tick loads pending swaps, batch-reads their balances, and dispatches
// the funded ones. A whole-batch RPC failure skips the chain this tick.
func (p *DepositPoller) tick() {
	pending, err := p.deps.Store.GetPendingSwapsByChain(p.backend.ChainID)
	if err != nil {
		p.log.Error("Failed to load pending swaps", "error", err)
		p.deps.Metrics.PollerErrors.WithLabelValues("deposit").Inc()
		return
	}
	if len(pending) == 0 {
		return
	}

	vaults := make([]common.Address, len(pending))
	for i, rec := range pending {
		vaults[i] = common.HexToAddress(rec.VaultAddress)
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.backend.PollInterval)
	balances, err := p.backend.Reader.BalancesOf(ctx, p.backend.SellToken, vaults)
	cancel()
	if err != nil {
		p.log.Warn("Balance batch failed, skipping tick", "vaults", len(vaults), "error", err)
		p.deps.Metrics.PollerErrors.WithLabelValues("deposit").Inc()
		return
	}

	for i, rec := range pending {
		if balances[i].Sign() <= 0 {
			continue
		}

		rec, balance := rec, balances[i]
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.orch.Execute(p.ctx, rec, balance)
		}()
	}
}
