package swap

import (
	"time"

	"github.com/vaultswap/vaultswapd/pkg/logging"
)

// Engine bundles the orchestrator with one deposit poller per chain and
// the settlement poller.
type Engine struct {
	Orchestrator *Orchestrator

	depositPollers   []*DepositPoller
	settlementPoller *SettlementPoller
	log              *logging.Logger
}

// NewEngine wires the lifecycle engine for a set of chain backends.
func NewEngine(deps *Deps, chains map[uint64]*ChainBackend, settlementInterval time.Duration) *Engine {
	orch := NewOrchestrator(deps, chains)

	e := &Engine{
		Orchestrator:     orch,
		settlementPoller: NewSettlementPoller(deps, chains, settlementInterval),
		log:              logging.Component("swap-engine"),
	}
	for _, backend := range chains {
		e.depositPollers = append(e.depositPollers, NewDepositPoller(deps, backend, orch))
	}
	return e
}

// Start launches all polling loops.
func (e *Engine) Start() {
	for _, p := range e.depositPollers {
		p.Start()
	}
	e.settlementPoller.Start()
	e.log.Info("Lifecycle engine started", "chains", len(e.depositPollers))
}

// Stop halts the loops, draining in-flight dispatches.
func (e *Engine) Stop() {
	for _, p := range e.depositPollers {
		p.Stop()
	}
	e.settlementPoller.Stop()
	e.log.Info("Lifecycle engine stopped")
}
