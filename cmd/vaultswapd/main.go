// Package main provides the vaultswapd daemon: a non-custodial CBBTC swap
// coordinator driving deterministic deposit vaults and a settlement
// orderbook.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vaultswap/vaultswapd/internal/api"
	"github.com/vaultswap/vaultswapd/internal/config"
	"github.com/vaultswap/vaultswapd/internal/evm"
	"github.com/vaultswap/vaultswapd/internal/keyvault"
	"github.com/vaultswap/vaultswapd/internal/metrics"
	"github.com/vaultswap/vaultswapd/internal/orderbook"
	"github.com/vaultswap/vaultswapd/internal/slippage"
	"github.com/vaultswap/vaultswapd/internal/storage"
	"github.com/vaultswap/vaultswapd/internal/swap"
	"github.com/vaultswap/vaultswapd/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	var (
		dataDir     = flag.String("data-dir", "~/.vaultswap", "Data directory")
		port        = flag.Int("port", 0, "HTTP listen port, overrides config")
		keyPath     = flag.String("key", "", "Master key file path, overrides config")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error), overrides config")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	log := logging.New(&logging.Config{
		Level:      "info",
		TimeFormat: time.TimeOnly,
	})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("vaultswapd %s (commit: %s)", version, commit)
		os.Exit(0)
	}

	// Load or create config, then apply CLI overrides (CLI beats env
	// beats file).
	cfg, err := config.Load(*dataDir)
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}
	cfg.Storage.DataDir = *dataDir
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *keyPath != "" {
		cfg.Vault.KeyPath = *keyPath
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid config", "error", err)
	}

	log = logging.New(&logging.Config{
		Level:      cfg.Logging.Level,
		TimeFormat: time.TimeOnly,
	})
	logging.SetDefault(log)
	log.Info("Config loaded", "path", config.ConfigPath(*dataDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Master key. The only long-lived secret in the process.
	vault, err := keyvault.Load(config.ExpandPath(cfg.Vault.KeyPath))
	if err != nil {
		log.Fatal("Failed to load master key", "error", err)
	}
	defer vault.Destroy()
	log.Info("Master key loaded", "path", cfg.Vault.KeyPath)

	// Storage.
	store, err := storage.New(cfg.DatabasePath())
	if err != nil {
		log.Fatal("Failed to initialize storage", "error", err)
	}
	defer store.Close()
	log.Info("Storage initialized", "path", cfg.DatabasePath())

	// Per-chain backends: verified RPC dial plus an orderbook client.
	httpTimeout := time.Duration(cfg.Swap.HTTPTimeout) * time.Second
	chains := make(map[uint64]*swap.ChainBackend)
	quoters := make(map[uint64]api.Quoter)
	for name, ch := range cfg.Chains {
		client, err := evm.Dial(ctx, ch.RPCURL, ch.ChainID)
		if err != nil {
			log.Fatal("Failed to connect chain RPC", "chain", name, "error", err)
		}
		defer client.Close()

		book := orderbook.NewClient(ch.OrderbookURL, httpTimeout)
		chains[ch.ChainID] = &swap.ChainBackend{
			ChainID:      ch.ChainID,
			SellToken:    config.CBBTCToken,
			Reader:       client,
			Orderbook:    book,
			PollInterval: time.Duration(ch.PollingInterval) * time.Second,
		}
		quoters[ch.ChainID] = book
		log.Info("Chain connected", "chain", name, "chain_id", ch.ChainID, "poll_interval", ch.PollingInterval)
	}

	// Slippage oracle and metrics.
	oracle := slippage.NewOracle(
		cfg.Slippage.APIURL,
		cfg.Slippage.DefaultBps,
		time.Duration(cfg.Slippage.CacheTTL)*time.Second,
		httpTimeout,
	)
	m := metrics.New()

	// API server first; its WebSocket hub is the engine's event sink.
	server := api.NewServer(&api.Config{
		Store:          store,
		Vault:          vault,
		Orderbooks:     quoters,
		Metrics:        m,
		DepositTTL:     time.Duration(cfg.Swap.DepositTTL) * time.Second,
		RequestTimeout: time.Duration(cfg.Server.RequestTimeout) * time.Second,
	})

	engine := swap.NewEngine(&swap.Deps{
		Store:         store,
		Vault:         vault,
		Slippage:      oracle,
		Metrics:       m,
		Events:        server.Hub(),
		OrderValidFor: time.Duration(cfg.Swap.OrderValidFor) * time.Second,
		StuckGrace:    time.Duration(cfg.Swap.StuckGrace) * time.Second,
	}, chains, time.Duration(cfg.Swap.SettlementInterval)*time.Second)

	apiAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	if err := server.Start(apiAddr); err != nil {
		log.Fatal("Failed to start API server", "error", err)
	}
	engine.Start()

	var pusher *metrics.Pusher
	if cfg.Metrics.PushURL != "" {
		pusher = metrics.NewPusher(m, cfg.Metrics.PushURL, cfg.Metrics.PushUsername,
			cfg.Metrics.PushAPIKey, time.Duration(cfg.Metrics.PushInterval)*time.Second)
		pusher.Start()
	}

	printBanner(log, cfg, apiAddr)

	// Periodic status line.
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logStatus(log, store)
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	log.Info("Shutting down...")
	cancel()

	engine.Stop()
	if pusher != nil {
		pusher.Stop()
	}
	if err := server.Stop(); err != nil {
		log.Error("Error stopping API server", "error", err)
	}

	log.Info("Goodbye!")
}

// logStatus emits the periodic swap-count summary.
func logStatus(log *logging.Logger, store *storage.Storage) {
	counts, err := store.CountSwapsByStatusAndChain()
	if err != nil {
		log.Debug("Failed to count swaps", "error", err)
		return
	}

	var pending, executing int64
	for _, c := range counts {
		switch c.Status {
		case storage.StatusPendingDeposit:
			pending += c.Count
		case storage.StatusExecuting:
			executing += c.Count
		}
	}
	log.Info("Status", "pending_deposit", pending, "executing", executing)
}

func printBanner(log *logging.Logger, cfg *config.Config, apiAddr string) {
	log.Info("")
	log.Info("=================================================")
	log.Info("  VaultSwap Coordinator")
	log.Infof("  Version: %s", version)
	log.Info("=================================================")
	log.Info("")
	log.Infof("  API: http://localhost%s", apiAddr)
	log.Infof("  WS:  ws://localhost%s/ws", apiAddr)
	log.Info("")
	for name, ch := range cfg.Chains {
		log.Infof("  Chain: %s (id %d), polling every %ds", name, ch.ChainID, ch.PollingInterval)
	}
	log.Infof("  Data dir: %s", config.ExpandPath(cfg.Storage.DataDir))
	log.Info("")
	log.Info("=================================================")
	log.Info("")
}
