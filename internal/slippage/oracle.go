// Package slippage resolves per-market slippage tolerances. Lookups hit a
// per-market endpoint and are cached in-process for a short TTL; any
// failure falls back to the configured default so order signing never
// blocks on this service.
package slippage

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vaultswap/vaultswapd/pkg/logging"
)

// Oracle caches slippage tolerances per market.
type Oracle struct {
	apiURL     string
	defaultBps int64
	ttl        time.Duration
	httpClient *http.Client
	logger     *logging.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	bps     int64
	fetched time.Time
}

// NewOracle creates a slippage oracle. An empty apiURL disables lookups;
// every market then resolves to defaultBps.
func NewOracle(apiURL string, defaultBps int64, ttl, timeout time.Duration) *Oracle {
	return &Oracle{
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		defaultBps: defaultBps,
		ttl:        ttl,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logging.Component("slippage"),
		cache:  make(map[string]cacheEntry),
	}
}

// BpsForMarket returns the slippage tolerance for (chain, sellToken,
// buyToken) in basis points. Cache entries younger than the TTL are served
// as-is; fetch failures return the default without being cached.
func (o *Oracle) BpsForMarket(ctx context.Context, chainID uint64, sellToken, buyToken string) int64 {
	key := strings.ToLower(fmt.Sprintf("%d:%s:%s", chainID, sellToken, buyToken))

	o.mu.RLock()
	entry, ok := o.cache[key]
	o.mu.RUnlock()
	if ok && time.Since(entry.fetched) < o.ttl {
		return entry.bps
	}

	bps, err := o.fetch(ctx, chainID, sellToken, buyToken)
	if err != nil {
		o.logger.Debug("Slippage lookup failed, using default",
			"market", key, "default_bps", o.defaultBps, "error", err)
		return o.defaultBps
	}

	o.mu.Lock()
	o.cache[key] = cacheEntry{bps: bps, fetched: time.Now()}
	o.mu.Unlock()

	return bps
}

// fetch queries the per-market endpoint.
func (o *Oracle) fetch(ctx context.Context, chainID uint64, sellToken, buyToken string) (int64, error) {
	if o.apiURL == "" {
		return 0, fmt.Errorf("no slippage endpoint configured")
	}

	url := fmt.Sprintf("%s/slippage?chainId=%d&sellToken=%s&buyToken=%s",
		o.apiURL, chainID, sellToken, buyToken)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var result struct {
		SlippageBps int64 `json:"slippageBps"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, err
	}
	if result.SlippageBps < 0 || result.SlippageBps > 10000 {
		return 0, fmt.Errorf("slippage %d bps out of range", result.SlippageBps)
	}

	return result.SlippageBps, nil
}

// ApplyToBuyAmount discounts a quoted buy amount by a tolerance:
// buyAmount * (10000 - bps) / 10000, floored, in exact integer arithmetic.
func ApplyToBuyAmount(buyAmount *big.Int, bps int64) *big.Int {
	result := new(big.Int).Mul(buyAmount, big.NewInt(10000-bps))
	return result.Div(result, big.NewInt(10000))
}
