package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vaultswap/vaultswapd/internal/metrics"
	"github.com/vaultswap/vaultswapd/internal/orderbook"
	"github.com/vaultswap/vaultswapd/internal/storage"
)

// fakeQuoter serves a canned quote or error.
type fakeQuoter struct {
	quote *orderbook.Quote
	err   error
}

func (q *fakeQuoter) Quote(context.Context, *orderbook.QuoteRequest) (*orderbook.Quote, error) {
	if q.err != nil {
		return nil, q.err
	}
	return q.quote, nil
}

// fakeMinter mints random throwaway vaults.
type fakeMinter struct{}

func (fakeMinter) Mint() (common.Address, []byte, error) {
	var addr common.Address
	salt := make([]byte, 32)
	if _, err := rand.Read(addr[:]); err != nil {
		return addr, nil, err
	}
	if _, err := rand.Read(salt); err != nil {
		return addr, nil, err
	}
	return addr, salt, nil
}

func newTestServer(t *testing.T, quoter *fakeQuoter) (*httptest.Server, *storage.Storage) {
	t.Helper()

	store, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	s := NewServer(&Config{
		Store:      store,
		Vault:      fakeMinter{},
		Orderbooks: map[uint64]Quoter{8453: quoter},
		Metrics:    metrics.New(),
		DepositTTL: 24 * time.Hour,
	})
	go s.hub.Run()

	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return ts, store
}

func postJSON(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func getJSON(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, &fakeQuoter{})

	resp, body := getJSON(t, ts.URL+"/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var health HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if health.Status != "ok" || health.Timestamp == 0 {
		t.Errorf("unexpected health body: %s", body)
	}
}

func TestQuoteSuccess(t *testing.T) {
	ts, _ := newTestServer(t, &fakeQuoter{
		quote: &orderbook.Quote{
			SellAmount: big.NewInt(9988),
			BuyAmount:  big.NewInt(5000000),
			FeeAmount:  big.NewInt(12),
		},
	})

	resp, body := postJSON(t, ts.URL+"/quote",
		`{"chainId":8453,"buyToken":{"type":"ether"},"sellAmount":"10000"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, body)
	}

	var quote QuoteResponse
	if err := json.Unmarshal(body, &quote); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if !quote.CanFill || quote.BuyAmount != "5000000" || quote.FeeAmount != "12" {
		t.Errorf("unexpected quote body: %s", body)
	}
}

func TestQuoteUpstreamRejection(t *testing.T) {
	ts, _ := newTestServer(t, &fakeQuoter{
		err: &orderbook.UpstreamError{
			StatusCode: 400,
			ErrorType:  "SellAmountDoesNotCoverFee",
			Message:    "sell amount does not cover fee",
		},
	})

	resp, body := postJSON(t, ts.URL+"/quote",
		`{"chainId":8453,"buyToken":{"type":"ether"},"sellAmount":"1"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	var quote QuoteResponse
	if err := json.Unmarshal(body, &quote); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if quote.CanFill {
		t.Error("canFill true on rejection")
	}
	if quote.Message != "sell amount does not cover fee" {
		t.Errorf("message = %q, upstream message not forwarded", quote.Message)
	}
}

func TestQuoteBadRequests(t *testing.T) {
	ts, _ := newTestServer(t, &fakeQuoter{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"unsupported chain", `{"chainId":137,"buyToken":{"type":"ether"},"sellAmount":"10"}`, http.StatusBadRequest},
		{"bad amount", `{"chainId":8453,"buyToken":{"type":"ether"},"sellAmount":"ten"}`, http.StatusBadRequest},
		{"malformed json", `{"chainId":`, http.StatusUnprocessableEntity},
		{"bad token type", `{"chainId":8453,"buyToken":{"type":"doge"},"sellAmount":"10"}`, http.StatusUnprocessableEntity},
		{"missing buy token", `{"chainId":8453,"sellAmount":"10"}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postJSON(t, ts.URL+"/quote", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d: %s", resp.StatusCode, tt.want, body)
			}
		})
	}
}

const createBody = `{
	"chainId": 8453,
	"buyToken": {"type":"erc20","address":"0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"},
	"recipientAddress": "0x1111111111111111111111111111111111111111",
	"refundAddress": "0x2222222222222222222222222222222222222222"
}`

func TestCreateSwap(t *testing.T) {
	ts, store := newTestServer(t, &fakeQuoter{})

	resp, body := postJSON(t, ts.URL+"/swap", createBody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, body)
	}

	var created CreateSwapResponse
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if created.SwapID == "" || !common.IsHexAddress(created.VaultAddress) {
		t.Fatalf("unexpected create body: %s", body)
	}
	if created.ExpiresAt <= created.CreatedAt {
		t.Error("expiry not after creation")
	}

	rec, err := store.GetSwap(created.SwapID)
	if err != nil {
		t.Fatalf("created swap not persisted: %v", err)
	}
	if rec.Status != storage.StatusPendingDeposit {
		t.Errorf("status = %s, want pending_deposit", rec.Status)
	}
	if rec.VaultSalt == "" {
		t.Error("vault salt not persisted")
	}
	if strings.Contains(string(body), rec.VaultSalt) {
		t.Error("vault salt leaked in the response")
	}
}

func TestCreateSwapValidation(t *testing.T) {
	ts, store := newTestServer(t, &fakeQuoter{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"unsupported chain", strings.Replace(createBody, "8453", "137", 1), http.StatusBadRequest},
		// Chain 1 is a known chain ID but the test server only runs Base.
		{"unconfigured chain", strings.Replace(createBody, "8453", "1", 1), http.StatusBadRequest},
		{"bad recipient", strings.Replace(createBody, "0x1111111111111111111111111111111111111111", "nope", 1), http.StatusBadRequest},
		{"bad refund", strings.Replace(createBody, "0x2222222222222222222222222222222222222222", "0x22", 1), http.StatusBadRequest},
		{"malformed json", `{"chainId"`, http.StatusUnprocessableEntity},
		{"missing buy token", `{
			"chainId": 8453,
			"recipientAddress": "0x1111111111111111111111111111111111111111",
			"refundAddress": "0x2222222222222222222222222222222222222222"
		}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postJSON(t, ts.URL+"/swap", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d: %s", resp.StatusCode, tt.want, body)
			}
		})
	}

	// No rows were inserted by any rejected request.
	counts, err := store.CountSwapsByStatusAndChain()
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if len(counts) != 0 {
		t.Errorf("rejected requests inserted rows: %v", counts)
	}
}

func TestGetSwap(t *testing.T) {
	ts, store := newTestServer(t, &fakeQuoter{})

	resp, _ := getJSON(t, ts.URL+"/swap/unknown-id")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}

	_, body := postJSON(t, ts.URL+"/swap", createBody)
	var created CreateSwapResponse
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("failed to decode create body: %v", err)
	}

	resp, body = getJSON(t, fmt.Sprintf("%s/swap/%s", ts.URL, created.SwapID))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var status SwapStatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("failed to decode status body: %v", err)
	}
	if status.Status != string(storage.StatusPendingDeposit) {
		t.Errorf("status = %s, want pending_deposit", status.Status)
	}
	if status.BuyToken != "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913" {
		t.Errorf("buy token = %s", status.BuyToken)
	}

	rec, _ := store.GetSwap(created.SwapID)
	if strings.Contains(string(body), rec.VaultSalt) {
		t.Error("vault salt leaked in the status response")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, &fakeQuoter{})

	postJSON(t, ts.URL+"/swap", createBody)

	resp, body := getJSON(t, ts.URL+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "vaultswap_swaps_created_total") {
		t.Error("exposition is missing the swaps created counter")
	}
}
