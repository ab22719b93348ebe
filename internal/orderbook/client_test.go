package orderbook

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, 5*time.Second)
}

func TestQuote(t *testing.T) {
	var gotBody map[string]any

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/v1/quote" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		w.Write([]byte(`{
			"quote": {
				"sellAmount": "9900",
				"buyAmount": "123456789",
				"feeAmount": "100",
				"validTo": 1756000000
			},
			"id": 42
		}`))
	}))

	quote, err := client.Quote(context.Background(), &QuoteRequest{
		SellToken:  common.HexToAddress("0xcbB7C0000aB88B473b1f5aFd9ef808440eed33Bf"),
		BuyToken:   common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		From:       common.HexToAddress("0x1111111111111111111111111111111111111111"),
		SellAmount: big.NewInt(10000),
	})
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}

	if gotBody["kind"] != "sell" {
		t.Errorf("request kind = %v, want sell", gotBody["kind"])
	}
	if gotBody["sellAmountBeforeFee"] != "10000" {
		t.Errorf("request sellAmountBeforeFee = %v, want 10000", gotBody["sellAmountBeforeFee"])
	}

	if quote.BuyAmount.String() != "123456789" {
		t.Errorf("buy amount = %s, want 123456789", quote.BuyAmount)
	}
	if quote.SellAmount.String() != "9900" {
		t.Errorf("sell amount = %s, want 9900", quote.SellAmount)
	}
	if quote.FeeAmount.String() != "100" {
		t.Errorf("fee amount = %s, want 100", quote.FeeAmount)
	}
	if quote.QuoteID != 42 {
		t.Errorf("quote id = %d, want 42", quote.QuoteID)
	}
	if quote.ValidTo != 1756000000 {
		t.Errorf("validTo = %d", quote.ValidTo)
	}
}

func TestQuoteUpstreamRejection(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorType":"SellAmountDoesNotCoverFee","description":"The sell amount for the sell order is too small"}`))
	}))

	_, err := client.Quote(context.Background(), &QuoteRequest{
		SellToken:  common.Address{},
		BuyToken:   common.Address{},
		SellAmount: big.NewInt(1),
	})
	if err == nil {
		t.Fatal("expected error")
	}

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected *UpstreamError, got %T: %v", err, err)
	}
	if upstream.ErrorType != "SellAmountDoesNotCoverFee" {
		t.Errorf("errorType = %q", upstream.ErrorType)
	}
	if upstream.Message != "The sell amount for the sell order is too small" {
		t.Errorf("message = %q", upstream.Message)
	}
	if upstream.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", upstream.StatusCode)
	}
}

func TestUploadAppData(t *testing.T) {
	hash := common.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	var gotPath string
	var gotBody map[string]string

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PUT" {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))

	doc := `{"appCode":"vaultswap","version":"1.1.0"}`
	if err := client.UploadAppData(context.Background(), hash, doc); err != nil {
		t.Fatalf("UploadAppData failed: %v", err)
	}

	if gotPath != "/api/v1/app_data/"+hash.Hex() {
		t.Errorf("path = %s", gotPath)
	}
	if gotBody["fullAppData"] != doc {
		t.Errorf("fullAppData = %q", gotBody["fullAppData"])
	}
}

func TestSubmit(t *testing.T) {
	var gotBody map[string]any

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/v1/orders" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`"0xdeadbeef"`))
	}))

	order := &Order{
		SellToken:        common.HexToAddress("0xcbB7C0000aB88B473b1f5aFd9ef808440eed33Bf"),
		BuyToken:         common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		Receiver:         common.HexToAddress("0x1111111111111111111111111111111111111111"),
		SellAmount:       big.NewInt(10000),
		BuyAmount:        big.NewInt(99999),
		ValidTo:          1756000000,
		AppData:          common.HexToHash("0xbb"),
		FeeAmount:        big.NewInt(0),
		Kind:             OrderKindSell,
		SellTokenBalance: BalanceERC20,
		BuyTokenBalance:  BalanceERC20,
	}

	uid, err := client.Submit(context.Background(), order, []byte{0x01, 0x02}, common.HexToAddress("0x1111111111111111111111111111111111111111"))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if uid != "0xdeadbeef" {
		t.Errorf("uid = %q", uid)
	}

	if gotBody["signingScheme"] != "eip712" {
		t.Errorf("signingScheme = %v", gotBody["signingScheme"])
	}
	if gotBody["signature"] != "0x0102" {
		t.Errorf("signature = %v", gotBody["signature"])
	}
	if gotBody["feeAmount"] != "0" {
		t.Errorf("feeAmount = %v", gotBody["feeAmount"])
	}
	if gotBody["partiallyFillable"] != false {
		t.Errorf("partiallyFillable = %v", gotBody["partiallyFillable"])
	}
}

func TestOrderStatus(t *testing.T) {
	tests := []struct {
		name       string
		response   string
		wantStatus string
		wantBuy    string
	}{
		{
			name:       "fulfilled",
			response:   `{"status":"fulfilled","executedBuyAmount":"123456","executedSellAmount":"10000"}`,
			wantStatus: OrderStatusFulfilled,
			wantBuy:    "123456",
		},
		{
			name:       "open",
			response:   `{"status":"open","executedBuyAmount":"0","executedSellAmount":"0"}`,
			wantStatus: OrderStatusOpen,
			wantBuy:    "0",
		},
		{
			name:       "presignature pending",
			response:   `{"status":"presignaturePending"}`,
			wantStatus: OrderStatusPresignaturePending,
			wantBuy:    "",
		},
		{
			name:       "expired",
			response:   `{"status":"expired"}`,
			wantStatus: OrderStatusExpired,
			wantBuy:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/v1/orders/0xuid" {
					t.Errorf("path = %s", r.URL.Path)
				}
				w.Write([]byte(tt.response))
			}))

			status, err := client.OrderStatus(context.Background(), "0xuid")
			if err != nil {
				t.Fatalf("OrderStatus failed: %v", err)
			}
			if status.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status.Status, tt.wantStatus)
			}
			if tt.wantBuy == "" {
				if status.ExecutedBuyAmount != nil {
					t.Errorf("executed buy = %v, want nil", status.ExecutedBuyAmount)
				}
			} else if status.ExecutedBuyAmount.String() != tt.wantBuy {
				t.Errorf("executed buy = %s, want %s", status.ExecutedBuyAmount, tt.wantBuy)
			}
		})
	}
}

func TestTradesFiltersUnsettled(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/trades" || r.URL.Query().Get("orderUid") != "0xuid" {
			t.Errorf("unexpected request: %s", r.URL.String())
		}
		w.Write([]byte(`[
			{"txHash":"","sellAmount":"1","buyAmount":"2","blockNumber":0},
			{"txHash":"0xsettled","sellAmount":"10000","buyAmount":"123456","blockNumber":19000000}
		]`))
	}))

	trades, err := client.Trades(context.Background(), "0xuid")
	if err != nil {
		t.Fatalf("Trades failed: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(trades))
	}
	if trades[0].TxHash != "0xsettled" {
		t.Errorf("tx hash = %q", trades[0].TxHash)
	}
	if trades[0].BuyAmount.String() != "123456" {
		t.Errorf("buy amount = %s", trades[0].BuyAmount)
	}
	if trades[0].BlockNumber != 19000000 {
		t.Errorf("block = %d", trades[0].BlockNumber)
	}
}

func TestErrorResponseWithoutJSON(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))

	_, err := client.OrderStatus(context.Background(), "0xuid")
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected *UpstreamError, got %v", err)
	}
	if upstream.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d", upstream.StatusCode)
	}
	if upstream.Message != "upstream exploded" {
		t.Errorf("message = %q", upstream.Message)
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"open", "OPEN"},
		{"fulfilled", "FULFILLED"},
		{"cancelled", "CANCELLED"},
		{"expired", "EXPIRED"},
		{"presignaturePending", "PRESIGNATURE_PENDING"},
		{"something-new", "SOMETHING-NEW"},
	}
	for _, tt := range tests {
		if got := normalizeStatus(tt.in); got != tt.want {
			t.Errorf("normalizeStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
