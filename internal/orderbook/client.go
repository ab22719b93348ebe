package orderbook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vaultswap/vaultswapd/pkg/helpers"
)

// Client talks to one chain's settlement orderbook.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an orderbook client for a base URL like
// https://api.cow.fi/mainnet.
func NewClient(baseURL string, timeout time.Duration) *Client {
	// Remove trailing slash
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// wireQuote mirrors the API's quote envelope. Amounts are decimal strings.
type wireQuote struct {
	Quote struct {
		SellAmount string `json:"sellAmount"`
		BuyAmount  string `json:"buyAmount"`
		FeeAmount  string `json:"feeAmount"`
		ValidTo    uint32 `json:"validTo"`
	} `json:"quote"`
	ID *int64 `json:"id"`
}

// Quote requests a price for selling SellAmount of SellToken into BuyToken.
// An orderbook rejection (e.g. SellAmountDoesNotCoverFee) comes back as an
// *UpstreamError with the server's message intact.
func (c *Client) Quote(ctx context.Context, req *QuoteRequest) (*Quote, error) {
	body := map[string]any{
		"sellToken":           req.SellToken.Hex(),
		"buyToken":            req.BuyToken.Hex(),
		"from":                req.From.Hex(),
		"kind":                OrderKindSell,
		"sellAmountBeforeFee": req.SellAmount.String(),
	}

	var result wireQuote
	if err := c.doJSON(ctx, "POST", "/api/v1/quote", body, &result); err != nil {
		return nil, err
	}

	sellAmount, err := helpers.ParseAmount(result.Quote.SellAmount)
	if err != nil {
		return nil, fmt.Errorf("bad quote sellAmount %q: %w", result.Quote.SellAmount, err)
	}
	buyAmount, err := helpers.ParseAmount(result.Quote.BuyAmount)
	if err != nil {
		return nil, fmt.Errorf("bad quote buyAmount %q: %w", result.Quote.BuyAmount, err)
	}
	feeAmount, err := helpers.ParseAmount(result.Quote.FeeAmount)
	if err != nil {
		return nil, fmt.Errorf("bad quote feeAmount %q: %w", result.Quote.FeeAmount, err)
	}

	quote := &Quote{
		SellAmount: sellAmount,
		BuyAmount:  buyAmount,
		FeeAmount:  feeAmount,
		ValidTo:    result.Quote.ValidTo,
	}
	if result.ID != nil {
		quote.QuoteID = *result.ID
	}
	return quote, nil
}

// UploadAppData registers the full app-data document under its hash.
// Idempotent: re-uploading the same document succeeds. Must happen before
// any order referencing the hash is submitted.
func (c *Client) UploadAppData(ctx context.Context, hash common.Hash, document string) error {
	body := map[string]string{"fullAppData": document}
	return c.doJSON(ctx, "PUT", "/api/v1/app_data/"+hash.Hex(), body, nil)
}

// Submit sends a signed order and returns the orderbook-assigned UID.
func (c *Client) Submit(ctx context.Context, order *Order, signature []byte, from common.Address) (string, error) {
	body := map[string]any{
		"sellToken":         order.SellToken.Hex(),
		"buyToken":          order.BuyToken.Hex(),
		"receiver":          order.Receiver.Hex(),
		"sellAmount":        order.SellAmount.String(),
		"buyAmount":         order.BuyAmount.String(),
		"validTo":           order.ValidTo,
		"appData":           order.AppData.Hex(),
		"feeAmount":         order.FeeAmount.String(),
		"kind":              order.Kind,
		"partiallyFillable": order.PartiallyFillable,
		"sellTokenBalance":  order.SellTokenBalance,
		"buyTokenBalance":   order.BuyTokenBalance,
		"signingScheme":     SigningSchemeEIP712,
		"signature":         helpers.BytesToHex(signature),
		"from":              from.Hex(),
	}

	var uid string
	if err := c.doJSON(ctx, "POST", "/api/v1/orders", body, &uid); err != nil {
		return "", err
	}
	if uid == "" {
		return "", fmt.Errorf("orderbook returned empty order uid")
	}
	return uid, nil
}

// wireOrder is the subset of the order endpoint response we consume.
type wireOrder struct {
	Status             string `json:"status"`
	ExecutedBuyAmount  string `json:"executedBuyAmount"`
	ExecutedSellAmount string `json:"executedSellAmount"`
}

// OrderStatus fetches the current status of a submitted order.
func (c *Client) OrderStatus(ctx context.Context, uid string) (*OrderStatus, error) {
	var result wireOrder
	if err := c.get(ctx, "/api/v1/orders/"+uid, &result); err != nil {
		return nil, err
	}

	status := &OrderStatus{
		Status:             normalizeStatus(result.Status),
		ExecutedBuyAmount:  parseOptionalAmount(result.ExecutedBuyAmount),
		ExecutedSellAmount: parseOptionalAmount(result.ExecutedSellAmount),
	}
	return status, nil
}

// wireTrade is one entry of the trades endpoint response.
type wireTrade struct {
	TxHash      string `json:"txHash"`
	SellAmount  string `json:"sellAmount"`
	BuyAmount   string `json:"buyAmount"`
	BlockNumber uint64 `json:"blockNumber"`
}

// Trades returns the settled fills for an order, skipping entries without
// an on-chain settlement transaction.
func (c *Client) Trades(ctx context.Context, uid string) ([]Trade, error) {
	var result []wireTrade
	if err := c.get(ctx, "/api/v1/trades?orderUid="+uid, &result); err != nil {
		return nil, err
	}

	trades := make([]Trade, 0, len(result))
	for _, t := range result {
		if t.TxHash == "" {
			continue
		}
		trades = append(trades, Trade{
			TxHash:      t.TxHash,
			SellAmount:  parseOptionalAmount(t.SellAmount),
			BuyAmount:   parseOptionalAmount(t.BuyAmount),
			BlockNumber: t.BlockNumber,
		})
	}
	return trades, nil
}

// get performs a GET request and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.doJSON(ctx, "GET", path, nil, result)
}

// doJSON performs a request with an optional JSON body. Non-2xx responses
// become *UpstreamError with the server's errorType/description preserved.
func (c *Client) doJSON(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UpstreamError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseErrorResponse(resp)
	}

	if result == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

// parseErrorResponse extracts the orderbook's {errorType, description}
// payload, falling back to the raw body.
func parseErrorResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)

	var apiErr struct {
		ErrorType   string `json:"errorType"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Description != "" {
		return &UpstreamError{
			StatusCode: resp.StatusCode,
			ErrorType:  apiErr.ErrorType,
			Message:    apiErr.Description,
		}
	}

	return &UpstreamError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(raw)),
	}
}

// normalizeStatus maps the API's camelCase statuses to their canonical
// uppercase forms.
func normalizeStatus(s string) string {
	switch s {
	case "presignaturePending":
		return OrderStatusPresignaturePending
	case "open":
		return OrderStatusOpen
	case "fulfilled":
		return OrderStatusFulfilled
	case "cancelled":
		return OrderStatusCancelled
	case "expired":
		return OrderStatusExpired
	default:
		return strings.ToUpper(s)
	}
}

// parseOptionalAmount parses a decimal amount that may be absent.
func parseOptionalAmount(s string) *big.Int {
	if s == "" {
		return nil
	}
	amount, err := helpers.ParseAmount(s)
	if err != nil {
		return nil
	}
	return amount
}
